// Package acquire produces the verified working copy that the rest of the
// pipeline operates on.
//
// Acquisition is the evidentiary boundary of a run: the source file is
// validated (readable, supported image format), copied byte-for-byte into
// the evidence directory under a timestamped collision-free name, and the
// copy is re-hashed from disk and compared against the source digests. A
// mismatch aborts the run; every later stage works only on the verified
// copy, never on the source.
//
// The custody record produced here captures the circumstances of the copy:
// source filesystem timestamps, the acquiring host, and the acquisition
// time. It is created once and never modified.
package acquire
