// Package integrity computes and verifies the content hashes that anchor
// the chain of custody.
//
// Every digest is a pure function of file bytes: names, timestamps, and
// filesystem metadata never participate. The same content therefore always
// produces the same IntegrityRecord, which is what makes the record usable
// as evidence that a working copy equals its source.
//
// Three algorithms are computed in a single streaming pass: SHA-256 as the
// primary digest, plus MD5 and SHA-1 for interoperability with evidence
// registries that still index by the older algorithms. A TLSH fuzzy hash is
// available separately for similarity queries against the scan archive; it
// is deliberately kept out of the equality check.
package integrity
