package model

import (
	"strings"
	"time"
)

// IntegrityRecord holds the content hashes of one file. It is purely a
// function of byte content: two files with identical bytes always produce
// identical digests regardless of name, location, or timestamps.
type IntegrityRecord struct {
	// SHA256 is the hex-encoded SHA-256 digest.
	SHA256 string `json:"sha256"`

	// MD5 is the hex-encoded MD5 digest. Kept for interoperability with
	// legacy evidence registries, never as the sole proof of integrity.
	MD5 string `json:"md5"`

	// SHA1 is the hex-encoded SHA-1 digest.
	SHA1 string `json:"sha1"`

	// TLSH is the fuzzy content hash used for similarity queries against
	// the scan archive. Empty when the input is too small or too uniform
	// for the algorithm to produce a digest.
	TLSH string `json:"tlsh,omitempty"`

	// ComputedAt is when the digests were computed.
	ComputedAt time.Time `json:"computed_at"`
}

// Equal reports whether two records describe the same byte content.
// All cryptographic digests must match; the fuzzy hash and timestamp do
// not participate.
func (r IntegrityRecord) Equal(other IntegrityRecord) bool {
	return strings.EqualFold(r.SHA256, other.SHA256) &&
		strings.EqualFold(r.MD5, other.MD5) &&
		strings.EqualFold(r.SHA1, other.SHA1)
}

// HostContext identifies the machine that performed an acquisition.
// Chain-of-custody reviews need to know where a working copy was made.
type HostContext struct {
	// Hostname is the acquiring machine's hostname.
	Hostname string `json:"hostname"`

	// OS is the operating system family (linux, darwin, windows).
	OS string `json:"os"`

	// Platform is the distribution or product name.
	Platform string `json:"platform,omitempty"`

	// PlatformVersion is the distribution or product version.
	PlatformVersion string `json:"platform_version,omitempty"`

	// KernelVersion is the running kernel version.
	KernelVersion string `json:"kernel_version,omitempty"`

	// KernelArch is the machine architecture as reported by the kernel.
	KernelArch string `json:"kernel_arch,omitempty"`
}

// CustodyRecord documents one acquisition: which file was copied, where
// the working copy lives, and the circumstances of the copy. It is created
// by the acquisition service after the copy has been re-hashed and verified
// against the source, and is never modified afterwards.
type CustodyRecord struct {
	// OriginalPath is the absolute path of the source file.
	OriginalPath string `json:"original_path"`

	// CopyPath is the absolute path of the verified working copy.
	CopyPath string `json:"copy_path"`

	// AcquiredAt is when the working copy was created.
	AcquiredAt time.Time `json:"acquired_at"`

	// PreservedMetadata records whether the copy kept the source's file
	// metadata (it is a byte copy, so embedded metadata always survives;
	// this flag covers filesystem-level attributes).
	PreservedMetadata bool `json:"preserved_metadata"`

	// SizeBytes is the size of the source and the copy. They are equal,
	// the acquisition fails otherwise.
	SizeBytes int64 `json:"size_bytes"`

	// === Source filesystem timestamps ===

	// SourceModTime is the source's modification time at acquisition.
	SourceModTime time.Time `json:"source_mod_time"`

	// SourceAccessTime is the source's access time, when the filesystem
	// tracks one.
	SourceAccessTime time.Time `json:"source_access_time,omitzero"`

	// SourceChangeTime is the source's inode change time, when available.
	SourceChangeTime time.Time `json:"source_change_time,omitzero"`

	// SourceBirthTime is the source's creation time, when the filesystem
	// records one.
	SourceBirthTime time.Time `json:"source_birth_time,omitzero"`

	// Host describes the machine that performed the acquisition.
	Host *HostContext `json:"host,omitempty"`
}
