package types

import (
	"fmt"
	"time"
)

// Provenance tracks where a blob was discovered.
type Provenance interface {
	Kind() string
	// Path returns displayable path (if applicable)
	Path() string
}

// FileProvenance for filesystem files.
type FileProvenance struct {
	FilePath string
}

// Kind returns "file".
func (f FileProvenance) Kind() string { return "file" }

// Path returns the file path.
func (f FileProvenance) Path() string { return f.FilePath }

// DecompressedProvenance for content inflated from a compressed file.
type DecompressedProvenance struct {
	FilePath string
	Codec    string // gzip, zstd or lz4
}

// Kind returns "decompressed".
func (d DecompressedProvenance) Kind() string { return "decompressed" }

// Path returns the compressed file path with its codec.
func (d DecompressedProvenance) Path() string {
	return fmt.Sprintf("%s!%s", d.FilePath, d.Codec)
}

// ArchiveProvenance for a member extracted from an archive or document.
type ArchiveProvenance struct {
	ArchivePath string // path of the archive on disk
	MemberPath  string // path inside the archive
}

// Kind returns "archive".
func (a ArchiveProvenance) Kind() string { return "archive" }

// Path returns "archive!member".
func (a ArchiveProvenance) Path() string {
	return a.ArchivePath + "!" + a.MemberPath
}

// GitProvenance for git repository blobs.
type GitProvenance struct {
	RepoPath string
	Commit   *CommitMetadata // nil if not tracking commit info
	BlobPath string          // path within repo at commit
}

// Kind returns "git".
func (g GitProvenance) Kind() string { return "git" }

// Path returns the blob path within the repository.
func (g GitProvenance) Path() string { return g.BlobPath }

// CommitMetadata holds git commit information.
type CommitMetadata struct {
	CommitID           string
	AuthorName         string
	AuthorEmail        string
	AuthorTimestamp    time.Time
	CommitterName      string
	CommitterEmail     string
	CommitterTimestamp time.Time
	Message            string
}

// PcapProvenance for a packet payload read from a capture file.
type PcapProvenance struct {
	CaptureFile string
	Packet      int // 1-based packet number in the capture
	Timestamp   time.Time
	Transport   string // "tcp" or "udp"
	SrcAddr     string // host:port
	DstAddr     string // host:port
}

// Kind returns "pcap".
func (p PcapProvenance) Kind() string { return "pcap" }

// Path returns the capture file with packet number and flow.
func (p PcapProvenance) Path() string {
	return fmt.Sprintf("%s#%d %s %s->%s", p.CaptureFile, p.Packet, p.Transport, p.SrcAddr, p.DstAddr)
}

// S3Provenance for an object read from an S3 bucket.
type S3Provenance struct {
	Bucket string
	Key    string
	ETag   string `json:",omitempty"`
}

// Kind returns "s3".
func (o S3Provenance) Kind() string { return "s3" }

// Path returns the object URL.
func (o S3Provenance) Path() string { return "s3://" + o.Bucket + "/" + o.Key }

// AzureProvenance for a blob read from an Azure Storage container.
type AzureProvenance struct {
	Account   string
	Container string
	Blob      string
	ETag      string `json:",omitempty"`
}

// Kind returns "azure".
func (a AzureProvenance) Kind() string { return "azure" }

// Path returns the blob as an az:// URL.
func (a AzureProvenance) Path() string {
	return "az://" + a.Account + "/" + a.Container + "/" + a.Blob
}

// ExtendedProvenance for custom sources (NDJSON clients, HTTP, etc.).
type ExtendedProvenance struct {
	Payload map[string]interface{}
}

// Kind returns "extended".
func (e ExtendedProvenance) Kind() string { return "extended" }

// Path returns the "path" payload entry if it is a string.
func (e ExtendedProvenance) Path() string {
	if p, ok := e.Payload["path"].(string); ok {
		return p
	}
	return ""
}
