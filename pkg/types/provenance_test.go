package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProvenance_Kinds(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		prov     Provenance
		wantKind string
		wantPath string
	}{
		{"file", FileProvenance{FilePath: "/tmp/a.txt"}, "file", "/tmp/a.txt"},
		{"decompressed", DecompressedProvenance{FilePath: "/tmp/a.gz", Codec: "gzip"}, "decompressed", "/tmp/a.gz!gzip"},
		{"archive", ArchiveProvenance{ArchivePath: "/tmp/a.zip", MemberPath: "etc/app.conf"}, "archive", "/tmp/a.zip!etc/app.conf"},
		{"git", GitProvenance{RepoPath: "/repo", BlobPath: "src/main.go"}, "git", "src/main.go"},
		{
			"pcap",
			PcapProvenance{CaptureFile: "x.pcap", Packet: 3, Timestamp: ts, Transport: "tcp", SrcAddr: "10.0.0.1:1234", DstAddr: "10.0.0.2:80"},
			"pcap",
			"x.pcap#3 tcp 10.0.0.1:1234->10.0.0.2:80",
		},
		{"s3", S3Provenance{Bucket: "logs", Key: "2024/app.log", ETag: `"9b2c"`}, "s3", "s3://logs/2024/app.log"},
		{"azure", AzureProvenance{Account: "acct", Container: "backups", Blob: "db/dump.sql"}, "azure", "az://acct/backups/db/dump.sql"},
		{"extended with path", ExtendedProvenance{Payload: map[string]interface{}{"path": "s3://b/k"}}, "extended", "s3://b/k"},
		{"extended without path", ExtendedProvenance{Payload: map[string]interface{}{"n": 1}}, "extended", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.prov.Kind())
			assert.Equal(t, tt.wantPath, tt.prov.Path())
		})
	}
}
