package store

import (
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// encodeProvenance serializes prov for the provenance table.
func encodeProvenance(prov types.Provenance) (string, error) {
	switch prov.(type) {
	case types.FileProvenance, types.DecompressedProvenance, types.ArchiveProvenance, types.GitProvenance,
		types.PcapProvenance, types.S3Provenance, types.AzureProvenance, types.ExtendedProvenance:
	default:
		return "", fmt.Errorf("unknown provenance type: %T", prov)
	}
	data, err := json.Marshal(prov)
	if err != nil {
		return "", fmt.Errorf("marshaling provenance: %w", err)
	}
	return string(data), nil
}

// decodeProvenance is the inverse of encodeProvenance.
func decodeProvenance(kind, payload string) (types.Provenance, error) {
	var (
		prov types.Provenance
		err  error
	)
	switch kind {
	case "file":
		var p types.FileProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "decompressed":
		var p types.DecompressedProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "archive":
		var p types.ArchiveProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "git":
		var p types.GitProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "pcap":
		var p types.PcapProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "s3":
		var p types.S3Provenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "azure":
		var p types.AzureProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	case "extended":
		var p types.ExtendedProvenance
		err = json.Unmarshal([]byte(payload), &p)
		prov = p
	default:
		return nil, fmt.Errorf("unknown provenance kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshaling %s provenance: %w", kind, err)
	}
	return prov, nil
}
