//go:build !cgo || !hyperscan

package matcher

import "fmt"

// NewHyperscanEngine stub for builds without Hyperscan (non-CGO or missing hyperscan tag).
func NewHyperscanEngine() (Engine, error) {
	return nil, fmt.Errorf("Hyperscan requires CGO (build with CGO_ENABLED=1 and -tags=hyperscan)")
}
