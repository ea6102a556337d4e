//go:build cgo && hyperscan

package matcher

// hyperscanAvailable reports whether the hyperscan engine can be constructed.
func hyperscanAvailable() bool {
	return true
}
