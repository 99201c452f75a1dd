//go:build !windows

package platform

// NewSource returns the host's snapshot backend. Only Windows has one.
func NewSource() (Source, error) {
	return nil, ErrUnsupported
}
