// +build !linux

package button

// Open is not supported.
func Open(index int) (Device, error) {
	return nil, ErrUnsupported
}

// Detect is not supported.
func Detect(startIndex int) (Device, error) {
	return nil, ErrUnsupported
}
