package device

import "errors"

// Errors reported by devices and transports.
var (
	ErrNotInitialized         = errors.New("device not initialized")
	ErrNotConnected           = errors.New("device not connected")
	ErrBusy                   = errors.New("connection in progress")
	ErrUnknownVendor          = errors.New("peer is not a supported timer")
	ErrUnsupported            = errors.New("operation not supported by the timer")
	ErrServiceNotFound        = errors.New("service not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrNotifyUnsupported      = errors.New("characteristic can't notify")
)
