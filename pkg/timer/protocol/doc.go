// Package protocol decodes shot timer notifications into domain events.
//
// Two wire formats are supported. The SG Timer sends length prefixed
// events:
//
//	[len][event id][payload...]   len == frame length - 1, big endian fields
//
// The Special Pie timer sends frames wrapped in fixed markers:
//
//	F8 F9 [type] [payload...] F9 F8
//
// A Decoder is bound to one vendor for the lifetime of a connection and
// keeps the live session and split tracking state of that device.
package protocol
