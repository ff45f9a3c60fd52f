// Package timer defines the values shared by the shot timer decoders,
// the device adapter and the system state machine.
package timer
