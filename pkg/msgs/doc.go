// Package msgs provides the messages the bridge exchanges over the wire.
package msgs

// Events are produced by the bridge and consumed by displays and
// monitors. Radio messages are exchanged between the bridge and a
// remote radio which owns the actual BLE adapter.
