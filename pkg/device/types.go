package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Peer is an advertising peripheral found by a scan.
type Peer struct {
	Address  string
	Name     string
	Services []uuid.UUID
	RSSI     int
}

// String implements fmt.Stringer.
func (p Peer) String() string {
	if p.Name == "" {
		return p.Address
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.Address)
}

// DisplayName is the name shown to users.
func (p Peer) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.ToUpper(p.Address)
}

// Transport is the BLE central a Device drives. Callbacks may be
// invoked from any goroutine.
type Transport interface {
	// StartScan starts discovery, found is called for every advertisement
	// until StopScan.
	StartScan(found func(Peer)) error
	// StopScan stops discovery.
	StopScan() error
	// Connect establishes a link to the peer with the address.
	Connect(ctx context.Context, address string) (Link, error)
}

// Link is an established connection to a peripheral.
type Link interface {
	// Subscribe enables notifications of a characteristic. It fails with
	// ErrServiceNotFound, ErrCharacteristicNotFound or ErrNotifyUnsupported.
	Subscribe(service, char uuid.UUID, fn func([]byte)) error
	// Write writes the characteristic and waits for the response.
	Write(service, char uuid.UUID, data []byte) error
	// Read reads the characteristic.
	Read(service, char uuid.UUID) ([]byte, error)
	// Connected reports whether the link is still alive.
	Connected() bool
	// Close releases the link.
	Close() error
}
