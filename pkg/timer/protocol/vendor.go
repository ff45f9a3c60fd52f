package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Vendor selects a wire protocol.
type Vendor int

// Supported vendors.
const (
	UnknownVendor Vendor = iota
	SGTimer
	SpecialPie
)

var vendorNames = map[Vendor]string{
	UnknownVendor: "unknown",
	SGTimer:       "sg",
	SpecialPie:    "specialpie",
}

// String implements fmt.Stringer.
func (v Vendor) String() string {
	if name, ok := vendorNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Vendor(%d)", int(v))
}

// ParseVendor parses the name returned by Vendor.String.
func ParseVendor(name string) (Vendor, error) {
	for v, n := range vendorNames {
		if v != UnknownVendor && strings.EqualFold(n, name) {
			return v, nil
		}
	}
	return UnknownVendor, fmt.Errorf("unknown vendor %q", name)
}

// GATT identifiers.
var (
	SGServiceUUID     = uuid.MustParse("7520FFFF-14D2-4CDA-8B6B-697C554C9311")
	SGEventCharUUID   = uuid.MustParse("75200001-14D2-4CDA-8B6B-697C554C9311")
	SGShotListUUID    = uuid.MustParse("75200004-14D2-4CDA-8B6B-697C554C9311")
	PieServiceUUID    = uuid.MustParse("0000FFF0-0000-1000-8000-00805F9B34FB")
	PieNotifyCharUUID = uuid.MustParse("0000FFF1-0000-1000-8000-00805F9B34FB")
)

// SGNamePrefix is the advertised name prefix of SG Timers.
const SGNamePrefix = "SG-SST4"

// Profile describes how to talk to a vendor's device.
type Profile struct {
	Vendor       Vendor
	Model        string
	Service      uuid.UUID
	Notify       uuid.UUID
	ShotList     uuid.UUID
	RemoteStart  bool
	ShotListRead bool
	SessionCtl   bool
}

var profiles = map[Vendor]Profile{
	SGTimer: {
		Vendor:       SGTimer,
		Model:        "SG Timer",
		Service:      SGServiceUUID,
		Notify:       SGEventCharUUID,
		ShotList:     SGShotListUUID,
		ShotListRead: true,
	},
	SpecialPie: {
		Vendor:  SpecialPie,
		Model:   "Special Pie Timer",
		Service: PieServiceUUID,
		Notify:  PieNotifyCharUUID,
	},
}

// ProfileOf returns the profile of a vendor.
func ProfileOf(v Vendor) (Profile, bool) {
	p, ok := profiles[v]
	return p, ok
}

// Detect identifies the vendor from advertisement data.
func Detect(name string, services []uuid.UUID) Vendor {
	for _, svc := range services {
		switch svc {
		case SGServiceUUID:
			return SGTimer
		case PieServiceUUID:
			return SpecialPie
		}
	}
	if strings.HasPrefix(name, SGNamePrefix) {
		return SGTimer
	}
	return UnknownVendor
}
