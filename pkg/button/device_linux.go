// +build linux

package button

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

type jsDevice struct {
	file  *os.File
	index int
	name  string
}

// Open opens /dev/input/js<index>.
func Open(index int) (Device, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/input/js%d", index), os.O_RDONLY, 0666)
	if err != nil {
		return nil, err
	}
	d := &jsDevice{file: f, index: index}
	var buf [256]byte
	if errno := d.ioctl(iocGNAME, unsafe.Pointer(&buf)); errno != 0 {
		d.file.Close()
		return nil, errno
	}
	if pos := bytes.IndexByte(buf[:], 0); pos >= 0 {
		d.name = string(buf[:pos])
	} else {
		d.name = string(buf[:])
	}
	return d, nil
}

// Detect opens the first available device from startIndex. It returns
// nil without error when none exists.
func Detect(startIndex int) (Device, error) {
	for index := startIndex; index < 256; index++ {
		d, err := Open(index)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		return d, nil
	}
	return nil, nil
}

func (d *jsDevice) Close() error { return d.file.Close() }
func (d *jsDevice) Index() int   { return d.index }
func (d *jsDevice) Name() string { return d.name }

// jsEvent is struct js_event of linux/joystick.h.
type jsEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

func (d *jsDevice) ReadEvent() (Event, error) {
	buf := make([]byte, 8)
	for {
		if _, err := d.file.Read(buf); err != nil {
			return Event{}, err
		}
		var ev jsEvent
		if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ev); err != nil {
			return Event{}, err
		}
		if ev.Type&evBTN == 0 {
			continue
		}
		return Event{
			Init:    ev.Type&evINIT != 0,
			Index:   int(ev.Number),
			Pressed: ev.Value != 0,
		}, nil
	}
}

const (
	iocGNAME uint = 0x80ff6a13

	evINIT uint8 = 0x80
	evBTN  uint8 = 0x01
)

func (d *jsDevice) ioctl(req uint, ptr unsafe.Pointer) syscall.Errno {
	_, _, err := syscall.Syscall(syscall.SYS_IOCTL, uintptr(d.file.Fd()), uintptr(req), uintptr(ptr))
	return err
}
