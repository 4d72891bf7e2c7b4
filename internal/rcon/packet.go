package rcon

import (
	"encoding/binary"
	"fmt"
)

const (
	TypeResponse     int32 = 0
	TypeCommand      int32 = 2
	TypeAuthResponse int32 = 2
	TypeAuth         int32 = 3
)

const (
	// minPacketLength is id + type + the two terminating NULs.
	minPacketLength = 10
	// MaxPacketLength caps a single frame; anything larger is treated as a
	// corrupt stream rather than buffered.
	MaxPacketLength = 4096 + minPacketLength
)

type Packet struct {
	ID   int32
	Type int32
	Body string
}

// Encode frames p as length | id | type | body | NUL | NUL, little-endian.
func Encode(p Packet) []byte {
	length := int32(len(p.Body) + minPacketLength)
	buf := make([]byte, 4+length)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(length))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Type))
	copy(buf[12:], p.Body)
	return buf
}

// Decoder reassembles packets from an arbitrarily chunked byte stream.
type Decoder struct {
	buf []byte
}

func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Buffered returns the number of bytes not yet consumed by Next.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete packet. ok is false when more bytes are
// needed. A length outside the valid range is reported as ErrProtocol and the
// stream should be abandoned.
func (d *Decoder) Next() (Packet, bool, error) {
	if len(d.buf) < 4 {
		return Packet{}, false, nil
	}

	length := int32(binary.LittleEndian.Uint32(d.buf[0:4]))
	if length < minPacketLength || length > MaxPacketLength {
		return Packet{}, false, fmt.Errorf("%w: invalid packet length %d", ErrProtocol, length)
	}

	total := 4 + int(length)
	if len(d.buf) < total {
		return Packet{}, false, nil
	}

	p := Packet{
		ID:   int32(binary.LittleEndian.Uint32(d.buf[4:8])),
		Type: int32(binary.LittleEndian.Uint32(d.buf[8:12])),
		Body: trimNUL(d.buf[12:total]),
	}

	rest := d.buf[total:]
	d.buf = append(d.buf[:0:0], rest...)

	return p, true, nil
}

func trimNUL(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}
