// Package template implements the fixed binary record format for
// stabilized minutiae sets, plus the stable content hash used for
// template dedup and equality checks.
package template

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

// Wire layout, all multi-byte integers big-endian, field order fixed:
//
//	offset size  field
//	0      4     magic "FMR\0"
//	4      4     declared record length (header + minutiae + trailer)
//	8      4     version (0x00020000)
//	12     2     record header length placeholder (0)
//	14     2     capture device id (0)
//	16     2     image width (500)
//	18     2     image height (500)
//	20     2     x resolution (500)
//	22     2     y resolution (500)
//	24     1     finger view count (1)
//	25     1     finger position (0)
//	26     1     view number (0)
//	27     1     impression type (0, live-scan plain)
//	28     1     finger quality (60)
//	29     2     reserved (0)
//	31     1     minutia count
//	32     6*N   minutia records
//	...    4     extension data length (0): no extension data
//
// Each 6-byte minutia record: byte0 carries bits 13..8 of x in its low
// 7 bits with bit 7 reserved zero, byte1 carries bits 7..0 of x; bytes
// 2-3 are the same split for y; byte4 is theta truncated to one byte
// (wire domain, not the internal [0,180) domain); byte5 is the minutia
// type, always 0x01 (termination) in this profile.

const (
	headerSize  = 32
	minutiaSize = 6
	trailerSize = 4

	formatVersion = 0x00020000

	defaultFingerQuality   = 60
	minutiaTypeTermination = 0x01
)

var magic = [4]byte{'F', 'M', 'R', 0}

// ErrBadMagic reports a buffer that does not start with the template
// magic bytes.
var ErrBadMagic = errors.New("template: bad magic")

// ErrShortHeader reports a buffer too small to hold the fixed header.
var ErrShortHeader = errors.New("template: truncated header")

// Header is the parsed fixed header of a template record.
type Header struct {
	Length         uint32
	Version        uint32
	CaptureDevice  uint16
	Width          uint16
	Height         uint16
	XResolution    uint16
	YResolution    uint16
	ViewCount      uint8
	FingerPosition uint8
	ViewNumber     uint8
	ImpressionType uint8
	Quality        uint8
	MinutiaCount   uint8
}

// Encode serializes a point set into the wire format. The count byte
// holds min(len(points), 255); callers feed stabilized sets of the
// fixed template size. Coordinates are clamped to 14 bits and angles
// truncated to the wire byte domain.
func Encode(points minutiae.Set) []byte {
	n := len(points)
	if n > 255 {
		n = 255
	}

	buf := make([]byte, headerSize+n*minutiaSize+trailerSize)
	copy(buf[0:4], magic[:])
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)))
	binary.BigEndian.PutUint32(buf[8:12], formatVersion)
	// buf[12:14] record header length placeholder, zero
	// buf[14:16] capture device, zero
	binary.BigEndian.PutUint16(buf[16:18], minutiae.ImageWidth)
	binary.BigEndian.PutUint16(buf[18:20], minutiae.ImageHeight)
	binary.BigEndian.PutUint16(buf[20:22], minutiae.ImageWidth)
	binary.BigEndian.PutUint16(buf[22:24], minutiae.ImageHeight)
	buf[24] = 1 // finger view count
	// buf[25:28] finger position, view number, impression type: zero
	buf[28] = defaultFingerQuality
	// buf[29:31] reserved
	buf[31] = uint8(n)

	off := headerSize
	for _, p := range points[:n] {
		x := p.X & 0x3FFF
		y := p.Y & 0x3FFF
		buf[off] = byte(x>>8) & 0x7F // bit 7 reserved zero
		buf[off+1] = byte(x)
		buf[off+2] = byte(y>>8) & 0x7F
		buf[off+3] = byte(y)
		buf[off+4] = byte(minutiae.WrapWire(p.Theta))
		buf[off+5] = minutiaTypeTermination
		off += minutiaSize
	}
	// Trailing 4 zero bytes: no extension data.

	return buf
}

// ParseHeader validates the magic and reads the fixed header fields.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, ErrShortHeader
	}
	if [4]byte(data[0:4]) != magic {
		return Header{}, ErrBadMagic
	}
	return Header{
		Length:         binary.BigEndian.Uint32(data[4:8]),
		Version:        binary.BigEndian.Uint32(data[8:12]),
		CaptureDevice:  binary.BigEndian.Uint16(data[14:16]),
		Width:          binary.BigEndian.Uint16(data[16:18]),
		Height:         binary.BigEndian.Uint16(data[18:20]),
		XResolution:    binary.BigEndian.Uint16(data[20:22]),
		YResolution:    binary.BigEndian.Uint16(data[22:24]),
		ViewCount:      data[24],
		FingerPosition: data[25],
		ViewNumber:     data[26],
		ImpressionType: data[27],
		Quality:        data[28],
		MinutiaCount:   data[31],
	}, nil
}

// Decode reads the point list out of an encoded template. The 14-bit
// coordinates are reconstructed with the reserved high bit masked off;
// angles come back in the wire byte domain, so callers repair before
// using them.
//
// A declared count that would read past the buffer end truncates
// gracefully: Decode returns the points that fit, not an error.
func Decode(data []byte) (minutiae.Set, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}

	points := make(minutiae.Set, 0, hdr.MinutiaCount)
	off := headerSize
	for i := 0; i < int(hdr.MinutiaCount); i++ {
		if off+minutiaSize > len(data) {
			break
		}
		x := int(data[off]&0x7F)<<8 | int(data[off+1])
		y := int(data[off+2]&0x7F)<<8 | int(data[off+3])
		points = append(points, minutiae.Point{
			X:     x,
			Y:     y,
			Theta: int(data[off+4]),
		})
		off += minutiaSize
	}
	return points, nil
}

// IsEncoded reports whether the buffer starts with the template magic.
// Used to resolve the encoded-vs-text ingress union exactly once.
func IsEncoded(data []byte) bool {
	return len(data) >= 4 && [4]byte(data[0:4]) == magic
}
