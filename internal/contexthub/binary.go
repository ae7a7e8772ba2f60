package contexthub

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Nanoapp image header layout (little endian):
//
//	0   uint32 header version
//	4   uint32 magic ("NANO")
//	8   uint64 app ID
//	16  uint32 app version
//	20  uint32 flags
//	24  uint64 hub type
//	32  uint8  target CHRE API major version
//	33  uint8  target CHRE API minor version
//	34  [6]byte reserved
const (
	HeaderSize    = 40
	HeaderVersion = 1
	HeaderMagic   = uint32(0x4f4e414e)
)

// Header flag bits.
const (
	FlagSigned    uint32 = 0x1
	FlagEncrypted uint32 = 0x2
)

var (
	ErrShortBinary = errors.New("nanoapp binary shorter than header")
	ErrBadMagic    = errors.New("nanoapp binary has bad magic")
)

// NanoAppHeader is the parsed header of a nanoapp image.
type NanoAppHeader struct {
	HeaderVersion uint32
	Magic         uint32
	AppID         uint64
	AppVersion    uint32
	Flags         uint32
	HubType       uint64
	TargetMajor   uint8
	TargetMinor   uint8
}

// NanoAppBinary is a nanoapp image and its parsed header.
type NanoAppBinary struct {
	Header NanoAppHeader
	Raw    []byte
}

// ParseNanoAppBinary validates and decodes the header of raw.
// The returned binary keeps a reference to raw.
func ParseNanoAppBinary(raw []byte) (*NanoAppBinary, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: %d < %d bytes", ErrShortBinary, len(raw), HeaderSize)
	}

	h := NanoAppHeader{
		HeaderVersion: binary.LittleEndian.Uint32(raw[0:4]),
		Magic:         binary.LittleEndian.Uint32(raw[4:8]),
		AppID:         binary.LittleEndian.Uint64(raw[8:16]),
		AppVersion:    binary.LittleEndian.Uint32(raw[16:20]),
		Flags:         binary.LittleEndian.Uint32(raw[20:24]),
		HubType:       binary.LittleEndian.Uint64(raw[24:32]),
		TargetMajor:   raw[32],
		TargetMinor:   raw[33],
	}
	if h.Magic != HeaderMagic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, h.Magic)
	}
	if h.HeaderVersion != HeaderVersion {
		return nil, fmt.Errorf("unsupported nanoapp header version %d", h.HeaderVersion)
	}

	return &NanoAppBinary{Header: h, Raw: raw}, nil
}

// EncodeHeader serializes h into a HeaderSize byte slice.
func EncodeHeader(h NanoAppHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.HeaderVersion)
	binary.LittleEndian.PutUint32(buf[4:8], h.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], h.AppID)
	binary.LittleEndian.PutUint32(buf[16:20], h.AppVersion)
	binary.LittleEndian.PutUint32(buf[20:24], h.Flags)
	binary.LittleEndian.PutUint64(buf[24:32], h.HubType)
	buf[32] = h.TargetMajor
	buf[33] = h.TargetMinor
	return buf
}

// NewNanoAppBinary builds a minimal valid image for appID at version with
// payload appended after the header.
func NewNanoAppBinary(appID uint64, version uint32, payload []byte) *NanoAppBinary {
	h := NanoAppHeader{
		HeaderVersion: HeaderVersion,
		Magic:         HeaderMagic,
		AppID:         appID,
		AppVersion:    version,
		TargetMajor:   1,
	}
	raw := append(EncodeHeader(h), payload...)
	return &NanoAppBinary{Header: h, Raw: raw}
}

// AppID is a shorthand for Header.AppID.
func (b *NanoAppBinary) AppID() uint64 {
	return b.Header.AppID
}

// IsSigned reports whether the signed flag is set.
func (b *NanoAppBinary) IsSigned() bool {
	return b.Header.Flags&FlagSigned != 0
}
