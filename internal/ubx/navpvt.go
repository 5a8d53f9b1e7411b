package ubx

import (
	"encoding/binary"
	"time"
)

// UBX framing constants.
const (
	Sync1 = 0xB5
	Sync2 = 0x62

	ClassNAV = 0x01
	IDNAVPVT = 0x07

	// NavPVTPayloadSize is the fixed NAV-PVT payload length for the protocol
	// version this package targets.
	NavPVTPayloadSize = 84

	// headerSize covers class, id and the two length bytes; it is the part of
	// the frame between the sync bytes and the payload.
	headerSize = 4
	// FrameSize is a complete NAV-PVT frame on the wire.
	FrameSize = 2 + headerSize + NavPVTPayloadSize + 2
)

// FixType is the NAV-PVT fixType code.
type FixType uint8

const (
	FixNone FixType = iota
	FixDeadReckoning
	Fix2D
	Fix3D
	FixGNSSDeadReckoning
	FixTimeOnly
)

func (f FixType) String() string {
	switch f {
	case FixNone:
		return "none"
	case FixDeadReckoning:
		return "dead-reckoning"
	case Fix2D:
		return "2d"
	case Fix3D:
		return "3d"
	case FixGNSSDeadReckoning:
		return "gnss+dr"
	case FixTimeOnly:
		return "time-only"
	default:
		return "unknown"
	}
}

// Valid bitmask.
const (
	ValidDate          = 0x01
	ValidTime          = 0x02
	ValidFullyResolved = 0x04
)

// Flags bitmask.
const (
	FlagGNSSFixOK = 0x01
	FlagDiffSoln  = 0x02
	FlagPSMState  = 0x1C
)

// NavPVT is one decoded UBX-NAV-PVT message: the frame header followed by the
// payload fields in wire order.
type NavPVT struct {
	Class  uint8
	ID     uint8
	Length uint16 // as declared on the wire

	ITOW       uint32 // GPS time of week, ms
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Min        uint8
	Sec        uint8
	Valid      uint8
	TAcc       uint32 // ns
	Nano       int32  // ns
	FixType    FixType
	Flags      uint8
	Reserved1  uint8
	NumSV      uint8
	Lon        int32 // 1e-7 deg
	Lat        int32 // 1e-7 deg
	Height     int32 // mm above ellipsoid
	HMSL       int32 // mm above mean sea level
	HAcc       uint32
	VAcc       uint32
	VelN       int32 // mm/s
	VelE       int32
	VelD       int32
	GSpeed     int32
	Heading    int32 // 1e-5 deg
	SAcc       uint32
	HeadingAcc uint32
	PDOP       uint16 // 0.01
	Reserved2  uint16
	Reserved3  uint32
}

// field enumerates the payload fields in wire order. The parser walks this
// index as payload bytes arrive.
type field uint8

const (
	fieldITOW field = iota
	fieldYear
	fieldMonth
	fieldDay
	fieldHour
	fieldMin
	fieldSec
	fieldValid
	fieldTAcc
	fieldNano
	fieldFixType
	fieldFlags
	fieldReserved1
	fieldNumSV
	fieldLon
	fieldLat
	fieldHeight
	fieldHMSL
	fieldHAcc
	fieldVAcc
	fieldVelN
	fieldVelE
	fieldVelD
	fieldGSpeed
	fieldHeading
	fieldSAcc
	fieldHeadingAcc
	fieldPDOP
	fieldReserved2
	fieldReserved3
	numFields
)

// fieldWidth is the byte width of each payload field; the widths sum to
// NavPVTPayloadSize.
var fieldWidth = [numFields]uint8{
	4, 2, 1, 1, 1, 1, 1, 1, 4, 4,
	1, 1, 1, 1, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 2, 2, 4,
}

// set stores a little-endian assembled raw value into field f.
func (r *NavPVT) set(f field, v uint32) {
	switch f {
	case fieldITOW:
		r.ITOW = v
	case fieldYear:
		r.Year = uint16(v)
	case fieldMonth:
		r.Month = uint8(v)
	case fieldDay:
		r.Day = uint8(v)
	case fieldHour:
		r.Hour = uint8(v)
	case fieldMin:
		r.Min = uint8(v)
	case fieldSec:
		r.Sec = uint8(v)
	case fieldValid:
		r.Valid = uint8(v)
	case fieldTAcc:
		r.TAcc = v
	case fieldNano:
		r.Nano = int32(v)
	case fieldFixType:
		r.FixType = FixType(v)
	case fieldFlags:
		r.Flags = uint8(v)
	case fieldReserved1:
		r.Reserved1 = uint8(v)
	case fieldNumSV:
		r.NumSV = uint8(v)
	case fieldLon:
		r.Lon = int32(v)
	case fieldLat:
		r.Lat = int32(v)
	case fieldHeight:
		r.Height = int32(v)
	case fieldHMSL:
		r.HMSL = int32(v)
	case fieldHAcc:
		r.HAcc = v
	case fieldVAcc:
		r.VAcc = v
	case fieldVelN:
		r.VelN = int32(v)
	case fieldVelE:
		r.VelE = int32(v)
	case fieldVelD:
		r.VelD = int32(v)
	case fieldGSpeed:
		r.GSpeed = int32(v)
	case fieldHeading:
		r.Heading = int32(v)
	case fieldSAcc:
		r.SAcc = v
	case fieldHeadingAcc:
		r.HeadingAcc = v
	case fieldPDOP:
		r.PDOP = uint16(v)
	case fieldReserved2:
		r.Reserved2 = uint16(v)
	case fieldReserved3:
		r.Reserved3 = v
	}
}

// get returns the raw bits of field f, the inverse of set.
func (r *NavPVT) get(f field) uint32 {
	switch f {
	case fieldITOW:
		return r.ITOW
	case fieldYear:
		return uint32(r.Year)
	case fieldMonth:
		return uint32(r.Month)
	case fieldDay:
		return uint32(r.Day)
	case fieldHour:
		return uint32(r.Hour)
	case fieldMin:
		return uint32(r.Min)
	case fieldSec:
		return uint32(r.Sec)
	case fieldValid:
		return uint32(r.Valid)
	case fieldTAcc:
		return r.TAcc
	case fieldNano:
		return uint32(r.Nano)
	case fieldFixType:
		return uint32(r.FixType)
	case fieldFlags:
		return uint32(r.Flags)
	case fieldReserved1:
		return uint32(r.Reserved1)
	case fieldNumSV:
		return uint32(r.NumSV)
	case fieldLon:
		return uint32(r.Lon)
	case fieldLat:
		return uint32(r.Lat)
	case fieldHeight:
		return uint32(r.Height)
	case fieldHMSL:
		return uint32(r.HMSL)
	case fieldHAcc:
		return r.HAcc
	case fieldVAcc:
		return r.VAcc
	case fieldVelN:
		return uint32(r.VelN)
	case fieldVelE:
		return uint32(r.VelE)
	case fieldVelD:
		return uint32(r.VelD)
	case fieldGSpeed:
		return uint32(r.GSpeed)
	case fieldHeading:
		return uint32(r.Heading)
	case fieldSAcc:
		return r.SAcc
	case fieldHeadingAcc:
		return r.HeadingAcc
	case fieldPDOP:
		return uint32(r.PDOP)
	case fieldReserved2:
		return uint32(r.Reserved2)
	case fieldReserved3:
		return r.Reserved3
	}
	return 0
}

// putBody writes class, id, length and payload into dst, which must hold at
// least headerSize+NavPVTPayloadSize bytes. This is the span the checksum
// covers.
func (r *NavPVT) putBody(dst []byte) {
	dst[0] = r.Class
	dst[1] = r.ID
	binary.LittleEndian.PutUint16(dst[2:4], r.Length)
	off := headerSize
	for f := field(0); f < numFields; f++ {
		v := r.get(f)
		for i := uint8(0); i < fieldWidth[f]; i++ {
			dst[off] = byte(v >> (8 * i))
			off++
		}
	}
}

// MarshalPayload returns the 84 payload bytes in wire layout.
func (r NavPVT) MarshalPayload() []byte {
	var body [headerSize + NavPVTPayloadSize]byte
	r.putBody(body[:])
	out := make([]byte, NavPVTPayloadSize)
	copy(out, body[headerSize:])
	return out
}

// AppendFrame appends the complete wire frame for r (sync, class, id, length,
// payload, checksum) to dst. Class, ID and Length are written as set on r.
func (r NavPVT) AppendFrame(dst []byte) []byte {
	var body [headerSize + NavPVTPayloadSize]byte
	r.putBody(body[:])
	ckA, ckB := ChecksumBytes(body[:])
	dst = append(dst, Sync1, Sync2)
	dst = append(dst, body[:]...)
	return append(dst, ckA, ckB)
}

// LatDeg returns latitude in decimal degrees.
func (r NavPVT) LatDeg() float64 { return float64(r.Lat) * 1e-7 }

// LonDeg returns longitude in decimal degrees.
func (r NavPVT) LonDeg() float64 { return float64(r.Lon) * 1e-7 }

// HeadingDeg returns heading of motion in degrees.
func (r NavPVT) HeadingDeg() float64 { return float64(r.Heading) * 1e-5 }

// PDOPValue returns position DOP as a unitless float.
func (r NavPVT) PDOPValue() float64 { return float64(r.PDOP) * 0.01 }

func (r NavPVT) GNSSFixOK() bool { return r.Flags&FlagGNSSFixOK != 0 }

func (r NavPVT) DiffSoln() bool { return r.Flags&FlagDiffSoln != 0 }

// PSMState returns the power save mode state (flags bits 2..4).
func (r NavPVT) PSMState() uint8 { return (r.Flags & FlagPSMState) >> 2 }

// UTC returns the receiver's UTC time when both date and time are flagged
// valid. Nano is clamped into [0, 999999999].
func (r NavPVT) UTC() (time.Time, bool) {
	if r.Valid&(ValidDate|ValidTime) != ValidDate|ValidTime {
		return time.Time{}, false
	}
	nano := int(r.Nano)
	if nano < 0 {
		nano = 0
	} else if nano > 999999999 {
		nano = 999999999
	}
	return time.Date(int(r.Year), time.Month(r.Month), int(r.Day), int(r.Hour), int(r.Min), int(r.Sec), nano, time.UTC), true
}

// GroundSpeedMS returns 2-D ground speed in m/s.
func (r NavPVT) GroundSpeedMS() float64 { return float64(r.GSpeed) / 1000.0 }

// HMSLMeters returns height above mean sea level in meters.
func (r NavPVT) HMSLMeters() float64 { return float64(r.HMSL) / 1000.0 }

// HAccMeters returns the horizontal accuracy estimate in meters.
func (r NavPVT) HAccMeters() float64 { return float64(r.HAcc) / 1000.0 }

// VAccMeters returns the vertical accuracy estimate in meters.
func (r NavPVT) VAccMeters() float64 { return float64(r.VAcc) / 1000.0 }
