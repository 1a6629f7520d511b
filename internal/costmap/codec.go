package costmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Wire format of one grid datagram (little endian):
//
//	offset size field
//	0      4    magic "LJCG"
//	4      1    version (1)
//	5      3    reserved
//	8      4    width  (u32)
//	12     4    height (u32)
//	16     8    resolution (f64, metres)
//	24     8    origin x (f64)
//	32     8    origin y (f64)
//	40     8    origin theta (f64, radians)
//	48     8    stamp (i64, unix nanos)
//	56     w*h  cells (i8, row-major)
const (
	HeaderSize    = 56
	WireVersion   = 1
	MaxDatagram   = 65507
	MaxWireCells  = MaxDatagram - HeaderSize
	wireMagic     = "LJCG"
	offsetVersion = 4
)

var (
	// ErrShortPacket is returned when a datagram is smaller than its header
	// or its declared cell payload.
	ErrShortPacket = errors.New("grid packet too short")
	// ErrBadMagic is returned for datagrams that are not grid packets.
	ErrBadMagic = errors.New("grid packet has bad magic")
	// ErrBadVersion is returned for an unsupported wire version.
	ErrBadVersion = errors.New("unsupported grid packet version")
	// ErrTooLarge is returned when a grid does not fit in one datagram.
	ErrTooLarge = errors.New("grid too large for one datagram")
)

// MarshalBinary encodes the grid as one datagram.
func (g *Grid) MarshalBinary() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(g.Data) > MaxWireCells {
		return nil, fmt.Errorf("%w: %d cells (max %d)", ErrTooLarge, len(g.Data), MaxWireCells)
	}

	buf := make([]byte, HeaderSize+len(g.Data))
	copy(buf[0:4], wireMagic)
	buf[offsetVersion] = WireVersion
	binary.LittleEndian.PutUint32(buf[8:12], uint32(g.Width))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(g.Height))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(g.Resolution))
	binary.LittleEndian.PutUint64(buf[24:32], math.Float64bits(g.Origin.X))
	binary.LittleEndian.PutUint64(buf[32:40], math.Float64bits(g.Origin.Y))
	binary.LittleEndian.PutUint64(buf[40:48], math.Float64bits(g.Origin.Theta))
	var stamp int64
	if !g.Stamp.IsZero() {
		stamp = g.Stamp.UnixNano()
	}
	binary.LittleEndian.PutUint64(buf[48:56], uint64(stamp))
	for i, v := range g.Data {
		buf[HeaderSize+i] = byte(v)
	}
	return buf, nil
}

// UnmarshalBinary decodes one datagram into g. The cell slice is freshly
// allocated so the caller may reuse its receive buffer.
func (g *Grid) UnmarshalBinary(packet []byte) error {
	if len(packet) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortPacket, len(packet))
	}
	if string(packet[0:4]) != wireMagic {
		return ErrBadMagic
	}
	if v := packet[offsetVersion]; v != WireVersion {
		return fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	width := binary.LittleEndian.Uint32(packet[8:12])
	height := binary.LittleEndian.Uint32(packet[12:16])
	cells := uint64(width) * uint64(height)
	if cells > MaxWireCells {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, width, height)
	}
	if uint64(len(packet)-HeaderSize) < cells {
		return fmt.Errorf("%w: have %d cells, header declares %d", ErrShortPacket, len(packet)-HeaderSize, cells)
	}

	out := Grid{
		Width:      int(width),
		Height:     int(height),
		Resolution: math.Float64frombits(binary.LittleEndian.Uint64(packet[16:24])),
		Origin: Pose{
			X:     math.Float64frombits(binary.LittleEndian.Uint64(packet[24:32])),
			Y:     math.Float64frombits(binary.LittleEndian.Uint64(packet[32:40])),
			Theta: math.Float64frombits(binary.LittleEndian.Uint64(packet[40:48])),
		},
		Data: make([]int8, cells),
	}
	if stamp := int64(binary.LittleEndian.Uint64(packet[48:56])); stamp != 0 {
		out.Stamp = time.Unix(0, stamp).UTC()
	}
	for i := range out.Data {
		out.Data[i] = int8(packet[HeaderSize+i])
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*g = out
	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(packet []byte) (*Grid, error) {
	g := &Grid{}
	if err := g.UnmarshalBinary(packet); err != nil {
		return nil, err
	}
	return g, nil
}
