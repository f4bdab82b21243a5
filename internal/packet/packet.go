package packet

// Buffer-backed assembly packet with typed field access.
//
// A Packet owns the raw wire bytes of one assembly. All multi-byte numeric
// fields are stored little-endian, matching what the target expects on the
// wire. BOOL fields fill their byte most-significant-bit first, so bit
// offset k within a byte lands on wire bit 7-k.

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tturner/cipmaster/internal/layout"
)

var (
	// ErrFieldNotFound reports a field name the layout does not declare.
	ErrFieldNotFound = errors.New("field not found")
	// ErrUnsupportedType reports an operation the field's type does not support.
	ErrUnsupportedType = errors.New("unsupported field type")
	// ErrOutOfRange reports a value outside the field type's range.
	ErrOutOfRange = errors.New("value out of range")
	// ErrLengthExceeded reports a string longer than the field's declared length.
	ErrLengthExceeded = errors.New("value exceeds field length")
	// ErrInvalidValue reports a value that cannot be parsed for the field type.
	ErrInvalidValue = errors.New("invalid value")
	// ErrSizeMismatch reports a byte load whose size differs from the layout.
	ErrSizeMismatch = errors.New("payload size does not match layout")
)

// Packet binds a byte buffer to a compiled layout.
type Packet struct {
	layout *layout.PacketLayout
	buf    []byte
	index  map[string]layout.FieldSpec
}

// New allocates a zeroed packet for the given layout.
func New(l *layout.PacketLayout) *Packet {
	idx := make(map[string]layout.FieldSpec, len(l.Fields))
	for _, f := range l.Fields {
		idx[f.ID] = f
	}
	return &Packet{
		layout: l,
		buf:    make([]byte, l.TotalBytes()),
		index:  idx,
	}
}

// Layout returns the layout the packet is bound to.
func (p *Packet) Layout() *layout.PacketLayout { return p.layout }

// Bytes returns the live wire buffer. Callers must hold whatever lock guards
// the packet; the slice aliases internal state.
func (p *Packet) Bytes() []byte { return p.buf }

// Snapshot returns a copy of the wire buffer.
func (p *Packet) Snapshot() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

// LoadBytes replaces the packet contents with data, which must match the
// layout size exactly.
func (p *Packet) LoadBytes(data []byte) error {
	if len(data) != len(p.buf) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(data), len(p.buf))
	}
	copy(p.buf, data)
	return nil
}

// Has reports whether the layout declares the named field.
func (p *Packet) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

// Field returns the spec for the named field.
func (p *Packet) Field(name string) (layout.FieldSpec, bool) {
	f, ok := p.index[name]
	return f, ok
}

// Set parses value for the field's type and writes it into the buffer.
func (p *Packet) Set(name string, value any) error {
	f, ok := p.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}

	switch f.Type {
	case layout.TypeBOOL:
		return p.setBool(f, value)
	case layout.TypeUSINT, layout.TypeSINT:
		return p.setUint(f, value, 1)
	case layout.TypeUINT, layout.TypeINT:
		return p.setUint(f, value, 2)
	case layout.TypeUDINT, layout.TypeDINT:
		return p.setUint(f, value, 4)
	case layout.TypeLINT:
		return p.setUint(f, value, 8)
	case layout.TypeREAL:
		v, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		putUint(p.buf[f.ByteOffset():], uint64(math.Float32bits(float32(v))), 4)
		return nil
	case layout.TypeLREAL:
		v, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		putUint(p.buf[f.ByteOffset():], math.Float64bits(v), 8)
		return nil
	case layout.TypeSTRING:
		return p.setString(f, value)
	default:
		return fmt.Errorf("%w: field %q has type %s", ErrUnsupportedType, name, f.Type)
	}
}

// Clear resets the field to zero (numeric), 0.0 (float) or empty (string).
func (p *Packet) Clear(name string) error {
	f, ok := p.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	if f.Type == layout.TypeBOOL {
		p.buf[f.ByteOffset()] &^= boolMask(f)
		return nil
	}
	width := f.Length * f.Type.ByteSize()
	start := f.ByteOffset()
	for i := uint(0); i < width; i++ {
		p.buf[start+i] = 0
	}
	return nil
}

// Format reads the field and returns its display value: 0/1 for BOOL,
// unsigned integers for the integer types, float32/float64 for REAL/LREAL,
// and the string contents (trailing NULs trimmed) for STRING.
func (p *Packet) Format(name string) (any, error) {
	f, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	off := f.ByteOffset()
	switch f.Type {
	case layout.TypeBOOL:
		if p.buf[off]&boolMask(f) != 0 {
			return uint8(1), nil
		}
		return uint8(0), nil
	case layout.TypeUSINT, layout.TypeSINT:
		return uint64(p.buf[off]), nil
	case layout.TypeUINT, layout.TypeINT:
		return getUint(p.buf[off:], 2), nil
	case layout.TypeUDINT, layout.TypeDINT:
		return getUint(p.buf[off:], 4), nil
	case layout.TypeLINT:
		return getUint(p.buf[off:], 8), nil
	case layout.TypeREAL:
		return math.Float32frombits(uint32(getUint(p.buf[off:], 4))), nil
	case layout.TypeLREAL:
		return math.Float64frombits(getUint(p.buf[off:], 8)), nil
	case layout.TypeSTRING:
		raw := p.buf[off : off+f.Length]
		return strings.TrimRight(string(raw), "\x00"), nil
	default:
		return nil, fmt.Errorf("%w: field %q has type %s", ErrUnsupportedType, name, f.Type)
	}
}

// FieldsByType groups field names by CIP type, ordered by offset. Keys are
// the lower-case schema tag names ("real", "usint", ...).
func (p *Packet) FieldsByType() map[string][]string {
	out := make(map[string][]string)
	for _, f := range p.layout.Fields {
		key := f.Type.Tag()
		out[key] = append(out[key], f.ID)
	}
	return out
}

func (p *Packet) setBool(f layout.FieldSpec, value any) error {
	var bit uint8
	switch v := value.(type) {
	case int:
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: field %q expects 0 or 1", ErrOutOfRange, f.ID)
		}
		bit = uint8(v)
	case uint8:
		if v > 1 {
			return fmt.Errorf("%w: field %q expects 0 or 1", ErrOutOfRange, f.ID)
		}
		bit = v
	case bool:
		if v {
			bit = 1
		}
	case string:
		switch strings.TrimSpace(v) {
		case "0":
			bit = 0
		case "1":
			bit = 1
		default:
			return fmt.Errorf("%w: field %q expects '0' or '1'", ErrInvalidValue, f.ID)
		}
	default:
		return fmt.Errorf("%w: field %q expects 0 or 1", ErrInvalidValue, f.ID)
	}
	if bit == 1 {
		p.buf[f.ByteOffset()] |= boolMask(f)
	} else {
		p.buf[f.ByteOffset()] &^= boolMask(f)
	}
	return nil
}

func (p *Packet) setUint(f layout.FieldSpec, value any, width uint) error {
	v, err := parseUint(value)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.ID, err)
	}
	var max uint64
	if width == 8 {
		max = math.MaxUint64
	} else {
		max = 1<<(width*8) - 1
	}
	if v > max {
		return fmt.Errorf("%w: field %q expects an integer between 0 and %d", ErrOutOfRange, f.ID, max)
	}
	putUint(p.buf[f.ByteOffset():], v, width)
	return nil
}

func (p *Packet) setString(f layout.FieldSpec, value any) error {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%w: field %q expects a string or bytes value", ErrInvalidValue, f.ID)
	}
	if uint(len(raw)) > f.Length {
		return fmt.Errorf("%w: field %q holds up to %d bytes", ErrLengthExceeded, f.ID, f.Length)
	}
	start := f.ByteOffset()
	copy(p.buf[start:start+f.Length], raw)
	for i := uint(len(raw)); i < f.Length; i++ {
		p.buf[start+i] = 0
	}
	return nil
}

// boolMask returns the wire bit for a BOOL field. Bits fill the byte from
// the most significant position down.
func boolMask(f layout.FieldSpec) uint8 {
	return 1 << (7 - f.BitOffset%8)
}

func putUint(dst []byte, v uint64, width uint) {
	for i := uint(0); i < width; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func getUint(src []byte, width uint) uint64 {
	var v uint64
	for i := uint(0); i < width; i++ {
		v |= uint64(src[i]) << (8 * i)
	}
	return v
}

// parseUint accepts Go integer values, floats (fractional part truncated),
// and decimal or 0x-prefixed hex strings.
func parseUint(value any) (uint64, error) {
	switch v := value.(type) {
	case uint64:
		return v, nil
	case uint32:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint:
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrOutOfRange, v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrOutOfRange, v)
		}
		return uint64(v), nil
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative value %g", ErrOutOfRange, v)
		}
		return uint64(v), nil
	case string:
		clean := strings.ToLower(strings.TrimSpace(v))
		if strings.HasPrefix(clean, "0x") {
			n, err := strconv.ParseUint(clean[2:], 16, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: bad hexadecimal %q", ErrInvalidValue, v)
			}
			return n, nil
		}
		n, err := strconv.ParseUint(clean, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not numeric or hexadecimal", ErrInvalidValue, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: expected a number or string", ErrInvalidValue)
	}
}

func parseFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a float", ErrInvalidValue, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: expected a float", ErrInvalidValue)
	}
}
