package layout

// Field schema types for assembly layout compilation.

import (
	"fmt"
	"strings"
)

// CipType identifies a CIP primitive data type carried in an assembly.
type CipType uint8

const (
	TypeBOOL CipType = iota
	TypeSINT
	TypeUSINT
	TypeINT
	TypeUINT
	TypeDINT
	TypeUDINT
	TypeREAL
	TypeLREAL
	TypeLINT
	TypeSTRING
)

// cipTypeNames maps types to their schema tag names.
var cipTypeNames = map[CipType]string{
	TypeBOOL:   "bool",
	TypeSINT:   "sint",
	TypeUSINT:  "usint",
	TypeINT:    "int",
	TypeUINT:   "uint",
	TypeDINT:   "dint",
	TypeUDINT:  "udint",
	TypeREAL:   "real",
	TypeLREAL:  "lreal",
	TypeLINT:   "lint",
	TypeSTRING: "string",
}

// String returns the display name of the type (upper-case CIP spelling).
func (t CipType) String() string {
	if name, ok := cipTypeNames[t]; ok {
		return strings.ToUpper(name)
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// Tag returns the lower-case schema element name for the type.
func (t CipType) Tag() string {
	if name, ok := cipTypeNames[t]; ok {
		return name
	}
	return ""
}

// ParseCipType parses a schema element tag into a CipType.
func ParseCipType(tag string) (CipType, error) {
	clean := strings.ToLower(strings.TrimSpace(tag))
	for t, name := range cipTypeNames {
		if name == clean {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown CIP type %q", tag)
}

// ByteSize returns the per-element byte size of the type. BOOL and STRING
// return 1: a BOOL element occupies one bit packed into a byte, and a STRING
// field's byte size is its element count.
func (t CipType) ByteSize() uint {
	switch t {
	case TypeBOOL, TypeSINT, TypeUSINT, TypeSTRING:
		return 1
	case TypeINT, TypeUINT:
		return 2
	case TypeDINT, TypeUDINT, TypeREAL:
		return 4
	case TypeLREAL, TypeLINT:
		return 8
	default:
		return 1
	}
}

// FieldSpec describes one declared or synthesized field of an assembly.
// BitOffset addresses the field from the start of the assembly; Length is an
// element count (bytes for STRING, 1 for everything else).
type FieldSpec struct {
	ID        string
	BitOffset uint
	Type      CipType
	Length    uint
}

// BitWidth returns the total width of the field in bits.
func (f FieldSpec) BitWidth() uint {
	if f.Type == TypeBOOL {
		return f.Length
	}
	return f.Length * f.Type.ByteSize() * 8
}

// ByteOffset returns the byte index the field starts in.
func (f FieldSpec) ByteOffset() uint {
	return f.BitOffset / 8
}

// PacketLayout is a compiled, gap-free assembly layout. Fields are ordered by
// BitOffset and cover every bit of the assembly exactly once, spares included.
type PacketLayout struct {
	Subtype   string
	TotalBits uint
	Fields    []FieldSpec
}

// TotalBytes returns the assembly size in bytes.
func (l *PacketLayout) TotalBytes() uint {
	return l.TotalBits / 8
}
