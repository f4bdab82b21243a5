package layout

// Layout compiler: turns a sparse, bit-addressed field schema into a
// byte-exact layout by synthesizing spare bits and spare byte runs.

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMisalignedSize reports an assembly size that is not a whole number of bytes.
	ErrMisalignedSize = errors.New("assembly size is not a multiple of 8 bits")
	// ErrFieldOverrun reports a field extending past the end of the assembly.
	ErrFieldOverrun = errors.New("field overruns assembly size")
	// ErrFieldOverlap reports two declared fields claiming the same bits.
	ErrFieldOverlap = errors.New("fields overlap")
)

// Compile builds a PacketLayout of exactly totalBits from the declared
// fields. Declared BOOL fields are packed into their byte with synthesized
// spare_bit fields filling the unused bit positions; unclaimed byte runs are
// flushed as a single spare_byte STRING field. Overlapping declarations are
// rejected rather than resolved by declaration order.
func Compile(subtype string, totalBits uint, declared []FieldSpec) (*PacketLayout, error) {
	if totalBits == 0 || totalBits%8 != 0 {
		return nil, fmt.Errorf("%w: %d bits", ErrMisalignedSize, totalBits)
	}

	fields := make([]FieldSpec, len(declared))
	copy(fields, declared)
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].BitOffset < fields[j].BitOffset
	})

	totalBytes := totalBits / 8
	boolsByByte := make(map[uint][]FieldSpec)
	wideByByte := make(map[uint]FieldSpec)

	for _, f := range fields {
		if f.Length == 0 {
			f.Length = 1
		}
		if f.BitOffset+f.BitWidth() > totalBits {
			return nil, fmt.Errorf("%w: field %q at bit %d width %d exceeds %d bits",
				ErrFieldOverrun, f.ID, f.BitOffset, f.BitWidth(), totalBits)
		}
		byteIdx := f.ByteOffset()
		if f.Type == TypeBOOL {
			for _, prev := range boolsByByte[byteIdx] {
				if prev.BitOffset == f.BitOffset {
					return nil, fmt.Errorf("%w: %q and %q both claim bit %d",
						ErrFieldOverlap, prev.ID, f.ID, f.BitOffset)
				}
			}
			boolsByByte[byteIdx] = append(boolsByByte[byteIdx], f)
			continue
		}
		if f.BitOffset%8 != 0 {
			return nil, fmt.Errorf("%w: field %q of type %s starts mid-byte at bit %d",
				ErrFieldOverlap, f.ID, f.Type, f.BitOffset)
		}
		if prev, ok := wideByByte[byteIdx]; ok {
			return nil, fmt.Errorf("%w: %q and %q both start at byte %d",
				ErrFieldOverlap, prev.ID, f.ID, byteIdx)
		}
		wideByByte[byteIdx] = f
	}

	out := make([]FieldSpec, 0, len(fields))
	var (
		skip       uint // bytes consumed by the current multi-byte field
		skipOwner  string
		spareStart uint
		spareLen   uint
	)

	flushSpare := func() {
		if spareLen == 0 {
			return
		}
		out = append(out, FieldSpec{
			ID:        fmt.Sprintf("spare_byte_%d", spareStart),
			BitOffset: spareStart * 8,
			Type:      TypeSTRING,
			Length:    spareLen,
		})
		spareLen = 0
	}

	for b := uint(0); b < totalBytes; b++ {
		if skip > 0 {
			skip--
			if len(boolsByByte[b]) > 0 {
				return nil, fmt.Errorf("%w: BOOL field inside byte %d claimed by %q",
					ErrFieldOverlap, b, skipOwner)
			}
			if f, ok := wideByByte[b]; ok {
				return nil, fmt.Errorf("%w: %q starts inside bytes claimed by %q",
					ErrFieldOverlap, f.ID, skipOwner)
			}
			continue
		}

		if bools := boolsByByte[b]; len(bools) > 0 {
			if f, ok := wideByByte[b]; ok {
				return nil, fmt.Errorf("%w: %q shares byte %d with BOOL fields",
					ErrFieldOverlap, f.ID, b)
			}
			flushSpare()
			occupied := make(map[uint]FieldSpec, len(bools))
			for _, f := range bools {
				occupied[f.BitOffset%8] = f
			}
			for bit := uint(0); bit < 8; bit++ {
				if f, ok := occupied[bit]; ok {
					out = append(out, f)
					continue
				}
				out = append(out, FieldSpec{
					ID:        fmt.Sprintf("spare_bit_%d_%d", b, bit),
					BitOffset: b*8 + bit,
					Type:      TypeBOOL,
					Length:    1,
				})
			}
			continue
		}

		if f, ok := wideByByte[b]; ok {
			flushSpare()
			if f.Length == 0 {
				f.Length = 1
			}
			out = append(out, f)
			skip = f.Length*f.Type.ByteSize() - 1
			skipOwner = f.ID
			continue
		}

		if spareLen == 0 {
			spareStart = b
		}
		spareLen++
	}
	flushSpare()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BitOffset < out[j].BitOffset
	})

	var sum uint
	for _, f := range out {
		sum += f.BitWidth()
	}
	if sum != totalBits {
		return nil, fmt.Errorf("compiled layout covers %d bits, want %d", sum, totalBits)
	}

	return &PacketLayout{Subtype: subtype, TotalBits: totalBits, Fields: out}, nil
}
