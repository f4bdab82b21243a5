package layout

import (
	"errors"
	"testing"
)

func TestCompileBoolAndUsintWithSpares(t *testing.T) {
	// 3-byte assembly: one BOOL at bit 0, one USINT at byte 1.
	fields := []FieldSpec{
		{ID: "run", BitOffset: 0, Type: TypeBOOL, Length: 1},
		{ID: "mode", BitOffset: 8, Type: TypeUSINT, Length: 1},
	}

	l, err := Compile("OT_EO", 24, fields)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	want := []struct {
		id   string
		bit  uint
		typ  CipType
		size uint
	}{
		{"run", 0, TypeBOOL, 1},
		{"spare_bit_0_1", 1, TypeBOOL, 1},
		{"spare_bit_0_2", 2, TypeBOOL, 1},
		{"spare_bit_0_3", 3, TypeBOOL, 1},
		{"spare_bit_0_4", 4, TypeBOOL, 1},
		{"spare_bit_0_5", 5, TypeBOOL, 1},
		{"spare_bit_0_6", 6, TypeBOOL, 1},
		{"spare_bit_0_7", 7, TypeBOOL, 1},
		{"mode", 8, TypeUSINT, 1},
		{"spare_byte_2", 16, TypeSTRING, 1},
	}

	if len(l.Fields) != len(want) {
		t.Fatalf("field count: got %d, want %d", len(l.Fields), len(want))
	}
	for i, w := range want {
		f := l.Fields[i]
		if f.ID != w.id || f.BitOffset != w.bit || f.Type != w.typ || f.Length != w.size {
			t.Errorf("field %d: got {%s %d %s %d}, want {%s %d %s %d}",
				i, f.ID, f.BitOffset, f.Type, f.Length, w.id, w.bit, w.typ, w.size)
		}
	}
}

func TestCompileCoversEveryBit(t *testing.T) {
	cases := []struct {
		name      string
		totalBits uint
		fields    []FieldSpec
	}{
		{
			name:      "sparse mixed",
			totalBits: 128,
			fields: []FieldSpec{
				{ID: "speed", BitOffset: 32, Type: TypeREAL, Length: 1},
				{ID: "flags_a", BitOffset: 0, Type: TypeBOOL, Length: 1},
				{ID: "flags_b", BitOffset: 3, Type: TypeBOOL, Length: 1},
				{ID: "label", BitOffset: 80, Type: TypeSTRING, Length: 4},
			},
		},
		{
			name:      "trailing spare run",
			totalBits: 64,
			fields: []FieldSpec{
				{ID: "counter", BitOffset: 0, Type: TypeUINT, Length: 1},
			},
		},
		{
			name:      "all spare",
			totalBits: 40,
			fields:    nil,
		},
		{
			name:      "wide tail field",
			totalBits: 96,
			fields: []FieldSpec{
				{ID: "ts", BitOffset: 32, Type: TypeLINT, Length: 1},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := Compile("TO", tc.totalBits, tc.fields)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			var sum uint
			next := uint(0)
			for _, f := range l.Fields {
				if f.BitOffset != next {
					t.Fatalf("field %q starts at bit %d, want %d", f.ID, f.BitOffset, next)
				}
				sum += f.BitWidth()
				next = f.BitOffset + f.BitWidth()
			}
			if sum != tc.totalBits {
				t.Fatalf("coverage: got %d bits, want %d", sum, tc.totalBits)
			}
		})
	}
}

func TestCompileMergesSpareRun(t *testing.T) {
	l, err := Compile("TO", 64, []FieldSpec{
		{ID: "head", BitOffset: 0, Type: TypeUSINT, Length: 1},
		{ID: "tail", BitOffset: 40, Type: TypeUSINT, Length: 1},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	// Bytes 1..4 collapse into a single 4-byte spare.
	found := false
	for _, f := range l.Fields {
		if f.ID == "spare_byte_1" {
			found = true
			if f.Type != TypeSTRING || f.Length != 4 {
				t.Errorf("spare_byte_1: got type %s length %d, want STRING length 4", f.Type, f.Length)
			}
		}
	}
	if !found {
		t.Fatalf("spare_byte_1 not synthesized: %+v", l.Fields)
	}
}

func TestCompileMisalignedSize(t *testing.T) {
	if _, err := Compile("OT_EO", 12, nil); !errors.Is(err, ErrMisalignedSize) {
		t.Fatalf("got %v, want ErrMisalignedSize", err)
	}
	if _, err := Compile("OT_EO", 0, nil); !errors.Is(err, ErrMisalignedSize) {
		t.Fatalf("got %v, want ErrMisalignedSize for zero size", err)
	}
}

func TestCompileFieldOverrun(t *testing.T) {
	_, err := Compile("OT_EO", 16, []FieldSpec{
		{ID: "big", BitOffset: 8, Type: TypeDINT, Length: 1},
	})
	if !errors.Is(err, ErrFieldOverrun) {
		t.Fatalf("got %v, want ErrFieldOverrun", err)
	}
}

func TestCompileRejectsOverlap(t *testing.T) {
	cases := []struct {
		name   string
		fields []FieldSpec
	}{
		{
			name: "two fields same byte",
			fields: []FieldSpec{
				{ID: "a", BitOffset: 0, Type: TypeUSINT, Length: 1},
				{ID: "b", BitOffset: 0, Type: TypeUSINT, Length: 1},
			},
		},
		{
			name: "wide field swallows next",
			fields: []FieldSpec{
				{ID: "a", BitOffset: 0, Type: TypeDINT, Length: 1},
				{ID: "b", BitOffset: 16, Type: TypeUSINT, Length: 1},
			},
		},
		{
			name: "bool inside wide field",
			fields: []FieldSpec{
				{ID: "a", BitOffset: 0, Type: TypeUINT, Length: 1},
				{ID: "b", BitOffset: 9, Type: TypeBOOL, Length: 1},
			},
		},
		{
			name: "two bools same bit",
			fields: []FieldSpec{
				{ID: "a", BitOffset: 5, Type: TypeBOOL, Length: 1},
				{ID: "b", BitOffset: 5, Type: TypeBOOL, Length: 1},
			},
		},
		{
			name: "bool shares byte with usint",
			fields: []FieldSpec{
				{ID: "a", BitOffset: 0, Type: TypeBOOL, Length: 1},
				{ID: "b", BitOffset: 0, Type: TypeUSINT, Length: 1},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Compile("OT_EO", 32, tc.fields); !errors.Is(err, ErrFieldOverlap) {
				t.Fatalf("got %v, want ErrFieldOverlap", err)
			}
		})
	}
}

func TestParseCipType(t *testing.T) {
	for _, tag := range []string{"bool", "sint", "usint", "int", "uint", "dint", "udint", "real", "lreal", "lint", "string"} {
		typ, err := ParseCipType(tag)
		if err != nil {
			t.Fatalf("ParseCipType(%q) failed: %v", tag, err)
		}
		if typ.Tag() != tag {
			t.Errorf("round-trip: got %q, want %q", typ.Tag(), tag)
		}
	}
	if _, err := ParseCipType("word"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
