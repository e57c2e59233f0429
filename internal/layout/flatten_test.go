package layout

import (
	"errors"
	"testing"

	"tarn/internal/source"
	"tarn/internal/types"
)

func TestLeafCountScalars(t *testing.T) {
	in := types.NewInterner()
	e := New(in)
	b := in.Builtins()

	for _, id := range []types.TypeID{b.Unit, b.Bool, b.Int, b.Float, b.String} {
		n, err := e.LeafCount(id)
		if err != nil {
			t.Fatalf("LeafCount(%d): %v", id, err)
		}
		if n != 1 {
			t.Errorf("LeafCount(%d) = %d, want 1", id, n)
		}
	}

	ref := in.Intern(types.MakeRef(b.Int))
	if n, _ := e.LeafCount(ref); n != 1 {
		t.Errorf("LeafCount(&Int) = %d, want 1", n)
	}
}

func TestLeafCountAdditive(t *testing.T) {
	in := types.NewInterner()
	e := New(in)
	b := in.Builtins()

	pair := in.RegisterTuple([]types.TypeID{b.Int, b.Float})
	nested := in.RegisterTuple([]types.TypeID{pair, b.Bool, pair})

	n, err := e.LeafCount(nested)
	if err != nil {
		t.Fatalf("LeafCount: %v", err)
	}
	if n != 5 {
		t.Errorf("LeafCount((pair, Bool, pair)) = %d, want 5", n)
	}

	// сумма по полям совпадает с количеством листьев агрегата
	sum := 0
	for _, f := range []types.TypeID{pair, b.Bool, pair} {
		c, err := e.LeafCount(f)
		if err != nil {
			t.Fatalf("LeafCount(field): %v", err)
		}
		sum += c
	}
	if sum != n {
		t.Errorf("field sum = %d, aggregate = %d", sum, n)
	}
}

func TestLeafCountEmptyTuple(t *testing.T) {
	in := types.NewInterner()
	e := New(in)

	empty := in.RegisterTuple(nil)
	n, err := e.LeafCount(empty)
	if err != nil {
		t.Fatalf("LeafCount: %v", err)
	}
	if n != 0 {
		t.Errorf("LeafCount(()) = %d, want 0", n)
	}
}

func TestLeafCountStructs(t *testing.T) {
	in := types.NewInterner()
	e := New(in)
	b := in.Builtins()

	point := in.RegisterStruct("Point", source.Span{}, false)
	in.SetStructFields(point, []types.StructField{{Name: "x", Type: b.Int}, {Name: "y", Type: b.Int}})

	line := in.RegisterStruct("Line", source.Span{}, false)
	in.SetStructFields(line, []types.StructField{{Name: "a", Type: point}, {Name: "b", Type: point}})

	handle := in.RegisterStruct("Handle", source.Span{}, true)

	tests := []struct {
		name string
		id   types.TypeID
		want int
	}{
		{"flat struct", point, 2},
		{"nested struct", line, 4},
		{"opaque struct is one leaf", handle, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := e.LeafCount(tt.id)
			if err != nil {
				t.Fatalf("LeafCount: %v", err)
			}
			if n != tt.want {
				t.Errorf("LeafCount = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestLeafCountUnresolvedStruct(t *testing.T) {
	in := types.NewInterner()
	e := New(in)

	ghost := in.RegisterStruct("Ghost", source.Span{}, false)
	_, err := e.LeafCount(ghost)
	var fe *FlattenError
	if !errors.As(err, &fe) || fe.Kind != FlattenErrMissingInfo {
		t.Fatalf("expected FlattenErrMissingInfo, got %v", err)
	}
}

func TestFieldOffset(t *testing.T) {
	in := types.NewInterner()
	e := New(in)
	b := in.Builtins()

	pair := in.RegisterTuple([]types.TypeID{b.Int, b.Int})
	mixed := in.RegisterTuple([]types.TypeID{pair, b.Bool, pair})

	tests := []struct {
		field int
		want  int
	}{
		{0, 0},
		{1, 2},
		{2, 3},
	}
	for _, tt := range tests {
		off, err := e.FieldOffset(mixed, tt.field)
		if err != nil {
			t.Fatalf("FieldOffset(%d): %v", tt.field, err)
		}
		if off != tt.want {
			t.Errorf("FieldOffset(%d) = %d, want %d", tt.field, off, tt.want)
		}
	}

	if _, err := e.FieldOffset(mixed, 3); err == nil {
		t.Error("expected error for out-of-range field")
	}
	if _, err := e.FieldOffset(b.Int, 0); err == nil {
		t.Error("expected error for non-aggregate")
	}
}

func TestLeafTypesOrder(t *testing.T) {
	in := types.NewInterner()
	e := New(in)
	b := in.Builtins()

	pair := in.RegisterTuple([]types.TypeID{b.Int, b.Float})
	mixed := in.RegisterTuple([]types.TypeID{pair, b.Bool})

	leaves, err := e.LeafTypes(mixed)
	if err != nil {
		t.Fatalf("LeafTypes: %v", err)
	}
	want := []types.TypeID{b.Int, b.Float, b.Bool}
	if len(leaves) != len(want) {
		t.Fatalf("LeafTypes len = %d, want %d", len(leaves), len(want))
	}
	for i := range want {
		if leaves[i] != want[i] {
			t.Errorf("leaves[%d] = %d, want %d", i, leaves[i], want[i])
		}
	}
}

func TestLeafCountCachedDeterministic(t *testing.T) {
	in := types.NewInterner()
	e := New(in)
	b := in.Builtins()

	pair := in.RegisterTuple([]types.TypeID{b.Int, b.Int})
	first, err := e.LeafCount(pair)
	if err != nil {
		t.Fatalf("LeafCount: %v", err)
	}
	second, err := e.LeafCount(pair)
	if err != nil {
		t.Fatalf("LeafCount (cached): %v", err)
	}
	if first != second {
		t.Errorf("cached LeafCount differs: %d vs %d", first, second)
	}
}
