package dropout_test

import (
	"reflect"
	"testing"

	"discstack/internal/dropout"
)

func TestConcatenateMergeLaw(t *testing.T) {
	tests := []struct {
		name string
		in   dropout.List
		want dropout.List
	}{
		{
			name: "gap below minimum merges",
			in:   dropout.List{{StartX: 10, EndX: 20, Line: 5}, {StartX: 69, EndX: 80, Line: 5}},
			want: dropout.List{{StartX: 10, EndX: 80, Line: 5}},
		},
		{
			name: "gap at minimum stays apart",
			in:   dropout.List{{StartX: 10, EndX: 20, Line: 5}, {StartX: 70, EndX: 80, Line: 5}},
			want: dropout.List{{StartX: 10, EndX: 20, Line: 5}, {StartX: 70, EndX: 80, Line: 5}},
		},
		{
			name: "different lines never merge",
			in:   dropout.List{{StartX: 10, EndX: 20, Line: 5}, {StartX: 15, EndX: 25, Line: 6}},
			want: dropout.List{{StartX: 10, EndX: 20, Line: 5}, {StartX: 15, EndX: 25, Line: 6}},
		},
		{
			name: "chain of close entries collapses",
			in: dropout.List{
				{StartX: 0, EndX: 0, Line: 1},
				{StartX: 1, EndX: 1, Line: 1},
				{StartX: 2, EndX: 2, Line: 1},
				{StartX: 3, EndX: 3, Line: 1},
			},
			want: dropout.List{{StartX: 0, EndX: 3, Line: 1}},
		},
		{
			name: "interleaved lines are sorted before merging",
			in: dropout.List{
				{StartX: 10, EndX: 12, Line: 2},
				{StartX: 100, EndX: 110, Line: 3},
				{StartX: 30, EndX: 40, Line: 2},
			},
			want: dropout.List{{StartX: 10, EndX: 40, Line: 2}, {StartX: 100, EndX: 110, Line: 3}},
		},
		{
			name: "contained entry does not shrink coverage",
			in:   dropout.List{{StartX: 10, EndX: 100, Line: 1}, {StartX: 20, EndX: 30, Line: 1}},
			want: dropout.List{{StartX: 10, EndX: 100, Line: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clone()
			got.Concatenate()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Concatenate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConcatenateEmptyAndSingle(t *testing.T) {
	var empty dropout.List
	empty.Concatenate()
	if empty.Len() != 0 {
		t.Fatalf("expected empty list, got %d entries", empty.Len())
	}

	single := dropout.List{{StartX: 4, EndX: 9, Line: 2}}
	single.Concatenate()
	if single.Len() != 1 {
		t.Fatalf("expected single entry to remain, got %d", single.Len())
	}
}

func TestCoversIsInclusive(t *testing.T) {
	l := dropout.List{{StartX: 2, EndX: 4, Line: 3}}
	for _, x := range []int{2, 3, 4} {
		if !l.Covers(x, 3) {
			t.Fatalf("expected column %d covered", x)
		}
	}
	if l.Covers(1, 3) || l.Covers(5, 3) {
		t.Fatal("expected columns outside the interval to be uncovered")
	}
	if l.Covers(3, 2) {
		t.Fatal("expected other lines to be uncovered")
	}
}

func TestFrameFromFieldsRenumbersLines(t *testing.T) {
	first := dropout.List{{StartX: 1, EndX: 2, Line: 1}, {StartX: 5, EndX: 6, Line: 3}}
	second := dropout.List{{StartX: 7, EndX: 8, Line: 1}}

	got := dropout.FrameFromFields(first, second)
	want := dropout.List{
		{StartX: 1, EndX: 2, Line: 1},
		{StartX: 5, EndX: 6, Line: 5},
		{StartX: 7, EndX: 8, Line: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FrameFromFields() = %v, want %v", got, want)
	}
}

func TestMergeAppendsAndCompacts(t *testing.T) {
	l := dropout.List{{StartX: 0, EndX: 5, Line: 1}}
	l.Merge(dropout.List{{StartX: 10, EndX: 12, Line: 1}, {StartX: 0, EndX: 1, Line: 2}})
	want := dropout.List{{StartX: 0, EndX: 12, Line: 1}, {StartX: 0, EndX: 1, Line: 2}}
	if !reflect.DeepEqual(l, want) {
		t.Fatalf("Merge() = %v, want %v", l, want)
	}
	if got := l.Samples(); got != 15 {
		t.Fatalf("Samples() = %d, want 15", got)
	}
}

func TestIndexMatchesListCoverage(t *testing.T) {
	l := dropout.List{
		{StartX: 0, EndX: 100, Line: 1},
		{StartX: 10, EndX: 12, Line: 1},
		{StartX: 40, EndX: 45, Line: 7},
		{StartX: 50, EndX: 49, Line: 7},
	}
	idx := dropout.NewIndex(l)
	for line := 0; line <= 8; line++ {
		for x := -1; x <= 110; x++ {
			if got, want := idx.Covers(x, line), l.Covers(x, line); got != want {
				t.Fatalf("Covers(%d, %d) = %v, want %v", x, line, got, want)
			}
		}
	}

	mask := idx.LineCovered(7, 64)
	if mask == nil || !mask[40] || !mask[45] || mask[46] {
		t.Fatalf("unexpected line mask: %v", mask)
	}
	if idx.LineCovered(3, 64) != nil {
		t.Fatal("expected nil mask for a clean line")
	}
	var nilIdx *dropout.Index
	if !nilIdx.Empty() || nilIdx.Covers(0, 1) {
		t.Fatal("nil index should be empty")
	}
}
