package dropout

import (
	"fmt"
	"sort"
	"strings"
)

// MinimumGap is the smallest gap, in samples, that keeps two dropouts on the
// same line apart. Closer entries are merged by Concatenate.
const MinimumGap = 50

// Dropout is one horizontal run of defective samples.
type Dropout struct {
	StartX int `json:"startx"`
	EndX   int `json:"endx"`
	Line   int `json:"line"`
}

// Width returns the number of samples covered by the dropout.
func (d Dropout) Width() int {
	if d.EndX < d.StartX {
		return 0
	}
	return d.EndX - d.StartX + 1
}

// List is an ordered dropout record.
type List []Dropout

// Append adds a dropout to the end of the list.
func (l *List) Append(startX, endX, line int) {
	*l = append(*l, Dropout{StartX: startX, EndX: endX, Line: line})
}

// Len returns the number of entries.
func (l List) Len() int { return len(l) }

// Clone returns an independent copy of the list.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Sort orders the list by line and then start column. Equal keys keep their
// original order.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Line != l[j].Line {
			return l[i].Line < l[j].Line
		}
		return l[i].StartX < l[j].StartX
	})
}

// Concatenate merges entries on the same line whose gap is smaller than
// MinimumGap. The list is sorted first so entries for a line are contiguous.
func (l *List) Concatenate() {
	entries := *l
	if len(entries) < 2 {
		return
	}
	entries.Sort()

	out := entries[:1]
	for _, next := range entries[1:] {
		prev := &out[len(out)-1]
		if prev.Line == next.Line && prev.EndX+MinimumGap > next.StartX {
			if next.EndX > prev.EndX {
				prev.EndX = next.EndX
			}
			continue
		}
		out = append(out, next)
	}
	*l = out
}

// Merge appends the entries of other and concatenates the result.
func (l *List) Merge(other List) {
	if len(other) == 0 {
		return
	}
	*l = append(*l, other...)
	l.Concatenate()
}

// Covers reports whether the sample at column x on the given line is inside
// any entry. Columns are inclusive on both ends.
func (l List) Covers(x, line int) bool {
	for _, d := range l {
		if d.Line == line && x >= d.StartX && x <= d.EndX {
			return true
		}
	}
	return false
}

// Samples returns the total number of samples covered by the list.
func (l List) Samples() int {
	total := 0
	for _, d := range l {
		total += d.Width()
	}
	return total
}

// FrameFromFields combines two field lists into one frame list. First-field
// lines become odd frame lines (2n-1) and second-field lines even ones (2n).
func FrameFromFields(first, second List) List {
	out := make(List, 0, len(first)+len(second))
	for _, d := range first {
		out = append(out, Dropout{StartX: d.StartX, EndX: d.EndX, Line: 2*d.Line - 1})
	}
	for _, d := range second {
		out = append(out, Dropout{StartX: d.StartX, EndX: d.EndX, Line: 2 * d.Line})
	}
	return out
}

func (l List) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d dropouts", len(l))
	for i, d := range l {
		fmt.Fprintf(&b, "\n  [%d] startx=%d endx=%d line=%d", i, d.StartX, d.EndX, d.Line)
	}
	return b.String()
}
