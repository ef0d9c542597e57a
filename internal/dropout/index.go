package dropout

import "sort"

type span struct {
	start int
	end   int
}

// Index answers coverage queries by line without scanning the whole list.
type Index struct {
	lines map[int][]span
}

// NewIndex builds an index over the list. The list itself is not modified.
func NewIndex(l List) *Index {
	idx := &Index{lines: make(map[int][]span)}
	for _, d := range l {
		if d.EndX < d.StartX {
			continue
		}
		idx.lines[d.Line] = append(idx.lines[d.Line], span{start: d.StartX, end: d.EndX})
	}
	for line, spans := range idx.lines {
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		idx.lines[line] = spans
	}
	return idx
}

// Empty reports whether the index holds no entries.
func (idx *Index) Empty() bool {
	return idx == nil || len(idx.lines) == 0
}

// Covers reports whether column x on the given line is marked defective.
func (idx *Index) Covers(x, line int) bool {
	if idx == nil {
		return false
	}
	spans := idx.lines[line]
	if len(spans) == 0 {
		return false
	}
	// First span starting after x; only spans before it can contain x.
	i := sort.Search(len(spans), func(i int) bool { return spans[i].start > x })
	for j := i - 1; j >= 0; j-- {
		if spans[j].end >= x {
			return true
		}
	}
	return false
}

// LineCovered returns a boolean mask of width samples for one line, or nil
// when the line has no entries.
func (idx *Index) LineCovered(line, width int) []bool {
	if idx == nil {
		return nil
	}
	spans := idx.lines[line]
	if len(spans) == 0 {
		return nil
	}
	mask := make([]bool, width)
	for _, s := range spans {
		start := max(s.start, 0)
		end := min(s.end, width-1)
		for x := start; x <= end; x++ {
			mask[x] = true
		}
	}
	return mask
}
