package rangelist

import (
	"fmt"
	"iter"
	"slices"
)

// List is a sorted set of disjoint, non-contiguous closed intervals.
//
// The zero value is an empty list ready to use. Entries can only be changed
// through Add, Remove and RemoveAll, so the ordering invariant always holds.
type List struct {
	ranges []Range
}

// New returns an empty list.
func New() *List {
	return &List{}
}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.ranges) }

// Total returns the number of offsets covered by all entries, saturating at
// Infinity.
func (l *List) Total() int64 {
	var total int64
	for _, r := range l.ranges {
		n := r.Len()
		if total > Infinity-n {
			return Infinity
		}
		total += n
	}
	return total
}

// Ranges returns a copy of the entries in ascending order. The result is
// never nil.
func (l *List) Ranges() []Range {
	out := make([]Range, len(l.ranges))
	copy(out, l.ranges)
	return out
}

// All iterates over the entries in ascending order. The list must not be
// modified during iteration.
func (l *List) All() iter.Seq[Range] {
	return func(yield func(Range) bool) {
		for _, r := range l.ranges {
			if !yield(r) {
				return
			}
		}
	}
}

// Scan returns how [start, end] relates to the first entry it overlaps.
// If nothing overlaps, it returns NoOverlap together with the entry the
// interval would be inserted before; ok is false when there is no such
// entry either.
func (l *List) Scan(start, end int64) (ot Overlap, candidate Range, ok bool) {
	checkBounds(start, end)
	ot, i := l.scanFrom(0, start, end)
	if i >= len(l.ranges) {
		return ot, Range{}, false
	}
	return ot, l.ranges[i], true
}

// Contains reports whether every offset in [start, end] is covered.
func (l *List) Contains(start, end int64) bool {
	ot, _, _ := l.Scan(start, end)
	return ot == MatchingOverlap || ot == OverlapContainsRange
}

// Add inserts [start, end], merging it with every entry it overlaps or
// touches.
func (l *List) Add(start, end int64) {
	checkBounds(start, end)

	ot, i := l.scanFrom(0, start, end)
	switch ot {
	case NoOverlap:
		l.ranges = slices.Insert(l.ranges, i, Range{Start: start, End: end})
		l.collapseNeighbors(i)
	case MatchingOverlap, OverlapContainsRange:
		// Already covered.
	case OverlapIsContained:
		l.ranges[i] = Range{Start: start, End: end}
		l.collapseNeighbors(i)
	case OverlapStartsBefore:
		l.ranges[i].End = end
		l.collapseForwards(i)
	case OverlapEndsAfter:
		l.ranges[i].Start = start
		l.collapseBackwards(i)
	}
}

// Remove deletes [start, end] from the list, trimming or splitting entries
// that extend past it.
func (l *List) Remove(start, end int64) {
	checkBounds(start, end)

	i := 0
	for {
		ot, j := l.scanFrom(i, start, end)
		switch ot {
		case NoOverlap:
			return
		case MatchingOverlap:
			l.ranges = slices.Delete(l.ranges, j, j+1)
			return
		case OverlapContainsRange:
			r := &l.ranges[j]
			switch {
			case r.Start == start:
				r.Start = end + 1
			case r.End == end:
				r.End = start - 1
			default:
				tail := Range{Start: end + 1, End: r.End}
				r.End = start - 1
				l.ranges = slices.Insert(l.ranges, j+1, tail)
			}
			return
		case OverlapIsContained:
			l.ranges = slices.Delete(l.ranges, j, j+1)
			i = j
		case OverlapStartsBefore:
			l.ranges[j].End = start - 1
			i = j + 1
		case OverlapEndsAfter:
			l.ranges[j].Start = end + 1
			return
		}
	}
}

// RemoveAll empties the list.
func (l *List) RemoveAll() {
	clear(l.ranges)
	l.ranges = l.ranges[:0]
}

func (l *List) String() string {
	return fmt.Sprint(l.ranges)
}

// scanFrom walks entries from index i and stops at the first one that
// overlaps [start, end] or starts after end.
func (l *List) scanFrom(i int, start, end int64) (Overlap, int) {
	for ; i < len(l.ranges); i++ {
		r := l.ranges[i]
		ot := r.Overlap(start, end)
		if ot != NoOverlap || r.Start > end {
			return ot, i
		}
	}
	return NoOverlap, len(l.ranges)
}

func (l *List) collapseForwards(i int) {
	for i+1 < len(l.ranges) && touches(l.ranges[i], l.ranges[i+1]) {
		l.ranges[i].End = max(l.ranges[i].End, l.ranges[i+1].End)
		l.ranges = slices.Delete(l.ranges, i+1, i+2)
	}
}

func (l *List) collapseBackwards(i int) int {
	for i > 0 && touches(l.ranges[i-1], l.ranges[i]) {
		l.ranges[i-1].End = max(l.ranges[i-1].End, l.ranges[i].End)
		l.ranges = slices.Delete(l.ranges, i, i+1)
		i--
	}
	return i
}

func (l *List) collapseNeighbors(i int) {
	l.collapseForwards(i)
	l.collapseBackwards(i)
}

func checkBounds(start, end int64) {
	if end < start {
		panic(fmt.Sprintf("rangelist: invalid range [%d,%d]", start, end))
	}
}
