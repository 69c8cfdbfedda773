package rangelist

import (
	"fmt"
	"math"
)

// Infinity is an open end marker. A range ending at Infinity covers every
// offset from its start onwards.
const Infinity int64 = math.MaxInt64

// Overlap classifies how a query interval relates to an existing range.
type Overlap uint8

const (
	// NoOverlap means the intervals are disjoint.
	NoOverlap Overlap = iota
	// MatchingOverlap means the intervals have identical bounds.
	MatchingOverlap
	// OverlapContainsRange means the existing range contains the query.
	OverlapContainsRange
	// OverlapIsContained means the query contains the existing range.
	OverlapIsContained
	// OverlapStartsBefore means the existing range starts before the query
	// and ends inside it.
	OverlapStartsBefore
	// OverlapEndsAfter means the existing range starts inside the query and
	// ends after it.
	OverlapEndsAfter
)

func (o Overlap) String() string {
	switch o {
	case NoOverlap:
		return "NoOverlap"
	case MatchingOverlap:
		return "MatchingOverlap"
	case OverlapContainsRange:
		return "OverlapContainsRange"
	case OverlapIsContained:
		return "OverlapIsContained"
	case OverlapStartsBefore:
		return "OverlapStartsBefore"
	case OverlapEndsAfter:
		return "OverlapEndsAfter"
	default:
		return fmt.Sprintf("Overlap(%d)", uint8(o))
	}
}

// Range is a closed interval [Start, End]. A Range with End < Start is empty.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of offsets covered by r, or 0 if r is empty.
// A range ending at Infinity reports math.MaxInt64.
func (r Range) Len() int64 {
	if r.End < r.Start {
		return 0
	}
	if r.End == Infinity {
		return Infinity
	}
	return r.End - r.Start + 1
}

// Empty reports whether r covers no offsets.
func (r Range) Empty() bool { return r.End < r.Start }

func (r Range) String() string {
	if r.End == Infinity {
		return fmt.Sprintf("[%d,inf]", r.Start)
	}
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// Overlap classifies [start, end] against r. It requires start <= end.
func (r Range) Overlap(start, end int64) Overlap {
	if start > r.End || r.Start > end {
		return NoOverlap
	}
	switch {
	case r.Start == start && r.End == end:
		return MatchingOverlap
	case r.Start <= start && r.End >= end:
		return OverlapContainsRange
	case start <= r.Start && r.End <= end:
		return OverlapIsContained
	case r.Start < start && r.End >= start:
		return OverlapStartsBefore
	case r.Start > start && r.End > end:
		return OverlapEndsAfter
	}
	panic(fmt.Sprintf("rangelist: unclassifiable overlap of %v with [%d,%d]", r, start, end))
}

// Subtract returns a with the offsets of b removed. When b lies strictly
// inside a, the larger remaining side is kept; on a tie the left side wins.
// The result may be empty.
func Subtract(a, b Range) Range {
	if a.Empty() || b.Empty() {
		return a
	}
	switch b.Overlap(a.Start, a.End) {
	case MatchingOverlap, OverlapContainsRange:
		a.End = a.Start - 1
	case OverlapIsContained:
		if b.Start-a.Start >= a.End-b.End {
			a.End = b.Start - 1
		} else {
			a.Start = b.End + 1
		}
	case OverlapStartsBefore:
		a.Start = b.End + 1
	case OverlapEndsAfter:
		a.End = b.Start - 1
	}
	return a
}

// Intersect returns the offsets shared by a and b, empty if none.
func Intersect(a, b Range) Range {
	r := Range{Start: max(a.Start, b.Start), End: min(a.End, b.End)}
	if r.End < r.Start {
		return Range{Start: 0, End: -1}
	}
	return r
}

// touches reports whether b starts at or before the offset right after a.
func touches(a, b Range) bool {
	if a.End == Infinity {
		return true
	}
	return b.Start <= a.End+1
}
