// Package rangelist tracks sets of byte offsets as sorted, coalesced,
// closed intervals.
//
// A List is the bookkeeping structure a filesystem uses for facts such as
// "which bytes of this file are valid" or "which bytes are dirty". Every
// mutation leaves the list sorted, with no two entries overlapping or
// touching:
//
//	var l rangelist.List
//	l.Add(0, 99)
//	l.Add(50, 149)   // [0,149]
//	l.Add(200, 299)  // [0,149] [200,299]
//	l.Remove(50, 249) // [0,49] [250,299]
//
// # Overlap classification
//
// Add and Remove are driven by Range.Overlap, which places a query interval
// into exactly one of six cases relative to an existing entry:
//
//	NoOverlap             disjoint
//	MatchingOverlap       identical bounds
//	OverlapContainsRange  entry contains the query
//	OverlapIsContained    query contains the entry
//	OverlapStartsBefore   entry starts before the query and reaches into it
//	OverlapEndsAfter      entry starts inside the query and ends after it
//
// # Concurrency
//
// A List has no locking of its own. Callers serialize access, usually with
// the same lock that guards the file the list describes.
package rangelist
