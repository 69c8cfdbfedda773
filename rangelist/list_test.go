package rangelist

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rangesOf(l *List) []Range {
	return l.Ranges()
}

func TestList_AddMergesOverlap(t *testing.T) {
	var l List
	l.Add(0, 99)
	l.Add(50, 149)

	want := []Range{{0, 149}}
	if diff := cmp.Diff(want, rangesOf(&l)); diff != "" {
		t.Fatalf("ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestList_RemoveAcrossEntries(t *testing.T) {
	var l List
	l.Add(0, 99)
	l.Add(200, 299)
	l.Remove(50, 249)

	want := []Range{{0, 49}, {250, 299}}
	if diff := cmp.Diff(want, rangesOf(&l)); diff != "" {
		t.Fatalf("ranges mismatch (-want +got):\n%s", diff)
	}
}

func TestList_AddRemoveRoundTrip(t *testing.T) {
	l := New()
	l.Add(10, 20)
	l.Remove(10, 20)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, int64(0), l.Total())
}

func TestList_Add(t *testing.T) {
	tests := []struct {
		name string
		adds [][2]int64
		want []Range
	}{
		{"disjoint kept apart", [][2]int64{{0, 9}, {20, 29}}, []Range{{0, 9}, {20, 29}}},
		{"insert before head", [][2]int64{{20, 29}, {0, 9}}, []Range{{0, 9}, {20, 29}}},
		{"insert between", [][2]int64{{0, 9}, {40, 49}, {20, 29}}, []Range{{0, 9}, {20, 29}, {40, 49}}},
		{"adjacent after coalesces", [][2]int64{{0, 9}, {10, 19}}, []Range{{0, 19}}},
		{"adjacent before coalesces", [][2]int64{{10, 19}, {0, 9}}, []Range{{0, 19}}},
		{"fills gap", [][2]int64{{0, 9}, {20, 29}, {10, 19}}, []Range{{0, 29}}},
		{"matching is no-op", [][2]int64{{0, 9}, {0, 9}}, []Range{{0, 9}}},
		{"contained is no-op", [][2]int64{{0, 99}, {10, 20}}, []Range{{0, 99}}},
		{"swallows several", [][2]int64{{10, 19}, {30, 39}, {50, 59}, {0, 100}}, []Range{{0, 100}}},
		{"starts before spans next", [][2]int64{{0, 10}, {20, 30}, {40, 50}, {5, 45}}, []Range{{0, 50}}},
		{"starts before swallows next", [][2]int64{{0, 10}, {20, 30}, {5, 35}}, []Range{{0, 35}}},
		{"ends after touches previous", [][2]int64{{0, 9}, {20, 29}, {10, 25}}, []Range{{0, 29}}},
		{"contained grows both sides", [][2]int64{{0, 4}, {10, 14}, {20, 24}, {5, 19}}, []Range{{0, 24}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l List
			for _, a := range tt.adds {
				l.Add(a[0], a[1])
			}
			if diff := cmp.Diff(tt.want, rangesOf(&l)); diff != "" {
				t.Fatalf("ranges mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList_Remove(t *testing.T) {
	tests := []struct {
		name    string
		initial [][2]int64
		remove  [2]int64
		want    []Range
	}{
		{"exact entry", [][2]int64{{0, 9}, {20, 29}}, [2]int64{0, 9}, []Range{{20, 29}}},
		{"head of entry", [][2]int64{{0, 9}}, [2]int64{0, 4}, []Range{{5, 9}}},
		{"tail of entry", [][2]int64{{0, 9}}, [2]int64{5, 9}, []Range{{0, 4}}},
		{"splits entry", [][2]int64{{0, 9}}, [2]int64{3, 5}, []Range{{0, 2}, {6, 9}}},
		{"covers several", [][2]int64{{0, 9}, {20, 29}, {40, 49}}, [2]int64{0, 45}, []Range{{46, 49}}},
		{"in a gap", [][2]int64{{0, 9}, {20, 29}}, [2]int64{12, 15}, []Range{{0, 9}, {20, 29}}},
		{"empty list", nil, [2]int64{0, 100}, []Range{}},
		{"starts before end of first", [][2]int64{{0, 9}, {20, 29}}, [2]int64{5, 25}, []Range{{0, 4}, {26, 29}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l List
			for _, a := range tt.initial {
				l.Add(a[0], a[1])
			}
			l.Remove(tt.remove[0], tt.remove[1])
			got := rangesOf(&l)
			if got == nil {
				got = []Range{}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ranges mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList_Scan(t *testing.T) {
	var l List
	l.Add(10, 19)
	l.Add(30, 39)

	ot, r, ok := l.Scan(0, 5)
	assert.Equal(t, NoOverlap, ot)
	assert.True(t, ok)
	assert.Equal(t, Range{10, 19}, r, "insertion point is the first entry after the query")

	ot, r, ok = l.Scan(15, 35)
	assert.Equal(t, OverlapStartsBefore, ot)
	assert.True(t, ok)
	assert.Equal(t, Range{10, 19}, r)

	ot, _, ok = l.Scan(50, 60)
	assert.Equal(t, NoOverlap, ot)
	assert.False(t, ok)

	assert.True(t, l.Contains(12, 18))
	assert.False(t, l.Contains(12, 25))
}

func TestList_Infinity(t *testing.T) {
	var l List
	l.Add(100, Infinity)
	l.Add(0, 99)
	require.Equal(t, []Range{{0, Infinity}}, l.Ranges())
	assert.Equal(t, Infinity, l.Total())

	l.Remove(50, Infinity)
	assert.Equal(t, []Range{{0, 49}}, l.Ranges())
}

func TestList_RemoveAll(t *testing.T) {
	var l List
	for i := int64(0); i < 10; i++ {
		l.Add(i*10, i*10+4)
	}
	require.Equal(t, 10, l.Len())
	l.RemoveAll()
	assert.Equal(t, 0, l.Len())
	l.Add(1, 2)
	assert.Equal(t, []Range{{1, 2}}, l.Ranges())
}

func TestList_InvalidBoundsPanics(t *testing.T) {
	var l List
	assert.Panics(t, func() { l.Add(5, 4) })
	assert.Panics(t, func() { l.Remove(5, 4) })
}

func TestList_All(t *testing.T) {
	var l List
	l.Add(0, 1)
	l.Add(5, 6)
	l.Add(9, 9)

	var got []Range
	for r := range l.All() {
		got = append(got, r)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []Range{{0, 1}, {5, 6}}, got)
}

// TestList_MatchesBitmapModel drives random Add/Remove sequences against a
// plain bitmap and checks the list describes exactly the same offsets.
func TestList_MatchesBitmapModel(t *testing.T) {
	const space = 256
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var l List
		var model [space]bool

		for op := 0; op < 40; op++ {
			s := int64(rng.Intn(space))
			e := s + int64(rng.Intn(space-int(s)))
			add := rng.Intn(3) != 0
			if add {
				l.Add(s, e)
			} else {
				l.Remove(s, e)
			}
			for i := s; i <= e; i++ {
				model[i] = add
			}

			assertWellFormed(t, &l)
			assert.Equal(t, modelRanges(model[:]), l.Ranges(), "round %d op %d", round, op)
		}
	}
}

func assertWellFormed(t *testing.T, l *List) {
	t.Helper()
	rs := l.Ranges()
	for i, r := range rs {
		require.LessOrEqual(t, r.Start, r.End, "entry %d empty: %v", i, rs)
		if i > 0 {
			require.Greater(t, r.Start, rs[i-1].End+1, "entries %d and %d overlap or touch: %v", i-1, i, rs)
		}
	}
}

func modelRanges(bits []bool) []Range {
	var out []Range
	for i := 0; i < len(bits); i++ {
		if !bits[i] {
			continue
		}
		j := i
		for j+1 < len(bits) && bits[j+1] {
			j++
		}
		out = append(out, Range{Start: int64(i), End: int64(j)})
		i = j
	}
	if out == nil {
		return []Range{}
	}
	return out
}
