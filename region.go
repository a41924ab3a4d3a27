package rangeio

import (
	"fmt"
	"sort"
)

// Region is a half-open byte interval [Offset, Offset+Length) into the
// logical file. Regions with Length == 0 never enter the pending set;
// Enqueue short-circuits them to an empty stream.
type Region struct {
	Offset uint64
	Length uint64
}

// End returns the exclusive upper bound of the region.
func (r Region) End() uint64 {
	return r.Offset + r.Length
}

// Empty reports whether the region covers no bytes.
func (r Region) Empty() bool {
	return r.Length == 0
}

func (r Region) String() string {
	return fmt.Sprintf("[%d,+%d)", r.Offset, r.Length)
}

// sortRegions orders regions by (Offset, Length) ascending. Duplicates and
// overlaps are allowed here; the merge pass resolves them.
func sortRegions(regions []Region) {
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Offset != regions[j].Offset {
			return regions[i].Offset < regions[j].Offset
		}
		return regions[i].Length < regions[j].Length
	})
}

// mergeRegions coalesces a sorted region slice in place and returns the
// truncated prefix. Two consecutive regions merge when the second is
// contained in the first or the gap between them is at most maxMergeDistance.
// Absorbed positive gaps are reported to stats as over-read bytes.
//
// The input must be sorted and contain no empty regions; violations are
// programmer errors and panic.
func mergeRegions(regions []Region, maxMergeDistance uint64, stats Statistics) []Region {
	if len(regions) == 0 {
		panic("rangeio: mergeRegions requires at least one region")
	}
	if regions[0].Empty() {
		panic("rangeio: mergeRegions: empty region " + regions[0].String())
	}

	ia := 0
	for ib := 1; ib < len(regions); ib++ {
		if regions[ib].Empty() {
			panic("rangeio: mergeRegions: empty region " + regions[ib].String())
		}
		if !tryMerge(&regions[ia], regions[ib], maxMergeDistance, stats) {
			ia++
			regions[ia] = regions[ib]
		}
	}
	return regions[:ia+1]
}

// tryMerge extends first to cover second when the two are close enough.
// The gap is computed in signed arithmetic: a negative gap means overlap,
// which always merges and never counts as over-read.
func tryMerge(first *Region, second Region, maxMergeDistance uint64, stats Statistics) bool {
	if second.Offset < first.Offset {
		panic(fmt.Sprintf("rangeio: tryMerge: regions not sorted: %s then %s", first, second))
	}
	gap := int64(second.Offset) - int64(first.Offset) - int64(first.Length)
	if gap > 0 && uint64(gap) > maxMergeDistance {
		return false
	}

	// A non-positive extension means second lies inside first; nothing to do.
	extension := gap + int64(second.Length)
	if extension > 0 {
		first.Length += uint64(extension)
		if stats != nil && gap > 0 {
			stats.IncRawOverreadBytes(uint64(gap))
		}
	}
	return true
}
