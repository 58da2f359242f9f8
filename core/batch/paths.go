package batch

import (
	"fmt"

	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
)

// PathArena holds every path of a batch, padded to SeqLen, in one flat
// array. The paths of triple i are the indices Offsets[i]..Offsets[i+1].
type PathArena struct {
	IDs     []int
	Masks   []int
	SeqLen  int
	Offsets []int
}

// NewPathArena pads and flattens the paths of every triple. Paths longer
// than seqLen are a shape error.
func NewPathArena(groups [][]model.Path, seqLen, pad int) (*PathArena, error) {
	arena := &PathArena{
		SeqLen:  seqLen,
		Offsets: make([]int, 1, len(groups)+1),
	}
	for t, paths := range groups {
		for p, path := range paths {
			if len(path.Relations) > seqLen {
				return nil, helper.NewError("new path arena", fmt.Errorf("%w: triple %d path %d has length %d, max %d", helper.ErrShape, t, p, len(path.Relations), seqLen))
			}
			if path.Mask != nil && len(path.Mask) != len(path.Relations) {
				return nil, helper.NewError("new path arena", fmt.Errorf("%w: triple %d path %d has %d mask entries for %d relations", helper.ErrShape, t, p, len(path.Mask), len(path.Relations)))
			}

			mask := path.Mask
			if mask == nil {
				mask = ValidMask(len(path.Relations), len(path.Relations))
			}
			arena.IDs = append(arena.IDs, PadIDs(path.Relations, seqLen, pad)...)
			arena.Masks = append(arena.Masks, PadIDs(mask, seqLen, 0)...)
		}
		arena.Offsets = append(arena.Offsets, arena.NumPaths())
	}
	return arena, nil
}

// NumPaths is the number of paths over all triples.
func (a *PathArena) NumPaths() int {
	if a.SeqLen == 0 {
		return 0
	}
	return len(a.IDs) / a.SeqLen
}

// Path returns the padded ids and mask of path p.
func (a *PathArena) Path(p int) (ids []int, mask []int) {
	lo, hi := p*a.SeqLen, (p+1)*a.SeqLen
	return a.IDs[lo:hi], a.Masks[lo:hi]
}

// Span returns the path index range of triple t.
func (a *PathArena) Span(t int) (start, end int) {
	return a.Offsets[t], a.Offsets[t+1]
}

// Count is the number of paths of triple t.
func (a *PathArena) Count(t int) int {
	return a.Offsets[t+1] - a.Offsets[t]
}
