package batch

// Sequences are padded id sequences with their validity masks. Types holds
// segment ids and is only set for entity pairs.
type Sequences struct {
	IDs   [][]int
	Masks [][]int
	Types [][]int
}

// Len is the number of sequences.
func (s Sequences) Len() int {
	return len(s.IDs)
}

// SeqLen is the common length of all sequences.
func (s Sequences) SeqLen() int {
	if len(s.IDs) == 0 {
		return 0
	}
	return len(s.IDs[0])
}

// SeparateEntities lays out heads then tails as `[cls] + neighbourhood + pad`,
// all padded to 1 + longest neighbourhood of both sides.
func SeparateEntities(heads, tails Ragged, headCls, tailCls, pad int) Sequences {
	longest := max(heads.MaxLen(), tails.MaxLen())

	out := Sequences{
		IDs:   make([][]int, 0, heads.Len()+tails.Len()),
		Masks: make([][]int, 0, heads.Len()+tails.Len()),
	}
	for _, side := range []struct {
		rows Ragged
		cls  int
	}{{heads, headCls}, {tails, tailCls}} {
		for i := 0; i < side.rows.Len(); i++ {
			ids := make([]int, 1, longest+1)
			ids[0] = side.cls
			ids = append(ids, side.rows.Row(i)...)
			mask := ValidMask(len(ids), longest+1)
			out.IDs = append(out.IDs, PadIDs(ids, longest+1, pad))
			out.Masks = append(out.Masks, mask)
		}
	}
	return out
}

// Segment ids of an entity pair sequence.
const (
	SegmentCls  = 0
	SegmentHead = 1
	SegmentTail = 2
)

// PairEntities lays out each triple as one sequence
// `[cls] + head + pad + tail + pad`, both halves padded to the longest
// neighbourhood of the batch.
func PairEntities(heads, tails Ragged, headCls, pad int) Sequences {
	longest := max(heads.MaxLen(), tails.MaxLen())
	seqLen := 1 + 2*longest

	types := make([]int, seqLen)
	for j := 1; j < seqLen; j++ {
		if j <= longest {
			types[j] = SegmentHead
		} else {
			types[j] = SegmentTail
		}
	}

	out := Sequences{
		IDs:   make([][]int, heads.Len()),
		Masks: make([][]int, heads.Len()),
		Types: make([][]int, heads.Len()),
	}
	for i := 0; i < heads.Len(); i++ {
		head := append([]int{headCls}, heads.Row(i)...)
		tail := tails.Row(i)

		ids := append(PadIDs(head, 1+longest, pad), PadIDs(tail, longest, pad)...)
		mask := append(ValidMask(len(head), 1+longest), ValidMask(len(tail), longest)...)

		out.IDs[i] = ids
		out.Masks[i] = mask
		out.Types[i] = types
	}
	return out
}

// PadIDs returns a copy of ids padded with pad to length n.
func PadIDs(ids []int, n, pad int) []int {
	out := make([]int, n)
	copy(out, ids)
	for j := len(ids); j < n; j++ {
		out[j] = pad
	}
	return out
}

// ValidMask is valid ones followed by zeros up to length n.
func ValidMask(valid, n int) []int {
	mask := make([]int, n)
	for j := 0; j < valid && j < n; j++ {
		mask[j] = 1
	}
	return mask
}
