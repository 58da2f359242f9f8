package batch

// Ragged stores rows of different lengths back to back. Row i is
// Values[Offsets[i]:Offsets[i+1]].
type Ragged struct {
	Values  []int
	Offsets []int
}

// NewRagged copies rows into arena storage, keeping at most limit values per
// row (limit <= 0 keeps everything).
func NewRagged(rows [][]int, limit int) Ragged {
	r := Ragged{Offsets: make([]int, 1, len(rows)+1)}
	for _, row := range rows {
		if limit > 0 && len(row) > limit {
			row = row[:limit]
		}
		r.Values = append(r.Values, row...)
		r.Offsets = append(r.Offsets, len(r.Values))
	}
	return r
}

// Len is the number of rows.
func (r Ragged) Len() int {
	return len(r.Offsets) - 1
}

// Row returns row i without copying.
func (r Ragged) Row(i int) []int {
	return r.Values[r.Offsets[i]:r.Offsets[i+1]]
}

// RowLen is the length of row i.
func (r Ragged) RowLen(i int) int {
	return r.Offsets[i+1] - r.Offsets[i]
}

// MaxLen is the length of the longest row.
func (r Ragged) MaxLen() int {
	longest := 0
	for i := 0; i < r.Len(); i++ {
		longest = max(longest, r.RowLen(i))
	}
	return longest
}
