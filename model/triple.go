package model

// Path is a relational path between a head and a tail entity. A nil mask
// marks every position as valid.
type Path struct {
	Relations []int `json:"relations"`
	Mask      []int `json:"mask,omitempty"`
}

// TripleInstance is one candidate triple with its relational context.
type TripleInstance struct {
	Relation         int    `json:"relation"`
	HeadNeighborhood []int  `json:"head_neighborhood"`
	TailNeighborhood []int  `json:"tail_neighborhood"`
	Paths            []Path `json:"paths"`
	PathCount        int    `json:"path_count"`
	// OverallMask covers [placeholder, relation, head, tail, paths...].
	// Nil derives it from PathCount.
	OverallMask []int `json:"overall_mask,omitempty"`
}

// Batch is either an InferenceBatch or a TrainingBatch.
type Batch interface {
	Triples() []TripleInstance
	isBatch()
}

// InferenceBatch is scored with dropout disabled.
type InferenceBatch struct {
	Instances []TripleInstance `json:"instances"`
}

func (b InferenceBatch) Triples() []TripleInstance { return b.Instances }
func (InferenceBatch) isBatch()                    {}

// TrainingBatch carries the id of the positive example each instance belongs
// to. Dropout is active while scoring it.
type TrainingBatch struct {
	PositiveIDs []int            `json:"positive_ids"`
	Instances   []TripleInstance `json:"instances"`
}

func (b TrainingBatch) Triples() []TripleInstance { return b.Instances }
func (TrainingBatch) isBatch()                    {}
