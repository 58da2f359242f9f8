package batch

import (
	"fmt"

	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
)

// Plan is a validated batch in the layout the encoders consume.
type Plan struct {
	Training    bool
	PositiveIDs []int
	Relations   []int
	Entities    Sequences
	Paths       *PathArena
	// OverallMasks has one mask of length Slots per triple.
	OverallMasks [][]int
	PathSlots    int
	Slots        int
	Pair         bool
}

// Size is the number of triples.
func (p *Plan) Size() int {
	return len(p.Relations)
}

// Prepare validates a batch, samples its paths and builds every padded
// sequence and mask.
func Prepare(b model.Batch, config *model.ModelConfig, sampler *PathSampler) (*Plan, error) {
	if b == nil {
		return nil, helper.NewError("prepare batch", fmt.Errorf("%w: nil batch", helper.ErrShape))
	}
	instances := b.Triples()
	if len(instances) == 0 {
		return nil, helper.NewError("prepare batch", fmt.Errorf("%w: empty batch", helper.ErrShape))
	}

	plan := &Plan{
		Relations:    make([]int, len(instances)),
		OverallMasks: make([][]int, len(instances)),
		PathSlots:    config.PathSlots(),
		Slots:        config.OverallSlots(),
		Pair:         config.EncodeEntPair,
	}
	if training, ok := b.(model.TrainingBatch); ok {
		if len(training.PositiveIDs) != len(instances) {
			return nil, helper.NewError("prepare batch", fmt.Errorf("%w: %d positive ids for %d triples", helper.ErrShape, len(training.PositiveIDs), len(instances)))
		}
		plan.Training = true
		plan.PositiveIDs = training.PositiveIDs
	}

	heads := make([][]int, len(instances))
	tails := make([][]int, len(instances))
	groups := make([][]model.Path, len(instances))
	for i, inst := range instances {
		if err := checkInstance(i, inst, config.VocabRelationSize); err != nil {
			return nil, helper.NewError("prepare batch", err)
		}

		plan.Relations[i] = inst.Relation
		heads[i] = inst.HeadNeighborhood
		tails[i] = inst.TailNeighborhood

		keep := sampler.Sample(inst.PathCount)
		groups[i] = make([]model.Path, len(keep))
		for j, k := range keep {
			groups[i][j] = inst.Paths[k]
		}

		mask, err := OverallMask(inst.OverallMask, len(keep), plan.PathSlots, plan.Pair)
		if err != nil {
			return nil, helper.NewError("prepare batch", fmt.Errorf("triple %d: %w", i, err))
		}
		plan.OverallMasks[i] = mask
	}

	headRows := NewRagged(heads, config.MaxRelContext)
	tailRows := NewRagged(tails, config.MaxRelContext)
	special := config.SpecialTokens
	if plan.Pair {
		plan.Entities = PairEntities(headRows, tailRows, special.HeadCls, special.Pad)
	} else {
		plan.Entities = SeparateEntities(headRows, tailRows, special.HeadCls, special.TailCls, special.Pad)
	}

	arena, err := NewPathArena(groups, config.PathSeqLen(), special.Pad)
	if err != nil {
		return nil, helper.NewError("prepare batch", err)
	}
	plan.Paths = arena

	return plan, nil
}

func checkInstance(i int, inst model.TripleInstance, vocabSize int) error {
	inVocab := func(id int) bool { return id >= 0 && id < vocabSize }

	if !inVocab(inst.Relation) {
		return fmt.Errorf("%w: triple %d relation %d outside [0, %d)", helper.ErrShape, i, inst.Relation, vocabSize)
	}
	if inst.PathCount != len(inst.Paths) {
		return fmt.Errorf("%w: triple %d path count %d but %d paths", helper.ErrShape, i, inst.PathCount, len(inst.Paths))
	}
	for _, side := range [][]int{inst.HeadNeighborhood, inst.TailNeighborhood} {
		for _, id := range side {
			if !inVocab(id) {
				return fmt.Errorf("%w: triple %d neighbourhood relation %d outside [0, %d)", helper.ErrShape, i, id, vocabSize)
			}
		}
	}
	for p, path := range inst.Paths {
		for _, id := range path.Relations {
			if !inVocab(id) {
				return fmt.Errorf("%w: triple %d path %d relation %d outside [0, %d)", helper.ErrShape, i, p, id, vocabSize)
			}
		}
	}
	return nil
}

// OverallMask returns the mask over [placeholder, relation, head, tail,
// path slots]. A nil given mask is derived from the number of kept paths.
// The result always has 4 + pathSlots entries with the placeholder masked;
// in pair mode the tail entry is dropped.
func OverallMask(given []int, kept, pathSlots int, pair bool) ([]int, error) {
	mask := make([]int, 4+pathSlots)
	if given == nil {
		copy(mask, ValidMask(4+min(kept, pathSlots), 4+pathSlots))
	} else {
		for _, v := range given {
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("%w: overall mask value %d is not 0 or 1", helper.ErrShape, v)
			}
		}
		copy(mask, given)
	}
	mask[0] = 0

	if pair {
		mask = append(mask[:3], mask[4:]...)
	}
	return mask, nil
}
