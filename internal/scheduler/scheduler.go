// Package scheduler decides, before an interview starts, which turns ask a
// curated question and which ask a generated one.
package scheduler

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/spigell/interview-simulator/internal/questions"
)

// ErrInvalidTurns is returned when a plan is requested for fewer than one turn.
var ErrInvalidTurns = errors.New("total turns must be at least 1")

// Plan is the per-turn ordering of question sources.
type Plan []questions.Source

// Count returns how many turns use source.
func (p Plan) Count(source questions.Source) int {
	n := 0
	for _, s := range p {
		if s == source {
			n++
		}
	}
	return n
}

// Result is the outcome of planning one interview.
type Result struct {
	// Selected holds the curated questions in the order they will be asked.
	Selected []questions.Record
	Plan     Plan
}

// PredefinedCount returns the number of curated turns in the plan.
func (r *Result) PredefinedCount() int {
	return len(r.Selected)
}

// NewRand returns a generator seeded with seed, or a randomly seeded one when seed is zero.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// Build draws the curated questions for one interview and shuffles them
// together with generated turns into a plan of exactly totalTurns entries.
//
// At most min(len(bank), totalTurns-1) curated questions are used, so whenever
// the bank is non-empty and totalTurns > 1 at least one curated and at least one
// generated turn exist. A single-turn interview is always generated.
func Build(rng *rand.Rand, bank []questions.Record, totalTurns int) (*Result, error) {
	if totalTurns < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTurns, totalTurns)
	}
	if rng == nil {
		rng = NewRand(0)
	}

	predefined := 0
	if maxPredefined := min(len(bank), totalTurns-1); maxPredefined > 0 {
		predefined = 1 + rng.IntN(maxPredefined)
	}

	selected := make([]questions.Record, 0, predefined)
	for _, idx := range rng.Perm(len(bank))[:predefined] {
		record := bank[idx]
		record.Source = questions.SourcePredefined
		selected = append(selected, record)
	}

	plan := make(Plan, totalTurns)
	for i := range plan {
		if i < predefined {
			plan[i] = questions.SourcePredefined
		} else {
			plan[i] = questions.SourceGenerated
		}
	}
	rng.Shuffle(len(plan), func(i, j int) {
		plan[i], plan[j] = plan[j], plan[i]
	})

	return &Result{Selected: selected, Plan: plan}, nil
}
