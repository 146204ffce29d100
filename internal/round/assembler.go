// Package round turns a sampled region and a found image into a playable
// Round, and drives the per-attempt sample/limit/query/assemble pipeline.
package round

import (
	"errors"
	"fmt"

	"panoguess/internal/models"
)

// DistractorSampler draws wrong answers for a round.
type DistractorSampler interface {
	SampleDistractors(exclude string, count int) ([]string, error)
}

// Shuffler permutes n elements uniformly.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type Assembler struct {
	sampler DistractorSampler
	rand    Shuffler
}

func NewAssembler(sampler DistractorSampler, rand Shuffler) *Assembler {
	return &Assembler{sampler: sampler, rand: rand}
}

// Assemble builds the round for region and imageID: the correct code plus
// three distractors in a uniformly shuffled order.
func (a *Assembler) Assemble(region models.Region, imageID string) (models.Round, error) {
	if imageID == "" {
		return models.Round{}, errors.New("assemble: empty image id")
	}
	distractors, err := a.sampler.SampleDistractors(region.Code, models.OptionCount-1)
	if err != nil {
		return models.Round{}, fmt.Errorf("assemble: %w", err)
	}
	if len(distractors) != models.OptionCount-1 {
		return models.Round{}, fmt.Errorf("assemble: got %d distractors, want %d", len(distractors), models.OptionCount-1)
	}

	var options [models.OptionCount]string
	options[0] = region.Code
	copy(options[1:], distractors)
	a.rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return models.Round{
		ImageID:     imageID,
		Options:     options,
		CorrectCode: region.Code,
	}, nil
}
