package models

import "slices"

// OptionCount is the number of answer choices in every round.
const OptionCount = 4

// Round is one playable unit: an image plus four answer choices. Rounds are
// built by the round assembler and never modified afterwards.
type Round struct {
	ImageID     string              `json:"image_id"`
	Options     [OptionCount]string `json:"options"`
	CorrectCode string              `json:"correct_code"`
}

// CorrectIndex returns the slot holding the correct code, or -1.
func (r Round) CorrectIndex() int {
	return slices.Index(r.Options[:], r.CorrectCode)
}

func (r Round) IsCorrect(code string) bool {
	return code != "" && code == r.CorrectCode
}
