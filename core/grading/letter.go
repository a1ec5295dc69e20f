package grading

import "math"

// Letter is a letter grade.
type Letter string

const (
	LetterA      Letter = "A"
	LetterAMinus Letter = "A-"
	LetterAB     Letter = "AB"
	LetterBPlus  Letter = "B+"
	LetterB      Letter = "B"
	LetterBMinus Letter = "B-"
	LetterBC     Letter = "BC"
	LetterCPlus  Letter = "C+"
	LetterC      Letter = "C"
	LetterCMinus Letter = "C-"
	LetterD      Letter = "D"
	LetterE      Letter = "E"
)

const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Bracket maps scores in [Min, next bracket's Min) to Letter.
type Bracket struct {
	Min    float64
	Letter Letter
}

// brackets are ordered by descending lower bound; the upper bound of the first one is MaxScore.
var brackets = []Bracket{
	{Min: 85, Letter: LetterA},
	{Min: 80, Letter: LetterAMinus},
	{Min: 75, Letter: LetterAB},
	{Min: 70, Letter: LetterBPlus},
	{Min: 65, Letter: LetterB},
	{Min: 60, Letter: LetterBMinus},
	{Min: 55, Letter: LetterBC},
	{Min: 50, Letter: LetterCPlus},
	{Min: 45, Letter: LetterC},
	{Min: 40, Letter: LetterCMinus},
	{Min: 35, Letter: LetterD},
	{Min: 0, Letter: LetterE},
}

// Brackets returns a copy of the bracket table, highest first.
func Brackets() []Bracket {
	out := make([]Bracket, len(brackets))
	copy(out, brackets)
	return out
}

// Letters returns every letter, highest first.
func Letters() []Letter {
	out := make([]Letter, 0, len(brackets))
	for _, b := range brackets {
		out = append(out, b.Letter)
	}
	return out
}

func (l Letter) String() string { return string(l) }

func (l Letter) IsValid() bool {
	for _, b := range brackets {
		if b.Letter == l {
			return true
		}
	}
	return false
}

// InRange reports whether score lies in the gradable domain [0, 100].
func InRange(score float64) bool {
	return !math.IsNaN(score) && score >= MinScore && score <= MaxScore
}

// ConvertToLetter maps a score to its letter grade.
// Scores outside [0, 100] (and NaN) fall back to E; callers are expected to reject them first.
func ConvertToLetter(score float64) Letter {
	if !InRange(score) {
		return LetterE
	}
	for _, b := range brackets {
		if score >= b.Min {
			return b.Letter
		}
	}
	return LetterE
}
