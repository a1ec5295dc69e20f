package grading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToLetter(t *testing.T) {
	tests := []struct {
		score float64
		want  Letter
	}{
		{100, LetterA},
		{85, LetterA},
		{84.99, LetterAMinus},
		{80, LetterAMinus},
		{79.99, LetterAB},
		{75, LetterAB},
		{74.99, LetterBPlus},
		{70, LetterBPlus},
		{69.99, LetterB},
		{65, LetterB},
		{64.99, LetterBMinus},
		{60, LetterBMinus},
		{59.99, LetterBC},
		{55, LetterBC},
		{54.99, LetterCPlus},
		{50, LetterCPlus},
		{49.99, LetterC},
		{45, LetterC},
		{44.99, LetterCMinus},
		{40, LetterCMinus},
		{39.99, LetterD},
		{35, LetterD},
		{34.99, LetterE},
		{0, LetterE},
		// out of domain falls back to E
		{-0.01, LetterE},
		{100.01, LetterE},
		{math.NaN(), LetterE},
		{math.Inf(1), LetterE},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertToLetter(tt.score), "score %v", tt.score)
		})
	}
}

func TestConvertToLetter_coverage(t *testing.T) {
	// every score in [0, 100] maps to exactly one bracket, and letters never go up as scores go down
	prevRank := -1
	ranks := make(map[Letter]int)
	for i, l := range Letters() {
		ranks[l] = i
	}
	assert.Len(t, ranks, 12)

	for s := 10000; s >= 0; s-- { // hundredths
		score := float64(s) / 100
		l := ConvertToLetter(score)
		if !assert.True(t, l.IsValid(), "score %v", score) {
			return
		}

		matches := 0
		for i, b := range brackets {
			upper := MaxScore + 1
			if i > 0 {
				upper = brackets[i-1].Min
			}
			if score >= b.Min && score < upper {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "score %v", score)

		assert.GreaterOrEqual(t, ranks[l], prevRank, "score %v", score)
		prevRank = ranks[l]
	}
}

func TestLetter_IsValid(t *testing.T) {
	assert.True(t, LetterBC.IsValid())
	assert.False(t, Letter("F").IsValid())
	assert.False(t, Letter("").IsValid())
}
