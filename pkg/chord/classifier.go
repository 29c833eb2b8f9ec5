package chord

import "github.com/metalblueberry/chordsnake/pkg/chroma"

// Result is the best matching vocabulary entry for one spectrum.
type Result struct {
	Index    int
	Score    float64
	Spectrum *chroma.Spectrum
}

// Entry returns the vocabulary entry of the result.
func (r Result) Entry() Entry {
	return table[r.Index]
}

// Score returns the similarity between the entry's profile and a spectrum.
func Score(e Entry, s *chroma.Spectrum) float64 {
	var score float64
	for pc, w := range e.profile {
		score += w * s.Classes[pc]
	}
	return score
}

// Classify returns the highest scoring entry. Ties resolve to the lowest
// index, so a degenerate spectrum yields entry 0.
func Classify(s *chroma.Spectrum) Result {
	best := Result{Index: 0, Score: Score(table[0], s), Spectrum: s}
	for i := 1; i < Size; i++ {
		if sc := Score(table[i], s); sc > best.Score {
			best.Index = i
			best.Score = sc
		}
	}
	return best
}
