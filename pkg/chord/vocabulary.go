// Package chord defines the fixed chord vocabulary and classifies pitch class
// spectra against it.
package chord

import (
	"fmt"
	"strings"

	"github.com/metalblueberry/chordsnake/pkg/chroma"
)

// Quality is the interval structure of a triad.
type Quality int

const (
	Major Quality = iota
	Minor
	Augmented
	Diminished
)

// NumQualities is the number of qualities per root.
const NumQualities = 4

// Size is the number of entries in the vocabulary.
const Size = chroma.NUM_CLASSES * NumQualities

var qualityIntervals = [NumQualities][3]int{
	Major:      {0, 4, 7},
	Minor:      {0, 3, 7},
	Augmented:  {0, 4, 8},
	Diminished: {0, 3, 6},
}

var qualitySuffix = [NumQualities]string{
	Major:      "",
	Minor:      "m",
	Augmented:  "aug",
	Diminished: "dim",
}

func (q Quality) String() string {
	switch q {
	case Major:
		return "major"
	case Minor:
		return "minor"
	case Augmented:
		return "augmented"
	case Diminished:
		return "diminished"
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// Intervals returns the semitone offsets of the triad above its root.
func (q Quality) Intervals() [3]int {
	return qualityIntervals[q]
}

// rootOrder is the canonical root ordering of the table, starting at F.
var rootOrder = [chroma.NUM_CLASSES]int{5, 6, 7, 8, 9, 10, 11, 0, 1, 2, 3, 4}

// An Entry is one chord of the vocabulary.
type Entry struct {
	Index   int
	Root    int // pitch class, 0 is C
	Quality Quality
	profile [chroma.NUM_CLASSES]float64
}

// Name returns the chord symbol, e.g. "D", "Em", "Bbaug" or "F#dim".
func (e Entry) Name() string {
	return chroma.ClassNames[e.Root] + qualitySuffix[e.Quality]
}

// Profile returns the expected pitch class energy of the chord.
func (e Entry) Profile() [chroma.NUM_CLASSES]float64 {
	return e.profile
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (#%d)", e.Name(), e.Index)
}

// table is built once and never modified afterwards.
var table = buildTable()

func buildTable() [Size]Entry {
	var t [Size]Entry
	for i, root := range rootOrder {
		for q := Quality(0); q < NumQualities; q++ {
			idx := i*NumQualities + int(q)
			e := Entry{Index: idx, Root: root, Quality: q}
			for _, iv := range q.Intervals() {
				e.profile[(root+iv)%chroma.NUM_CLASSES] = 1
			}
			t[idx] = e
		}
	}
	return t
}

// Vocabulary returns a copy of the full table in canonical order.
func Vocabulary() [Size]Entry {
	return table
}

// At returns the entry with the given index.
func At(index int) (Entry, bool) {
	if index < 0 || index >= Size {
		return Entry{}, false
	}
	return table[index], true
}

// IndexOf returns the canonical index of a root pitch class and quality.
func IndexOf(root int, q Quality) int {
	root = ((root % chroma.NUM_CLASSES) + chroma.NUM_CLASSES) % chroma.NUM_CLASSES
	for i, r := range rootOrder {
		if r == root {
			return i*NumQualities + int(q)
		}
	}
	return -1
}

var enharmonic = map[string]string{
	"DB": "C#", "D#": "Eb", "GB": "F#", "AB": "G#", "A#": "Bb",
}

// Lookup parses a chord symbol such as "D", "Dm", "C#aug" or "Ebdim".
func Lookup(name string) (Entry, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return Entry{}, fmt.Errorf("empty chord name")
	}

	rootLen := 1
	if len(s) > 1 && (s[1] == '#' || s[1] == 'b') {
		rootLen = 2
	}
	root := strings.ToUpper(s[:1]) + s[1:rootLen]
	if alt, ok := enharmonic[strings.ToUpper(root)]; ok {
		root = alt
	}

	pc := -1
	for i, n := range chroma.ClassNames {
		if n == root {
			pc = i
			break
		}
	}
	if pc < 0 {
		return Entry{}, fmt.Errorf("unknown chord root in %q", name)
	}

	var q Quality
	switch strings.ToLower(s[rootLen:]) {
	case "", "maj":
		q = Major
	case "m", "min":
		q = Minor
	case "aug", "+":
		q = Augmented
	case "dim", "o":
		q = Diminished
	default:
		return Entry{}, fmt.Errorf("unknown chord quality in %q", name)
	}

	return table[IndexOf(pc, q)], nil
}
