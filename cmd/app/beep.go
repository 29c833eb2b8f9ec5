package main

import (
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/metalblueberry/chordsnake/pkg/audio"
	"github.com/metalblueberry/chordsnake/pkg/command"
)

const beepSamples = audio.SampleRate / 12

// beeper plays a short confirmation tone for each accepted move.
type beeper struct {
	ctx    *oto.Context
	tones  map[command.Direction][]int16
	mu     sync.Mutex
	player *oto.Player
}

func newBeeper() (*beeper, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	// one pitch per direction: A4, C#5, E5, A5
	notes := map[command.Direction]int{
		command.Left:  69,
		command.Up:    73,
		command.Down:  76,
		command.Right: 81,
	}
	tones := make(map[command.Direction][]int16, len(notes))
	for d, n := range notes {
		tones[d] = audio.Tone(audio.NoteFrequency(n), 0.3, audio.SampleRate, beepSamples)
	}
	return &beeper{ctx: ctx, tones: tones}, nil
}

// Play starts the tone for d, cutting off the previous one. A nil beeper is
// silent.
func (b *beeper) Play(d command.Direction) {
	if b == nil {
		return
	}
	tone, ok := b.tones[d]
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player != nil {
		_ = b.player.Close()
	}
	b.player = b.ctx.NewPlayer(audio.NewPCMReader(tone))
	b.player.Play()
}
