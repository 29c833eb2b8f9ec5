// Copyright 2016 Hajime Hoshi
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/sync/errgroup"

	"github.com/metalblueberry/chordsnake/pkg/capture"
	"github.com/metalblueberry/chordsnake/pkg/chroma"
	"github.com/metalblueberry/chordsnake/pkg/command"
	"github.com/metalblueberry/chordsnake/pkg/config"
	"github.com/metalblueberry/chordsnake/pkg/dispatch"
	"github.com/metalblueberry/chordsnake/pkg/mic"
)

const (
	screenWidth  = 640
	screenHeight = 480

	highlightFor = 600 * time.Millisecond
)

// Game shows the live chroma, the detected chord and the last move. It is
// the dispatch.Surface of the pipeline.
type Game struct {
	ctx  context.Context
	loop *capture.Loop
	beep *beeper

	mu       sync.Mutex
	mode     dispatch.Mode
	last     command.Direction
	lastAt   time.Time
	chord    string
	classes  [chroma.NUM_CLASSES]float64
	level    float64
	detected uint64

	vertices []ebiten.Vertex
	indices  []uint16
}

// SetMode implements dispatch.Surface.
func (g *Game) SetMode(m dispatch.Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = m
}

// SubmitMove implements dispatch.Surface. Moves are ignored unless running.
func (g *Game) SubmitMove(d command.Direction) {
	g.mu.Lock()
	if g.mode != dispatch.Running {
		g.mu.Unlock()
		return
	}
	g.last = d
	g.lastAt = time.Now()
	g.mu.Unlock()

	g.beep.Play(d)
}

func (g *Game) observe(d capture.Detection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chord = d.Chord.Entry().Name()
	g.classes = d.Spectrum.Classes
	g.level = d.Spectrum.Level
	g.detected++
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.mu.Lock()
		mode := g.mode
		g.mu.Unlock()

		if mode == dispatch.Running {
			g.SetMode(dispatch.Pause)
		} else {
			g.SetMode(dispatch.Running)
		}
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.mu.Lock()
	mode, last, lastAt := g.mode, g.last, g.lastAt
	name, classes, level, detected := g.chord, g.classes, g.level, g.detected
	g.mu.Unlock()

	ebitenutil.DebugPrint(screen, fmt.Sprintf("mode: %s (space toggles)\nchord: %s  level: %.1f dBFS  windows: %d\nstate: %s",
		mode, name, level, detected, g.loop.State()))

	up := screen.SubImage(image.Rect(0, 60, screen.Bounds().Dx(), screen.Bounds().Dy()/2)).(*ebiten.Image)
	down := screen.SubImage(image.Rect(0, screen.Bounds().Dy()/2, screen.Bounds().Dx(), screen.Bounds().Dy())).(*ebiten.Image)
	g.drawBars(up, classes[:])
	g.drawWave(up, classes[:], 1)

	active := command.None
	if time.Since(lastAt) < highlightFor {
		active = last
	}
	g.drawPad(down, active)
}

var (
	whiteImage = ebiten.NewImage(3, 3)

	// whiteSubImage is an internal sub image of whiteImage.
	// Use whiteSubImage at DrawTriangles instead of whiteImage in order to avoid bleeding edges.
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)

	barColor    = color.RGBA{0x40, 0x80, 0xff, 0xff}
	padColor    = color.RGBA{0x30, 0x30, 0x30, 0xff}
	activeColor = color.RGBA{0x40, 0xff, 0x80, 0xff}
)

func init() {
	whiteImage.Fill(color.White)
}

func (g *Game) drawBars(screen *ebiten.Image, data []float64) {
	b := screen.Bounds()
	width := float32(b.Dx()) / float32(len(data))
	for i, v := range data {
		h := float32(v) * float32(b.Dy())
		x := float32(b.Min.X) + float32(i)*width
		vector.DrawFilledRect(screen, x+2, float32(b.Max.Y)-h, width-4, h, barColor, false)
		ebitenutil.DebugPrintAt(screen, chroma.ClassNames[i], int(x)+4, b.Max.Y-16)
	}
}

func (g *Game) drawWave(screen *ebiten.Image, data []float64, size float64) {
	var path vector.Path
	bottom := screen.Bounds().Max.Y
	height := screen.Bounds().Dy()
	width := screen.Bounds().Dx()

	path.MoveTo(0, float32(bottom))

	scale := float64(height) / size
	for i := range data {
		y := float32(float64(bottom) - data[i]*scale)
		path.LineTo((float32(i)+0.5)*float32(width)/float32(len(data)), y)
	}

	op := &vector.StrokeOptions{}
	op.Width = float32(1)
	vs, is := path.AppendVerticesAndIndicesForStroke(g.vertices[:0], g.indices[:0], op)
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = 1
		vs[i].ColorG = 1
		vs[i].ColorB = 1
		vs[i].ColorA = 1
	}
	screen.DrawTriangles(vs, is, whiteSubImage, &ebiten.DrawTrianglesOptions{
		AntiAlias: false,
	})
	g.vertices, g.indices = vs, is
}

// drawPad draws a cross of four keys and lights the active direction.
func (g *Game) drawPad(screen *ebiten.Image, active command.Direction) {
	b := screen.Bounds()
	const size = 60
	cx := float32(b.Min.X+b.Dx()/2) - size/2
	cy := float32(b.Min.Y+b.Dy()/2) - size/2

	keys := map[command.Direction][2]float32{
		command.Up:    {cx, cy - size - 8},
		command.Down:  {cx, cy + size + 8},
		command.Left:  {cx - size - 8, cy},
		command.Right: {cx + size + 8, cy},
	}
	for d, pos := range keys {
		clr := padColor
		if d == active {
			clr = activeColor
		}
		vector.DrawFilledRect(screen, pos[0], pos[1], size, size, clr, false)
		ebitenutil.DebugPrintAt(screen, d.String(), int(pos[0])+8, int(pos[1])+size/2-8)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

func main() {
	configPath := flag.String("config", "chordsnake.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, done := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		logger.Info("done")
		done()
		<-time.After(5 * time.Second)
		logger.Error("timeout waiting for shutdown")
		os.Exit(1)
	}()
	logger.Info("init")

	chk(portaudio.Initialize())
	defer portaudio.Terminate()

	mapper, err := cfg.Mapper()
	chk(err)
	beep, err := newBeeper()
	if err != nil {
		logger.Warn("move confirmation tone disabled", "error", err)
	}

	disp := dispatch.New(logger)
	game := &Game{ctx: ctx, beep: beep, mode: dispatch.Ready}

	capCfg := cfg.Capture()
	capCfg.Mapper = mapper
	capCfg.Logger = logger
	capCfg.Observer = game.observe
	game.loop = capture.NewLoop(mic.New(cfg.Audio.Device, cfg.Audio.FramesPerBuffer, logger), disp, capCfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(game.loop.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(disp.Run(gctx, game)) })

	logger.Info("ready")
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("chordsnake")
	if err := ebiten.RunGame(game); err != nil {
		logger.Error("game stopped", "error", err)
	}

	done()
	if err := g.Wait(); err != nil {
		logger.Error("pipeline failed", "error", err)
	}
	st := disp.Stats()
	logger.Info("stopped", "delivered", st.Delivered, "dropped", st.Dropped)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func chk(err error) {
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
