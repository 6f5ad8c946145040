// Package audio plays the enclosure's sound cues.
package audio

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/enclosure-alarm/internal/logic"
)

// Player plays cues without blocking the caller.
type Player interface {
	// Play starts one playback of cue.
	Play(cue logic.Cue) error

	// Loop plays cue repeatedly until Stop. Looping a cue that is already
	// looping is a no-op.
	Loop(cue logic.Cue) error

	// Stop ends any playback of cue. Stopping a silent cue is a no-op.
	Stop(cue logic.Cue) error

	// Close stops everything.
	Close() error
}

// Nop is a Player that does nothing.
type Nop struct{}

func (Nop) Play(logic.Cue) error { return nil }
func (Nop) Loop(logic.Cue) error { return nil }
func (Nop) Stop(logic.Cue) error { return nil }
func (Nop) Close() error { return nil }

// retryDelay separates loop iterations after a failed playback.
const retryDelay = time.Second

type playback struct {
	loop   bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Aplay plays WAV files through the ALSA aplay command.
type Aplay struct {
	files map[logic.Cue]string
	log   *zap.Logger
	run   func(ctx context.Context, file string) error

	mu      sync.Mutex
	playing map[logic.Cue]*playback
	closed  bool
}

// NewAplay creates a player for the given cue files.
func NewAplay(command string, files map[logic.Cue]string, log *zap.Logger) *Aplay {
	if command == "" {
		command = "aplay"
	}
	return &Aplay{
		files: files,
		log:   log,
		run: func(ctx context.Context, file string) error {
			return exec.CommandContext(ctx, command, "-q", file).Run()
		},
		playing: make(map[logic.Cue]*playback),
	}
}

// Play starts one playback, replacing any playback of the same cue.
func (a *Aplay) Play(cue logic.Cue) error {
	return a.start(cue, false)
}

// Loop starts looping playback unless the cue already loops.
func (a *Aplay) Loop(cue logic.Cue) error {
	return a.start(cue, true)
}

func (a *Aplay) start(cue logic.Cue, loop bool) error {
	file, ok := a.files[cue]
	if !ok || file == "" {
		return fmt.Errorf("audio: no file for cue %q", cue)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("audio: player closed")
	}
	if pb, ok := a.playing[cue]; ok && pb.loop && loop {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	if err := a.Stop(cue); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{loop: loop, cancel: cancel, done: make(chan struct{})}

	a.mu.Lock()
	a.playing[cue] = pb
	a.mu.Unlock()

	go a.play(ctx, cue, file, pb)
	return nil
}

func (a *Aplay) play(ctx context.Context, cue logic.Cue, file string, pb *playback) {
	defer close(pb.done)
	defer a.forget(cue, pb)

	for {
		err := a.run(ctx, file)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			a.log.Warn("playback failed", zap.String("cue", string(cue)), zap.String("file", file), zap.Error(err))
		}
		if !pb.loop {
			return
		}
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
	}
}

func (a *Aplay) forget(cue logic.Cue, pb *playback) {
	a.mu.Lock()
	if a.playing[cue] == pb {
		delete(a.playing, cue)
	}
	a.mu.Unlock()
}

// Stop ends playback of cue and waits for it to exit.
func (a *Aplay) Stop(cue logic.Cue) error {
	a.mu.Lock()
	pb := a.playing[cue]
	delete(a.playing, cue)
	a.mu.Unlock()

	if pb == nil {
		return nil
	}
	pb.cancel()
	<-pb.done
	return nil
}

// Playing reports whether cue is currently playing.
func (a *Aplay) Playing(cue logic.Cue) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.playing[cue]
	return ok
}

// Close stops all cues. Closing twice returns nil.
func (a *Aplay) Close() error {
	a.mu.Lock()
	a.closed = true
	cues := make([]logic.Cue, 0, len(a.playing))
	for c := range a.playing {
		cues = append(cues, c)
	}
	a.mu.Unlock()

	for _, c := range cues {
		a.Stop(c)
	}
	return nil
}

// InitMixer routes audio to the analogue jack, as the enclosure's speaker
// is wired there.
func InitMixer(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "amixer", "cset", "numid=3", "1").CombinedOutput()
	if err != nil {
		return fmt.Errorf("amixer: %w: %s", err, out)
	}
	return nil
}
