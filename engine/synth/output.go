package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
)

const outputBuffer = 60 * time.Millisecond

type otoOutput struct {
	ctx    *oto.Context
	player *oto.Player
}

// openOto plays e through the default device. oto allows one context per
// process, so Close only stops the player and suspends the context.
func openOto(ctx context.Context, e *Engine) (output, error) {
	c, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   e.rate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   outputBuffer,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p := c.NewPlayer(e)
	p.Play()
	return &otoOutput{ctx: c, player: p}, nil
}

func (o *otoOutput) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	if err := o.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}
