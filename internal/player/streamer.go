// Package player is the reference streaming loop: one send cycle per
// physical device, each pacing frames on its own ticker, resolving the
// active cue, encoding per output and handing packets to the session
// client. Swapping it out does not affect the codec, session or routing
// packages it drives.
package player

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zbear0808/laser-idn-project-sub009/internal/hello"
	"github.com/zbear0808/laser-idn-project-sub009/internal/routing"
	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
	"github.com/zbear0808/laser-idn-project-sub009/internal/stream"
)

// FrameSource supplies the next frame of the active animation. It is the
// boundary to the (external) shape/effects pipeline.
type FrameSource interface {
	NextFrame(now time.Time) show.Frame
}

// Options tune one streamer instance.
type Options struct {
	Profile stream.BitDepthProfile
	FPS     int
	// ConfigResend is how often the channel configuration block is
	// re-included so devices joining late can decode the samples.
	ConfigResend time.Duration
	ServiceID    uint8
	ServiceMode  uint8
	// Observer, when set, sees every encoded channel message before it is
	// sent. Used by the monitor; must not block.
	Observer func(deviceID string, msg []byte)
}

// Streamer drives all device send loops.
type Streamer struct {
	opts   Options
	client *hello.Client
	log    zerolog.Logger

	cue     func() show.Cue
	outputs func() []show.Output
	source  FrameSource
}

// New wires a streamer. cue and outputs are snapshot getters owned by the
// external state store; they are called once per tick.
func New(opts Options, client *hello.Client, cue func() show.Cue, outputs func() []show.Output, source FrameSource, log zerolog.Logger) *Streamer {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.ConfigResend <= 0 {
		opts.ConfigResend = time.Second
	}
	if opts.ServiceMode == 0 {
		opts.ServiceMode = stream.ServiceModeGraphicContinuous
	}
	return &Streamer{
		opts:    opts,
		client:  client,
		log:     log,
		cue:     cue,
		outputs: outputs,
		source:  source,
	}
}

// Run starts one loop per device referenced by the current output set and
// blocks until ctx is cancelled. Cancelling stops every loop after it has
// sent its close messages.
func (s *Streamer) Run(ctx context.Context) error {
	devices := s.deviceIDs()
	if len(devices) == 0 {
		s.log.Warn().Msg("no devices referenced by any output; nothing to stream")
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range devices {
		id := id
		g.Go(func() error {
			return s.runDevice(ctx, id)
		})
	}
	return g.Wait()
}

func (s *Streamer) deviceIDs() []string {
	var ids []string
	seen := map[string]bool{}
	for _, o := range s.outputs() {
		if o.DeviceID == "" || seen[o.DeviceID] {
			continue
		}
		seen[o.DeviceID] = true
		ids = append(ids, o.DeviceID)
	}
	return ids
}

// runDevice is one device's send cycle. Channels are assigned per output
// in configuration order, stable for the life of the loop.
func (s *Streamer) runDevice(ctx context.Context, deviceID string) error {
	interval := time.Second / time.Duration(s.opts.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := s.log.With().Str("device", deviceID).Logger()
	channels := s.assignChannels(deviceID)
	start := time.Now()
	first := true
	lastConfig := time.Time{}

	log.Info().Int("outputs", len(channels)).Dur("interval", interval).Msg("send loop started")
	for {
		select {
		case <-ctx.Done():
			s.closeChannels(deviceID, channels, start, log)
			log.Info().Msg("send loop stopped")
			return nil
		case now := <-ticker.C:
			frame := s.source.NextFrame(now)
			resolved := routing.Resolve(s.cue(), s.outputs())

			includeConfig := first || now.Sub(lastConfig) >= s.opts.ConfigResend
			sent := false
			for _, o := range resolved {
				if o.DeviceID != deviceID {
					continue
				}
				ch, ok := channels[o.ID]
				if !ok {
					// Output appeared after startup; channels are fixed
					// per loop, so it waits for the next run.
					continue
				}
				msg, err := stream.EncodeMessage(frame, ch, elapsedUS(start, now), frame.DurationUS, s.opts.Profile, stream.EncodeOptions{
					ServiceID:     s.opts.ServiceID,
					ServiceMode:   s.opts.ServiceMode,
					IncludeConfig: includeConfig,
					FirstFragment: first,
				})
				if err != nil {
					log.Error().Err(err).Str("output", o.ID).Msg("encode failed")
					continue
				}
				if s.opts.Observer != nil {
					s.opts.Observer(deviceID, msg)
				}
				if err := s.client.SendChannelMessage(deviceID, msg); err != nil {
					// UDP is loss tolerant; log and move on, no retry.
					log.Warn().Err(err).Str("output", o.ID).Msg("send failed")
					continue
				}
				sent = true
			}
			if sent {
				first = false
				if includeConfig {
					lastConfig = now
				}
			}
		}
	}
}

func (s *Streamer) assignChannels(deviceID string) map[string]uint8 {
	channels := map[string]uint8{}
	next := uint8(0)
	for _, o := range s.outputs() {
		if o.DeviceID != deviceID || next > stream.MaxChannel {
			continue
		}
		channels[o.ID] = next
		next++
	}
	return channels
}

func (s *Streamer) closeChannels(deviceID string, channels map[string]uint8, start time.Time, log zerolog.Logger) {
	for outputID, ch := range channels {
		msg, err := stream.EncodeClose(ch, elapsedUS(start, time.Now()))
		if err != nil {
			continue
		}
		if err := s.client.CloseChannel(deviceID, msg); err != nil {
			log.Warn().Err(err).Str("output", outputID).Msg("close failed")
		}
	}
}

func elapsedUS(start, now time.Time) uint32 {
	return uint32(now.Sub(start).Microseconds())
}
