// Package loopback provides a signaling driver that simulates media
// playback with timers. It is used for dry runs of prompt sequences
// without a telephony endpoint, and by tests that need a full driver.
package loopback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/telq/promptseq/internal/signaling"
)

// Settings configures the loopback driver.
type Settings struct {
	DefaultDurationMs int            `yaml:"default_duration_ms" mapstructure:"default_duration_ms" default:"1000" validate:"gte=0"`
	MediaDurationsMs  map[string]int `yaml:"media_durations_ms" mapstructure:"media_durations_ms"`
	ConnectDelayMs    int            `yaml:"connect_delay_ms" mapstructure:"connect_delay_ms" validate:"gte=0"`
}

// ParseSettings decodes driver settings from the free-form config map.
func ParseSettings(raw map[string]any) (Settings, error) {
	var s Settings
	if err := mapstructure.Decode(raw, &s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to decode loopback settings")
	}
	if err := defaults.Set(&s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(&s); err != nil {
		return Settings{}, errors.Wrap(err, "invalid loopback settings")
	}
	return s, nil
}

// Driver is the loopback signaling driver. It acts as its own client
// factory and creates channels that play media on simulated time.
type Driver struct {
	settings Settings
}

// New creates a loopback driver with the given settings.
func New(settings Settings) *Driver {
	return &Driver{settings: settings}
}

// GetClient implements signaling.ClientFactory. Connection is
// simulated; an optional delay mimics the endpoint handshake.
func (d *Driver) GetClient(ctx context.Context, params signaling.ConnectionParams, appID string) (signaling.Client, error) {
	if delay := time.Duration(d.settings.ConnectDelayMs) * time.Millisecond; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "client acquisition canceled")
		}
	}
	zlog.Info().Str("url", params.URL).Str("app", appID).Msg("loopback signaling client connected")
	return &client{}, nil
}

// NewChannel creates a simulated channel.
func (d *Driver) NewChannel() *Channel {
	return &Channel{settings: d.settings}
}

type client struct{}

func (c *client) Playback() signaling.PlaybackHandle {
	return &playback{}
}

// Channel is a simulated telephony channel. Playback of a media
// reference "finishes" after its configured duration.
type Channel struct {
	settings Settings

	mu      sync.Mutex
	hangups []*subscription
}

// Play implements signaling.Channel. The handle must come from a
// loopback client.
func (c *Channel) Play(_ context.Context, media string, pb signaling.PlaybackHandle) error {
	p, ok := pb.(*playback)
	if !ok {
		return errors.Newf("foreign playback handle %T", pb)
	}

	d := time.Duration(c.settings.DefaultDurationMs) * time.Millisecond
	if ms, ok := c.settings.MediaDurationsMs[media]; ok {
		d = time.Duration(ms) * time.Millisecond
	}

	zlog.Info().Str("media", media).Dur("duration", d).Msg("loopback playback started")
	p.start(media, d)
	return nil
}

// OnHangup implements signaling.Channel.
func (c *Channel) OnHangup(fn func()) signaling.Subscription {
	sub := newSubscription(fn)
	c.mu.Lock()
	c.hangups = append(c.hangups, sub)
	c.mu.Unlock()
	return sub
}

// HangUp simulates the remote party going away, firing every active
// hangup subscription once.
func (c *Channel) HangUp() {
	c.mu.Lock()
	subs := append([]*subscription{}, c.hangups...)
	c.hangups = nil
	c.mu.Unlock()

	zlog.Info().Msg("loopback channel hung up")
	for _, sub := range subs {
		sub.fire()
	}
}

// playback simulates one media playback operation.
type playback struct {
	mu    sync.Mutex
	media string
	sub   *subscription
	timer *time.Timer
	ended bool
}

func (p *playback) OnFinished(fn func()) signaling.Subscription {
	sub := newSubscription(fn)
	p.mu.Lock()
	p.sub = sub
	p.mu.Unlock()
	return sub
}

// Stop implements signaling.PlaybackHandle: the timer is canceled and
// the finished signal fires immediately, like a driver cutting off
// media output.
func (p *playback) Stop(_ context.Context) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	media := p.media
	p.mu.Unlock()

	zlog.Info().Str("media", media).Msg("loopback playback stopped")
	p.finish()
	return nil
}

func (p *playback) start(media string, d time.Duration) {
	p.mu.Lock()
	p.media = media
	p.timer = time.AfterFunc(d, p.finish)
	p.mu.Unlock()
}

func (p *playback) finish() {
	p.mu.Lock()
	if p.ended {
		p.mu.Unlock()
		return
	}
	p.ended = true
	sub := p.sub
	p.mu.Unlock()

	if sub != nil {
		sub.fire()
	}
}

// subscription is a one-shot disposable callback registration.
type subscription struct {
	mu sync.Mutex
	fn func()
}

func newSubscription(fn func()) *subscription {
	return &subscription{fn: fn}
}

// Cancel implements signaling.Subscription. Safe to call repeatedly.
func (s *subscription) Cancel() {
	s.mu.Lock()
	s.fn = nil
	s.mu.Unlock()
}

func (s *subscription) fire() {
	s.mu.Lock()
	fn := s.fn
	s.fn = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
