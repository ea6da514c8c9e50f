package prompt

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/telq/promptseq/internal/domain/sound"
	"github.com/telq/promptseq/internal/signaling"
)

// Result is the single terminal outcome of a play invocation.
type Result struct {
	Finished bool  // true: full sequence completed; false: stopped early
	Err      error // non-nil on bootstrap failure, hangup or playback failure
}

// Options carries the collaborators a session needs to reach the
// signaling layer.
type Options struct {
	Factory signaling.ClientFactory
	Params  signaling.ConnectionParams
	AppID   string
	Logger  *zerolog.Logger // defaults to the global logger
}

// Player plays one prompt sequence on one channel. It wraps a single
// session; a new Player is needed for every sequence.
type Player struct {
	m        *machine
	playOnce sync.Once
}

// New creates a Player for the given sounds and channel and starts the
// session bootstrap: the hangup subscription is installed and the
// signaling client is requested in the background. Replacements are
// applied to {name} placeholders in media references when playback is
// requested.
func New(sounds []sound.Sound, channel signaling.Channel, replacements map[string]string, opts Options) *Player {
	m := newMachine(sounds, channel, replacements, opts)
	m.start()
	return &Player{m: m}
}

// Play requests playback of the sequence and returns a channel that
// delivers the session's single Result: Finished true when every entry
// played, false when stopped early, or an error. Play returns
// immediately; it is safe to call before the bootstrap completes, the
// command is queued until the session can act on it. Repeated calls
// return the same channel.
func (p *Player) Play() <-chan Result {
	p.playOnce.Do(func() {
		p.m.post(event{typ: evPlay})
	})
	return p.m.result
}

// Stop requests cancellation of the sequence and returns immediately.
// The active entry is abandoned only if it is skipable; otherwise it
// finishes naturally and the remaining skipable entries and delays are
// suppressed. Calling Stop more than once has no further effect.
func (p *Player) Stop() {
	p.m.post(event{typ: evStop})
}
