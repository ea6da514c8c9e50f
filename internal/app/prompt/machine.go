package prompt

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/telq/promptseq/internal/domain/sound"
	"github.com/telq/promptseq/internal/signaling"
)

// ErrHungUp is the terminal error delivered when the channel
// disconnects before the sequence completes.
var ErrHungUp = errors.New("channel hung up")

// eventBuffer sizes the session input queue. One session produces a
// handful of in-flight events at most; the buffer only has to absorb
// collaborator callbacks racing a command.
const eventBuffer = 16

// machine is one prompt playback session. All state below is owned by
// the run goroutine; collaborator callbacks and the facade communicate
// with it exclusively through post.
type machine struct {
	id  string
	log zerolog.Logger

	factory signaling.ClientFactory
	params  signaling.ConnectionParams
	appID   string
	channel signaling.Channel

	sounds       []sound.Sound
	replacements map[string]string

	events chan event
	done   chan struct{}
	result chan Result

	ctx    context.Context
	cancel context.CancelFunc

	state    State
	playlist []sound.Sound
	current  *sound.Sound
	stopped  bool
	client   signaling.Client
	active   signaling.PlaybackHandle

	// Commands that arrived before the state that can act on them.
	// Replayed in arrival order on state entry.
	deferredProcessing []event
	deferredPlaying    []event

	hangupSub   signaling.Subscription
	finishedSub signaling.Subscription
	delayTimer  *time.Timer
}

func newMachine(sounds []sound.Sound, channel signaling.Channel, replacements map[string]string, opts Options) *machine {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	base := zlog.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}
	return &machine{
		id:           id,
		log:          base.With().Str("session", id).Logger(),
		factory:      opts.Factory,
		params:       opts.Params,
		appID:        opts.AppID,
		channel:      channel,
		sounds:       sounds,
		replacements: replacements,
		events:       make(chan event, eventBuffer),
		done:         make(chan struct{}),
		result:       make(chan Result, 1),
		ctx:          ctx,
		cancel:       cancel,
		state:        StateInit,
	}
}

// start performs the init-state entry actions: subscribe to hangup,
// request the signaling client, and launch the session goroutine.
func (m *machine) start() {
	m.hangupSub = m.channel.OnHangup(func() {
		m.post(event{typ: evHangup})
	})

	go func() {
		client, err := m.factory.GetClient(m.ctx, m.params, m.appID)
		if err != nil {
			m.post(event{typ: evClientError, err: errors.Wrap(err, "failed to acquire signaling client")})
			return
		}
		m.post(event{typ: evClientReady, client: client})
	}()

	go m.run()
}

// post delivers an event to the session goroutine. Events arriving
// after the terminal state are dropped; a late command is a caller bug
// worth surfacing, a late collaborator signal is routine.
func (m *machine) post(ev event) {
	select {
	case <-m.done:
		if ev.typ == evPlay || ev.typ == evStop {
			m.log.Warn().Str("event", ev.typ.String()).Msg("command after terminal state, ignored")
		} else {
			m.log.Debug().Str("event", ev.typ.String()).Msg("event after terminal state, ignored")
		}
	case m.events <- ev:
	}
}

// run consumes the input queue until the terminal state is reached.
func (m *machine) run() {
	for m.state != StateDone {
		m.dispatch(<-m.events)
	}
}

func (m *machine) dispatch(ev event) {
	m.log.Debug().Str("state", m.state.String()).Str("event", ev.typ.String()).Msg("dispatch")

	switch m.state {
	case StateInit:
		m.dispatchInit(ev)
	case StateProcessing:
		m.dispatchProcessing(ev)
	case StatePlaying:
		m.dispatchPlaying(ev)
	}
}

func (m *machine) dispatchInit(ev event) {
	switch ev.typ {
	case evPlay:
		m.deferredProcessing = append(m.deferredProcessing, ev)
	case evStop:
		m.deferredPlaying = append(m.deferredPlaying, ev)
	case evClientReady:
		m.client = ev.client
		m.enterState(StateProcessing, &m.deferredProcessing)
	case evClientError:
		m.terminate(Result{Err: ev.err})
	case evHangup:
		m.terminate(Result{Err: ErrHungUp})
	default:
		m.log.Debug().Str("event", ev.typ.String()).Msg("ignored in init")
	}
}

func (m *machine) dispatchProcessing(ev event) {
	switch ev.typ {
	case evPlay:
		resolved, err := sound.Resolve(m.sounds, m.replacements)
		if err != nil {
			m.terminate(Result{Err: errors.Wrap(err, "failed to build playlist")})
			return
		}
		m.playlist = resolved
		m.enterState(StatePlaying, &m.deferredPlaying)
		if m.state != StateDone {
			m.handleNext()
		}
	case evStop:
		m.deferredPlaying = append(m.deferredPlaying, ev)
	case evHangup:
		m.terminate(Result{Err: ErrHungUp})
	default:
		m.log.Debug().Str("event", ev.typ.String()).Msg("ignored in processing")
	}
}

func (m *machine) dispatchPlaying(ev event) {
	switch ev.typ {
	case evNext:
		m.handleNext()
	case evPlaybackFinished:
		if m.active == nil {
			// Late signal from an already-released handle.
			m.log.Debug().Msg("stray playback finished, ignored")
			return
		}
		m.handleFinished()
	case evStop:
		m.handleStop()
	case evPlaybackError:
		m.terminate(Result{Err: ev.err})
	case evHangup:
		m.terminate(Result{Err: ErrHungUp})
	default:
		m.log.Debug().Str("event", ev.typ.String()).Msg("ignored in playing")
	}
}

// enterState transitions to next and replays the commands deferred
// until that state, in arrival order.
func (m *machine) enterState(next State, deferred *[]event) {
	m.log.Debug().Str("from", m.state.String()).Str("to", next.String()).Msg("state change")
	m.state = next

	pending := *deferred
	*deferred = nil
	for _, ev := range pending {
		if m.state != next {
			// A replayed command terminated the session.
			return
		}
		m.dispatch(ev)
	}
}

// handleNext pops the front playlist entry and starts its playback.
// Skipable entries are abandoned without playing once a stop was
// requested; non-skipable ones always play.
func (m *machine) handleNext() {
	m.delayTimer = nil

	if len(m.playlist) == 0 {
		m.handleFinished()
		return
	}

	s := m.playlist[0]
	m.playlist = m.playlist[1:]
	m.current = &s

	if m.stopped && s.Skipable {
		m.log.Debug().Str("media", s.Media).Msg("skipping entry after stop")
		m.handleFinished()
		return
	}

	pb := m.client.Playback()
	m.active = pb
	m.finishedSub = pb.OnFinished(func() {
		m.post(event{typ: evPlaybackFinished})
	})

	m.log.Debug().Str("media", s.Media).Msg("starting playback")
	media := s.Media
	go func() {
		if err := m.channel.Play(m.ctx, media, pb); err != nil {
			m.post(event{typ: evPlaybackError, err: errors.Wrapf(err, "failed to start playback of %q", media)})
		}
	}()
}

// handleFinished advances past the current entry: terminate when the
// playlist is drained, otherwise continue immediately when stopped or
// after the entry's post-silence delay.
func (m *machine) handleFinished() {
	m.detachPlayback()

	if len(m.playlist) == 0 {
		m.terminate(Result{Finished: !m.stopped})
		return
	}

	if m.stopped {
		m.handleNext()
		return
	}

	delay := m.current.PostSilence
	if delay <= 0 {
		m.handleNext()
		return
	}
	m.log.Debug().Dur("delay", delay).Msg("post-silence delay")
	m.delayTimer = time.AfterFunc(delay, func() {
		m.post(event{typ: evNext})
	})
}

// handleStop marks the session stopped and cancels whatever is
// cancelable right now: a pending post-silence delay, or the active
// playback when the current entry is skipable.
func (m *machine) handleStop() {
	if m.stopped {
		return
	}
	m.stopped = true
	m.log.Debug().Msg("stop requested")

	if m.delayTimer != nil {
		fired := !m.delayTimer.Stop()
		m.delayTimer = nil
		if !fired {
			m.handleNext()
		}
		// If the timer already fired, its next event is in the queue.
		return
	}

	if m.current != nil && m.current.Skipable && m.active != nil {
		pb := m.active
		go func() {
			// Best effort: on failure the natural finished signal still
			// drives the sequence forward.
			if err := pb.Stop(m.ctx); err != nil {
				m.log.Debug().Err(err).Msg("playback stop failed, waiting for natural finish")
			}
		}()
	}
}

// detachPlayback releases the finished subscription for the active
// playback, if any. Safe to call repeatedly.
func (m *machine) detachPlayback() {
	if m.finishedSub != nil {
		m.finishedSub.Cancel()
		m.finishedSub = nil
	}
	m.active = nil
}

// terminate enters the terminal state: all subscriptions and timers
// are released and the single Result is delivered. Runs at most once
// per session because dispatch stops once the state is done.
func (m *machine) terminate(res Result) {
	m.detachPlayback()
	if m.hangupSub != nil {
		m.hangupSub.Cancel()
		m.hangupSub = nil
	}
	if m.delayTimer != nil {
		m.delayTimer.Stop()
		m.delayTimer = nil
	}

	m.state = StateDone
	m.cancel()

	switch {
	case res.Err != nil:
		m.log.Info().Err(res.Err).Msg("session errored")
	case res.Finished:
		m.log.Info().Msg("session finished")
	default:
		m.log.Info().Msg("session stopped")
	}

	m.result <- res
	close(m.done)
}
