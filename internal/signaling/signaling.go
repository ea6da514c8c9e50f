// Package signaling defines the capability surface the prompt sequencer
// consumes from the telephony signaling layer. Implementations live in
// infra packages or in the embedding application.
package signaling

import "context"

// ConnectionParams holds the signaling endpoint connection parameters.
type ConnectionParams struct {
	URL      string // Endpoint URL
	Username string
	Password string
}

// ClientFactory acquires a signaling client for an application.
// The call may block on network I/O; it fails on an unreachable
// endpoint or bad credentials.
type ClientFactory interface {
	GetClient(ctx context.Context, params ConnectionParams, appID string) (Client, error)
}

// Client is a connected signaling client.
type Client interface {
	// Playback constructs a new handle representing one playback
	// operation. No I/O happens until the handle is passed to
	// Channel.Play.
	Playback() PlaybackHandle
}

// Channel is one telephony channel (a single call leg).
type Channel interface {
	// Play starts audio output of the given media resource on the
	// channel, tracked by pb. Completion is signaled through the
	// handle's finished subscription, not through the return value.
	Play(ctx context.Context, media string, pb PlaybackHandle) error

	// OnHangup subscribes to the one-shot hangup signal emitted when
	// the remote party or the channel itself goes away.
	OnHangup(fn func()) Subscription
}

// PlaybackHandle tracks one in-flight playback operation.
type PlaybackHandle interface {
	// OnFinished subscribes to the one-shot signal emitted when media
	// output completes.
	OnFinished(fn func()) Subscription

	// Stop requests early termination of the playback. The finished
	// signal is still expected to fire afterwards.
	Stop(ctx context.Context) error
}

// Subscription is a disposable handle returned by every subscribe
// operation. Cancel detaches the callback and is safe to call more
// than once.
type Subscription interface {
	Cancel()
}
