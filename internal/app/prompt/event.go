package prompt

import "github.com/telq/promptseq/internal/signaling"

// eventType represents an input to the session state machine. Commands
// arrive from the facade, the rest from asynchronous collaborators or
// from the machine itself.
type eventType int

const (
	evPlay             eventType = iota // play command
	evStop                              // stop command
	evClientReady                       // signaling client acquired
	evClientError                       // signaling client acquisition failed
	evPlaybackFinished                  // active playback reported finished
	evPlaybackError                     // playback start failed
	evHangup                            // channel disconnected
	evNext                              // internal: advance to the next entry
)

// String returns the string representation of the event type.
func (e eventType) String() string {
	switch e {
	case evPlay:
		return "play"
	case evStop:
		return "stop"
	case evClientReady:
		return "client_ready"
	case evClientError:
		return "client_error"
	case evPlaybackFinished:
		return "playback_finished"
	case evPlaybackError:
		return "playback_error"
	case evHangup:
		return "hangup"
	case evNext:
		return "next"
	default:
		return "unknown"
	}
}

// event is one queue entry. client is set for evClientReady, err for
// evClientError and evPlaybackError.
type event struct {
	typ    eventType
	client signaling.Client
	err    error
}
