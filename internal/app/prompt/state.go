// Package prompt sequences playback of a list of audio prompts over a
// telephony channel, with stop handling, per-sound post-silence delays
// and hangup detection.
package prompt

// State represents the session lifecycle state.
type State int

const (
	StateInit       State = iota // Waiting for the signaling client
	StateProcessing              // Client ready, waiting for the play command
	StatePlaying                 // Walking the resolved playlist
	StateDone                    // Terminal; outcome delivered
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateProcessing:
		return "processing"
	case StatePlaying:
		return "playing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
