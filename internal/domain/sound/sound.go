// Package sound provides the Sound domain entity and playlist resolution.
package sound

import (
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrUnresolvedReference is returned when a media placeholder has no
// entry in the replacement mapping.
var ErrUnresolvedReference = errors.New("unresolved media reference")

// Sound describes one audio prompt to play on a channel.
type Sound struct {
	Media       string        // Media resource identifier, may embed one {name} placeholder
	Skipable    bool          // A stop request may abandon this sound mid-playback
	PostSilence time.Duration // Silence inserted after this sound before the next one
}

// placeholderRe matches a single {name} token, non-greedy.
var placeholderRe = regexp.MustCompile(`\{(.+?)\}`)

// Resolve produces the playback queue for a declared sound list: each
// sound is copied and any {name} placeholder in its media reference is
// substituted from replacements. Input order is playback order. The
// input slice and mapping are never mutated.
//
// A placeholder with no mapping entry fails the whole resolution, so
// bad references surface before any playback starts.
func Resolve(sounds []Sound, replacements map[string]string) ([]Sound, error) {
	resolved := make([]Sound, 0, len(sounds))

	for _, s := range sounds {
		m := placeholderRe.FindStringSubmatchIndex(s.Media)
		if m != nil {
			name := s.Media[m[2]:m[3]]
			value, ok := replacements[name]
			if !ok {
				return nil, errors.Wrapf(ErrUnresolvedReference, "placeholder %q in %q", name, s.Media)
			}
			s.Media = s.Media[:m[0]] + value + s.Media[m[1]:]
		}
		resolved = append(resolved, s)
	}

	return resolved, nil
}
