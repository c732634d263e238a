// Package sound plays the cosmetic alert and chime cues. Playback is best
// effort: callers are expected to ignore returned errors.
package sound

import (
	"fmt"
	"io"
	"strings"
)

// Cue selects which sound to play.
type Cue int

const (
	// CueAlert accompanies a blocking order.
	CueAlert Cue = iota
	// CueChime accompanies an ambient toast.
	CueChime
)

// Player plays a cue.
type Player interface {
	Play(cue Cue) error
}

// Bell rings the terminal bell on the wrapped writer. An alert rings twice.
type Bell struct {
	w io.Writer
}

// NewBell returns a Bell writing to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

// Play writes the BEL sequence for cue.
func (b *Bell) Play(cue Cue) error {
	if b == nil || b.w == nil {
		return fmt.Errorf("playing cue %d: no output", cue)
	}
	rings := 1
	if cue == CueAlert {
		rings = 2
	}
	if _, err := io.WriteString(b.w, strings.Repeat("\a", rings)); err != nil {
		return fmt.Errorf("playing cue %d: %w", cue, err)
	}
	return nil
}

// Mute is a Player that does nothing.
type Mute struct{}

// Play implements Player.
func (Mute) Play(Cue) error { return nil }
