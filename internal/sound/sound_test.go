package sound

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestBell_RingsPerCue(t *testing.T) {
	var buf bytes.Buffer
	b := NewBell(&buf)

	assert.NoError(t, b.Play(CueAlert))
	assert.Equal(t, "\a\a", buf.String())

	buf.Reset()
	assert.NoError(t, b.Play(CueChime))
	assert.Equal(t, "\a", buf.String())
}

func TestBell_ReportsWriteFailure(t *testing.T) {
	assert.Error(t, NewBell(failingWriter{}).Play(CueChime))
	assert.Error(t, NewBell(nil).Play(CueChime))
	assert.NoError(t, Mute{}.Play(CueAlert))
}
