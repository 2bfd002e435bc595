package chord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halfkbd/internal/keystroke"
)

func TestReplayEmpty(t *testing.T) {
	assert.Nil(t, Replay(nil, testBindings))
}

func TestReplayChordAndTap(t *testing.T) {
	events := []keystroke.Event{
		down("s", 0), down("t", 10), up("s", 160), up("t", 175),
		down("a", 500), up("a", 530),
	}

	strokes := Replay(events, testBindings)
	require.Len(t, strokes, 2)
	assert.Equal(t, KindChord, strokes[0].Kind)
	assert.Equal(t, []string{"S-", "T-"}, strokes[0].Keys)
	assert.Equal(t, KindSingle, strokes[1].Kind)
	assert.Equal(t, []string{"A-", "*"}, strokes[1].Keys)
}

func TestReplayHeldKeyResolvesOnPoll(t *testing.T) {
	strokes := Replay([]keystroke.Event{down("h", 0), up("h", 300)}, testBindings)

	require.Len(t, strokes, 1)
	assert.Equal(t, []string{"H-", "*"}, strokes[0].Keys)
	// First poll past StaleAfter, on the DelayTime grid.
	assert.Equal(t, at(260), strokes[0].Time)
}

func TestReplayRollingPresses(t *testing.T) {
	events := []keystroke.Event{down("a", 0), down("s", 60), up("a", 90), up("s", 150)}

	strokes := Replay(events, testBindings)
	assert.Equal(t, [][]string{{"A-", "*"}, {"S-", "*"}}, keysOf(strokes))
}

func TestReplayFlushesUnreleasedKeys(t *testing.T) {
	strokes := Replay([]keystroke.Event{down("s", 0), down("t", 10)}, testBindings)
	assert.Equal(t, [][]string{{"S-", "*"}, {"T-", "*"}}, keysOf(strokes))
}
