package gpio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPull_Levels(t *testing.T) {
	require.Equal(t, High, PullUp.IdleLevel())
	require.Equal(t, Low, PullUp.PressedLevel())
	require.Equal(t, Low, PullDown.IdleLevel())
	require.Equal(t, High, PullDown.PressedLevel())
}

func TestParsePull(t *testing.T) {
	p, err := ParsePull("")
	require.NoError(t, err)
	require.Equal(t, PullUp, p)

	p, err = ParsePull(" Down ")
	require.NoError(t, err)
	require.Equal(t, PullDown, p)

	_, err = ParsePull("sideways")
	require.Error(t, err)
}

func TestSimButton_PressRelease(t *testing.T) {
	for _, pull := range []Pull{PullUp, PullDown} {
		b := NewSimButton(pull)
		require.False(t, b.Pressed())
		require.Equal(t, pull.IdleLevel(), b.Read())

		b.Press()
		require.True(t, b.Pressed())
		require.Equal(t, pull.PressedLevel(), b.Read())

		b.Release()
		require.False(t, b.Pressed())
	}
}

func TestSimPin_ToggleCountsWrites(t *testing.T) {
	p := NewSimPin(Low)
	require.Equal(t, High, p.Toggle())
	require.Equal(t, Low, p.Toggle())
	p.Set(High)
	require.Equal(t, High, p.Read())
	require.Equal(t, uint64(3), p.Writes())
}

func TestSimBoard(t *testing.T) {
	board, button, led := NewSimBoard(PullUp)
	require.NoError(t, board.Close())
	button.Press()
	require.Equal(t, Low, board.Button.Read())
	board.LED.Set(High)
	require.Equal(t, High, led.Read())
}
