package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_EmitterReachesHistory(t *testing.T) {
	b, err := NewInMemoryBus()
	require.NoError(t, err)

	h := NewHistory(2)
	h.Register(b, "history")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()
	<-b.Running()

	em := NewEmitter(b.Publisher)
	require.NoError(t, em.Publish(TypeConnectionChanged, ConnectionChanged{Status: "connecting", At: time.Now()}))
	require.NoError(t, em.Publish(TypeConnectionChanged, ConnectionChanged{Status: "connected", At: time.Now()}))
	require.NoError(t, em.Publish(TypeCandidatePublished, CandidatePublished{BuildID: "abc-123"}))

	require.Eventually(t, func() bool { return len(h.Entries()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		entries := h.Entries()
		return entries[len(entries)-1].Type == TypeCandidatePublished
	}, 2*time.Second, 10*time.Millisecond)

	entries := h.Entries()
	var ev CandidatePublished
	require.NoError(t, entries[1].Decode(&ev))
	require.Equal(t, "abc-123", ev.BuildID)
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var em *Emitter
	require.NoError(t, em.Publish(TypeButtonChanged, ButtonChanged{Pressed: true}))
	em.Emit(TypeButtonChanged, ButtonChanged{Pressed: true})
	require.Nil(t, NewEmitter(nil))
}

func TestEnvelope_DecodeErrors(t *testing.T) {
	_, err := NewEnvelope("", nil)
	require.Error(t, err)

	env, err := NewEnvelope(TypeDispatchAbandoned, nil)
	require.NoError(t, err)
	var ev DispatchAbandoned
	require.Error(t, env.Decode(&ev))

	_, err = DecodeEnvelope([]byte("{"))
	require.Error(t, err)
}
