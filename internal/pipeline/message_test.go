package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	d := Data(42)
	require.False(t, d.IsClose())
	require.Equal(t, 42, d.Value())

	c := Close[int]()
	require.True(t, c.IsClose())
	require.Zero(t, c.Value())
}

func TestSendRecvCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := make(chan Message[string])
	require.ErrorIs(t, send(ctx, q, Data("x")), context.Canceled)

	_, err := recv(ctx, q)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSendRecv(t *testing.T) {
	q := make(chan Message[string], 2)
	ctx := context.Background()
	require.NoError(t, send(ctx, q, Data("a")))
	require.NoError(t, send(ctx, q, Close[string]()))

	m, err := recv(ctx, q)
	require.NoError(t, err)
	require.Equal(t, "a", m.Value())

	m, err = recv(ctx, q)
	require.NoError(t, err)
	require.True(t, m.IsClose())
}
