package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDriver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv := NewStaticDriver(MockKey(KindAlbedo))

	require.NoError(t, drv.Connect(ctx))
	assert.True(t, drv.Connected())

	key, err := drv.PublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, MockKey(KindAlbedo), key)

	tx := Transaction{XDR: "AAAA", NetworkPassphrase: testPassphrase}
	signed, err := drv.SignTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx, signed)
	assert.Equal(t, []Transaction{tx}, drv.Signed())

	require.NoError(t, drv.Disconnect(ctx))
	assert.False(t, drv.Connected())

	connects, disconnects := drv.Calls()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestStaticDriver_Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	errStep := errors.New("step failed")

	drv := &StaticDriver{ConnectErr: errStep, KeyErr: errStep, SignErr: errStep, DisconnectErr: errStep}
	require.ErrorIs(t, drv.Connect(ctx), errStep)
	assert.False(t, drv.Connected())
	_, err := drv.PublicKey(ctx)
	require.ErrorIs(t, err, errStep)
	_, err = drv.SignTransaction(ctx, Transaction{})
	require.ErrorIs(t, err, errStep)
	require.ErrorIs(t, drv.Disconnect(ctx), errStep)
}

func TestStaticDriver_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	drv := NewStaticDriver(MockKey(KindFreighter))
	require.ErrorIs(t, drv.Connect(ctx), context.Canceled)
	_, err := drv.PublicKey(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMockKey(t *testing.T) {
	t.Parallel()
	assert.Len(t, MockKey(KindFreighter), 56)
	assert.NotEqual(t, MockKey(KindFreighter), MockKey(KindAlbedo))
}
