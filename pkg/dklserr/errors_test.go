package dklserr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := dklserr.New(dklserr.KindTimeout, "dkg.round1", "party 2")
	require.True(t, errors.Is(err, dklserr.Timeout))
	require.False(t, errors.Is(err, dklserr.Relay))
}

func TestErrorAsUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := dklserr.Wrap(dklserr.KindRelay, "relay.put", "", cause)

	var derr *dklserr.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, dklserr.KindRelay, derr.Kind)
	require.ErrorIs(t, err, cause)
}
