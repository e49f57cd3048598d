package ot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/ot"
)

func TestObliviousTransferDeliversChosenMessage(t *testing.T) {
	setup, err := ot.NewSenderSetup()
	require.NoError(t, err)

	choice, err := ot.Choose(setup, 1)
	require.NoError(t, err)

	var m0, m1 [32]byte
	copy(m0[:], "message zero....................")
	copy(m1[:], "message one.....................")

	reply, err := ot.Encrypt(setup, choice.Public(), m0, m1)
	require.NoError(t, err)
	got, err := ot.Decrypt(setup, choice, reply)
	require.NoError(t, err)
	require.Equal(t, m1, got)
}

func TestObliviousTransferRejectsTamperedTag(t *testing.T) {
	setup, err := ot.NewSenderSetup()
	require.NoError(t, err)
	choice, err := ot.Choose(setup, 0)
	require.NoError(t, err)

	var m0, m1 [32]byte
	copy(m0[:], "message zero....................")
	copy(m1[:], "message one.....................")

	reply, err := ot.Encrypt(setup, choice.Public(), m0, m1)
	require.NoError(t, err)
	reply.Tag0[0] ^= 0xff

	_, err = ot.Decrypt(setup, choice, reply)
	require.Error(t, err)
}

func TestObliviousTransferRejectsBadChoiceBit(t *testing.T) {
	setup, err := ot.NewSenderSetup()
	require.NoError(t, err)
	_, err = ot.Choose(setup, 2)
	require.Error(t, err)
}
