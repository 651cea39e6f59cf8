package signer_test

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/metrics"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/wallet/address"
	"github/chapool/go-cardsigner/internal/wallet/device"
	"github/chapool/go-cardsigner/internal/wallet/signature"
	"github/chapool/go-cardsigner/internal/wallet/signer"
	"github/chapool/go-cardsigner/internal/wallet/txcodec"
)

const keyIndex = 1

var (
	ropsten  = config.Chain{ChainID: 3, ReplayProtection: true}
	testTo   = common.HexToAddress("0xd7a0a13c3206dacd44f3218c07ee809826facce5")
	oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func exampleTx() *txcodec.RawTransaction {
	return txcodec.NewRawTransaction(big.NewInt(0), big.NewInt(20_000_000_000), big.NewInt(21000), &testTo, oneEther, nil)
}

func serializedHex(t *testing.T, tx *txcodec.RawTransaction) string {
	t.Helper()

	enc, err := txcodec.Encode(tx, nil, nil)
	require.NoError(t, err)

	return "0x" + util.BytesToHex(enc)
}

func newService(t *testing.T, chain config.Chain) (signer.Service, *metrics.Metrics) {
	t.Helper()

	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	svc, err := signer.NewService(chain, m)
	require.NoError(t, err)

	return svc, m
}

func newCard(t *testing.T, seed string, opts ...device.EmulatorOption) *device.Card {
	t.Helper()

	emu, err := device.NewEmulator([]byte(seed), opts...)
	require.NoError(t, err)

	return device.NewCard(emu)
}

func TestPrepare(t *testing.T) {
	svc, m := newService(t, ropsten)
	tx := exampleTx()

	ex, err := svc.Prepare(context.Background(), serializedHex(t, tx))
	require.NoError(t, err)

	assert.Equal(t, signer.StageAwaitingSignature, ex.Stage)
	assert.Equal(t, tx, ex.Tx)
	assert.Equal(t, txcodec.TransactionHash(tx, big.NewInt(3)), ex.Hash)
	assert.Equal(t, txcodec.RecoveryIDUnset, ex.Components.RecoveryID)
	assert.False(t, ex.Done())
	assert.Empty(t, ex.Hex())
	assert.InDelta(t, 1, testutil.ToFloat64(m.ExchangesStarted), 0)

	_, err = svc.Prepare(context.Background(), "0xzz")
	assert.True(t, errors.Is(err, util.ErrInvalidHex))

	_, err = svc.Prepare(context.Background(), "c0")
	assert.True(t, errors.Is(err, txcodec.ErrMalformedTransaction))
}

func TestSignWithDevice(t *testing.T) {
	tests := []struct {
		name  string
		chain config.Chain
		opts  []device.EmulatorOption
	}{
		{"eip155", ropsten, nil},
		{"eip155 high s card", ropsten, []device.EmulatorOption{device.WithHighS()}},
		{"legacy", config.Chain{ChainID: 3}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, m := newService(t, tt.chain)
			card := newCard(t, "signing exchange card seed 000001", tt.opts...)

			ex, err := svc.Prepare(ctx, serializedHex(t, exampleTx()))
			require.NoError(t, err)

			require.NoError(t, svc.SignWithDevice(ctx, ex, card, keyIndex))
			require.True(t, ex.Done())
			assert.Equal(t, signer.StageAssembled, ex.Stage)
			assert.True(t, signature.IsCanonical(ex.Components.S))

			pub, err := card.PublicKey(ctx, keyIndex)
			require.NoError(t, err)
			from, err := address.DeriveAddress(pub)
			require.NoError(t, err)

			raw, err := hexutil.Decode(ex.Hex())
			require.NoError(t, err)
			gethTx := new(types.Transaction)
			require.NoError(t, gethTx.UnmarshalBinary(raw))
			assert.Equal(t, gethTx.Hash(), ex.TxHash())

			var txSigner types.Signer = types.HomesteadSigner{}
			if tt.chain.ReplayProtection {
				txSigner = types.NewEIP155Signer(big.NewInt(3))
				assert.True(t, gethTx.Protected())
			} else {
				assert.False(t, gethTx.Protected())
			}
			sender, err := types.Sender(txSigner, gethTx)
			require.NoError(t, err)
			assert.Equal(t, from, sender)

			assert.InDelta(t, 1, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues(metrics.OutcomeAssembled)), 0)
		})
	}
}

func TestCompleteWrongKey(t *testing.T) {
	ctx := context.Background()
	svc, m := newService(t, ropsten)
	signing := newCard(t, "signing exchange card seed 000001", device.WithKeys(1))
	claimed := newCard(t, "some other card seed 00000000002", device.WithKeys(1))

	ex, err := svc.Prepare(ctx, serializedHex(t, exampleTx()))
	require.NoError(t, err)

	der, err := signing.Sign(ctx, keyIndex, ex.Hash.Bytes())
	require.NoError(t, err)
	pub, err := claimed.PublicKey(ctx, keyIndex)
	require.NoError(t, err)

	err = svc.Complete(ctx, ex, pub, der)
	require.Error(t, err)
	assert.True(t, errors.Is(err, txcodec.ErrRecovery))
	assert.Equal(t, signer.StageFailed, ex.Stage)
	assert.Equal(t, signer.StageCanonicalized, ex.FailedAt)
	assert.Equal(t, txcodec.RecoveryIDUnset, ex.Components.RecoveryID)
	assert.Equal(t, err, ex.Err)
	assert.Nil(t, ex.Signed)

	assert.InDelta(t, 1, testutil.ToFloat64(m.RecoveryFailures), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("Canonicalized")), 0)

	// a failed exchange is never resumed
	err = svc.Complete(ctx, ex, pub, der)
	assert.True(t, errors.Is(err, signer.ErrStageOrder))
}

func TestCompleteMalformedInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, ropsten)
	card := newCard(t, "signing exchange card seed 000001", device.WithKeys(1))
	pub, err := card.PublicKey(ctx, keyIndex)
	require.NoError(t, err)

	ex, err := svc.Prepare(ctx, serializedHex(t, exampleTx()))
	require.NoError(t, err)
	err = svc.Complete(ctx, ex, pub, []byte{0x31, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01})
	assert.True(t, errors.Is(err, signature.ErrSignatureFormat))
	assert.Equal(t, signer.StageAwaitingSignature, ex.FailedAt)

	ex, err = svc.Prepare(ctx, serializedHex(t, exampleTx()))
	require.NoError(t, err)
	err = svc.Complete(ctx, ex, append([]byte{0x04}, pub...), []byte{0x30})
	assert.True(t, errors.Is(err, address.ErrMalformedKey))
	assert.Equal(t, signer.StageFailed, ex.Stage)
}

func TestCompleteTwice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, ropsten)
	card := newCard(t, "signing exchange card seed 000001")

	ex, err := svc.Prepare(ctx, serializedHex(t, exampleTx()))
	require.NoError(t, err)
	require.NoError(t, svc.SignWithDevice(ctx, ex, card, keyIndex))

	err = svc.SignWithDevice(ctx, ex, card, keyIndex)
	assert.True(t, errors.Is(err, signer.ErrStageOrder))
	assert.Equal(t, signer.StageAssembled, ex.Stage)

	err = svc.Complete(ctx, nil, nil, nil)
	assert.True(t, errors.Is(err, signer.ErrStageOrder))
}

func TestSignWithDeviceFailure(t *testing.T) {
	ctx := context.Background()
	svc, m := newService(t, ropsten)
	card := newCard(t, "signing exchange card seed 000001")

	ex, err := svc.Prepare(ctx, serializedHex(t, exampleTx()))
	require.NoError(t, err)

	// a fresh card allocates slot 1 first
	err = svc.SignWithDevice(ctx, ex, card, 3)
	assert.True(t, errors.Is(err, device.ErrKeyNotFound))
	assert.Equal(t, signer.StageFailed, ex.Stage)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("AwaitingSignature")), 0)
}

func transactRequest(t *testing.T, tx *txcodec.RawTransaction) *signer.TransactRequest {
	t.Helper()

	return &signer.TransactRequest{
		From:       "0x1be31a94361a391bbafb2a4ccd704f57dc04d4bb",
		To:         strings.ToLower(tx.To.Hex()),
		Nonce:      hexutil.EncodeBig(tx.Nonce),
		GasPrice:   hexutil.EncodeBig(tx.GasPrice),
		GasLimit:   hexutil.EncodeBig(tx.GasLimit),
		Value:      hexutil.EncodeBig(tx.Value),
		Serialized: serializedHex(t, tx),
		Hash:       txcodec.TransactionHash(tx, big.NewInt(3)).Hex(),
	}
}

func TestVerifyTransactionHash(t *testing.T) {
	ctx := context.Background()
	svc, m := newService(t, ropsten)
	tx := exampleTx()

	require.NoError(t, svc.VerifyTransactionHash(ctx, transactRequest(t, tx)))

	t.Run("leading zero quantities", func(t *testing.T) {
		req := transactRequest(t, tx)
		req.GasLimit = "0x005208"
		require.NoError(t, svc.VerifyTransactionHash(ctx, req))
	})

	t.Run("tampered serialization", func(t *testing.T) {
		req := transactRequest(t, tx)
		tampered := txcodec.NewRawTransaction(tx.Nonce, tx.GasPrice, tx.GasLimit, tx.To, big.NewInt(2), nil)
		req.Serialized = serializedHex(t, tampered)

		err := svc.VerifyTransactionHash(ctx, req)
		assert.True(t, errors.Is(err, signer.ErrHashMismatch))
	})

	t.Run("tampered fields", func(t *testing.T) {
		req := transactRequest(t, tx)
		req.Value = "0x1"

		err := svc.VerifyTransactionHash(ctx, req)
		assert.True(t, errors.Is(err, signer.ErrHashMismatch))
	})

	t.Run("hash over unscoped encoding", func(t *testing.T) {
		req := transactRequest(t, tx)
		req.Hash = txcodec.TransactionHash(tx, nil).Hex()

		err := svc.VerifyTransactionHash(ctx, req)
		assert.True(t, errors.Is(err, signer.ErrHashMismatch))
	})

	t.Run("invalid request", func(t *testing.T) {
		req := transactRequest(t, tx)
		req.To = "0x1234"

		err := svc.VerifyTransactionHash(ctx, req)
		require.Error(t, err)
		assert.False(t, errors.Is(err, signer.ErrHashMismatch))

		assert.Error(t, svc.VerifyTransactionHash(ctx, nil))
	})

	assert.InDelta(t, 3, testutil.ToFloat64(m.HashMismatches), 0)
}

func TestTransactionToken(t *testing.T) {
	serialized := []byte{0xc0}
	token := signer.TransactionToken(serialized)

	assert.Len(t, token, 64)
	assert.Equal(t, strings.ToLower(token), token)
	assert.Equal(t, crypto.Keccak256Hash(serialized).Hex()[2:], token)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "Decoded", signer.StageDecoded.String())
	assert.Equal(t, "RecoveryIDResolved", signer.StageRecoveryIDResolved.String())
	assert.Equal(t, "Failed", signer.StageFailed.String())
	assert.Equal(t, "Unknown", signer.Stage(42).String())
}

func TestNewServiceRequiresChainID(t *testing.T) {
	_, err := signer.NewService(config.Chain{ReplayProtection: true}, nil)
	require.Error(t, err)
}
