package signer

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/go-cardsigner/internal/config"
	"github/chapool/go-cardsigner/internal/metrics"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/wallet/address"
	"github/chapool/go-cardsigner/internal/wallet/signature"
	"github/chapool/go-cardsigner/internal/wallet/txcodec"
)

type service struct {
	chainID  *big.Int
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewService creates a new signing exchange Service for the given chain. m may be nil.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(chain config.Chain, m *metrics.Metrics) (Service, error) {
	if chain.ReplayProtection && chain.ChainID == 0 {
		return nil, errors.New("replay protection requires a non zero chain id")
	}

	return &service{
		chainID:  chain.SigningChainID(),
		metrics:  m,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (s *service) logger(ctx context.Context, ex *Exchange) zerolog.Logger {
	l := util.LogFromContext(ctx).With().Str("component", "signer")
	if ex != nil {
		l = l.Str("exchange_id", ex.ID.String())
	}

	return l.Logger()
}

func (s *service) Prepare(ctx context.Context, serialized string) (*Exchange, error) {
	tx, err := txcodec.Decode(util.Strip0x(serialized))
	if err != nil {
		return nil, err
	}

	ex := newExchange(tx, s.chainID)
	log := s.logger(ctx, ex)

	ex.Hash = txcodec.TransactionHash(tx, ex.ChainID)
	if err := ex.advance(StageHashComputed); err != nil {
		return nil, err
	}

	if err := ex.advance(StageAwaitingSignature); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ExchangesStarted.Inc()
	}

	log.Debug().
		Str("hash", ex.Hash.Hex()).
		Bool("contract_creation", tx.IsContractCreation()).
		Msg("Signing exchange prepared")

	return ex, nil
}

func (s *service) Complete(ctx context.Context, ex *Exchange, publicKey, derSignature []byte) error {
	if ex == nil {
		return errors.Wrap(ErrStageOrder, "nil exchange")
	}

	log := s.logger(ctx, ex)
	start := time.Now()

	if err := s.complete(ex, publicKey, derSignature); err != nil {
		// a stage order violation leaves the exchange where it was
		if errors.Is(err, ErrStageOrder) {
			log.Warn().Err(err).Msg("Signing exchange used out of order")
			return err
		}

		_ = ex.fail(err)
		s.recordFailure(ex.FailedAt, err)

		log.Error().Err(err).Str("stage", ex.FailedAt.String()).Msg("Signing exchange failed")
		return err
	}

	if s.metrics != nil {
		s.metrics.ExchangesTotal.WithLabelValues(metrics.OutcomeAssembled).Inc()
		s.metrics.AssembleDuration.Observe(time.Since(start).Seconds())
	}

	log.Info().
		Str("tx_hash", ex.Signed.Hash.Hex()).
		Int("recovery_id", int(ex.Components.RecoveryID)).
		Msg("Signed transaction assembled")

	return nil
}

func (s *service) complete(ex *Exchange, publicKey, derSignature []byte) error {
	if ex.Stage != StageAwaitingSignature {
		return errors.Wrapf(ErrStageOrder, "exchange is %s, expected %s", ex.Stage, StageAwaitingSignature)
	}

	from, err := address.DeriveAddress(publicKey)
	if err != nil {
		return err
	}

	r, err := signature.ExtractR(derSignature)
	if err != nil {
		return err
	}
	rawS, err := signature.ExtractS(derSignature)
	if err != nil {
		return err
	}
	ex.Components.R = r
	ex.Components.S = rawS
	if err := ex.advance(StageSignatureReceived); err != nil {
		return err
	}

	canonicalS, err := signature.Canonicalize(r, rawS)
	if err != nil {
		return err
	}
	ex.Components.S = canonicalS
	if err := ex.advance(StageCanonicalized); err != nil {
		return err
	}

	id, err := txcodec.RecoverID(publicKey, ex.Hash.Bytes(), r, canonicalS)
	if err != nil {
		return err
	}
	ex.Components.RecoveryID = id
	if s.metrics != nil {
		s.metrics.RecoveryAttempts.Observe(float64(id + 1))
	}
	if err := ex.advance(StageRecoveryIDResolved); err != nil {
		return err
	}

	signed, err := txcodec.Finalize(ex.Tx, ex.Components, ex.ChainID)
	if err != nil {
		return err
	}

	if err := checkSender(signed, from); err != nil {
		return err
	}

	ex.Signed = signed
	return ex.advance(StageAssembled)
}

// checkSender decodes the assembled bytes with go-ethereum and compares the recovered sender.
func checkSender(signed *txcodec.SignedTransaction, want common.Address) error {
	gethTx := new(types.Transaction)
	if err := gethTx.UnmarshalBinary(signed.Raw); err != nil {
		return errors.Wrap(err, "failed to decode assembled transaction")
	}

	var txSigner types.Signer = types.HomesteadSigner{}
	if signed.ChainID != nil {
		txSigner = types.NewEIP155Signer(signed.ChainID)
	}

	got, err := types.Sender(txSigner, gethTx)
	if err != nil {
		return errors.Wrap(ErrSenderMismatch, err.Error())
	}

	if got != want {
		return errors.Wrapf(ErrSenderMismatch, "recovered %s, expected %s", got.Hex(), want.Hex())
	}

	return nil
}

func (s *service) SignWithDevice(ctx context.Context, ex *Exchange, dev Device, keyIndex int) error {
	if ex == nil {
		return errors.Wrap(ErrStageOrder, "nil exchange")
	}
	if ex.Stage != StageAwaitingSignature {
		return errors.Wrapf(ErrStageOrder, "exchange is %s, expected %s", ex.Stage, StageAwaitingSignature)
	}

	log := s.logger(ctx, ex).With().Int("key_index", keyIndex).Logger()

	publicKey, err := dev.PublicKey(ctx, keyIndex)
	if err != nil {
		s.recordFailure(ex.Stage, err)
		return ex.fail(errors.Wrap(err, "failed to read public key from device"))
	}

	sig, err := dev.Sign(ctx, keyIndex, ex.Hash.Bytes())
	if err != nil {
		s.recordFailure(ex.Stage, err)
		return ex.fail(errors.Wrap(err, "failed to sign with device"))
	}

	log.Debug().Int("signature_length", len(sig)).Msg("Device returned signature")

	return s.Complete(ctx, ex, publicKey, sig)
}

func (s *service) recordFailure(stage Stage, err error) {
	if s.metrics == nil {
		return
	}

	s.metrics.ExchangeFailed(stage.String())
	if errors.Is(err, txcodec.ErrRecovery) {
		s.metrics.RecoveryFailures.Inc()
	}
}
