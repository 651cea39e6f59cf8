package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github/chapool/go-cardsigner/internal/wallet/txcodec"
)

// Stage is the position of an Exchange in the signing flow.
type Stage int

const (
	StageDecoded Stage = iota
	StageHashComputed
	StageAwaitingSignature
	StageSignatureReceived
	StageCanonicalized
	StageRecoveryIDResolved
	StageAssembled
	StageFailed
)

var stageNames = [...]string{
	StageDecoded:            "Decoded",
	StageHashComputed:       "HashComputed",
	StageAwaitingSignature:  "AwaitingSignature",
	StageSignatureReceived:  "SignatureReceived",
	StageCanonicalized:      "Canonicalized",
	StageRecoveryIDResolved: "RecoveryIDResolved",
	StageAssembled:          "Assembled",
	StageFailed:             "Failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}

	return stageNames[s]
}

// Exchange is the state of one signing round trip. It is never resumed after a failure,
// a retry starts over with Prepare.
type Exchange struct {
	ID    uuid.UUID
	Stage Stage

	Tx *txcodec.RawTransaction
	// ChainID is nil when replay protection is disabled.
	ChainID *big.Int
	// Hash is the value the device signs.
	Hash common.Hash

	Components txcodec.SignatureComponents
	Signed     *txcodec.SignedTransaction

	// Err is the failure that moved the exchange to StageFailed.
	Err error
	// FailedAt is the last stage reached before the failure.
	FailedAt Stage
}

func newExchange(tx *txcodec.RawTransaction, chainID *big.Int) *Exchange {
	return &Exchange{
		ID:         uuid.New(),
		Stage:      StageDecoded,
		Tx:         tx,
		ChainID:    chainID,
		Components: txcodec.SignatureComponents{RecoveryID: txcodec.RecoveryIDUnset},
	}
}

// advance moves the exchange to its immediate successor stage.
func (e *Exchange) advance(to Stage) error {
	if e.Stage == StageFailed || to == StageFailed || to != e.Stage+1 {
		return errors.Wrapf(ErrStageOrder, "cannot move from %s to %s", e.Stage, to)
	}

	e.Stage = to
	return nil
}

// fail records err and aborts the exchange. It returns err for convenience.
func (e *Exchange) fail(err error) error {
	if e.Stage != StageFailed {
		e.FailedAt = e.Stage
		e.Stage = StageFailed
		e.Err = err
	}

	return err
}

// Done reports whether the exchange produced a signed transaction.
func (e *Exchange) Done() bool {
	return e.Stage == StageAssembled && e.Signed != nil
}

// Hex returns the 0x prefixed signed serialization, empty before assembly.
func (e *Exchange) Hex() string {
	if !e.Done() {
		return ""
	}

	return e.Signed.Hex()
}

// TxHash returns the hash of the signed serialization used to correlate the broadcast.
func (e *Exchange) TxHash() common.Hash {
	if !e.Done() {
		return common.Hash{}
	}

	return e.Signed.Hash
}
