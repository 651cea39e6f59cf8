package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-cardsigner/internal/util"
	"github/chapool/go-cardsigner/internal/wallet/txcodec"
)

const hexBase = 16

// TransactionToken is the lowercase hex Keccak-256 of the serialized transaction. It is handed
// to the signing side out of band and identifies the pending transaction.
func TransactionToken(serialized []byte) string {
	return common.Bytes2Hex(crypto.Keccak256(serialized))
}

func (s *service) VerifyTransactionHash(ctx context.Context, req *TransactRequest) error {
	log := s.logger(ctx, nil)

	if req == nil {
		return errors.New("transact request is nil")
	}

	if err := s.validate.Struct(req); err != nil {
		return errors.Wrap(err, "invalid transact request")
	}

	claimed, err := util.DecodePrefixedHex(req.Hash)
	if err != nil {
		return errors.Wrap(err, "failed to decode claimed hash")
	}
	claimedHash := common.BytesToHash(claimed)

	fromFields, err := requestTransaction(req)
	if err != nil {
		return err
	}

	decoded, err := txcodec.Decode(util.Strip0x(req.Serialized))
	if err != nil {
		return err
	}

	fieldsHash := txcodec.TransactionHash(fromFields, s.chainID)
	decodedHash := txcodec.TransactionHash(decoded, s.chainID)

	if fieldsHash != claimedHash || decodedHash != claimedHash {
		if s.metrics != nil {
			s.metrics.HashMismatches.Inc()
		}

		log.Warn().
			Str("claimed", claimedHash.Hex()).
			Str("from_fields", fieldsHash.Hex()).
			Str("from_serialized", decodedHash.Hex()).
			Msg("Transaction hash verification failed")

		return errors.Wrapf(ErrHashMismatch, "claimed %s, fields %s, serialized %s",
			claimedHash.Hex(), fieldsHash.Hex(), decodedHash.Hex())
	}

	return nil
}

// requestTransaction builds the plain ether transfer described by the request fields.
func requestTransaction(req *TransactRequest) (*txcodec.RawTransaction, error) {
	nonce, err := parseQuantity(req.Nonce, "nonce")
	if err != nil {
		return nil, err
	}
	gasPrice, err := parseQuantity(req.GasPrice, "gasPrice")
	if err != nil {
		return nil, err
	}
	gasLimit, err := parseQuantity(req.GasLimit, "gasLimit")
	if err != nil {
		return nil, err
	}
	value, err := parseQuantity(req.Value, "value")
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(req.To)

	return txcodec.NewRawTransaction(nonce, gasPrice, gasLimit, &to, value, nil), nil
}

// parseQuantity accepts hex with or without 0x and tolerates leading zero digits.
func parseQuantity(v, name string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(util.Strip0x(v), hexBase)
	if !ok {
		return nil, errors.Errorf("invalid %s quantity %q", name, v)
	}

	return n, nil
}
