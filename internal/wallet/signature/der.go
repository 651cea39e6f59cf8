package signature

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	tagSequence = 0x30
	tagInteger  = 0x02

	longFormBit = 0x80
	// maxComponentLength allows a 32 byte integer plus one sign padding byte.
	maxComponentLength = 33
)

var ErrSignatureFormat = errors.New("malformed DER signature")

// ExtractR returns the r component of a DER signature with leading zero bytes removed.
func ExtractR(sig []byte) ([]byte, error) {
	r, _, err := split(sig)
	return r, err
}

// ExtractS returns the s component of a DER signature with leading zero bytes removed.
func ExtractS(sig []byte) ([]byte, error) {
	_, s, err := split(sig)
	return s, err
}

// Parse extracts r and s from a DER signature and returns them with s in its canonical low-S form.
func Parse(sig []byte) (r, s []byte, err error) {
	r, s, err = split(sig)
	if err != nil {
		return nil, nil, err
	}

	s, err = Canonicalize(r, s)
	if err != nil {
		return nil, nil, err
	}

	return r, s, nil
}

// split walks SEQUENCE { INTEGER r, INTEGER s }. The outer length is either a single byte or,
// when its high bit is set, the long form 0x81 followed by one length byte. Bytes after the
// sequence are ignored.
func split(sig []byte) (r, s []byte, err error) {
	if len(sig) < 2 {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "signature too short: %d bytes", len(sig))
	}

	if sig[0] != tagSequence {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "unexpected sequence tag 0x%02x", sig[0])
	}

	pos := 2
	seqLen := int(sig[1])
	if sig[1]&longFormBit != 0 {
		if sig[1] != longFormBit|1 {
			return nil, nil, errors.Wrapf(ErrSignatureFormat, "unsupported sequence length form 0x%02x", sig[1])
		}
		if len(sig) < 3 {
			return nil, nil, errors.Wrap(ErrSignatureFormat, "truncated sequence length")
		}
		seqLen = int(sig[2])
		pos = 3
	}

	if len(sig)-pos < seqLen {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "sequence length %d exceeds %d available bytes", seqLen, len(sig)-pos)
	}

	body := sig[pos : pos+seqLen]

	r, body, err = readInteger(body, "r")
	if err != nil {
		return nil, nil, err
	}

	s, body, err = readInteger(body, "s")
	if err != nil {
		return nil, nil, err
	}

	if len(body) != 0 {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "%d trailing bytes inside sequence", len(body))
	}

	return r, s, nil
}

func readInteger(b []byte, name string) (value, rest []byte, err error) {
	if len(b) < 2 {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "truncated integer %s", name)
	}

	if b[0] != tagInteger {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "unexpected tag 0x%02x for integer %s", b[0], name)
	}

	l := int(b[1])
	if l == 0 || l > maxComponentLength {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "invalid length %d for integer %s", l, name)
	}

	if len(b)-2 < l {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "integer %s needs %d bytes, %d available", name, l, len(b)-2)
	}

	raw := b[2 : 2+l]
	value = common.CopyBytes(common.TrimLeftZeroes(raw))

	if len(value) == 0 {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "integer %s is zero", name)
	}

	if len(value) > maxComponentLength-1 {
		return nil, nil, errors.Wrapf(ErrSignatureFormat, "integer %s exceeds 32 bytes", name)
	}

	return value, b[2+l:], nil
}
