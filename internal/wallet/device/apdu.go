package device

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Transceiver exchanges one command APDU for one response APDU with a signing element.
type Transceiver interface {
	Transceive(ctx context.Context, command []byte) ([]byte, error)
}

const (
	claISO = 0x00

	insSelect            = 0xA4
	insGenerateKeyPair   = 0x02
	insGetKeyInfo        = 0x16
	insGenerateSignature = 0x18

	p1SelectByName = 0x04

	counterLength = 4
	// uncompressedKeyLength is a 0x04 prefix followed by x and y.
	uncompressedKeyLength = 65
	uncompressedPrefix    = 0x04
	hashLength            = 32
)

// StatusWord is the two byte trailer of a response APDU.
type StatusWord uint16

const (
	SWSuccess             StatusWord = 0x9000
	SWWrongLength         StatusWord = 0x6700
	SWConditionsNotMet    StatusWord = 0x6985
	SWWrongData           StatusWord = 0x6A80
	SWFileNotFound        StatusWord = 0x6A82
	SWKeyNotFound         StatusWord = 0x6A88
	SWInsNotSupported     StatusWord = 0x6D00
	SWClassNotSupported   StatusWord = 0x6E00
	SWNotEnoughMemory     StatusWord = 0x6A84
	SWIncorrectParameters StatusWord = 0x6A86
)

func (sw StatusWord) String() string {
	return fmt.Sprintf("%04X", uint16(sw))
}

var (
	ErrTransport    = errors.New("device transport failure")
	ErrStatus       = errors.New("device returned an error status")
	ErrKeyNotFound  = errors.New("no key in the requested slot")
	ErrResponseData = errors.New("malformed device response")
)

// AppletID selects the blockchain security applet.
var AppletID = []byte{0xD2, 0x76, 0x00, 0x00, 0x04, 0x15, 0x02, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01}

// command builds a case 4 APDU, or case 2 when data is empty.
func command(ins, p1, p2 byte, data []byte) []byte {
	apdu := []byte{claISO, ins, p1, p2}
	if len(data) > 0 {
		apdu = append(apdu, byte(len(data)))
		apdu = append(apdu, data...)
	}

	return append(apdu, 0x00)
}

// splitResponse separates response data from the status word and maps failures to errors.
func splitResponse(resp []byte) ([]byte, error) {
	if len(resp) < 2 { //nolint:mnd
		return nil, errors.Wrapf(ErrResponseData, "response of %d bytes has no status word", len(resp))
	}

	n := len(resp) - 2 //nolint:mnd
	sw := StatusWord(binary.BigEndian.Uint16(resp[n:]))

	switch sw {
	case SWSuccess:
		return resp[:n], nil
	case SWKeyNotFound:
		return nil, errors.Wrapf(ErrKeyNotFound, "status %s", sw)
	default:
		return nil, errors.Wrapf(ErrStatus, "status %s", sw)
	}
}

func withStatus(data []byte, sw StatusWord) []byte {
	return binary.BigEndian.AppendUint16(data, uint16(sw))
}
