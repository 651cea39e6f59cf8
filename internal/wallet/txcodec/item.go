package txcodec

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

type Kind uint8

const (
	KindString Kind = iota
	KindList
)

// Item is one element of the length-prefixed wire format: either a byte string or a list of items.
type Item struct {
	kind  Kind
	str   []byte
	items []Item
}

func String(b []byte) Item {
	return Item{kind: KindString, str: b}
}

func List(items ...Item) Item {
	return Item{kind: KindList, items: items}
}

func (it Item) Kind() Kind {
	return it.kind
}

// Bytes returns the payload of a string item, nil for lists.
func (it Item) Bytes() []byte {
	return it.str
}

// Items returns the children of a list item, nil for strings.
func (it Item) Items() []Item {
	return it.items
}

// EncodeItem serializes it with minimal length prefixes.
func EncodeItem(it Item) []byte {
	w := rlp.NewEncoderBuffer(nil)
	writeItem(w, it)

	b := w.ToBytes()
	_ = w.Flush()

	return b
}

func writeItem(w rlp.EncoderBuffer, it Item) {
	if it.kind == KindString {
		w.WriteBytes(it.str)
		return
	}

	idx := w.List()
	for _, child := range it.items {
		writeItem(w, child)
	}
	w.ListEnd(idx)
}

// DecodeItem parses exactly one item from b. Non-minimal prefixes, truncated input and
// trailing bytes are rejected.
func DecodeItem(b []byte) (Item, error) {
	it, rest, err := decodeItem(b)
	if err != nil {
		return Item{}, err
	}

	if len(rest) != 0 {
		return Item{}, errors.Wrapf(ErrMalformedTransaction, "%d trailing bytes", len(rest))
	}

	return it, nil
}

func decodeItem(b []byte) (Item, []byte, error) {
	kind, content, rest, err := rlp.Split(b)
	if err != nil {
		return Item{}, nil, errors.Wrap(ErrMalformedTransaction, err.Error())
	}

	switch kind {
	case rlp.Byte, rlp.String:
		return String(common.CopyBytes(content)), rest, nil
	case rlp.List:
		items := []Item{}
		for len(content) > 0 {
			var child Item
			child, content, err = decodeItem(content)
			if err != nil {
				return Item{}, nil, err
			}
			items = append(items, child)
		}
		return List(items...), rest, nil
	default:
		return Item{}, nil, errors.Wrapf(ErrMalformedTransaction, "unknown kind %v", kind)
	}
}
