// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package rlp implements the recursive length prefix encoding scheme
// go-probeum (and go-ethereum before it) uses for all consensus-critical
// serialization. This is a scoped-down, dependency-free subset of the
// real package: it encodes/decodes byte strings, unsigned integers and
// lists of already-encoded items, which is all the scheduler snapshot format
// (vm.Scheduler's snapshot/Resume) and the transaction serialization need.
// It deliberately does not implement the
// reflection-based struct (de)serializer the full package carries.
package rlp

import (
	"errors"
	"io"
)

// ErrMalformed is returned when a byte stream does not contain valid RLP.
var ErrMalformed = errors.New("rlp: malformed input")

// EncodeBytes RLP-encodes a byte string.
func EncodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append(encodeLength(len(b), 0x80, 0xb7), b...)
}

// EncodeUint64 RLP-encodes an unsigned integer as its minimal big-endian byte string.
func EncodeUint64(i uint64) []byte {
	if i == 0 {
		return EncodeBytes(nil)
	}
	var buf [8]byte
	n := 8
	for n > 0 {
		n--
		buf[n] = byte(i)
		i >>= 8
		if i == 0 {
			break
		}
	}
	return EncodeBytes(buf[n:])
}

// EncodeList RLP-encodes a list whose members are already-encoded RLP items.
func EncodeList(items ...[]byte) []byte {
	var body []byte
	for _, it := range items {
		body = append(body, it...)
	}
	return append(encodeLength(len(body), 0xc0, 0xf7), body...)
}

func encodeLength(n int, shortOffset, longOffset byte) []byte {
	if n < 56 {
		return []byte{shortOffset + byte(n)}
	}
	var lenBytes []byte
	m := n
	for m > 0 {
		lenBytes = append([]byte{byte(m)}, lenBytes...)
		m >>= 8
	}
	return append([]byte{longOffset + byte(len(lenBytes))}, lenBytes...)
}

// Item is a decoded RLP node: either a byte string (List == nil) or a list
// of child items (List != nil, Bytes == nil).
type Item struct {
	Bytes []byte
	List  []Item
}

// Uint64 interprets a decoded byte-string item as a big-endian unsigned integer.
func (it Item) Uint64() (uint64, error) {
	if it.List != nil {
		return 0, ErrMalformed
	}
	if len(it.Bytes) > 8 {
		return 0, ErrMalformed
	}
	var v uint64
	for _, b := range it.Bytes {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// Decode parses exactly one RLP item from b, returning any trailing bytes.
func Decode(b []byte) (Item, []byte, error) {
	if len(b) == 0 {
		return Item{}, nil, io.ErrUnexpectedEOF
	}
	prefix := b[0]
	switch {
	case prefix < 0x80:
		return Item{Bytes: b[0:1]}, b[1:], nil
	case prefix < 0xb8:
		n := int(prefix - 0x80)
		if len(b) < 1+n {
			return Item{}, nil, ErrMalformed
		}
		return Item{Bytes: b[1 : 1+n]}, b[1+n:], nil
	case prefix < 0xc0:
		lenOfLen := int(prefix - 0xb7)
		if len(b) < 1+lenOfLen {
			return Item{}, nil, ErrMalformed
		}
		n := beInt(b[1 : 1+lenOfLen])
		start := 1 + lenOfLen
		if len(b) < start+n {
			return Item{}, nil, ErrMalformed
		}
		return Item{Bytes: b[start : start+n]}, b[start+n:], nil
	case prefix < 0xf8:
		n := int(prefix - 0xc0)
		if len(b) < 1+n {
			return Item{}, nil, ErrMalformed
		}
		return decodeListBody(b[1:1+n], b[1+n:])
	default:
		lenOfLen := int(prefix - 0xf7)
		if len(b) < 1+lenOfLen {
			return Item{}, nil, ErrMalformed
		}
		n := beInt(b[1 : 1+lenOfLen])
		start := 1 + lenOfLen
		if len(b) < start+n {
			return Item{}, nil, ErrMalformed
		}
		return decodeListBody(b[start:start+n], b[start+n:])
	}
}

func decodeListBody(body, rest []byte) (Item, []byte, error) {
	var items []Item
	for len(body) > 0 {
		it, tail, err := Decode(body)
		if err != nil {
			return Item{}, nil, err
		}
		items = append(items, it)
		body = tail
	}
	return Item{List: items}, rest, nil
}

func beInt(b []byte) int {
	n := 0
	for _, c := range b {
		n = n<<8 | int(c)
	}
	return n
}
