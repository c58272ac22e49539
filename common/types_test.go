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

package common

import "testing"

func TestBytesToHashPadsShortInput(t *testing.T) {
	h := BytesToHash([]byte{0x01, 0x02})
	for i := 0; i < HashLength-2; i++ {
		if h[i] != 0 {
			t.Fatalf("expected leading zero padding at byte %d, got %x", i, h[i])
		}
	}
	if h[HashLength-2] != 0x01 || h[HashLength-1] != 0x02 {
		t.Fatalf("unexpected tail bytes: %x", h)
	}
}

func TestBytesToHashTruncatesLongInput(t *testing.T) {
	long := make([]byte, HashLength+10)
	for i := range long {
		long[i] = byte(i)
	}
	h := BytesToHash(long)
	want := long[len(long)-HashLength:]
	if !ByteSliceEqual(h.Bytes(), want) {
		t.Fatalf("expected hash to take the last %d bytes", HashLength)
	}
}

func TestHashStringHasHexPrefix(t *testing.T) {
	h := BytesToHash([]byte{0xAB, 0xCD})
	s := h.String()
	if s[:2] != "0x" {
		t.Fatalf("expected 0x prefix, got %s", s)
	}
	if len(s) != 2+HashLength*2 {
		t.Fatalf("unexpected string length: %d", len(s))
	}
}

func TestByteSliceEqualTreatsNilAndEmptyAsEqual(t *testing.T) {
	if !ByteSliceEqual(nil, []byte{}) {
		t.Fatal("expected nil and empty slice to compare equal")
	}
	if ByteSliceEqual([]byte{1}, []byte{1, 2}) {
		t.Fatal("expected different-length slices to compare unequal")
	}
	if !ByteSliceEqual([]byte{1, 2, 3}, []byte{1, 2, 3}) {
		t.Fatal("expected identical slices to compare equal")
	}
}
