package digestcodec

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// Writer feeds fixed-width little-endian values into a sha256 so that equal
// world states always hash to the same digest.
type Writer struct {
	h   hash.Hash
	tmp [8]byte
}

func New() *Writer { return &Writer{h: sha256.New()} }

func (w *Writer) U64(v uint64) {
	binary.LittleEndian.PutUint64(w.tmp[:], v)
	w.h.Write(w.tmp[:])
}

func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

func (w *Writer) Bool(v bool) { w.h.Write([]byte{BoolByte(v)}) }

// String is length-prefixed so adjacent strings cannot run together.
func (w *Writer) String(s string) {
	w.U64(uint64(len(s)))
	w.h.Write([]byte(s))
}

// SortedKeys writes a set of strings in sorted order, prefixed by its size.
func (w *Writer) SortedKeys(m map[string]bool) {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	w.U64(uint64(len(keys)))
	for _, k := range keys {
		w.String(k)
	}
}

func (w *Writer) Hex() string { return hex.EncodeToString(w.h.Sum(nil)) }

func BoolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
