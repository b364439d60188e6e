// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	// MaxVarIntPayload is the maximum payload size for a variable length integer.
	MaxVarIntPayload = 9

	// binaryFreeListMaxItems is the number of buffers to keep in the free
	// list to use for binary serialization and deserialization.
	binaryFreeListMaxItems = 1024
)

var (
	// littleEndian is a convenience variable since binary.LittleEndian is
	// quite long.
	littleEndian = binary.LittleEndian
)

// binaryFreeList defines a concurrent safe free list of byte slices (up to the
// maximum number defined by the binaryFreeListMaxItems constant) that have a
// cap of 8 (thus it supports up to a uint64). It is used to provide temporary
// buffers for serializing and deserializing primitive numbers to and from
// their binary encoding in order to greatly reduce the number of allocations
// required.
type binaryFreeList chan []byte

// Borrow returns a byte slice from the free list with a length of 8. A new
// buffer is allocated if there are not any available on the free list.
func (l binaryFreeList) Borrow() []byte {
	var buf []byte
	select {
	case buf = <-l:
	default:
		buf = make([]byte, 8)
	}
	return buf[:8]
}

// Return puts the provided byte slice back on the free list. The buffer MUST
// have been obtained via the Borrow function and therefore have a cap of 8.
func (l binaryFreeList) Return(buf []byte) {
	select {
	case l <- buf:
	default:
		// Let it go to the garbage collector.
	}
}

// binarySerializer provides a free list of buffers to use for serializing and
// deserializing primitive integer values to and from io.Readers and io.Writers.
var binarySerializer binaryFreeList = make(chan []byte, binaryFreeListMaxItems)

// ReadElementUint8 reads a single byte from r.
func ReadElementUint8(r io.Reader) (uint8, error) {
	buf := binarySerializer.Borrow()[:1]
	defer binarySerializer.Return(buf[:8])
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadElementUint16 reads a little-endian uint16 from r.
func ReadElementUint16(r io.Reader) (uint16, error) {
	buf := binarySerializer.Borrow()[:2]
	defer binarySerializer.Return(buf[:8])
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return littleEndian.Uint16(buf), nil
}

// ReadElementUint32 reads a little-endian uint32 from r.
func ReadElementUint32(r io.Reader) (uint32, error) {
	buf := binarySerializer.Borrow()[:4]
	defer binarySerializer.Return(buf[:8])
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return littleEndian.Uint32(buf), nil
}

// ReadElementUint64 reads a little-endian uint64 from r.
func ReadElementUint64(r io.Reader) (uint64, error) {
	buf := binarySerializer.Borrow()
	defer binarySerializer.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return littleEndian.Uint64(buf), nil
}

// WriteElementUint8 writes a single byte to w.
func WriteElementUint8(w io.Writer, val uint8) error {
	buf := binarySerializer.Borrow()[:1]
	defer binarySerializer.Return(buf[:8])
	buf[0] = val
	_, err := w.Write(buf)
	return err
}

// WriteElementUint16 writes a little-endian uint16 to w.
func WriteElementUint16(w io.Writer, val uint16) error {
	buf := binarySerializer.Borrow()[:2]
	defer binarySerializer.Return(buf[:8])
	littleEndian.PutUint16(buf, val)
	_, err := w.Write(buf)
	return err
}

// WriteElementUint32 writes a little-endian uint32 to w.
func WriteElementUint32(w io.Writer, val uint32) error {
	buf := binarySerializer.Borrow()[:4]
	defer binarySerializer.Return(buf[:8])
	littleEndian.PutUint32(buf, val)
	_, err := w.Write(buf)
	return err
}

// WriteElementUint64 writes a little-endian uint64 to w.
func WriteElementUint64(w io.Writer, val uint64) error {
	buf := binarySerializer.Borrow()
	defer binarySerializer.Return(buf)
	littleEndian.PutUint64(buf, val)
	_, err := w.Write(buf)
	return err
}

// ReadVarInt reads a variable length integer from r and returns it as a
// uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	discriminant, err := ReadElementUint8(r)
	if err != nil {
		return 0, err
	}

	var rv uint64
	switch discriminant {
	case 0xff:
		sv, err := ReadElementUint64(r)
		if err != nil {
			return 0, err
		}
		rv = sv

		// The encoding is not canonical if the value could have been
		// encoded using fewer bytes.
		min := uint64(0x100000000)
		if rv < min {
			return 0, errNonCanonicalVarInt(rv, discriminant, min)
		}

	case 0xfe:
		sv, err := ReadElementUint32(r)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)

		min := uint64(0x10000)
		if rv < min {
			return 0, errNonCanonicalVarInt(rv, discriminant, min)
		}

	case 0xfd:
		sv, err := ReadElementUint16(r)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)

		min := uint64(0xfd)
		if rv < min {
			return 0, errNonCanonicalVarInt(rv, discriminant, min)
		}

	default:
		rv = uint64(discriminant)
	}

	return rv, nil
}

func errNonCanonicalVarInt(rv uint64, discriminant uint8, min uint64) error {
	return errors.Errorf("non-canonical varint %x - discriminant %x must "+
		"encode a value greater than %x", rv, discriminant, min)
}

// WriteVarInt serializes val to w using a variable number of bytes depending
// on its value.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		return WriteElementUint8(w, uint8(val))
	}

	if val <= 0xffff {
		err := WriteElementUint8(w, 0xfd)
		if err != nil {
			return err
		}
		return WriteElementUint16(w, uint16(val))
	}

	if val <= 0xffffffff {
		err := WriteElementUint8(w, 0xfe)
		if err != nil {
			return err
		}
		return WriteElementUint32(w, uint32(val))
	}

	err := WriteElementUint8(w, 0xff)
	if err != nil {
		return err
	}
	return WriteElementUint64(w, val)
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	// The value is small enough to be represented by itself, so it's
	// just 1 byte.
	if val < 0xfd {
		return 1
	}

	// Discriminant 1 byte plus 2 bytes for the uint16.
	if val <= 0xffff {
		return 3
	}

	// Discriminant 1 byte plus 4 bytes for the uint32.
	if val <= 0xffffffff {
		return 5
	}

	// Discriminant 1 byte plus 8 bytes for the uint64.
	return 9
}

// ReadVarBytes reads a variable length byte array. A byte array is encoded
// as a varInt containing the length of the array followed by the bytes
// themselves. An error is returned if the length is greater than the passed
// maxAllowed parameter which helps protect against memory exhaustion attacks
// and forced panics through malformed messages. The fieldName parameter is
// only used for the error message so it provides more context in the error.
func ReadVarBytes(r io.Reader, maxAllowed uint32, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	// Prevent byte array larger than the max message size. It would
	// be possible to cause memory exhaustion and panics without a sane
	// upper bound on this count.
	if count > uint64(maxAllowed) {
		return nil, errors.Errorf("%s is larger than the max allowed size "+
			"[count %d, max %d]", fieldName, count, maxAllowed)
	}

	b := make([]byte, count)
	_, err = io.ReadFull(r, b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarBytes serializes a variable length byte array to w as a varInt
// containing the number of bytes, followed by the bytes themselves.
func WriteVarBytes(w io.Writer, bytes []byte) error {
	slen := uint64(len(bytes))
	err := WriteVarInt(w, slen)
	if err != nil {
		return err
	}

	_, err = w.Write(bytes)
	return err
}

// ReadVarString reads a variable length string from r and returns it as a Go
// string. A variable length string is encoded as a variable length integer
// containing the length of the string followed by the bytes that represent
// the string itself.
func ReadVarString(r io.Reader, maxAllowed uint32) (string, error) {
	b, err := ReadVarBytes(r, maxAllowed, "string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteVarString serializes str to w as a variable length integer containing
// the length of the string followed by the bytes that represent the string
// itself.
func WriteVarString(w io.Writer, str string) error {
	return WriteVarBytes(w, []byte(str))
}
