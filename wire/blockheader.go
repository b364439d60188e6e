// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"github.com/solisnet/solisd/util/chainhash"
)

// BlockHeaderLen is the number of bytes a serialized block header occupies:
// Version 4 bytes + PrevBlock 32 bytes + MerkleRoot 32 bytes + Timestamp 8
// bytes + Bits 4 bytes + Nonce 8 bytes.
const BlockHeaderLen = 88

// BlockHeader defines information about a block and is used in the solis
// block (MsgBlock) message.
type BlockHeader struct {
	// Version of the block. This is not the same as the protocol version.
	Version int32

	// Hash of the previous block in the chain.
	PrevBlock chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	MerkleRoot chainhash.Hash

	// Time the block was created.
	Timestamp time.Time

	// Difficulty target for the block.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint64
}

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	// Encode the header and double sha256 everything prior to the number
	// of transactions. Ignore the error returns since there is no way the
	// encode could fail except being out of memory which would cause a
	// run-time panic.
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderLen))
	_ = writeBlockHeader(buf, h)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Deserialize decodes a block header from r into the receiver.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return readBlockHeader(r, h)
}

// Serialize encodes a block header from the receiver to w.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return writeBlockHeader(w, h)
}

// SerializeSize returns the number of bytes it would take to serialize the
// block header.
func (h *BlockHeader) SerializeSize() int {
	return BlockHeaderLen
}

// NewBlockHeader returns a new BlockHeader using the provided version,
// previous block hash, merkle root hash, difficulty bits, and nonce with
// the timestamp set to the current time truncated to one second precision,
// which is the resolution the wire encoding carries.
func NewBlockHeader(version int32, prevHash, merkleRootHash *chainhash.Hash,
	bits uint32, nonce uint64) *BlockHeader {

	return &BlockHeader{
		Version:    version,
		PrevBlock:  *prevHash,
		MerkleRoot: *merkleRootHash,
		Timestamp:  time.Unix(time.Now().Unix(), 0),
		Bits:       bits,
		Nonce:      nonce,
	}
}

// readBlockHeader reads a block header from r.
func readBlockHeader(r io.Reader, bh *BlockHeader) error {
	version, err := ReadElementUint32(r)
	if err != nil {
		return err
	}
	bh.Version = int32(version)

	_, err = io.ReadFull(r, bh.PrevBlock[:])
	if err != nil {
		return err
	}

	_, err = io.ReadFull(r, bh.MerkleRoot[:])
	if err != nil {
		return err
	}

	timestamp, err := ReadElementUint64(r)
	if err != nil {
		return err
	}
	bh.Timestamp = time.Unix(int64(timestamp), 0)

	bh.Bits, err = ReadElementUint32(r)
	if err != nil {
		return err
	}

	bh.Nonce, err = ReadElementUint64(r)
	return err
}

// writeBlockHeader writes a block header to w.
func writeBlockHeader(w io.Writer, bh *BlockHeader) error {
	err := WriteElementUint32(w, uint32(bh.Version))
	if err != nil {
		return err
	}

	_, err = w.Write(bh.PrevBlock[:])
	if err != nil {
		return err
	}

	_, err = w.Write(bh.MerkleRoot[:])
	if err != nil {
		return err
	}

	err = WriteElementUint64(w, uint64(bh.Timestamp.Unix()))
	if err != nil {
		return err
	}

	err = WriteElementUint32(w, bh.Bits)
	if err != nil {
		return err
	}

	return WriteElementUint64(w, bh.Nonce)
}
