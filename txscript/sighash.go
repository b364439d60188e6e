// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"

	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// SigHashType represents hash type bits at the end of a signature.
type SigHashType byte

// Hash type bits from the end of a signature. Only SigHashAll is currently
// supported; the type byte is carried on the wire so additional modes can be
// introduced without changing the unlocking script shape.
const (
	SigHashAll SigHashType = 0x1
)

// CalcSignatureHash computes the signature hash for the idx'th input of tx
// when spending an output locked with prevPkScript.
//
// The digest commits to the whole transaction with every unlocking script
// blanked, to the locking script being spent, to the input index, and to the
// hash type. Any input or output malleation therefore invalidates the
// signature.
func CalcSignatureHash(tx *wire.MsgTx, idx int, prevPkScript []byte,
	hashType SigHashType) (chainhash.Hash, error) {

	if hashType != SigHashAll {
		return chainhash.Hash{}, scriptError(ErrInvalidSignatureHashType,
			"only SigHashAll signature hashes are supported")
	}
	if idx < 0 || idx >= len(tx.TxIn) {
		return chainhash.Hash{}, scriptError(ErrMalformedScript,
			"transaction input index out of range")
	}

	// Serialize a copy of the transaction with all unlocking scripts
	// blanked out. The copy shares the immutable fields.
	txCopy := tx.Copy()
	for _, txIn := range txCopy.TxIn {
		txIn.SignatureScript = nil
	}

	var buf bytes.Buffer
	err := txCopy.Serialize(&buf)
	if err != nil {
		return chainhash.Hash{}, err
	}

	err = wire.WriteElementUint32(&buf, uint32(idx))
	if err != nil {
		return chainhash.Hash{}, err
	}

	err = wire.WriteVarBytes(&buf, prevPkScript)
	if err != nil {
		return chainhash.Hash{}, err
	}

	err = wire.WriteElementUint8(&buf, uint8(hashType))
	if err != nil {
		return chainhash.Hash{}, err
	}

	return chainhash.DoubleHashH(buf.Bytes()), nil
}
