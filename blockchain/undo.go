// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/wire"
)

// SpentTxOut contains a spent transaction output and potentially additional
// contextual information such as whether or not it was contained in a coinbase
// or coinstake transaction, and the height of the block that contains the
// transaction.  This is part of the undo record for a block: the data needed
// to resurrect the output when the block is disconnected.
type SpentTxOut struct {
	// Amount is the amount of the output.
	Amount int64

	// PkScript is the public key script for the output.
	PkScript []byte

	// Height is the height of the block containing the creating tx.
	Height int32

	// IsCoinBase denotes whether the creating tx is a coinbase.
	IsCoinBase bool

	// IsCoinStake denotes whether the creating tx is a coinstake.
	IsCoinStake bool
}

// countSpentOutputs returns the number of utxos the passed block spends.
func countSpentOutputs(block *util.Block) int {
	// Exclude the coinbase transaction since it can't spend anything.
	var numSpent int
	for _, tx := range block.Transactions()[1:] {
		numSpent += len(tx.MsgTx().TxIn)
	}
	return numSpent
}

// stxo flag bits used by the undo record serialization.
const (
	stxoFlagCoinBase  = 1 << 0
	stxoFlagCoinStake = 1 << 1
)

// serializeSpentTxOuts serializes the passed slice of spent txouts into the
// undo record format: a varint count followed by, per entry, the amount,
// creation height, flag byte, and varbytes script.
func serializeSpentTxOuts(stxos []SpentTxOut) ([]byte, error) {
	w := &bytes.Buffer{}
	err := wire.WriteVarInt(w, uint64(len(stxos)))
	if err != nil {
		return nil, err
	}
	for i := range stxos {
		stxo := &stxos[i]
		err = wire.WriteElementUint64(w, uint64(stxo.Amount))
		if err != nil {
			return nil, err
		}
		err = wire.WriteElementUint32(w, uint32(stxo.Height))
		if err != nil {
			return nil, err
		}
		var flags uint8
		if stxo.IsCoinBase {
			flags |= stxoFlagCoinBase
		}
		if stxo.IsCoinStake {
			flags |= stxoFlagCoinStake
		}
		err = wire.WriteElementUint8(w, flags)
		if err != nil {
			return nil, err
		}
		err = wire.WriteVarBytes(w, stxo.PkScript)
		if err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// deserializeSpentTxOuts decodes the passed serialized bytes into a slice of
// spent txouts according to the format described by serializeSpentTxOuts.
func deserializeSpentTxOuts(serialized []byte) ([]SpentTxOut, error) {
	r := bytes.NewReader(serialized)
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read undo record count")
	}

	stxos := make([]SpentTxOut, count)
	for i := uint64(0); i < count; i++ {
		stxo := &stxos[i]
		amount, err := wire.ReadElementUint64(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read undo amount")
		}
		stxo.Amount = int64(amount)
		height, err := wire.ReadElementUint32(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read undo height")
		}
		stxo.Height = int32(height)
		flags, err := wire.ReadElementUint8(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read undo flags")
		}
		stxo.IsCoinBase = flags&stxoFlagCoinBase != 0
		stxo.IsCoinStake = flags&stxoFlagCoinStake != 0
		stxo.PkScript, err = wire.ReadVarBytes(r, maxUndoScriptSize,
			"undo pkScript")
		if err != nil {
			return nil, errors.Wrap(err, "failed to read undo script")
		}
	}

	if r.Len() != 0 {
		return nil, errors.New("trailing bytes after undo record")
	}

	return stxos, nil
}

// maxUndoScriptSize is the maximum script length accepted when deserializing
// an undo record.  It matches the largest script a stored transaction output
// could have carried.
const maxUndoScriptSize = wire.MaxBlockPayload
