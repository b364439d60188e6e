// Copyright (c) 2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"

	"github.com/kaspanet/go-muhash"
	"github.com/pkg/errors"

	"github.com/solisnet/solisd/wire"
)

// serializeUtxoForMultiset encodes an outpoint and its utxo entry into the
// canonical byte string hashed into the utxo commitment multiset.  The same
// encoding must be used for both addition and removal or the commitment will
// drift.
func serializeUtxoForMultiset(outpoint wire.OutPoint, entry *UtxoEntry) ([]byte, error) {
	w := &bytes.Buffer{}
	if _, err := w.Write(outpoint.TxID[:]); err != nil {
		return nil, err
	}
	if err := wire.WriteElementUint32(w, outpoint.Index); err != nil {
		return nil, err
	}
	if err := wire.WriteElementUint64(w, uint64(entry.Amount())); err != nil {
		return nil, err
	}
	if err := wire.WriteElementUint32(w, uint32(entry.BlockHeight())); err != nil {
		return nil, err
	}
	var flags uint8
	if entry.IsCoinBase() {
		flags |= stxoFlagCoinBase
	}
	if entry.IsCoinStake() {
		flags |= stxoFlagCoinStake
	}
	if err := wire.WriteElementUint8(w, flags); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(w, entry.PkScript()); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// addUtxoToMultiset adds the given utxo to the commitment multiset.
func addUtxoToMultiset(ms *muhash.MuHash, outpoint wire.OutPoint, entry *UtxoEntry) error {
	serialized, err := serializeUtxoForMultiset(outpoint, entry)
	if err != nil {
		return err
	}
	ms.Add(serialized)
	return nil
}

// removeUtxoFromMultiset removes the given utxo from the commitment multiset.
func removeUtxoFromMultiset(ms *muhash.MuHash, outpoint wire.OutPoint, entry *UtxoEntry) error {
	serialized, err := serializeUtxoForMultiset(outpoint, entry)
	if err != nil {
		return err
	}
	ms.Remove(serialized)
	return nil
}

// serializeMultiset returns the serialized form of the multiset for storage
// in the best chain state record.
func serializeMultiset(ms *muhash.MuHash) []byte {
	serialized := ms.Serialize()
	return serialized[:]
}

// deserializeMultiset decodes a multiset previously stored with
// serializeMultiset.
func deserializeMultiset(serialized []byte) (*muhash.MuHash, error) {
	if len(serialized) != muhash.SerializedMuHashSize {
		return nil, errors.Errorf("corrupt utxo multiset: wrong "+
			"length %d", len(serialized))
	}
	var buf muhash.SerializedMuHash
	copy(buf[:], serialized)
	return muhash.DeserializeMuHash(&buf)
}
