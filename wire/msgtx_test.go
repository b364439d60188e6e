// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/solisnet/solisd/util/chainhash"
)

// nullOutPoint returns the previous outpoint used by coinbase transactions.
func nullOutPoint() OutPoint {
	return OutPoint{TxID: chainhash.ZeroHash, Index: math.MaxUint32}
}

// TestTxClassification exercises the coinbase and coinstake shape rules.
func TestTxClassification(t *testing.T) {
	realPrevOut := OutPoint{TxID: chainhash.Hash{0x01}, Index: 0}
	emptyOut := &TxOut{}
	payOut := NewTxOut(50000, []byte{0x02, 0x01, 0xaa})

	tests := []struct {
		name        string
		txIn        []*TxIn
		txOut       []*TxOut
		isCoinBase  bool
		isCoinStake bool
	}{
		{
			name:       "coinbase",
			txIn:       []*TxIn{{PreviousOutPoint: nullOutPoint()}},
			txOut:      []*TxOut{payOut},
			isCoinBase: true,
		},
		{
			name: "coinbase shape with extra input",
			txIn: []*TxIn{
				{PreviousOutPoint: nullOutPoint()},
				{PreviousOutPoint: realPrevOut},
			},
			txOut: []*TxOut{payOut},
		},
		{
			name: "null prevout with real txid",
			txIn: []*TxIn{{PreviousOutPoint: OutPoint{
				TxID:  chainhash.Hash{0x01},
				Index: math.MaxUint32,
			}}},
			txOut: []*TxOut{payOut},
		},
		{
			name:        "coinstake",
			txIn:        []*TxIn{{PreviousOutPoint: realPrevOut}},
			txOut:       []*TxOut{emptyOut, payOut},
			isCoinStake: true,
		},
		{
			name:  "coinstake shape missing empty first output",
			txIn:  []*TxIn{{PreviousOutPoint: realPrevOut}},
			txOut: []*TxOut{payOut, payOut},
		},
		{
			name:  "coinstake shape with single output",
			txIn:  []*TxIn{{PreviousOutPoint: realPrevOut}},
			txOut: []*TxOut{emptyOut},
		},
		{
			name:       "null prevout beats coinstake shape",
			txIn:       []*TxIn{{PreviousOutPoint: nullOutPoint()}},
			txOut:      []*TxOut{emptyOut, payOut},
			isCoinBase: true,
		},
		{
			name:  "ordinary spend",
			txIn:  []*TxIn{{PreviousOutPoint: realPrevOut}},
			txOut: []*TxOut{payOut},
		},
	}

	for _, test := range tests {
		tx := MsgTx{Version: 1, TxIn: test.txIn, TxOut: test.txOut}
		if got := tx.IsCoinBase(); got != test.isCoinBase {
			t.Errorf("%s: IsCoinBase got %v, want %v", test.name,
				got, test.isCoinBase)
		}
		if got := tx.IsCoinStake(); got != test.isCoinStake {
			t.Errorf("%s: IsCoinStake got %v, want %v", test.name,
				got, test.isCoinStake)
		}
	}
}

// TestTxHashCommitments ensures the transaction hash commits to the unlocking
// scripts so signed transactions cannot be mutated without changing their id.
func TestTxHashCommitments(t *testing.T) {
	tx := NewMsgTx(1)
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{TxID: chainhash.Hash{0x01}},
		SignatureScript:  []byte{0x0a, 0x0b},
		Sequence:         MaxTxInSequenceNum,
	})
	tx.AddTxOut(NewTxOut(1000, []byte{0x02, 0x01, 0xaa}))
	hash := tx.TxHash()

	mutated := tx.Copy()
	mutated.TxIn[0].SignatureScript = []byte{0x0a, 0x0c}
	if mutated.TxHash() == hash {
		t.Fatal("hash did not change with the unlocking script")
	}

	mutated = tx.Copy()
	mutated.TxOut[0].Value++
	if mutated.TxHash() == hash {
		t.Fatal("hash did not change with the output value")
	}

	if tx.Copy().TxHash() != hash {
		t.Fatal("copy changed the transaction hash")
	}
}

// TestTxSerializeRoundTrip ensures a payload carrying transaction survives a
// serialize/deserialize round trip intact.
func TestTxSerializeRoundTrip(t *testing.T) {
	tx := NewMsgTx(1)
	tx.TxType = TxTypeProviderRegister
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{TxID: chainhash.Hash{0x01}, Index: 2},
		SignatureScript:  []byte{0x0a, 0x0b},
		Sequence:         MaxTxInSequenceNum,
	})
	tx.AddTxOut(NewTxOut(1000, []byte{0x02, 0x01, 0xaa}))
	tx.LockTime = 12345
	tx.Payload = []byte{0xde, 0xad, 0xbe, 0xef}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if buf.Len() != tx.SerializeSize() {
		t.Fatalf("serialized to %d bytes, SerializeSize reports %d",
			buf.Len(), tx.SerializeSize())
	}

	var decoded MsgTx
	if err := decoded.Deserialize(&buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.TxHash() != tx.TxHash() {
		t.Fatal("round trip changed the transaction hash")
	}
	if decoded.TxType != TxTypeProviderRegister ||
		!bytes.Equal(decoded.Payload, tx.Payload) {

		t.Fatal("round trip lost the special transaction payload")
	}
}

// TestOutPointString ensures outpoints render as "txid:index".
func TestOutPointString(t *testing.T) {
	txID := chainhash.Hash{0x01}
	op := NewOutPoint(&txID, 7)
	want := fmt.Sprintf("%v:7", txID)
	if op.String() != want {
		t.Fatalf("OutPoint string is %q, want %q", op.String(), want)
	}
}
