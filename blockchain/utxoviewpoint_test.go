// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// viewTestBlock assembles an unsolved block at the given height containing a
// trivial coinbase followed by the passed transactions.  View level tests do
// not check proof of work, so solving is unnecessary.
func viewTestBlock(height int32, txns ...*wire.MsgTx) *util.Block {
	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			^uint32(0)),
		SignatureScript: standardCoinbaseScript(height, uint64(height)),
		Sequence:        wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(wire.NewTxOut(100000, []byte{0x02, 0x01, 0xcc}))

	msgBlock := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   1,
		PrevBlock: chainhash.Hash{0x10},
		Timestamp: time.Unix(0x686a3c02, 0),
		Bits:      0x207fffff,
	})
	msgBlock.AddTransaction(coinbase)
	for _, tx := range txns {
		msgBlock.AddTransaction(tx)
	}

	block := util.NewBlock(msgBlock)
	block.SetHeight(height)
	return block
}

// TestViewConnectDisconnect connects a block to a utxo view and then
// disconnects it with the recorded spend journal, ensuring the view returns
// to its original state.
func TestViewConnectDisconnect(t *testing.T) {
	_, payScript := newTestKey(t)

	// A funding output confirmed at height 10.
	fundTx := wire.NewMsgTx(1)
	fundTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			TxID:  chainhash.Hash{0x01},
			Index: 0,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	fundTx.AddTxOut(wire.NewTxOut(50000, payScript))
	fundOut := wire.OutPoint{TxID: fundTx.TxHash(), Index: 0}

	view := NewUtxoViewpoint()
	view.AddTxOuts(util.NewTx(fundTx), 10)

	// A block at height 11 splitting the funding output in two.
	spendTx := wire.NewMsgTx(1)
	spendTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: fundOut,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	spendTx.AddTxOut(wire.NewTxOut(30000, payScript))
	spendTx.AddTxOut(wire.NewTxOut(19000, payScript))
	block := viewTestBlock(11, spendTx)

	var stxos []SpentTxOut
	if err := view.connectTransactions(block, &stxos); err != nil {
		t.Fatalf("connectTransactions: %v", err)
	}

	// The spend journal carries exactly the consumed output.
	if len(stxos) != countSpentOutputs(block) {
		t.Fatalf("spend journal has %d entries, want %d", len(stxos),
			countSpentOutputs(block))
	}
	stxo := stxos[0]
	if stxo.Amount != 50000 || stxo.Height != 10 || stxo.IsCoinBase ||
		stxo.IsCoinStake || !bytes.Equal(stxo.PkScript, payScript) {

		t.Fatalf("spend journal entry does not match the consumed "+
			"output: %v", spew.Sdump(stxo))
	}

	// The funding output is spent, the block's outputs are live.
	if entry := view.LookupEntry(fundOut); entry == nil || !entry.IsSpent() {
		t.Fatal("funding output not marked spent after connect")
	}
	coinbaseOut := wire.OutPoint{
		TxID:  block.MsgBlock().Transactions[0].TxHash(),
		Index: 0,
	}
	entry := view.LookupEntry(coinbaseOut)
	if entry == nil || entry.IsSpent() {
		t.Fatal("coinbase output missing after connect")
	}
	if !entry.IsCoinBase() || entry.BlockHeight() != 11 {
		t.Fatalf("coinbase output has wrong metadata: coinbase %v "+
			"height %d", entry.IsCoinBase(), entry.BlockHeight())
	}
	for i := uint32(0); i < 2; i++ {
		out := wire.OutPoint{TxID: spendTx.TxHash(), Index: i}
		entry := view.LookupEntry(out)
		if entry == nil || entry.IsSpent() {
			t.Fatalf("created output %v missing after connect", out)
		}
		if entry.Amount() != spendTx.TxOut[i].Value {
			t.Fatalf("created output %v has amount %d, want %d",
				out, entry.Amount(), spendTx.TxOut[i].Value)
		}
	}
	if !view.BestHash().IsEqual(block.Hash()) {
		t.Fatalf("view best hash is %s, want %s", view.BestHash(),
			block.Hash())
	}

	// Disconnecting with the journal restores the original state.
	if err := view.disconnectTransactions(block, stxos); err != nil {
		t.Fatalf("disconnectTransactions: %v", err)
	}

	entry = view.LookupEntry(fundOut)
	if entry == nil || entry.IsSpent() {
		t.Fatal("funding output not restored after disconnect")
	}
	if entry.Amount() != 50000 || entry.BlockHeight() != 10 ||
		!bytes.Equal(entry.PkScript(), payScript) {

		t.Fatalf("restored funding output does not match the "+
			"original: amount %d height %d", entry.Amount(),
			entry.BlockHeight())
	}
	for i := uint32(0); i < 2; i++ {
		out := wire.OutPoint{TxID: spendTx.TxHash(), Index: i}
		if entry := view.LookupEntry(out); entry != nil && !entry.IsSpent() {
			t.Fatalf("created output %v still live after disconnect",
				out)
		}
	}
	if !view.BestHash().IsEqual(&block.MsgBlock().Header.PrevBlock) {
		t.Fatalf("view best hash is %s, want %s", view.BestHash(),
			block.MsgBlock().Header.PrevBlock)
	}
}

// TestViewInBlockSpend connects a block whose second transaction spends an
// output created by its first non-coinbase transaction, and ensures the
// disconnect walks the chain backwards correctly.
func TestViewInBlockSpend(t *testing.T) {
	_, payScript := newTestKey(t)

	fundTx := wire.NewMsgTx(1)
	fundTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			TxID:  chainhash.Hash{0x02},
			Index: 0,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	fundTx.AddTxOut(wire.NewTxOut(40000, payScript))
	fundOut := wire.OutPoint{TxID: fundTx.TxHash(), Index: 0}

	view := NewUtxoViewpoint()
	view.AddTxOuts(util.NewTx(fundTx), 10)

	// First spend creates an intermediate output, second consumes it
	// within the same block.
	spendA := wire.NewMsgTx(1)
	spendA.AddTxIn(&wire.TxIn{
		PreviousOutPoint: fundOut,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	spendA.AddTxOut(wire.NewTxOut(39000, payScript))

	spendB := wire.NewMsgTx(1)
	spendB.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			TxID:  spendA.TxHash(),
			Index: 0,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	spendB.AddTxOut(wire.NewTxOut(38000, payScript))

	block := viewTestBlock(11, spendA, spendB)

	var stxos []SpentTxOut
	if err := view.connectTransactions(block, &stxos); err != nil {
		t.Fatalf("connectTransactions: %v", err)
	}
	if len(stxos) != 2 {
		t.Fatalf("spend journal has %d entries, want 2", len(stxos))
	}

	// Only the final output survives.
	finalOut := wire.OutPoint{TxID: spendB.TxHash(), Index: 0}
	if entry := view.LookupEntry(finalOut); entry == nil || entry.IsSpent() {
		t.Fatal("final output missing after connect")
	}
	midOut := wire.OutPoint{TxID: spendA.TxHash(), Index: 0}
	if entry := view.LookupEntry(midOut); entry != nil && !entry.IsSpent() {
		t.Fatal("intermediate output still live after connect")
	}

	if err := view.disconnectTransactions(block, stxos); err != nil {
		t.Fatalf("disconnectTransactions: %v", err)
	}
	entry := view.LookupEntry(fundOut)
	if entry == nil || entry.IsSpent() {
		t.Fatal("funding output not restored after disconnect")
	}
	if entry.Amount() != 40000 {
		t.Fatalf("restored amount is %d, want 40000", entry.Amount())
	}
}

// TestViewDisconnectBadJournal ensures a journal of the wrong size is refused
// outright instead of corrupting the view.
func TestViewDisconnectBadJournal(t *testing.T) {
	block := viewTestBlock(11)
	view := NewUtxoViewpoint()

	err := view.disconnectTransactions(block, []SpentTxOut{{}})
	if _, ok := err.(AssertError); !ok {
		t.Fatalf("expected an assertion error, got %T: %v", err, err)
	}
}
