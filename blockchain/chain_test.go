// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/solisnet/solisd/chaincfg"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/wire"
)

// TestHaveBlock ensures HaveBlock reports main chain blocks, side chain
// blocks, and orphans as known while unrelated hashes stay unknown.
func TestHaveBlock(t *testing.T) {
	tc, teardown := newTestChain(t, "haveblock", simnetParams())
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)
	a2 := tc.buildBlock(a1, 0)
	tc.acceptBlock(a2)

	// A competing block at height 1 lands on a side chain but is still
	// known.
	b1 := tc.buildBlock(genesis, 0)
	if isMainChain := tc.acceptBlock(b1); isMainChain {
		t.Fatalf("side chain block %s reported as main chain", b1.Hash())
	}

	// An orphan is known too, just not part of the index.
	missingParent := tc.buildBlock(a2, 0)
	orphan := tc.buildBlock(missingParent, 0)
	_, isOrphan, err := tc.chain.ProcessBlock(orphan, BFNone)
	if err != nil {
		t.Fatalf("ProcessBlock(orphan): unexpected error: %v", err)
	}
	if !isOrphan {
		t.Fatalf("block %s with unknown parent was not treated as an "+
			"orphan", orphan.Hash())
	}

	tests := []struct {
		name string
		hash *util.Block
		want bool
	}{
		{"genesis", genesis, true},
		{"main chain block", a2, true},
		{"side chain block", b1, true},
		{"orphan block", orphan, true},
		{"unknown block", missingParent, false},
	}
	for _, test := range tests {
		if got := tc.chain.HaveBlock(test.hash.Hash()); got != test.want {
			t.Errorf("HaveBlock(%s): got %v, want %v", test.name,
				got, test.want)
		}
	}
}

// TestReorganization builds two competing branches and ensures the chain only
// reorganizes once the competitor accumulates strictly more work, after which
// the displaced blocks leave the main chain but remain in the index.
func TestReorganization(t *testing.T) {
	tc, teardown := newTestChain(t, "reorganization", simnetParams())
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)
	a2 := tc.buildBlock(a1, 0)
	tc.acceptBlock(a2)

	if best := tc.chain.BestSnapshot(); !best.Hash.IsEqual(a2.Hash()) {
		t.Fatalf("best chain tip is %s, want %s", best.Hash, a2.Hash())
	}

	// The competing branch matches the main chain work at height 2, so the
	// earlier seen chain keeps the tip.
	b1 := tc.buildBlock(genesis, 0)
	if tc.acceptBlock(b1) {
		t.Fatal("b1 moved to the main chain with less work than the tip")
	}
	b2 := tc.buildBlock(b1, 0)
	if tc.acceptBlock(b2) {
		t.Fatal("b2 moved to the main chain with equal work to the tip")
	}
	if best := tc.chain.BestSnapshot(); !best.Hash.IsEqual(a2.Hash()) {
		t.Fatalf("tip changed on an equal work branch: got %s, want %s",
			best.Hash, a2.Hash())
	}

	// One more block tips the scale and triggers the reorganization.
	b3 := tc.buildBlock(b2, 0)
	if !tc.acceptBlock(b3) {
		t.Fatal("b3 with the most cumulative work did not become the tip")
	}

	best := tc.chain.BestSnapshot()
	if !best.Hash.IsEqual(b3.Hash()) {
		t.Fatalf("best chain tip is %s, want %s", best.Hash, b3.Hash())
	}
	if best.Height != 3 {
		t.Fatalf("best chain height is %d, want 3", best.Height)
	}

	// The displaced branch is off the main chain but stays known.
	for _, block := range []*util.Block{a1, a2} {
		if tc.chain.MainChainHasBlock(block.Hash()) {
			t.Errorf("displaced block %s still on the main chain",
				block.Hash())
		}
		if !tc.chain.HaveBlock(block.Hash()) {
			t.Errorf("displaced block %s missing from the index",
				block.Hash())
		}
	}
	for i, block := range []*util.Block{b1, b2, b3} {
		hash, err := tc.chain.BlockHashByHeight(int32(i + 1))
		if err != nil {
			t.Fatalf("BlockHashByHeight(%d): %v", i+1, err)
		}
		if !hash.IsEqual(block.Hash()) {
			t.Errorf("main chain at height %d is %s, want %s", i+1,
				hash, block.Hash())
		}
	}
}

// TestForkTooDeep ensures a branch diverging beyond the maximum
// reorganization depth is refused regardless of its work.
func TestForkTooDeep(t *testing.T) {
	params := simnetParams()
	params.MaxReorgDepth = 5

	tc, teardown := newTestChain(t, "forktoodeep", params)
	defer teardown()

	genesis := tc.genesis()
	tc.extendChain(genesis, 8)

	// The first fork block hangs off the main chain itself, so it is
	// stored as an ordinary side chain block.
	c1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(c1)

	// Extending the fork would require reorganizing past the depth limit.
	c2 := tc.buildBlock(c1, 0)
	_, _, err := tc.chain.ProcessBlock(c2, BFNone)
	assertRuleError(t, err, ErrForkTooDeep)
}

// TestOrphanProcessing submits a chain out of order and ensures the orphans
// connect once their missing ancestor arrives.
func TestOrphanProcessing(t *testing.T) {
	tc, teardown := newTestChain(t, "orphanprocessing", simnetParams())
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	a2 := tc.buildBlock(a1, 0)
	a3 := tc.buildBlock(a2, 0)

	for _, block := range []*util.Block{a3, a2} {
		_, isOrphan, err := tc.chain.ProcessBlock(block, BFNone)
		if err != nil {
			t.Fatalf("ProcessBlock(%s): unexpected error: %v",
				block.Hash(), err)
		}
		if !isOrphan {
			t.Fatalf("block %s was not treated as an orphan",
				block.Hash())
		}
		if !tc.chain.IsKnownOrphan(block.Hash()) {
			t.Fatalf("block %s missing from the orphan pool",
				block.Hash())
		}
	}

	// Both orphans chain back to a1, which the chain has never seen.
	if root := tc.chain.GetOrphanRoot(a3.Hash()); !root.IsEqual(a1.Hash()) {
		t.Fatalf("orphan root is %s, want %s", root, a1.Hash())
	}

	// Delivering the missing ancestor pulls the whole branch in.
	tc.acceptBlock(a1)

	best := tc.chain.BestSnapshot()
	if !best.Hash.IsEqual(a3.Hash()) {
		t.Fatalf("best chain tip is %s, want %s", best.Hash, a3.Hash())
	}
	for _, block := range []*util.Block{a2, a3} {
		if tc.chain.IsKnownOrphan(block.Hash()) {
			t.Errorf("block %s still in the orphan pool", block.Hash())
		}
		if !tc.chain.MainChainHasBlock(block.Hash()) {
			t.Errorf("block %s missing from the main chain",
				block.Hash())
		}
	}
}

// TestDuplicateBlock ensures resubmitting a known block or a known orphan is
// rejected.
func TestDuplicateBlock(t *testing.T) {
	tc, teardown := newTestChain(t, "duplicateblock", simnetParams())
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)

	_, _, err := tc.chain.ProcessBlock(a1, BFNone)
	assertRuleError(t, err, ErrDuplicateBlock)

	// Same treatment for a block sitting in the orphan pool.
	a2 := tc.buildBlock(a1, 0)
	orphan := tc.buildBlock(a2, 0)
	_, isOrphan, err := tc.chain.ProcessBlock(orphan, BFNone)
	if err != nil || !isOrphan {
		t.Fatalf("ProcessBlock(orphan): got isOrphan %v, err %v",
			isOrphan, err)
	}
	_, _, err = tc.chain.ProcessBlock(orphan, BFNone)
	assertRuleError(t, err, ErrDuplicateBlock)
}

// TestInvalidateReconsider exercises the manual invalidation switch: marking
// a main chain block invalid rolls the tip back and refuses descendants,
// while reconsidering it restores the original chain.
func TestInvalidateReconsider(t *testing.T) {
	tc, teardown := newTestChain(t, "invalidatereconsider", simnetParams())
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)
	a2 := tc.buildBlock(a1, 0)
	tc.acceptBlock(a2)
	a3 := tc.buildBlock(a2, 0)
	tc.acceptBlock(a3)

	if err := tc.chain.InvalidateBlock(a2.Hash()); err != nil {
		t.Fatalf("InvalidateBlock: %v", err)
	}
	if best := tc.chain.BestSnapshot(); !best.Hash.IsEqual(a1.Hash()) {
		t.Fatalf("tip after invalidation is %s, want %s", best.Hash,
			a1.Hash())
	}

	// Descendants of the invalidated block are refused outright.
	a4 := tc.buildBlock(a3, 0)
	_, _, err := tc.chain.ProcessBlock(a4, BFNone)
	assertRuleError(t, err, ErrInvalidAncestorBlock)

	if err := tc.chain.ReconsiderBlock(a2.Hash()); err != nil {
		t.Fatalf("ReconsiderBlock: %v", err)
	}
	if best := tc.chain.BestSnapshot(); !best.Hash.IsEqual(a3.Hash()) {
		t.Fatalf("tip after reconsideration is %s, want %s", best.Hash,
			a3.Hash())
	}
}

// TestChainSpend mines past the coinbase maturity window, spends a matured
// coinbase output in a block, and verifies the utxo set reflects the spend on
// both sides of the transaction.
func TestChainSpend(t *testing.T) {
	params := simnetParams()
	tc, teardown := newTestChain(t, "chainspend", params)
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)
	tip := tc.extendChain(a1, int(params.CoinbaseMaturity))

	const fee = 1000
	out := makeSpendableOut(a1, 0, 0)
	spendTx := tc.createSpendTx(out, fee)
	spendBlock := tc.buildBlock(tip, fee, spendTx)
	if !tc.acceptBlock(spendBlock) {
		t.Fatal("spend block did not extend the main chain")
	}

	// The consumed output is gone from the utxo set.
	entry, err := tc.chain.FetchUtxoEntry(out.prevOut)
	if err != nil {
		t.Fatalf("FetchUtxoEntry(spent): %v", err)
	}
	if entry != nil && !entry.IsSpent() {
		t.Fatalf("spent output %v still unspent in the utxo set",
			out.prevOut)
	}

	// The newly created output is present with the expected value.
	newOut := wire.OutPoint{TxID: spendTx.TxHash(), Index: 0}
	entry, err = tc.chain.FetchUtxoEntry(newOut)
	if err != nil {
		t.Fatalf("FetchUtxoEntry(created): %v", err)
	}
	if entry == nil || entry.IsSpent() {
		t.Fatalf("created output %v missing from the utxo set", newOut)
	}
	if entry.Amount() != out.amount-fee {
		t.Fatalf("created output amount is %d, want %d", entry.Amount(),
			out.amount-fee)
	}
}

// TestImmatureSpend ensures a block spending a coinbase output before it
// matures fails to connect and leaves the tip untouched.
func TestImmatureSpend(t *testing.T) {
	tc, teardown := newTestChain(t, "immaturespend", simnetParams())
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)

	// The coinbase of a1 is one block deep, well short of maturity.
	out := makeSpendableOut(a1, 0, 0)
	spendTx := tc.createSpendTx(out, 0)
	bad := tc.buildBlock(a1, 0, spendTx)

	_, _, err := tc.chain.ProcessBlock(bad, BFNone)
	if err == nil {
		t.Fatal("block spending an immature coinbase was accepted")
	}
	if _, ok := err.(RuleError); !ok {
		t.Fatalf("expected a rule error, got %T: %v", err, err)
	}
	if best := tc.chain.BestSnapshot(); !best.Hash.IsEqual(a1.Hash()) {
		t.Fatalf("tip moved to %s after an invalid block", best.Hash)
	}
}

// TestExcessiveCoinbaseMint ensures a block whose coinbase claims more value
// than the subsidy plus the fees it collects fails to connect, while claiming
// exactly the collected fees succeeds.
func TestExcessiveCoinbaseMint(t *testing.T) {
	params := simnetParams()
	tc, teardown := newTestChain(t, "excessivemint", params)
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)
	tip := tc.extendChain(a1, int(params.CoinbaseMaturity))

	// The spend leaves 1000 on the table, but the coinbase claims one
	// satoshi more than that.
	const fee = 1000
	spendTx := tc.createSpendTx(makeSpendableOut(a1, 0, 0), fee)
	bad := tc.buildBlock(tip, fee+1, spendTx)
	_, _, err := tc.chain.ProcessBlock(bad, BFNone)
	assertRuleError(t, err, ErrBadCoinbaseValue)

	// Claiming exactly the subsidy plus the collected fees connects.
	good := tc.buildBlock(tip, fee, spendTx)
	if !tc.acceptBlock(good) {
		t.Fatal("block claiming exactly subsidy plus fees was rejected")
	}
}

// TestCheckpointEnforcement ensures a block landing on a checkpointed height
// with the wrong hash is rejected, the pinned block is accepted, and blocks
// dated before the checkpoint are refused once the checkpoint is part of the
// chain.
func TestCheckpointEnforcement(t *testing.T) {
	// Mine the candidate blocks on an unpinned chain first so their hashes
	// are known before the checkpointed chain is created.
	staging, stagingTeardown := newTestChain(t, "checkpointstaging",
		simnetParams())
	defer stagingTeardown()

	genesis := staging.genesis()
	pinned := staging.buildBlock(genesis, 0)
	impostor := staging.buildBlock(genesis, 0)

	params := simnetParams()
	params.Checkpoints = []chaincfg.Checkpoint{
		{Height: 1, Hash: pinned.Hash()},
	}
	tc, teardown := newTestChain(t, "checkpointenforce", params)
	defer teardown()

	_, _, err := tc.chain.ProcessBlock(impostor, BFNone)
	assertRuleError(t, err, ErrBadCheckpoint)

	isMainChain, _, err := tc.chain.ProcessBlock(pinned, BFNone)
	if err != nil {
		t.Fatalf("ProcessBlock(pinned): unexpected error: %v", err)
	}
	if !isMainChain {
		t.Fatal("checkpointed block did not extend the main chain")
	}

	// A block dated before the checkpointed block trips the timestamp
	// guard now that the checkpoint is in the index.
	stale := staging.buildBlock(pinned, 0)
	staleHeader := &stale.MsgBlock().Header
	staleHeader.Timestamp = pinned.MsgBlock().Header.Timestamp.Add(-time.Second)
	if !solveBlock(staleHeader) {
		t.Fatal("unable to solve back-dated block")
	}
	_, _, err = tc.chain.ProcessBlock(util.NewBlock(stale.MsgBlock()), BFNone)
	assertRuleError(t, err, ErrCheckpointTimeTooOld)
}

// TestCleanShutdownMarker ensures the database carries a dirty marker while
// the chain is running and a clean marker once it has been closed.
func TestCleanShutdownMarker(t *testing.T) {
	tc, teardown := newTestChain(t, "cleanshutdown", simnetParams())
	defer teardown()

	marker, err := tc.chain.db.Get(cleanShutdownKey)
	if err != nil {
		t.Fatalf("Get(cleanShutdownKey): %v", err)
	}
	if len(marker) != 1 || marker[0] != 0 {
		t.Fatalf("running chain marker is %x, want 00", marker)
	}

	if err := tc.chain.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	marker, err = tc.chain.db.Get(cleanShutdownKey)
	if err != nil {
		t.Fatalf("Get(cleanShutdownKey): %v", err)
	}
	if len(marker) != 1 || marker[0] != 1 {
		t.Fatalf("closed chain marker is %x, want 01", marker)
	}
}

// TestCheckConnectBlockTemplate ensures template validation accepts a block
// building on the current tip and rejects one building elsewhere.
func TestCheckConnectBlockTemplate(t *testing.T) {
	tc, teardown := newTestChain(t, "connecttemplate", simnetParams())
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)

	good := tc.buildBlock(a1, 0)
	if err := tc.chain.CheckConnectBlockTemplate(good); err != nil {
		t.Fatalf("CheckConnectBlockTemplate(valid): %v", err)
	}

	// A template extending anything but the current tip is refused.
	stale := tc.buildBlock(genesis, 0)
	err := tc.chain.CheckConnectBlockTemplate(stale)
	assertRuleError(t, err, ErrPrevBlockNotBest)
}
