// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"io/ioutil"
	"os"
	"testing"

	"github.com/kaspanet/go-secp256k1"

	"github.com/solisnet/solisd/chaincfg"
	"github.com/solisnet/solisd/database/ffldb"
	"github.com/solisnet/solisd/txscript"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// chainSetup is used to create a new db and chain instance with the genesis
// block already inserted.  In addition to the new chain instance, it returns
// a teardown function the caller should invoke when done testing to clean up.
func chainSetup(testName string, params *chaincfg.Params) (*BlockChain, func(), error) {
	dbPath, err := ioutil.TempDir("", testName)
	if err != nil {
		return nil, nil, err
	}

	db, err := ffldb.Open(dbPath)
	if err != nil {
		os.RemoveAll(dbPath)
		return nil, nil, err
	}

	chain, err := New(&Config{
		DB:          db,
		ChainParams: params,
		TimeSource:  NewTimeSource(),
		SigCache:    txscript.NewSigCache(1000),
	})
	if err != nil {
		db.Close()
		os.RemoveAll(dbPath)
		return nil, nil, err
	}

	teardown := func() {
		chain.Close()
		db.Close()
		os.RemoveAll(dbPath)
	}
	return chain, teardown, nil
}

// testChain bundles a chain instance with the helpers the tests use to build
// and solve blocks on top of it.  All generated blocks pay to a single
// pay-to-pubkey script whose key the harness controls, so later blocks can
// spend earlier outputs.
type testChain struct {
	t          *testing.T
	chain      *BlockChain
	params     *chaincfg.Params
	key        *secp256k1.SchnorrKeyPair
	payScript  []byte
	extraNonce uint64
	heights    map[chainhash.Hash]int32
}

// newTestKey generates a fresh signing key along with the pay-to-pubkey
// locking script of its public key.
func newTestKey(t *testing.T) (*secp256k1.SchnorrKeyPair, []byte) {
	t.Helper()

	key, err := secp256k1.GenerateSchnorrKeyPair()
	if err != nil {
		t.Fatalf("failed to generate signing key: %s", err)
	}
	pubKey, err := key.SchnorrPublicKey()
	if err != nil {
		t.Fatalf("failed to derive public key: %s", err)
	}
	serializedPubKey, err := pubKey.Serialize()
	if err != nil {
		t.Fatalf("failed to serialize public key: %s", err)
	}
	payScript, err := txscript.PayToPubKey(serializedPubKey[:])
	if err != nil {
		t.Fatalf("failed to build locking script: %s", err)
	}
	return key, payScript
}

// newTestChain creates a chain instance over a temporary database along with
// a signing key and returns it with a teardown function.
func newTestChain(t *testing.T, testName string, params *chaincfg.Params) (*testChain, func()) {
	key, payScript := newTestKey(t)

	chain, teardown, err := chainSetup(testName, params)
	if err != nil {
		t.Fatalf("%s: failed to setup chain instance: %s", testName, err)
	}

	tc := &testChain{
		t:         t,
		chain:     chain,
		params:    params,
		key:       key,
		payScript: payScript,
		heights: map[chainhash.Hash]int32{
			*params.GenesisHash: 0,
		},
	}
	return tc, teardown
}

// genesis returns the genesis block of the harness network wrapped for use as
// a build parent.
func (tc *testChain) genesis() *util.Block {
	block := util.NewBlock(tc.params.GenesisBlock)
	block.SetHeight(0)
	return block
}

// standardCoinbaseScript returns a coinbase signature script for a block at
// the given height.  The extra nonce keeps coinbases at equal heights on
// competing branches distinct.
func standardCoinbaseScript(height int32, extraNonce uint64) []byte {
	script := make([]byte, serializedHeightLen+8)
	binary.LittleEndian.PutUint32(script[:serializedHeightLen], uint32(height))
	binary.LittleEndian.PutUint64(script[serializedHeightLen:], extraNonce)
	return script
}

// createCoinbaseTx returns a coinbase transaction for the given height paying
// the full subsidy plus the provided fees to the harness key.
func (tc *testChain) createCoinbaseTx(height int32, fees int64) *wire.MsgTx {
	tc.extraNonce++

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			^uint32(0)),
		SignatureScript: standardCoinbaseScript(height, tc.extraNonce),
		Sequence:        wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    CalcBlockSubsidy(height, tc.params) + fees,
		PkScript: tc.payScript,
	})
	return tx
}

// solveBlock scans nonces until the block hash satisfies the target encoded
// in the header bits.  It returns false when the nonce space is exhausted,
// which cannot realistically happen on the trivial test networks.
func solveBlock(header *wire.BlockHeader) bool {
	target := CompactToBig(header.Bits)
	for nonce := uint64(0); nonce != ^uint64(0); nonce++ {
		header.Nonce = nonce
		hash := header.BlockHash()
		if HashToBig(&hash).Cmp(target) <= 0 {
			return true
		}
	}
	return false
}

// buildBlock assembles and solves a block extending parent that contains the
// given transactions after its coinbase.  The block timestamp advances one
// target spacing past the parent and the difficulty carries over, which is
// what the retarget rules expect while the window is not yet full.
func (tc *testChain) buildBlock(parent *util.Block, fees int64, txns ...*wire.MsgTx) *util.Block {
	parentHash := parent.Hash()
	parentHeight, ok := tc.heights[*parentHash]
	if !ok {
		tc.t.Fatalf("buildBlock: unknown parent %s", parentHash)
	}
	height := parentHeight + 1

	blockTxns := []*util.Tx{util.NewTx(tc.createCoinbaseTx(height, fees))}
	for _, tx := range txns {
		blockTxns = append(blockTxns, util.NewTx(tx))
	}

	parentHeader := &parent.MsgBlock().Header
	header := wire.BlockHeader{
		Version:    1,
		PrevBlock:  *parentHash,
		MerkleRoot: *CalcMerkleRoot(blockTxns),
		Timestamp:  parentHeader.Timestamp.Add(tc.params.TargetTimePerBlock),
		Bits:       parentHeader.Bits,
	}
	if !solveBlock(&header) {
		tc.t.Fatalf("buildBlock: unable to solve block at height %d",
			height)
	}

	msgBlock := wire.NewMsgBlock(&header)
	for _, tx := range blockTxns {
		msgBlock.AddTransaction(tx.MsgTx())
	}

	block := util.NewBlock(msgBlock)
	block.SetHeight(height)
	tc.heights[*block.Hash()] = height
	return block
}

// acceptBlock processes a block and fails the test unless it was accepted to
// the block index without error.  It returns whether the block made it onto
// the main chain.
func (tc *testChain) acceptBlock(block *util.Block) bool {
	isMainChain, isOrphan, err := tc.chain.ProcessBlock(block, BFNone)
	if err != nil {
		tc.t.Fatalf("ProcessBlock(%s): unexpected error: %v",
			block.Hash(), err)
	}
	if isOrphan {
		tc.t.Fatalf("ProcessBlock(%s): block unexpectedly treated as "+
			"an orphan", block.Hash())
	}
	return isMainChain
}

// extendChain mines numBlocks empty blocks on top of parent and returns the
// new tip, accepting each block into the chain along the way.
func (tc *testChain) extendChain(parent *util.Block, numBlocks int) *util.Block {
	tip := parent
	for i := 0; i < numBlocks; i++ {
		block := tc.buildBlock(tip, 0)
		tc.acceptBlock(block)
		tip = block
	}
	return tip
}

// spendableOut represents an unspent transaction output in a test block.
type spendableOut struct {
	prevOut wire.OutPoint
	amount  int64
}

// makeSpendableOut returns a spendable output from the given transaction of
// the given block.
func makeSpendableOut(block *util.Block, txIndex, txOutIndex uint32) spendableOut {
	tx := block.MsgBlock().Transactions[txIndex]
	return spendableOut{
		prevOut: wire.OutPoint{
			TxID:  tx.TxHash(),
			Index: txOutIndex,
		},
		amount: tx.TxOut[txOutIndex].Value,
	}
}

// createSpendTx builds and signs a transaction spending the provided output
// back to the harness key, leaving the given fee on the table.
func (tc *testChain) createSpendTx(out spendableOut, fee int64) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: out.prevOut,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    out.amount - fee,
		PkScript: tc.payScript,
	})

	sigScript, err := txscript.SignatureScript(tx, 0, tc.payScript,
		txscript.SigHashAll, tc.key)
	if err != nil {
		tc.t.Fatalf("createSpendTx: failed to sign transaction: %v", err)
	}
	tx.TxIn[0].SignatureScript = sigScript
	return tx
}

// assertRuleError fails the test when the passed error is not a RuleError
// carrying the wanted code.
func assertRuleError(t *testing.T, err error, want ErrorCode) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected rule error %v, got no error", want)
	}
	rerr, ok := err.(RuleError)
	if !ok {
		t.Fatalf("expected rule error %v, got %T: %v", want, err, err)
	}
	if rerr.ErrorCode != want {
		t.Fatalf("wrong rule error: got %v, want %v", rerr.ErrorCode,
			want)
	}
}

// simnetParams returns a copy of the simulation network parameters so a test
// can tweak consensus knobs without affecting other tests.
func simnetParams() *chaincfg.Params {
	params := chaincfg.SimnetParams
	return &params
}
