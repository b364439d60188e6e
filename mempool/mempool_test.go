// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/kaspanet/go-secp256k1"

	"github.com/solisnet/solisd/blockchain"
	"github.com/solisnet/solisd/chaincfg"
	"github.com/solisnet/solisd/txscript"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// fakeChain is used by the pool harness to provide generated test utxos and
// a current faked chain height to the pool callbacks.  This, in turn, allows
// transactions to appear as though they are spending completely valid utxos.
type fakeChain struct {
	sync.RWMutex
	utxos          *blockchain.UtxoViewpoint
	currentHeight  int32
	medianTimePast time.Time
}

// FetchUtxoView loads utxo details about the inputs referenced by the passed
// transaction from the point of view of the fake chain.  It also attempts to
// fetch the utxos for the outputs of the transaction itself so the returned
// view can be examined for duplicate transactions.
func (s *fakeChain) FetchUtxoView(tx *util.Tx) (*blockchain.UtxoViewpoint, error) {
	s.RLock()
	defer s.RUnlock()

	// All entries are cloned to ensure modifications to the returned view
	// do not affect the fake chain's view.

	// Add an entry for the tx itself to the new view.
	viewpoint := blockchain.NewUtxoViewpoint()
	prevOut := wire.OutPoint{TxID: *tx.Hash()}
	for txOutIdx := range tx.MsgTx().TxOut {
		prevOut.Index = uint32(txOutIdx)
		entry := s.utxos.LookupEntry(prevOut)
		viewpoint.Entries()[prevOut] = entry.Clone()
	}

	// Add entries for all of the inputs to the tx to the new view.
	for _, txIn := range tx.MsgTx().TxIn {
		entry := s.utxos.LookupEntry(txIn.PreviousOutPoint)
		viewpoint.Entries()[txIn.PreviousOutPoint] = entry.Clone()
	}

	return viewpoint, nil
}

// CheckSpecialTx mirrors the chain's special payload admission hook: a
// special transaction must carry a payload that deserializes before it may
// enter the pool.
func (s *fakeChain) CheckSpecialTx(tx *util.Tx, _ int32, _ *blockchain.UtxoViewpoint) error {
	if tx.MsgTx().TxType == wire.TxTypeNormal {
		return nil
	}
	var payload wire.ProviderRegistration
	err := payload.Deserialize(bytes.NewReader(tx.MsgTx().Payload))
	if err != nil {
		return blockchain.RuleError{
			ErrorCode:   blockchain.ErrInvalidPayload,
			Description: "provider registration payload is malformed",
		}
	}
	return nil
}

// BestHeight returns the current height associated with the fake chain.
func (s *fakeChain) BestHeight() int32 {
	s.RLock()
	height := s.currentHeight
	s.RUnlock()
	return height
}

// SetHeight sets the current height associated with the fake chain.
func (s *fakeChain) SetHeight(height int32) {
	s.Lock()
	s.currentHeight = height
	s.Unlock()
}

// MedianTimePast returns the current median time past associated with the
// fake chain.
func (s *fakeChain) MedianTimePast() time.Time {
	s.RLock()
	mtp := s.medianTimePast
	s.RUnlock()
	return mtp
}

// spendableOutpoint is a convenience type that houses a particular utxo and
// the amount associated with it.
type spendableOutpoint struct {
	outPoint wire.OutPoint
	amount   util.Amount
}

// txOutToSpendableOutpoint returns a spendable outpoint given a transaction
// and index of the output to use.  This is useful as an input to create test
// transactions.
func txOutToSpendableOutpoint(tx *util.Tx, outputNum uint32) spendableOutpoint {
	return spendableOutpoint{
		outPoint: wire.OutPoint{TxID: *tx.Hash(), Index: outputNum},
		amount:   util.Amount(tx.MsgTx().TxOut[outputNum].Value),
	}
}

// poolHarness provides a harness that includes functionality for creating and
// signing transactions as well as a fake chain that provides utxos for use in
// generating valid transactions.
type poolHarness struct {
	signKey     *secp256k1.SchnorrKeyPair
	payScript   []byte
	chainParams *chaincfg.Params

	chain  *fakeChain
	txPool *TxPool
}

// CreateCoinbaseTx returns a coinbase transaction with the requested number of
// outputs paying an appropriate subsidy based on the passed block height to
// the harness key.
func (p *poolHarness) CreateCoinbaseTx(blockHeight int32, numOutputs uint32) (*util.Tx, error) {
	// Create standard coinbase script: serialized block height followed by
	// an extra nonce.
	coinbaseScript := make([]byte, 12)
	binary.LittleEndian.PutUint32(coinbaseScript[:4], uint32(blockHeight))

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		// Coinbase transactions have no inputs, so previous outpoint is
		// zero hash and max index.
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			^uint32(0)),
		SignatureScript: coinbaseScript,
		Sequence:        wire.MaxTxInSequenceNum,
	})
	totalInput := blockchain.CalcBlockSubsidy(blockHeight, p.chainParams)
	amountPerOutput := totalInput / int64(numOutputs)
	remainder := totalInput - amountPerOutput*int64(numOutputs)
	for i := uint32(0); i < numOutputs; i++ {
		// Ensure the final output accounts for any remainder that might
		// be left from splitting the input amount.
		amount := amountPerOutput
		if i == numOutputs-1 {
			amount = amountPerOutput + remainder
		}
		tx.AddTxOut(&wire.TxOut{
			PkScript: p.payScript,
			Value:    amount,
		})
	}

	return util.NewTx(tx), nil
}

// CreateSignedTx creates a new signed transaction that consumes the provided
// inputs and generates the provided number of outputs by evenly splitting the
// total input amount minus the fee.  All outputs are paid to the harness key.
func (p *poolHarness) CreateSignedTx(inputs []spendableOutpoint, numOutputs uint32, fee util.Amount) (*util.Tx, error) {
	// Calculate the total input amounts and split the amount equally to
	// all outputs.
	var totalInput util.Amount
	for _, input := range inputs {
		totalInput += input.amount
	}
	totalInput -= fee
	amountPerOutput := int64(totalInput) / int64(numOutputs)
	remainder := int64(totalInput) - amountPerOutput*int64(numOutputs)

	tx := wire.NewMsgTx(1)
	for _, input := range inputs {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: input.outPoint,
			Sequence:         wire.MaxTxInSequenceNum,
		})
	}
	for i := uint32(0); i < numOutputs; i++ {
		// Ensure the final output accounts for any remainder that might
		// be left from splitting the input amount.
		amount := amountPerOutput
		if i == numOutputs-1 {
			amount = amountPerOutput + remainder
		}
		tx.AddTxOut(&wire.TxOut{
			PkScript: p.payScript,
			Value:    amount,
		})
	}

	// Sign the new transaction.
	for i := range tx.TxIn {
		sigScript, err := txscript.SignatureScript(tx, i, p.payScript,
			txscript.SigHashAll, p.signKey)
		if err != nil {
			return nil, err
		}
		tx.TxIn[i].SignatureScript = sigScript
	}

	return util.NewTx(tx), nil
}

// CreateTxChain creates a chain of zero-fee transactions (each subsequent
// transaction spends the entire amount from the previous one) with the first
// one spending the provided outpoint.
func (p *poolHarness) CreateTxChain(firstOutput spendableOutpoint, numTxns uint32) ([]*util.Tx, error) {
	txChain := make([]*util.Tx, 0, numTxns)
	prevOutPoint := firstOutput.outPoint
	spendableAmount := firstOutput.amount
	for i := uint32(0); i < numTxns; i++ {
		tx := wire.NewMsgTx(1)
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: prevOutPoint,
			Sequence:         wire.MaxTxInSequenceNum,
		})
		tx.AddTxOut(&wire.TxOut{
			PkScript: p.payScript,
			Value:    int64(spendableAmount),
		})

		sigScript, err := txscript.SignatureScript(tx, 0, p.payScript,
			txscript.SigHashAll, p.signKey)
		if err != nil {
			return nil, err
		}
		tx.TxIn[0].SignatureScript = sigScript

		utilTx := util.NewTx(tx)
		txChain = append(txChain, utilTx)

		// Next transaction uses outputs from this one.
		prevOutPoint = wire.OutPoint{TxID: *utilTx.Hash(), Index: 0}
	}

	return txChain, nil
}

// newPoolHarness returns a new instance of a pool harness initialized with a
// fake chain and a TxPool bound to it.  Also, the fake chain is populated
// with the returned spendable outputs so the caller can easily create new
// valid transactions which build off of it.
func newPoolHarness(t *testing.T) (*poolHarness, []spendableOutpoint) {
	t.Helper()

	chainParams := &chaincfg.SimnetParams

	signKey, err := secp256k1.GenerateSchnorrKeyPair()
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}
	pubKey, err := signKey.SchnorrPublicKey()
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	serializedPubKey, err := pubKey.Serialize()
	if err != nil {
		t.Fatalf("failed to serialize public key: %v", err)
	}
	payScript, err := txscript.PayToPubKey(serializedPubKey[:])
	if err != nil {
		t.Fatalf("failed to build locking script: %v", err)
	}

	// Create a new fake chain and harness bound to it.
	chain := &fakeChain{utxos: blockchain.NewUtxoViewpoint()}
	harness := poolHarness{
		signKey:     signKey,
		payScript:   payScript,
		chainParams: chainParams,
		chain:       chain,
	}
	harness.txPool = New(&Config{
		Policy: Policy{
			FreeTxRelayLimit: 15.0,
			MaxOrphanTxs:     5,
			MaxOrphanTxSize:  100000,
			MaxAncestorCount: 25,
			MaxAncestorSize:  101000,
			MaxTxVersion:     1,
			MinRelayTxFee:    1000, // 1 satoshi per byte
		},
		ChainParams:    chainParams,
		FetchUtxoView:  chain.FetchUtxoView,
		CheckSpecialTx: chain.CheckSpecialTx,
		BestHeight:     chain.BestHeight,
		MedianTimePast: chain.MedianTimePast,
		SigCache:       txscript.NewSigCache(1000),
	})

	// Create a single coinbase transaction and add it to the harness
	// chain's utxo set, then set the harness chain height such that the
	// coinbase will mature in the next block.  This ensures the txpool
	// accepts transactions which spend immediately.
	numOutputs := uint32(2)
	outputs := make([]spendableOutpoint, 0, numOutputs)
	curHeight := int32(1) + int32(chainParams.CoinbaseMaturity)
	coinbase, err := harness.CreateCoinbaseTx(1, numOutputs)
	if err != nil {
		t.Fatalf("unable to create coinbase: %v", err)
	}
	chain.utxos.AddTxOuts(coinbase, 1)
	for i := uint32(0); i < numOutputs; i++ {
		outputs = append(outputs, txOutToSpendableOutpoint(coinbase, i))
	}
	chain.SetHeight(curHeight)
	chain.medianTimePast = time.Now()

	return &harness, outputs
}

// testPoolMembership tests the transaction pool associated with the provided
// harness to determine if the passed transaction matches the provided orphan
// pool and transaction pool status.
func testPoolMembership(t *testing.T, p *poolHarness, tx *util.Tx, inOrphanPool, inTxPool bool) {
	t.Helper()

	txHash := tx.Hash()
	gotOrphanPool := p.txPool.IsOrphanInPool(txHash)
	if inOrphanPool != gotOrphanPool {
		t.Fatalf("IsOrphanInPool: want %v, got %v", inOrphanPool,
			gotOrphanPool)
	}

	gotTxPool := p.txPool.IsTransactionInPool(txHash)
	if inTxPool != gotTxPool {
		t.Fatalf("IsTransactionInPool: want %v, got %v", inTxPool,
			gotTxPool)
	}

	gotHaveTx := p.txPool.HaveTransaction(txHash)
	wantHaveTx := inOrphanPool || inTxPool
	if wantHaveTx != gotHaveTx {
		t.Fatalf("HaveTransaction: want %v, got %v", wantHaveTx,
			gotHaveTx)
	}
}

// assertTxRuleError fails the test unless the passed error is a TxRuleError
// with the wanted reject code.
func assertTxRuleError(t *testing.T, err error, want RejectCode) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected reject code %v, got no error", want)
	}
	rerr, ok := err.(RuleError)
	if !ok {
		t.Fatalf("expected RuleError, got %T: %v", err, err)
	}
	txErr, ok := rerr.Err.(TxRuleError)
	if !ok {
		t.Fatalf("expected TxRuleError, got %T: %v", rerr.Err, rerr.Err)
	}
	if txErr.RejectCode != want {
		t.Fatalf("wrong reject code: got %v, want %v", txErr.RejectCode,
			want)
	}
}

// TestSimpleOrphanChain ensures that a chain of orphans is linked into the
// pool in the expected order once the missing parent arrives.
func TestSimpleOrphanChain(t *testing.T) {
	t.Parallel()

	harness, spendableOuts := newPoolHarness(t)

	// Create a chain of transactions rooted with the first spendable
	// output provided by the harness.
	maxOrphans := uint32(harness.txPool.cfg.Policy.MaxOrphanTxs)
	chainedTxns, err := harness.CreateTxChain(spendableOuts[0], maxOrphans+1)
	if err != nil {
		t.Fatalf("unable to create transaction chain: %v", err)
	}

	// Ensure the orphans are accepted (only up to the maximum allowed so
	// none are evicted).
	for _, tx := range chainedTxns[1 : maxOrphans+1] {
		acceptedTxns, err := harness.txPool.ProcessTransaction(tx, true,
			false)
		if err != nil {
			t.Fatalf("ProcessTransaction: failed to accept valid "+
				"orphan %v", err)
		}

		// Ensure no transactions were reported as accepted.
		if len(acceptedTxns) != 0 {
			t.Fatalf("ProcessTransaction: reported %d accepted "+
				"transactions from what should be an orphan",
				len(acceptedTxns))
		}

		// Ensure the transaction is in the orphan pool and not in the
		// transaction pool.
		testPoolMembership(t, harness, tx, true, false)
	}

	// Add the transaction which completes the orphan chain and ensure they
	// all get accepted.
	acceptedTxns, err := harness.txPool.ProcessTransaction(chainedTxns[0],
		false, false)
	if err != nil {
		t.Fatalf("ProcessTransaction: failed to accept valid "+
			"transaction %v", err)
	}
	if len(acceptedTxns) != len(chainedTxns) {
		t.Fatalf("ProcessTransaction: reported accepted transactions "+
			"length does not match expected -- got %d, want %d",
			len(acceptedTxns), len(chainedTxns))
	}
	for _, txD := range acceptedTxns {
		// Ensure the transaction is no longer in the orphan pool and is
		// now in the transaction pool.
		testPoolMembership(t, harness, txD.Tx, false, true)
	}
}

// TestOrphanReject ensures that orphans are rejected when the allow orphans
// flag is not set on ProcessTransaction.
func TestOrphanReject(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	chainedTxns, err := harness.CreateTxChain(outputs[0], 2)
	if err != nil {
		t.Fatalf("unable to create transaction chain: %v", err)
	}

	// Ensure the orphan is rejected when the allow orphans flag is not
	// set.
	orphan := chainedTxns[1]
	acceptedTxns, err := harness.txPool.ProcessTransaction(orphan, false,
		true)
	assertTxRuleError(t, err, RejectDuplicate)
	if len(acceptedTxns) != 0 {
		t.Fatalf("ProcessTransaction: reported %d accepted transactions "+
			"from failed orphan attempt", len(acceptedTxns))
	}
	testPoolMembership(t, harness, orphan, false, false)
}

// TestDoubleSpend ensures that a transaction spending an outpoint already
// consumed by a pool transaction is rejected.  First seen wins; there is no
// fee based replacement.
func TestDoubleSpend(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	tx1, err := harness.CreateSignedTx(outputs[:1], 1, 10000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	if _, err := harness.txPool.ProcessTransaction(tx1, false, false); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}
	testPoolMembership(t, harness, tx1, false, true)

	// A conflicting spend of the same outpoint is refused even though it
	// pays a higher fee.
	tx2, err := harness.CreateSignedTx(outputs[:1], 2, 100000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	_, err = harness.txPool.ProcessTransaction(tx2, false, false)
	assertTxRuleError(t, err, RejectDuplicate)
	testPoolMembership(t, harness, tx1, false, true)
	testPoolMembership(t, harness, tx2, false, false)
}

// TestDuplicateTransaction ensures submitting the same transaction twice is
// rejected as a duplicate.
func TestDuplicateTransaction(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	tx, err := harness.CreateSignedTx(outputs[:1], 1, 10000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	if _, err := harness.txPool.ProcessTransaction(tx, false, false); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}

	_, err = harness.txPool.ProcessTransaction(tx, false, false)
	assertTxRuleError(t, err, RejectDuplicate)
}

// TestInsufficientFee ensures a large transaction paying under the minimum
// relay fee is rejected while the same transaction with a sufficient fee is
// accepted.
func TestInsufficientFee(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	// Enough outputs to push the serialized size past the free relay
	// threshold.
	numOutputs := uint32(30)

	tx, err := harness.CreateSignedTx(outputs[:1], numOutputs, 0)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	if size := tx.MsgTx().SerializeSize(); size < freeTxRelaySizeThreshold {
		t.Fatalf("test transaction is %d bytes, needs at least %d",
			size, freeTxRelaySizeThreshold)
	}
	_, err = harness.txPool.ProcessTransaction(tx, false, false)
	assertTxRuleError(t, err, RejectInsufficientFee)

	// Paying the minimum relay fee for its size makes it acceptable.
	paid, err := harness.CreateSignedTx(outputs[:1], numOutputs, 100000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	if _, err := harness.txPool.ProcessTransaction(paid, false, false); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}
	testPoolMembership(t, harness, paid, false, true)
}

// TestAncestorLimits ensures a transaction whose chain of unconfirmed
// ancestors exceeds the configured limit is rejected.
func TestAncestorLimits(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)
	harness.txPool.cfg.Policy.MaxAncestorCount = 5

	limit := harness.txPool.cfg.Policy.MaxAncestorCount
	chainedTxns, err := harness.CreateTxChain(outputs[0], uint32(limit)+1)
	if err != nil {
		t.Fatalf("unable to create transaction chain: %v", err)
	}

	// Everything up to the limit is accepted.
	for _, tx := range chainedTxns[:limit] {
		if _, err := harness.txPool.ProcessTransaction(tx, false, false); err != nil {
			t.Fatalf("ProcessTransaction: %v", err)
		}
	}

	// One past the limit is rejected as non-standard.
	_, err = harness.txPool.ProcessTransaction(chainedTxns[limit], false,
		false)
	assertTxRuleError(t, err, RejectNonstandard)
	testPoolMembership(t, harness, chainedTxns[limit], false, false)
}

// TestPoolSizeLimit ensures the pool evicts its lowest feerate entries once
// the configured byte budget is exceeded.
func TestPoolSizeLimit(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	// Accept a low feerate transaction first.
	cheap, err := harness.CreateSignedTx(outputs[:1], 1, 1000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	if _, err := harness.txPool.ProcessTransaction(cheap, false, false); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}

	// Lower the pool budget so the next accepted transaction forces an
	// eviction, then submit a higher feerate spend of the other output.
	harness.txPool.cfg.Policy.MaxPoolSize = harness.txPool.Size() + 50

	rich, err := harness.CreateSignedTx(outputs[1:2], 1, 100000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	if _, err := harness.txPool.ProcessTransaction(rich, false, false); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}

	// The cheap transaction was the lowest feerate entry and is gone.
	testPoolMembership(t, harness, cheap, false, false)
	testPoolMembership(t, harness, rich, false, true)
	if size := harness.txPool.Size(); size > harness.txPool.cfg.Policy.MaxPoolSize {
		t.Fatalf("pool size %d exceeds budget %d", size,
			harness.txPool.cfg.Policy.MaxPoolSize)
	}
}

// TestFreeTxRateLimit ensures small free transactions are throttled by the
// penny flood rate limiter.
func TestFreeTxRateLimit(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	// Allow roughly one small free transaction before throttling.
	harness.txPool.cfg.Policy.FreeTxRelayLimit = 0.01

	chainedTxns, err := harness.CreateTxChain(outputs[0], 2)
	if err != nil {
		t.Fatalf("unable to create transaction chain: %v", err)
	}

	// The first free transaction is under the limit and accepted.
	if _, err := harness.txPool.ProcessTransaction(chainedTxns[0], false, true); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}

	// The accumulated free relay bytes now exceed the configured limit, so
	// the next free transaction is throttled.
	_, err = harness.txPool.ProcessTransaction(chainedTxns[1], false, true)
	assertTxRuleError(t, err, RejectInsufficientFee)
}

// TestRejectCoinbase ensures a standalone coinbase transaction is refused.
func TestRejectCoinbase(t *testing.T) {
	t.Parallel()

	harness, _ := newPoolHarness(t)

	coinbase, err := harness.CreateCoinbaseTx(5, 1)
	if err != nil {
		t.Fatalf("unable to create coinbase: %v", err)
	}
	_, err = harness.txPool.ProcessTransaction(coinbase, false, false)
	assertTxRuleError(t, err, RejectInvalid)
}

// TestRejectInvalidPayload ensures a special transaction that fails the chain
// payload check is kept out of the pool with the chain error attached rather
// than lingering until block connection rejects it.
func TestRejectInvalidPayload(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	tx, err := harness.CreateSignedTx(outputs[:1], 1, 100000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	tx.MsgTx().TxType = wire.TxTypeProviderRegister
	tx.MsgTx().Payload = []byte{0xde, 0xad}

	_, err = harness.txPool.ProcessTransaction(tx, true, false)
	if err == nil {
		t.Fatal("transaction with a malformed payload entered the pool")
	}
	rerr, ok := err.(RuleError)
	if !ok {
		t.Fatalf("expected RuleError, got %T: %v", err, err)
	}
	cerr, ok := rerr.Err.(blockchain.RuleError)
	if !ok {
		t.Fatalf("expected chain rule error, got %T: %v", rerr.Err,
			rerr.Err)
	}
	if cerr.ErrorCode != blockchain.ErrInvalidPayload {
		t.Fatalf("wrong rule error: got %v, want %v", cerr.ErrorCode,
			blockchain.ErrInvalidPayload)
	}
	testPoolMembership(t, harness, tx, false, false)
}

// TestRemoveForBlock ensures transactions confirmed by a connected block are
// removed from the pool along with any double spends of the block's inputs.
func TestRemoveForBlock(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	confirmed, err := harness.CreateSignedTx(outputs[:1], 1, 10000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	unrelated, err := harness.CreateSignedTx(outputs[1:2], 1, 10000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	for _, tx := range []*util.Tx{confirmed, unrelated} {
		if _, err := harness.txPool.ProcessTransaction(tx, false, false); err != nil {
			t.Fatalf("ProcessTransaction: %v", err)
		}
	}

	// Build a faked block confirming only the first transaction.
	coinbase, err := harness.CreateCoinbaseTx(harness.chain.BestHeight()+1, 1)
	if err != nil {
		t.Fatalf("unable to create coinbase: %v", err)
	}
	msgBlock := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   1,
		Timestamp: time.Now(),
		Bits:      harness.chainParams.PowLimitBits,
	})
	msgBlock.AddTransaction(coinbase.MsgTx())
	msgBlock.AddTransaction(confirmed.MsgTx())
	block := util.NewBlock(msgBlock)
	block.SetHeight(harness.chain.BestHeight() + 1)

	harness.txPool.RemoveForBlock(block)

	testPoolMembership(t, harness, confirmed, false, false)
	testPoolMembership(t, harness, unrelated, false, true)

	if count := harness.txPool.Count(); count != 1 {
		t.Fatalf("pool count is %d, want 1", count)
	}
}

// TestExpireTransactions ensures entries that linger unconfirmed past the
// expiry interval are removed during the next scan.
func TestExpireTransactions(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)
	harness.txPool.cfg.Policy.TxExpiryInterval = time.Hour

	tx, err := harness.CreateSignedTx(outputs[:1], 1, 10000)
	if err != nil {
		t.Fatalf("unable to create signed tx: %v", err)
	}
	if _, err := harness.txPool.ProcessTransaction(tx, false, false); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}

	// Backdate the entry past the expiry interval and force a scan.
	harness.txPool.mtx.Lock()
	harness.txPool.pool[*tx.Hash()].Added = time.Now().Add(-2 * time.Hour)
	harness.txPool.nextTxScan = time.Time{}
	harness.txPool.expireTransactions()
	harness.txPool.mtx.Unlock()

	testPoolMembership(t, harness, tx, false, false)
}

// TestFetchTransaction ensures pool transactions are retrievable by hash and
// orphans are not.
func TestFetchTransaction(t *testing.T) {
	t.Parallel()

	harness, outputs := newPoolHarness(t)

	chainedTxns, err := harness.CreateTxChain(outputs[0], 2)
	if err != nil {
		t.Fatalf("unable to create transaction chain: %v", err)
	}

	// The orphan is not fetchable.
	orphan := chainedTxns[1]
	if _, err := harness.txPool.ProcessTransaction(orphan, true, false); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}
	if _, err := harness.txPool.FetchTransaction(orphan.Hash()); err == nil {
		t.Fatal("fetched an orphan from the main pool")
	}

	// The accepted parent is.
	parent := chainedTxns[0]
	if _, err := harness.txPool.ProcessTransaction(parent, false, false); err != nil {
		t.Fatalf("ProcessTransaction: %v", err)
	}
	fetched, err := harness.txPool.FetchTransaction(parent.Hash())
	if err != nil {
		t.Fatalf("FetchTransaction: %v", err)
	}
	if !fetched.Hash().IsEqual(parent.Hash()) {
		t.Fatalf("fetched wrong transaction: got %s, want %s",
			fetched.Hash(), parent.Hash())
	}
}
