// Copyright (c) 2013-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"sync"
	"time"

	"github.com/kaspanet/go-muhash"
	"github.com/pkg/errors"

	"github.com/solisnet/solisd/chaincfg"
	"github.com/solisnet/solisd/database"
	"github.com/solisnet/solisd/txscript"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

const (
	// reorgBatchSize is the number of blocks connected per batch during a
	// chain reorganization.  The chain state lock is yielded between
	// batches so waiting readers are not starved during a long reorg.
	// This is a liveness mechanism, not a performance tweak.
	reorgBatchSize = 32

	// forkWarningDepth is the divergence, in blocks, past which a
	// comparable-work alternate chain triggers an operator-facing warning.
	forkWarningDepth = 6
)

// BestState houses information about the current best block and other info
// related to the state of the main chain as it exists from the point of view
// of the current best block.
//
// The BestSnapshot method can be used to obtain access to this information
// in a concurrent safe manner and the data will not be changed out from under
// the caller when chain state changes occur as the function name implies.
// However, the returned snapshot must be treated as immutable since it is
// shared by all callers.
type BestState struct {
	Hash       chainhash.Hash // The hash of the block.
	Height     int32          // The height of the block.
	Bits       uint32         // The difficulty bits of the block.
	BlockSize  uint64         // The size of the block.
	NumTxns    uint64         // The number of txns in the block.
	TotalTxns  uint64         // The total number of txns in the chain.
	MedianTime time.Time      // Median time as per CalcPastMedianTime.
}

// newBestState returns a new best stats instance for the given parameters.
func newBestState(node *blockNode, blockSize, numTxns, totalTxns uint64, medianTime time.Time) *BestState {
	return &BestState{
		Hash:       node.hash,
		Height:     node.height,
		Bits:       node.bits,
		BlockSize:  blockSize,
		NumTxns:    numTxns,
		TotalTxns:  totalTxns,
		MedianTime: medianTime,
	}
}

// BlockChain provides functions for working with the solis block chain.  It
// includes functionality such as rejecting duplicate blocks, ensuring blocks
// follow all rules, orphan handling, checkpoint handling, and best chain
// selection with reorganization.
type BlockChain struct {
	// The following fields are set when the instance is created and can't
	// be changed afterwards, so there is no need to protect them with a
	// separate lock.
	checkpoints         []chaincfg.Checkpoint
	checkpointsByHeight map[int32]*chaincfg.Checkpoint
	db                  database.Database
	chainParams         *chaincfg.Params
	timeSource          TimeSource
	sigCache            *txscript.SigCache
	indexTxs            bool
	interrupt           <-chan struct{}

	// chainLock protects concurrent access to the vast majority of the
	// fields in this struct below this point.  It is the dominant lock:
	// any read or write of the block index, candidate set, active chain
	// pointer, or the utxo view best-block pointer must hold it.  Script
	// signature verification is the one operation designed to run outside
	// it.
	chainLock sync.RWMutex

	// These fields are related to the memory block index.  They both have
	// their own locks, however they are often also protected by the chain
	// lock to help prevent logic races when blocks are being processed.
	index     *blockIndex
	bestChain *chainView

	// candidateTips is the set of block nodes that are eligible to become
	// the chain tip: their data and all ancestor data is available and no
	// ancestor is known to have failed validation.  Selection order is
	// (work desc, sequence asc).  Owned by the chain lock.
	candidateTips map[*blockNode]struct{}

	// These fields are related to handling of orphan blocks.  They are
	// protected by a combination of the chain lock and the orphan lock.
	orphanLock   sync.RWMutex
	orphans      map[chainhash.Hash]*orphanBlock
	prevOrphans  map[chainhash.Hash][]*orphanBlock
	oldestOrphan *orphanBlock

	// utxoMultiset is the running commitment over the unspent output set.
	// It is updated on every connect and disconnect and persisted with the
	// best chain state.  Owned by the chain lock.
	utxoMultiset *muhash.MuHash

	// bestInvalid tracks the highest-work chain tip known to be invalid or
	// stalled.  It drives the fork divergence warning and is never used
	// for consensus.  Owned by the chain lock.
	bestInvalid *blockNode

	// stateLock protects concurrent access to the chain state (this field
	// and stateSnapshot).
	stateLock     sync.RWMutex
	stateSnapshot *BestState

	// The notifications field stores a slice of callbacks to be executed on
	// certain blockchain events.
	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
}

// HaveBlock returns whether or not the chain instance has the block
// represented by the passed hash.  This includes checking the various places
// a block can be like part of the main chain, on a side chain, or in the
// orphan pool.
//
// This function is safe for concurrent access.
func (b *BlockChain) HaveBlock(hash *chainhash.Hash) bool {
	return b.index.HaveBlock(hash) || b.IsKnownOrphan(hash)
}

// BestSnapshot returns information about the current best chain block and
// related state as of the current point in time.  The returned instance must
// be treated as immutable since it is shared by all callers.
//
// This function is safe for concurrent access.
func (b *BlockChain) BestSnapshot() *BestState {
	b.stateLock.RLock()
	snapshot := b.stateSnapshot
	b.stateLock.RUnlock()
	return snapshot
}

// IsCurrent returns whether or not the chain believes it is current.  Several
// factors are used to guess, but the key factors that allow the chain to
// believe it is current are:
//  - Latest block height is after the latest checkpoint (if enabled)
//  - Latest block has a timestamp newer than 24 hours ago
//
// This function is safe for concurrent access.
func (b *BlockChain) IsCurrent() bool {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	// Not current if the latest main (best) chain height is before the
	// latest known good checkpoint (when checkpoints are enabled).
	checkpoint := b.LatestCheckpoint()
	tip := b.bestChain.Tip()
	if checkpoint != nil && tip.height < checkpoint.Height {
		return false
	}

	// Not current if the latest best block has a timestamp before 24 hours
	// ago.
	minus24Hours := b.timeSource.Now().Add(-24 * time.Hour).Unix()
	return tip.timestamp >= minus24Hours
}

// BlockHeightByHash returns the height of the block with the given hash in the
// main chain.
//
// This function is safe for concurrent access.
func (b *BlockChain) BlockHeightByHash(hash *chainhash.Hash) (int32, error) {
	node := b.index.LookupNode(hash)
	if node == nil || !b.bestChain.Contains(node) {
		return 0, errors.Errorf("block %s is not in the main chain", hash)
	}

	return node.height, nil
}

// BlockHashByHeight returns the hash of the block at the given height in the
// main chain.
//
// This function is safe for concurrent access.
func (b *BlockChain) BlockHashByHeight(blockHeight int32) (*chainhash.Hash, error) {
	node := b.bestChain.NodeByHeight(blockHeight)
	if node == nil {
		return nil, errors.Errorf("no block at height %d exists",
			blockHeight)
	}

	return &node.hash, nil
}

// MainChainHasBlock returns whether or not the block with the given hash is in
// the main chain.
//
// This function is safe for concurrent access.
func (b *BlockChain) MainChainHasBlock(hash *chainhash.Hash) bool {
	node := b.index.LookupNode(hash)
	return node != nil && b.bestChain.Contains(node)
}

// GetTransaction returns the transaction with the given hash along with the
// hash of the block that confirmed it.  It requires the transaction index to
// be enabled.
//
// This function is safe for concurrent access.
func (b *BlockChain) GetTransaction(txHash *chainhash.Hash) (*util.Tx, *chainhash.Hash, error) {
	if !b.indexTxs {
		return nil, nil, errors.New("transaction index is not enabled")
	}

	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	blockHash, err := dbFetchTxIndexEntry(b.db, txHash)
	if err != nil {
		return nil, nil, err
	}
	block, err := dbFetchBlockByHash(b.db, blockHash)
	if err != nil {
		return nil, nil, err
	}
	for _, tx := range block.Transactions() {
		if tx.Hash().IsEqual(txHash) {
			return tx, blockHash, nil
		}
	}
	return nil, nil, errors.Errorf("transaction %s is indexed to block "+
		"%s but is not part of it", txHash, blockHash)
}

// addCandidateTip adds the passed node to the candidate set when it is
// eligible: its data and all ancestor data must be available with no failed
// ancestor.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) addCandidateTip(node *blockNode) {
	status := b.index.NodeStatus(node)
	if !status.HaveData() || status.KnownInvalid() {
		return
	}
	b.candidateTips[node] = struct{}{}

	// The parent can no longer be a tip.
	if node.parent != nil {
		delete(b.candidateTips, node.parent)
	}
}

// pruneCandidateTips removes candidates that can never again win the selection
// because they carry no more work than the active tip and are part of the
// active chain's history.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) pruneCandidateTips() {
	tip := b.bestChain.Tip()
	for node := range b.candidateTips {
		if node == tip {
			continue
		}
		if node.workSum.Cmp(tip.workSum) <= 0 && b.bestChain.Contains(node) {
			delete(b.candidateTips, node)
		}
	}
}

// findMostWorkChain selects the best-ranked entry from the candidate set whose
// full ancestor path back to the active chain has data and no failed ancestor.
// Candidates discovered to be unusable are lazily pruned, and usable ancestors
// of a failed candidate are re-homed into the set.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) findMostWorkChain() *blockNode {
	for {
		// Pick the best candidate by (work desc, sequence asc).
		var best *blockNode
		for node := range b.candidateTips {
			if best == nil {
				best = node
				continue
			}
			switch node.workSum.Cmp(best.workSum) {
			case 1:
				best = node
			case 0:
				if node.sequence < best.sequence {
					best = node
				}
			}
		}
		if best == nil {
			return nil
		}

		// Verify the path from the candidate back to the active chain
		// is fully usable.  A failed or data-missing ancestor
		// disqualifies the candidate; its deepest usable ancestor is
		// re-homed into the candidate set so the subtree is not lost.
		usable := true
		for node := best; node != nil && !b.bestChain.Contains(node); node = node.parent {
			status := b.index.NodeStatus(node)
			if status.KnownInvalid() || !status.HaveData() {
				usable = false
				delete(b.candidateTips, best)
				if node.parent != nil {
					b.addCandidateTip(node.parent)
				}
				break
			}
		}
		if usable {
			return best
		}
	}
}

// connectBlock handles connecting the passed node/block to the end of the main
// (best) chain.
//
// This passed utxo view must have all referenced txos the block spends marked
// as spent and all of the new txos the block creates added to it.  In
// addition, the passed stxos slice must be populated with all of the
// information for the spent txos.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) connectBlock(node *blockNode, block *util.Block, view *UtxoViewpoint, stxos []SpentTxOut) error {
	// Make sure it's extending the end of the best chain.
	prevHash := &block.MsgBlock().Header.PrevBlock
	tip := b.bestChain.Tip()
	if tip != nil && !prevHash.IsEqual(&tip.hash) {
		return AssertError("connectBlock must be called with a block " +
			"that extends the main chain")
	}

	// Sanity check the correct number of stxos are provided.
	if len(stxos) != countSpentOutputs(block) {
		return AssertError("connectBlock called with inconsistent " +
			"spent transaction out information")
	}

	// Update the utxo commitment: remove every spent output and add every
	// created output that entered the set.
	err := b.updateMultisetConnect(block, view, stxos)
	if err != nil {
		return err
	}

	// Generate a new best state snapshot that will be used to update the
	// database and later memory if all database updates are successful.
	b.stateLock.RLock()
	curTotalTxns := b.stateSnapshot.TotalTxns
	b.stateLock.RUnlock()
	numTxns := uint64(len(block.MsgBlock().Transactions))
	blockSize := uint64(block.MsgBlock().SerializeSize())
	state := newBestState(node, blockSize, numTxns, curTotalTxns+numTxns,
		node.CalcPastMedianTime())

	// Atomically insert info into the database.
	dbTx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	// Update best block state.
	err = dbPutBestState(dbTx, state, node.workSum, b.utxoMultiset)
	if err != nil {
		return err
	}

	// Update the utxo set using the state of the utxo view.  This
	// entails removing all of the utxos spent and adding the new
	// ones created by the block.
	err = dbPutUtxoView(dbTx, view)
	if err != nil {
		return err
	}

	// Update the undo journal by storing a record for the block.
	err = dbStoreUndoData(dbTx, block.Hash(), stxos)
	if err != nil {
		return err
	}

	// Record any provider registrations the block confirms.
	err = dbPutProviderRegistrations(dbTx, block)
	if err != nil {
		return err
	}

	// Index the block's transactions when the transaction index is
	// enabled.
	if b.indexTxs {
		err = dbPutTxIndexEntries(dbTx, block)
		if err != nil {
			return err
		}
	}

	err = dbTx.Commit()
	if err != nil {
		return err
	}

	// Prune fully spent entries and mark all entries in the view unmodified
	// now that the modifications have been committed to the database.
	view.commit()

	// This node is now the end of the best chain.
	b.bestChain.SetTip(node)

	// Update the state for the best block.  Notice how this replaces the
	// entire struct instead of updating the existing one.  This effectively
	// allows the old version to act as a snapshot which callers can use
	// freely without needing to hold a lock for the duration.
	b.stateLock.Lock()
	b.stateSnapshot = state
	b.stateLock.Unlock()

	// Notify the caller that the block was connected to the main chain.
	// The caller would typically want to react with actions such as
	// updating wallets.
	b.chainLock.Unlock()
	b.sendNotification(NTBlockConnected, block)
	b.chainLock.Lock()

	return nil
}

// disconnectBlock handles disconnecting the passed node/block from the end of
// the main (best) chain.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) disconnectBlock(node *blockNode, block *util.Block, view *UtxoViewpoint, stxos []SpentTxOut) error {
	// Make sure the node being disconnected is the end of the best chain.
	tip := b.bestChain.Tip()
	if tip == nil || !node.hash.IsEqual(&tip.hash) {
		return AssertError("disconnectBlock must be called with the " +
			"block at the end of the main chain")
	}

	// Load the previous block since some details for it are needed below.
	prevNode := node.parent
	prevBlock, err := b.fetchBlockByNode(prevNode)
	if err != nil {
		return err
	}

	// Update the utxo commitment: add back every output the block spent and
	// remove every output it created.
	err = b.updateMultisetDisconnect(block, view, stxos)
	if err != nil {
		return err
	}

	// Generate a new best state snapshot that will be used to update the
	// database and later memory if all database updates are successful.
	b.stateLock.RLock()
	curTotalTxns := b.stateSnapshot.TotalTxns
	b.stateLock.RUnlock()
	numTxns := uint64(len(prevBlock.MsgBlock().Transactions))
	blockSize := uint64(prevBlock.MsgBlock().SerializeSize())
	newTotalTxns := curTotalTxns - uint64(len(block.MsgBlock().Transactions))
	state := newBestState(prevNode, blockSize, numTxns, newTotalTxns,
		prevNode.CalcPastMedianTime())

	// Atomically update the database.
	dbTx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	// Update best block state.
	err = dbPutBestState(dbTx, state, prevNode.workSum, b.utxoMultiset)
	if err != nil {
		return err
	}

	// Update the utxo set using the state of the utxo view.  This entails
	// restoring all of the utxos spent and removing the new ones created by
	// the block.
	err = dbPutUtxoView(dbTx, view)
	if err != nil {
		return err
	}

	// The undo record is no longer needed once its block has been
	// disconnected; drop its location so it cannot be paired with a
	// reconnected sibling.
	err = dbTx.Delete(undoLocationsBucket.Key(node.hash[:]))
	if err != nil {
		return err
	}

	// Back out any provider registrations the block confirmed.
	err = dbRemoveProviderRegistrations(dbTx, block)
	if err != nil {
		return err
	}

	if b.indexTxs {
		err = dbRemoveTxIndexEntries(dbTx, block)
		if err != nil {
			return err
		}
	}

	err = dbTx.Commit()
	if err != nil {
		return err
	}

	// Prune fully spent entries and mark all entries in the view unmodified
	// now that the modifications have been committed to the database.
	view.commit()

	// This node's parent is now the end of the best chain.
	b.bestChain.SetTip(node.parent)

	// Update the state for the best block.
	b.stateLock.Lock()
	b.stateSnapshot = state
	b.stateLock.Unlock()

	// Notify the caller that the block was disconnected from the main
	// chain.  The caller would typically want to react with actions such as
	// updating wallets.
	b.chainLock.Unlock()
	b.sendNotification(NTBlockDisconnected, block)
	b.chainLock.Lock()

	return nil
}

// updateMultisetConnect folds the effects of connecting the given block into
// the utxo commitment multiset.
func (b *BlockChain) updateMultisetConnect(block *util.Block, view *UtxoViewpoint, stxos []SpentTxOut) error {
	// Remove every output the block spends using the undo data, which
	// carries the originating entry details.
	stxoIdx := 0
	for _, tx := range block.Transactions()[1:] {
		for _, txIn := range tx.MsgTx().TxIn {
			stxo := &stxos[stxoIdx]
			stxoIdx++
			entry := &UtxoEntry{
				amount:      stxo.Amount,
				pkScript:    stxo.PkScript,
				blockHeight: stxo.Height,
			}
			if stxo.IsCoinBase {
				entry.packedFlags |= tfCoinBase
			}
			if stxo.IsCoinStake {
				entry.packedFlags |= tfCoinStake
			}
			err := removeUtxoFromMultiset(b.utxoMultiset,
				txIn.PreviousOutPoint, entry)
			if err != nil {
				return err
			}
		}
	}

	// Add every spendable output the block creates.  The view carries the
	// definitive entry for each.
	for _, tx := range block.Transactions() {
		outpoint := wire.OutPoint{TxID: *tx.Hash()}
		for txOutIdx := range tx.MsgTx().TxOut {
			outpoint.Index = uint32(txOutIdx)
			entry := view.LookupEntry(outpoint)
			if entry == nil {
				continue
			}
			err := addUtxoToMultiset(b.utxoMultiset, outpoint, entry)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// updateMultisetDisconnect folds the effects of disconnecting the given block
// into the utxo commitment multiset.  It is the exact inverse of
// updateMultisetConnect.
func (b *BlockChain) updateMultisetDisconnect(block *util.Block, view *UtxoViewpoint, stxos []SpentTxOut) error {
	// Remove every spendable output the block created.
	for _, tx := range block.Transactions() {
		var flags txoFlags
		if tx.IsCoinBase() {
			flags |= tfCoinBase
		}
		if tx.IsCoinStake() {
			flags |= tfCoinStake
		}
		outpoint := wire.OutPoint{TxID: *tx.Hash()}
		for txOutIdx, txOut := range tx.MsgTx().TxOut {
			if txscript.IsUnspendable(txOut.PkScript) {
				continue
			}
			outpoint.Index = uint32(txOutIdx)
			entry := &UtxoEntry{
				amount:      txOut.Value,
				pkScript:    txOut.PkScript,
				blockHeight: block.Height(),
				packedFlags: flags,
			}
			err := removeUtxoFromMultiset(b.utxoMultiset, outpoint,
				entry)
			if err != nil {
				return err
			}
		}
	}

	// Add back every output the block spent.
	stxoIdx := 0
	for _, tx := range block.Transactions()[1:] {
		for _, txIn := range tx.MsgTx().TxIn {
			stxo := &stxos[stxoIdx]
			stxoIdx++
			entry := &UtxoEntry{
				amount:      stxo.Amount,
				pkScript:    stxo.PkScript,
				blockHeight: stxo.Height,
			}
			if stxo.IsCoinBase {
				entry.packedFlags |= tfCoinBase
			}
			if stxo.IsCoinStake {
				entry.packedFlags |= tfCoinStake
			}
			err := addUtxoToMultiset(b.utxoMultiset,
				txIn.PreviousOutPoint, entry)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// connectTip validates and connects the single block for the passed node to
// the current best chain tip.  The block is loaded from the database, fully
// validated against the current utxo state, and committed.
//
// When validation fails with a rule violation, the node is marked failed, its
// queued descendants are marked as having an invalid ancestor, and the rule
// error is returned.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) connectTip(node *blockNode) error {
	block, err := b.fetchBlockByNode(node)
	if err != nil {
		return err
	}

	// Validation is skipped for blocks already known fully valid, such as
	// those being reconnected during a reorganization back to a previously
	// validated chain segment.
	view := NewUtxoViewpoint()
	view.SetBestHash(&b.bestChain.Tip().hash)
	stxos := make([]SpentTxOut, 0, countSpentOutputs(block))
	if b.index.NodeStatus(node).KnownValid() {
		err = view.fetchInputUtxos(b.db, block)
		if err != nil {
			return err
		}
		err = view.connectTransactions(block, &stxos)
		if err != nil {
			return err
		}
	} else {
		err = b.checkConnectBlock(node, block, view, &stxos)
		if err != nil {
			if _, ok := err.(RuleError); ok {
				b.markBlockFailed(node)
			}
			return err
		}
		b.index.RaiseValidity(node, statusScriptsValid)
	}

	return b.connectBlock(node, block, view, stxos)
}

// disconnectTip removes the current best chain tip.  The block's effects on
// the utxo set are reversed using its undo record.  A mismatch between the
// undo record and the connected state is surfaced as an unclean disconnect
// error rather than being silently ignored.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) disconnectTip() error {
	tip := b.bestChain.Tip()
	block, err := b.fetchBlockByNode(tip)
	if err != nil {
		return err
	}

	// Load all of the utxos referenced by the block being disconnected and
	// the undo record so the view can reverse the block's effects.
	view := NewUtxoViewpoint()
	view.SetBestHash(&tip.hash)
	err = view.fetchInputUtxos(b.db, block)
	if err != nil {
		return err
	}
	stxos, err := dbFetchUndoData(b.db, &tip.hash)
	if err != nil {
		return errors.Wrapf(err, "unclean disconnect of block %s",
			tip.hash)
	}
	err = view.disconnectTransactions(block, stxos)
	if err != nil {
		return errors.Wrapf(err, "unclean disconnect of block %s",
			tip.hash)
	}

	return b.disconnectBlock(tip, block, view, stxos)
}

// markBlockFailed marks the passed node as having failed validation and every
// known descendant as the child of an invalid ancestor, then removes the
// affected nodes from the candidate set and updates the best known invalid
// tip for fork warnings.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) markBlockFailed(node *blockNode) {
	b.index.SetStatusFlags(node, statusValidateFailed)
	delete(b.candidateTips, node)

	// Walk the entire index to flag descendants.  Validation failures are
	// rare enough that the full scan is not a concern.
	b.index.RLock()
	descendants := make([]*blockNode, 0)
	for _, candidate := range b.index.index {
		for n := candidate.parent; n != nil; n = n.parent {
			if n == node {
				descendants = append(descendants, candidate)
				break
			}
			if n.height < node.height {
				break
			}
		}
	}
	b.index.RUnlock()

	for _, descendant := range descendants {
		b.index.SetStatusFlags(descendant, statusInvalidAncestor)
		delete(b.candidateTips, descendant)
	}

	// Track the failed subtree's best tip for divergence warnings.
	worst := node
	for _, descendant := range descendants {
		if descendant.workSum.Cmp(worst.workSum) > 0 {
			worst = descendant
		}
	}
	if b.bestInvalid == nil || worst.workSum.Cmp(b.bestInvalid.workSum) > 0 {
		b.bestInvalid = worst
	}
}

// warnOnForkDivergence emits an operator-facing warning when a known invalid
// or alternate chain diverges from the active chain by more than a small
// margin while carrying comparable or greater work.  It is an observability
// signal only.
//
// This function MUST be called with the chain state lock held (for reads).
func (b *BlockChain) warnOnForkDivergence() {
	if b.bestInvalid == nil {
		return
	}
	tip := b.bestChain.Tip()
	if b.bestInvalid.workSum.Cmp(tip.workSum) < 0 {
		return
	}
	fork := b.bestChain.FindFork(b.bestInvalid)
	if fork == nil || tip.height-fork.height <= forkWarningDepth {
		return
	}
	log.Warnf("Found an invalid chain with comparable or greater work "+
		"forking from height %d (tip %s at height %d); your node may "+
		"need upgrading", fork.height, b.bestInvalid.hash,
		b.bestInvalid.height)
}

// activateBestChainStep walks the active chain one step toward the target
// node: it disconnects blocks down to the fork point one at a time, then
// connects blocks toward the target in bounded batches, yielding the chain
// state lock between batches so other readers are not starved.
//
// When a connect step fails with a rule violation, the failing block and its
// queued descendants have already been marked failed; the chain is left at
// whatever intermediate point was reached and the caller re-selects.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) activateBestChainStep(target *blockNode) error {
	// Find the fork point between the current tip and the target.
	fork := b.bestChain.FindFork(target)

	// Disconnect blocks from the tip down to the fork point, rightmost
	// first.
	for tip := b.bestChain.Tip(); tip != nil && tip != fork; tip = b.bestChain.Tip() {
		if interruptRequested(b.interrupt) {
			return errInterruptRequested
		}
		err := b.disconnectTip()
		if err != nil {
			return err
		}
	}

	// Collect the nodes to connect, leftmost first.
	attachNodes := make([]*blockNode, 0, target.height-fork.height)
	for n := target; n != nil && n != fork; n = n.parent {
		attachNodes = append(attachNodes, n)
	}
	for i, j := 0, len(attachNodes)-1; i < j; i, j = i+1, j-1 {
		attachNodes[i], attachNodes[j] = attachNodes[j], attachNodes[i]
	}

	// Connect in batches, yielding the lock between them.
	for len(attachNodes) > 0 {
		batch := attachNodes
		if len(batch) > reorgBatchSize {
			batch = batch[:reorgBatchSize]
		}
		for _, node := range batch {
			if interruptRequested(b.interrupt) {
				return errInterruptRequested
			}
			err := b.connectTip(node)
			if err != nil {
				return err
			}
		}
		attachNodes = attachNodes[len(batch):]

		// Give waiting readers a chance to acquire the chain state
		// lock before the next batch.
		if len(attachNodes) > 0 {
			b.chainLock.Unlock()
			b.chainLock.Lock()
		}
	}

	return nil
}

// errInterruptRequested indicates a chain operation was aborted due to an
// operator-requested shutdown.
var errInterruptRequested = errors.New("interrupt requested")

// interruptRequested returns true when the provided channel has been closed,
// signalling a shutdown request.
func interruptRequested(interrupt <-chan struct{}) bool {
	if interrupt == nil {
		return false
	}
	select {
	case <-interrupt:
		return true
	default:
	}
	return false
}

// activateBestChain repeatedly selects the most-work usable candidate and
// walks the active chain toward it until the active tip is the best known
// valid, data-complete block.  Connect failures mark the offending subtree
// failed and fall through to re-selection, so the loop always terminates with
// the invariant intact: no better candidate remains unconsidered.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) activateBestChain() error {
	for {
		if interruptRequested(b.interrupt) {
			return errInterruptRequested
		}

		target := b.findMostWorkChain()
		tip := b.bestChain.Tip()
		if target == nil || target == tip {
			break
		}
		if target.workSum.Cmp(tip.workSum) <= 0 && target != tip {
			// The best candidate carries no more work than the
			// active tip; nothing to do.
			break
		}

		err := b.activateBestChainStep(target)
		if err != nil {
			if _, ok := err.(RuleError); ok {
				// The failing block was marked; re-select.
				log.Warnf("Rejected block during chain "+
					"activation: %v", err)
				continue
			}
			return err
		}
	}

	b.pruneCandidateTips()
	b.warnOnForkDivergence()
	return nil
}

// InvalidateBlock manually marks the block with the given hash and all of its
// descendants as failed validation and re-selects the best chain.  It is an
// administrative override.
//
// This function is safe for concurrent access.
func (b *BlockChain) InvalidateBlock(hash *chainhash.Hash) error {
	b.chainLock.Lock()
	defer b.chainLock.Unlock()

	node := b.index.LookupNode(hash)
	if node == nil {
		return errors.Errorf("block %s is not known", hash)
	}
	if node.height == 0 {
		return errors.New("the genesis block cannot be invalidated")
	}

	// Walk the active tip back below the invalidated block first so the
	// disconnect path runs under normal rules.
	for b.bestChain.Contains(node) {
		err := b.disconnectTip()
		if err != nil {
			return err
		}
	}

	b.markBlockFailed(node)
	b.addCandidateTip(node.parent)
	return b.activateBestChain()
}

// ReconsiderBlock clears the failed status of the block with the given hash
// and all of its descendants, re-admitting them to the candidate set, and
// re-selects the best chain.  It is the administrative inverse of
// InvalidateBlock.
//
// This function is safe for concurrent access.
func (b *BlockChain) ReconsiderBlock(hash *chainhash.Hash) error {
	b.chainLock.Lock()
	defer b.chainLock.Unlock()

	node := b.index.LookupNode(hash)
	if node == nil {
		return errors.Errorf("block %s is not known", hash)
	}

	b.index.UnsetStatusFlags(node, statusValidateFailed|statusInvalidAncestor)

	b.index.RLock()
	cleared := make([]*blockNode, 0)
	for _, candidate := range b.index.index {
		for n := candidate.parent; n != nil; n = n.parent {
			if n == node {
				cleared = append(cleared, candidate)
				break
			}
			if n.height < node.height {
				break
			}
		}
	}
	b.index.RUnlock()

	for _, descendant := range cleared {
		b.index.UnsetStatusFlags(descendant,
			statusValidateFailed|statusInvalidAncestor)
	}

	// Re-home candidates: the reconsidered node and every cleared
	// descendant with data becomes tip-eligible again.
	b.addCandidateTip(node)
	for _, descendant := range cleared {
		b.addCandidateTip(descendant)
	}
	if b.bestInvalid == node || containsNode(cleared, b.bestInvalid) {
		b.bestInvalid = nil
	}

	return b.activateBestChain()
}

func containsNode(nodes []*blockNode, target *blockNode) bool {
	for _, n := range nodes {
		if n == target {
			return true
		}
	}
	return false
}

// CheckConnectBlockTemplate fully validates that connecting the passed block
// to the main chain does not violate any consensus rules, aside from the proof
// of work requirement.  The block must connect to the current tip of the main
// chain.  All checks run against a disposable view, so no state is committed.
//
// This function is safe for concurrent access.
func (b *BlockChain) CheckConnectBlockTemplate(block *util.Block) error {
	b.chainLock.Lock()
	defer b.chainLock.Unlock()

	// Skip the proof of work check as this is just a block template.
	flags := BFNoPoWCheck

	// This only checks whether the block can be connected to the tip of the
	// current chain.
	tip := b.bestChain.Tip()
	header := &block.MsgBlock().Header
	if tip.hash != header.PrevBlock {
		str := fmt.Sprintf("previous block must be the current chain "+
			"tip %v, instead got %v", tip.hash, header.PrevBlock)
		return ruleError(ErrPrevBlockNotBest, str)
	}

	err := b.checkBlockSanity(block, flags)
	if err != nil {
		return err
	}

	err = b.checkBlockContext(block, tip, flags)
	if err != nil {
		return err
	}

	// Leave the spent txouts entry nil in the state since the information
	// is not needed and thus extra work can be avoided.
	view := NewUtxoViewpoint()
	view.SetBestHash(&tip.hash)
	block.SetHeight(tip.height + 1)
	newNode := newBlockNode(header, tip)
	return b.checkConnectBlock(newNode, block, view, nil)
}

// Config is a descriptor which specifies the blockchain instance configuration.
type Config struct {
	// DB defines the database which houses the blocks and will be used to
	// store all metadata created by this package such as the utxo set.
	//
	// This field is required.
	DB database.Database

	// Interrupt specifies a channel the caller can close to signal that
	// long running operations, such as catching up indexes or performing
	// database migrations, should be interrupted.
	//
	// This field can be nil if the caller does not desire the behavior.
	Interrupt <-chan struct{}

	// ChainParams identifies which chain parameters the chain is associated
	// with.
	//
	// This field is required.
	ChainParams *chaincfg.Params

	// TimeSource defines the time source to use when validating blocks.
	//
	// This field is required.
	TimeSource TimeSource

	// SigCache defines a signature cache to use when validating signatures.
	// This is typically most useful when individual transactions are
	// already being validated prior to their inclusion in a block such as
	// what is usually done via a transaction memory pool.
	//
	// This field can be nil if the caller is not interested in using a
	// signature cache.
	SigCache *txscript.SigCache

	// IndexTxs enables the transaction index, which maps each confirmed
	// transaction to the block that confirmed it.
	IndexTxs bool
}

// New returns a BlockChain instance using the provided configuration details.
func New(config *Config) (*BlockChain, error) {
	// Enforce required config fields.
	if config.DB == nil {
		return nil, AssertError("blockchain.New database is nil")
	}
	if config.ChainParams == nil {
		return nil, AssertError("blockchain.New chain parameters nil")
	}
	if config.TimeSource == nil {
		return nil, AssertError("blockchain.New timesource is nil")
	}

	// Generate a checkpoint by height map from the provided checkpoints.
	params := config.ChainParams
	var checkpointsByHeight map[int32]*chaincfg.Checkpoint
	if len(params.Checkpoints) > 0 {
		checkpointsByHeight = make(map[int32]*chaincfg.Checkpoint)
		for i := range params.Checkpoints {
			checkpoint := &params.Checkpoints[i]
			checkpointsByHeight[checkpoint.Height] = checkpoint
		}
	}

	b := BlockChain{
		checkpoints:         params.Checkpoints,
		checkpointsByHeight: checkpointsByHeight,
		db:                  config.DB,
		chainParams:         params,
		timeSource:          config.TimeSource,
		sigCache:            config.SigCache,
		indexTxs:            config.IndexTxs,
		interrupt:           config.Interrupt,
		index:               newBlockIndex(config.DB, params),
		bestChain:           newChainView(nil),
		candidateTips:       make(map[*blockNode]struct{}),
		orphans:             make(map[chainhash.Hash]*orphanBlock),
		prevOrphans:         make(map[chainhash.Hash][]*orphanBlock),
	}

	// Initialize the chain state from the passed database.  When the db
	// does not yet contain any chain state, both it and the chain state
	// will be initialized to contain only the genesis block.
	if err := b.initChainState(); err != nil {
		return nil, err
	}

	// The active tip is always a candidate.
	b.candidateTips[b.bestChain.Tip()] = struct{}{}

	bestState := b.BestSnapshot()
	log.Infof("Chain state (height %d, hash %s, totaltx %d)",
		bestState.Height, bestState.Hash, bestState.TotalTxns)

	return &b, nil
}

// Close flushes the block index and marks the shutdown clean.  The database
// itself is owned by the caller and must be closed separately.
func (b *BlockChain) Close() error {
	b.chainLock.Lock()
	defer b.chainLock.Unlock()

	dbTx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()
	err = b.index.flushToDB(dbTx)
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}

	// Only once the index flush is durable may the shutdown be recorded as
	// clean.
	return b.markCleanShutdown()
}
