// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/solisnet/solisd/util"
)

// maybeAcceptBlock potentially accepts a block into the block chain and, if
// accepted, returns whether or not it is on the main chain.  It performs
// several validation checks which depend on its position within the block
// chain before adding it.  The block is expected to have already gone through
// ProcessBlock before calling this function with it.
//
// Acceptance stores the block data and registers the node in the block index;
// whether the block actually joins the active chain is decided afterwards by
// the chain selection pass, which may connect it, leave it on a side chain,
// or trigger a reorganization.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) maybeAcceptBlock(block *util.Block, flags BehaviorFlags) error {
	// The height of this block is one more than the referenced previous
	// block.
	prevHash := &block.MsgBlock().Header.PrevBlock
	prevNode := b.index.LookupNode(prevHash)
	if prevNode == nil {
		str := fmt.Sprintf("previous block %s is unknown", prevHash)
		return ruleError(ErrPreviousBlockUnknown, str)
	} else if b.index.NodeStatus(prevNode).KnownInvalid() {
		str := fmt.Sprintf("previous block %s is known to be invalid",
			prevHash)
		return ruleError(ErrInvalidAncestorBlock, str)
	}

	blockHeight := prevNode.height + 1
	block.SetHeight(blockHeight)

	// The block must pass all of the validation rules which depend on the
	// position of the block within the block chain.
	err := b.checkBlockContext(block, prevNode, flags)
	if err != nil {
		return err
	}

	// Insert the block into the database regardless of whether or not it
	// ends up on the active chain: side chain blocks must remain
	// retrievable so reorganizations can connect them later, and rule
	// violations discovered during connection are recorded in the block
	// index rather than by discarding the data.
	dbTx, err := b.db.Begin()
	if err != nil {
		return err
	}
	err = dbStoreBlock(dbTx, block)
	if err != nil {
		dbTx.RollbackUnlessClosed()
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}

	// Create a new block node for the block and add it to the node index.
	// Even if the block ultimately gets connected to the main chain, it
	// starts out on a side chain.
	blockHeader := &block.MsgBlock().Header
	newNode := newBlockNode(blockHeader, prevNode)
	newNode.status = statusDataStored
	b.index.AddNode(newNode)
	b.index.RaiseValidity(newNode, statusTreeValid)

	// Flush the index changes so a crash between here and the chain
	// selection pass does not lose the node.
	dbTx, err = b.db.Begin()
	if err != nil {
		return err
	}
	err = b.index.flushToDB(dbTx)
	if err != nil {
		dbTx.RollbackUnlessClosed()
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}

	// Register the node as a candidate tip and run chain selection, which
	// connects the block, extends a side chain, or reorganizes as the
	// accumulated work dictates.
	b.addCandidateTip(newNode)
	err = b.activateBestChain()
	if err != nil {
		return err
	}

	// Chain selection swallows rule violations after marking the offender
	// so it can fall back to the next-best candidate, but the submitter of
	// this particular block still deserves the verdict.
	if b.index.NodeStatus(newNode).KnownInvalid() {
		str := fmt.Sprintf("block %s failed connection validation",
			block.Hash())
		return ruleError(ErrInvalidAncestorBlock, str)
	}

	// Notify the caller that the new block was accepted into the block
	// chain.  The caller would typically want to react by relaying the
	// inventory to other peers.
	b.chainLock.Unlock()
	b.sendNotification(NTBlockAccepted, block)
	b.chainLock.Lock()

	return nil
}
