// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/solisnet/solisd/chaincfg"
	"github.com/solisnet/solisd/util/chainhash"
)

// Checkpoints returns a slice of checkpoints (regardless of whether they are
// already known).  When there are no checkpoints for the chain, it will return
// nil.
//
// This function is safe for concurrent access.
func (b *BlockChain) Checkpoints() []chaincfg.Checkpoint {
	return b.checkpoints
}

// LatestCheckpoint returns the most recent checkpoint (regardless of whether
// it is already known).  When there are no defined checkpoints for the active
// chain instance, it will return nil.
//
// This function is safe for concurrent access.
func (b *BlockChain) LatestCheckpoint() *chaincfg.Checkpoint {
	if len(b.checkpoints) == 0 {
		return nil
	}
	return &b.checkpoints[len(b.checkpoints)-1]
}

// checkpointByHeight returns the checkpoint pinned at the given height, or nil
// when the height is not checkpointed.
func (b *BlockChain) checkpointByHeight(height int32) *chaincfg.Checkpoint {
	checkpoint, ok := b.checkpointsByHeight[height]
	if !ok {
		return nil
	}
	return checkpoint
}

// verifyCheckpoint returns whether the passed block height and hash combination
// match the checkpoint data.  It also returns true if there is no checkpoint
// data for the passed block height.
func (b *BlockChain) verifyCheckpoint(height int32, hash *chainhash.Hash) bool {
	checkpoint := b.checkpointByHeight(height)
	if checkpoint == nil {
		return true
	}
	return checkpoint.Hash.IsEqual(hash)
}
