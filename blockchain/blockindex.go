// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/solisnet/solisd/chaincfg"
	"github.com/solisnet/solisd/database"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// blockStatus is a bit field representing the validation state of the block.
// The low bits hold the validity tier the block has reached so far, the high
// bits carry orthogonal flags.
type blockStatus byte

const (
	// statusValidityMask masks off the validity tier from the flag bits.
	statusValidityMask blockStatus = 0x07

	// statusHeaderValid indicates the block header passed context-free and
	// contextual header checks.
	statusHeaderValid blockStatus = 1

	// statusTreeValid indicates the block passed context-free structural
	// checks (merkle root, transaction sanity, size and sigop bounds).
	statusTreeValid blockStatus = 2

	// statusChainValid indicates the block passed all contextual checks
	// short of full input/script verification.
	statusChainValid blockStatus = 3

	// statusScriptsValid indicates the block was fully connected at least
	// once, with all inputs and scripts verified.
	statusScriptsValid blockStatus = 4

	// statusDataStored indicates the full block data is stored in the
	// database.
	statusDataStored blockStatus = 1 << 3

	// statusValidateFailed indicates the block itself failed validation.
	statusValidateFailed blockStatus = 1 << 4

	// statusInvalidAncestor indicates one of the block's ancestors has
	// has failed validation, thus the block is also invalid.
	statusInvalidAncestor blockStatus = 1 << 5
)

// validity returns the validity tier the block has reached.
func (status blockStatus) validity() blockStatus {
	return status & statusValidityMask
}

// HaveData returns whether the full block data is stored in the database.
// This will return false for a block node where only the header is stored or
// one that was fully pruned.
func (status blockStatus) HaveData() bool {
	return status&statusDataStored != 0
}

// KnownValid returns whether the block is known to be valid.  This will
// return false for a valid block that has not been fully validated yet.
func (status blockStatus) KnownValid() bool {
	return status.validity() >= statusScriptsValid
}

// KnownInvalid returns whether the block is known to be invalid.  This may be
// because the block itself failed validation or any of its ancestors is
// invalid.  This will return false for invalid blocks that have not been
// proven invalid yet.
func (status blockStatus) KnownInvalid() bool {
	return status&(statusValidateFailed|statusInvalidAncestor) != 0
}

// blockNode represents a block within the block chain and is primarily used
// to aid in selecting the best chain to be the main chain.  The main chain is
// stored into the block database.
type blockNode struct {
	// NOTE: Additions, deletions, or modifications to the order of the
	// definitions in this struct should not be changed without considering
	// how it affects alignment on 64-bit platforms.  The current order is
	// specifically crafted to result in minimal padding.  There will be
	// hundreds of thousands of these in memory, so a few extra bytes of
	// padding adds up.

	// parent is the parent block for this node.  The block index owns all
	// nodes; this is a lookup reference, not an owning edge.
	parent *blockNode

	// hash is the double sha 256 of the block.
	hash chainhash.Hash

	// workSum is the total amount of work in the chain up to and including
	// this node.
	workSum *big.Int

	// height is the position in the block chain.
	height int32

	// sequence is the order this node was added to the block index.  It is
	// the tie-break when two chains carry equal work: the first seen wins.
	sequence uint64

	// Some fields from block headers to aid in best chain selection and
	// reconstructing headers from memory.  These must be treated as
	// immutable and are intentionally ordered to avoid padding on 64-bit
	// platforms.
	version   int32
	bits      uint32
	nonce     uint64
	timestamp int64
	merkleRoot chainhash.Hash

	// status is a bitfield representing the validation state of the block.
	// The status field, unlike the other fields, may be written to and so
	// should only be accessed using the concurrent-safe blockIndex methods
	// once the node has been added to the index.
	status blockStatus
}

// initBlockNode initializes a block node from the given header and parent
// node, calculating the height and workSum from the respective fields on the
// parent. This function is NOT safe for concurrent access.  It must only be
// called when initially creating a node.
func initBlockNode(node *blockNode, blockHeader *wire.BlockHeader, parent *blockNode) {
	*node = blockNode{
		hash:       blockHeader.BlockHash(),
		workSum:    CalcWork(blockHeader.Bits),
		version:    blockHeader.Version,
		bits:       blockHeader.Bits,
		nonce:      blockHeader.Nonce,
		timestamp:  blockHeader.Timestamp.Unix(),
		merkleRoot: blockHeader.MerkleRoot,
	}
	if parent != nil {
		node.parent = parent
		node.height = parent.height + 1
		node.workSum = node.workSum.Add(parent.workSum, node.workSum)
	}
}

// newBlockNode returns a new block node for the given block header and parent
// node, calculating the height and workSum from the respective fields on the
// parent. This function is NOT safe for concurrent access.
func newBlockNode(blockHeader *wire.BlockHeader, parent *blockNode) *blockNode {
	var node blockNode
	initBlockNode(&node, blockHeader, parent)
	return &node
}

// Header constructs a block header from the node and returns it.
//
// This function is safe for concurrent access.
func (node *blockNode) Header() wire.BlockHeader {
	// No lock is needed because all accessed fields are immutable.
	prevHash := &zeroHash
	if node.parent != nil {
		prevHash = &node.parent.hash
	}
	return wire.BlockHeader{
		Version:    node.version,
		PrevBlock:  *prevHash,
		MerkleRoot: node.merkleRoot,
		Timestamp:  time.Unix(node.timestamp, 0),
		Bits:       node.bits,
		Nonce:      node.nonce,
	}
}

// Ancestor returns the ancestor block node at the provided height by
// following the chain backwards from this node.  The returned block will be
// nil when a height is requested that is after the height of the passed node
// or is less than zero.
//
// This function is safe for concurrent access.
func (node *blockNode) Ancestor(height int32) *blockNode {
	if height < 0 || height > node.height {
		return nil
	}

	n := node
	for ; n != nil && n.height != height; n = n.parent {
		// Intentionally left blank
	}

	return n
}

// RelativeAncestor returns the ancestor block node a relative 'distance'
// blocks before this node.  This is equivalent to calling Ancestor with the
// node's height minus provided distance.
//
// This function is safe for concurrent access.
func (node *blockNode) RelativeAncestor(distance int32) *blockNode {
	return node.Ancestor(node.height - distance)
}

// medianTimeBlocks is the number of previous blocks which should be used to
// calculate the median time used to validate block timestamps.
const medianTimeBlocks = 11

// CalcPastMedianTime calculates the median time of the previous few blocks
// prior to, and including, the block node.
//
// This function is safe for concurrent access.
func (node *blockNode) CalcPastMedianTime() time.Time {
	// Create a slice of the previous few block timestamps used to calculate
	// the median per the number defined by the constant medianTimeBlocks.
	timestamps := make([]int64, 0, medianTimeBlocks)
	iterNode := node
	for i := 0; i < medianTimeBlocks && iterNode != nil; i++ {
		timestamps = append(timestamps, iterNode.timestamp)
		iterNode = iterNode.parent
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})

	// NOTE: The consensus rules incorporated from Bitcoin Core require the
	// timestamp of the MEDIAN of however many timestamps are present even
	// when fewer than the full window of blocks exist.
	medianTimestamp := timestamps[len(timestamps)/2]
	return time.Unix(medianTimestamp, 0)
}

// blockIndex provides facilities for keeping track of an in-memory index of
// the block chain.  Although the name block chain suggests a single chain of
// blocks, it is actually a tree-shaped structure where any node can have
// multiple children.  However, there can only be one active branch which does
// indeed form a chain from the tip all the way back to the genesis block.
type blockIndex struct {
	// The following fields are set when the instance is created and can't
	// be changed afterwards, so there is no need to protect them with a
	// separate mutex.
	db          database.Database
	chainParams *chaincfg.Params

	sync.RWMutex
	index        map[chainhash.Hash]*blockNode
	dirty        map[*blockNode]struct{}
	nextSequence uint64
}

// newBlockIndex returns a new empty instance of a block index.  The index will
// be dynamically populated as block nodes are loaded from the database and
// manually added.
func newBlockIndex(db database.Database, chainParams *chaincfg.Params) *blockIndex {
	return &blockIndex{
		db:          db,
		chainParams: chainParams,
		index:       make(map[chainhash.Hash]*blockNode),
		dirty:       make(map[*blockNode]struct{}),
		nextSequence: 1,
	}
}

// HaveBlock returns whether or not the block index contains the provided hash.
//
// This function is safe for concurrent access.
func (bi *blockIndex) HaveBlock(hash *chainhash.Hash) bool {
	bi.RLock()
	_, hasBlock := bi.index[*hash]
	bi.RUnlock()
	return hasBlock
}

// LookupNode returns the block node identified by the provided hash.  It will
// return nil if there is no entry for the hash.
//
// This function is safe for concurrent access.
func (bi *blockIndex) LookupNode(hash *chainhash.Hash) *blockNode {
	bi.RLock()
	node := bi.index[*hash]
	bi.RUnlock()
	return node
}

// AddNode adds the provided node to the block index, assigns it the next
// sequence number, and marks it as dirty for a future flush to the database.
//
// This function is safe for concurrent access.
func (bi *blockIndex) AddNode(node *blockNode) {
	bi.Lock()
	bi.addNode(node)
	bi.dirty[node] = struct{}{}
	bi.Unlock()
}

// addNode adds the provided node to the block index and assigns it the next
// sequence number, but does not mark it dirty. This can be used while
// initializing the block index.
//
// This function is NOT safe for concurrent access.
func (bi *blockIndex) addNode(node *blockNode) {
	node.sequence = bi.nextSequence
	bi.nextSequence++
	bi.index[node.hash] = node
}

// NodeStatus provides concurrent-safe access to the status field of a node.
//
// This function is safe for concurrent access.
func (bi *blockIndex) NodeStatus(node *blockNode) blockStatus {
	bi.RLock()
	status := node.status
	bi.RUnlock()
	return status
}

// SetStatusFlags flips the provided status flags on the block node to on,
// regardless of whether they were on or off previously.  This does not unset
// any flags currently on.
//
// This function is safe for concurrent access.
func (bi *blockIndex) SetStatusFlags(node *blockNode, flags blockStatus) {
	bi.Lock()
	node.status |= flags
	bi.dirty[node] = struct{}{}
	bi.Unlock()
}

// UnsetStatusFlags flips the provided status flags on the block node to off,
// regardless of whether they were on or off previously.
//
// This function is safe for concurrent access.
func (bi *blockIndex) UnsetStatusFlags(node *blockNode, flags blockStatus) {
	bi.Lock()
	node.status &^= flags
	bi.dirty[node] = struct{}{}
	bi.Unlock()
}

// RaiseValidity raises the validity tier of the block node to the provided
// tier if its current tier is lower.  Validity never moves backwards.
//
// This function is safe for concurrent access.
func (bi *blockIndex) RaiseValidity(node *blockNode, tier blockStatus) {
	bi.Lock()
	if node.status.validity() < tier {
		node.status = node.status&^statusValidityMask | tier
		bi.dirty[node] = struct{}{}
	}
	bi.Unlock()
}

// flushToDB writes all dirty block nodes to the database. If all writes
// succeed, this clears the dirty set.
func (bi *blockIndex) flushToDB(dbTx database.Transaction) error {
	bi.Lock()
	if len(bi.dirty) == 0 {
		bi.Unlock()
		return nil
	}

	for node := range bi.dirty {
		err := dbStoreBlockNode(dbTx, node)
		if err != nil {
			bi.Unlock()
			return err
		}
	}

	// If write was successful, clear the dirty set.
	bi.dirty = make(map[*blockNode]struct{})
	bi.Unlock()
	return nil
}
