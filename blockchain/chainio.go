// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"math/big"
	"time"

	"github.com/kaspanet/go-muhash"
	"github.com/pkg/errors"

	"github.com/solisnet/solisd/database"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

const (
	// blockStoreName is the name of the flat-file store that holds full
	// block data.
	blockStoreName = "blocks"

	// undoStoreName is the name of the flat-file store that holds undo
	// records.
	undoStoreName = "undo"
)

var (
	// blockIndexBucket is the bucket that houses the serialized block index
	// entries, keyed by block hash.
	blockIndexBucket = database.MakeBucket([]byte("block-index"))

	// blockLocationsBucket maps a block hash to the flat-file location of
	// its full block data.
	blockLocationsBucket = database.MakeBucket([]byte("block-locations"))

	// undoLocationsBucket maps a block hash to the flat-file location of
	// its undo record.
	undoLocationsBucket = database.MakeBucket([]byte("undo-locations"))

	// utxoSetBucket is the bucket that houses the unspent transaction
	// output set, one record per unspent outpoint.
	utxoSetBucket = database.MakeBucket([]byte("utxo-set"))

	// txIndexBucket maps a transaction hash to the hash of the block that
	// confirmed it.  It is only populated when the transaction index is
	// enabled.
	txIndexBucket = database.MakeBucket([]byte("tx-index"))

	// flagsBucket houses small marker records, such as whether the
	// transaction index is enabled and whether the last shutdown was
	// clean.
	flagsBucket = database.MakeBucket([]byte("flags"))

	// bestChainStateKey is the key of the record that houses the best
	// chain state: tip hash, height, total transactions, cumulative work,
	// and the utxo commitment multiset.
	bestChainStateKey = database.MakeBucket().Key([]byte("best-chain-state"))

	// txIndexEnabledKey marks whether the transaction index is maintained.
	txIndexEnabledKey = flagsBucket.Key([]byte("txindex-enabled"))

	// cleanShutdownKey marks whether the previous run shut down cleanly.
	cleanShutdownKey = flagsBucket.Key([]byte("clean-shutdown"))

	// zeroHash is the zero value for a chainhash.Hash and is defined as
	// a package level variable to avoid the need to create a new instance
	// every time a check is needed.
	zeroHash chainhash.Hash
)

// isNotFoundError is a convenience wrapper around the database sentinel.
func isNotFoundError(err error) bool {
	return database.IsNotFoundError(err)
}

// -----------------------------------------------------------------------------
// The block index consists of one record per known block header.  Each record
// is the serialized block header followed by the block height and status byte:
//
//   <header><height uint32><status uint8>
// -----------------------------------------------------------------------------

// serializeBlockNode serializes the passed block node into a byte slice
// suitable for storage in the block index bucket.
func serializeBlockNode(node *blockNode) ([]byte, error) {
	w := bytes.NewBuffer(make([]byte, 0, wire.BlockHeaderLen+5))
	header := node.Header()
	err := header.Serialize(w)
	if err != nil {
		return nil, err
	}
	err = wire.WriteElementUint32(w, uint32(node.height))
	if err != nil {
		return nil, err
	}
	err = wire.WriteElementUint8(w, uint8(node.status))
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// deserializeBlockNode decodes a block index record into its header, height,
// and status.
func deserializeBlockNode(serialized []byte) (*wire.BlockHeader, int32, blockStatus, error) {
	r := bytes.NewReader(serialized)
	var header wire.BlockHeader
	err := header.Deserialize(r)
	if err != nil {
		return nil, 0, 0, err
	}
	height, err := wire.ReadElementUint32(r)
	if err != nil {
		return nil, 0, 0, err
	}
	status, err := wire.ReadElementUint8(r)
	if err != nil {
		return nil, 0, 0, err
	}
	return &header, int32(height), blockStatus(status), nil
}

// dbStoreBlockNode stores the block index entry for the passed node.
func dbStoreBlockNode(dbTx database.Transaction, node *blockNode) error {
	serialized, err := serializeBlockNode(node)
	if err != nil {
		return err
	}
	key := blockIndexBucket.Key(node.hash[:])
	return dbTx.Put(key, serialized)
}

// -----------------------------------------------------------------------------
// The utxo set consists of one record per unspent transaction output:
//
//   key:   <txid><output index uint32>
//   value: <amount uint64><height uint32><flags uint8><varbytes pkScript>
// -----------------------------------------------------------------------------

// outpointKey returns the utxo set key for the provided outpoint.
func outpointKey(outpoint wire.OutPoint) *database.Key {
	serialized := make([]byte, chainhash.HashSize+4)
	copy(serialized, outpoint.TxID[:])
	byteOrderPutUint32(serialized[chainhash.HashSize:], outpoint.Index)
	return utxoSetBucket.Key(serialized)
}

// byteOrderPutUint32 writes a little-endian uint32 into the given slice.
func byteOrderPutUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// byteOrderUint32 reads a little-endian uint32 from the given slice.
func byteOrderUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 |
		uint32(b[3])<<24
}

// serializeUtxoEntry encodes the passed utxo entry into the utxo set record
// format.  Spent entries must never be serialized.
func serializeUtxoEntry(entry *UtxoEntry) ([]byte, error) {
	if entry.IsSpent() {
		return nil, AssertError("attempt to serialize spent utxo")
	}

	w := &bytes.Buffer{}
	err := wire.WriteElementUint64(w, uint64(entry.Amount()))
	if err != nil {
		return nil, err
	}
	err = wire.WriteElementUint32(w, uint32(entry.BlockHeight()))
	if err != nil {
		return nil, err
	}
	var flags uint8
	if entry.IsCoinBase() {
		flags |= stxoFlagCoinBase
	}
	if entry.IsCoinStake() {
		flags |= stxoFlagCoinStake
	}
	err = wire.WriteElementUint8(w, flags)
	if err != nil {
		return nil, err
	}
	err = wire.WriteVarBytes(w, entry.PkScript())
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// deserializeUtxoEntry decodes a utxo set record into an entry.
func deserializeUtxoEntry(serialized []byte) (*UtxoEntry, error) {
	r := bytes.NewReader(serialized)
	amount, err := wire.ReadElementUint64(r)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt utxo entry")
	}
	height, err := wire.ReadElementUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt utxo entry")
	}
	flags, err := wire.ReadElementUint8(r)
	if err != nil {
		return nil, errors.Wrap(err, "corrupt utxo entry")
	}
	pkScript, err := wire.ReadVarBytes(r, maxUndoScriptSize, "utxo pkScript")
	if err != nil {
		return nil, errors.Wrap(err, "corrupt utxo entry")
	}

	entry := &UtxoEntry{
		amount:      int64(amount),
		pkScript:    pkScript,
		blockHeight: int32(height),
	}
	if flags&stxoFlagCoinBase != 0 {
		entry.packedFlags |= tfCoinBase
	}
	if flags&stxoFlagCoinStake != 0 {
		entry.packedFlags |= tfCoinStake
	}
	return entry, nil
}

// dbFetchUtxoEntry uses an existing database accessor to fetch the specified
// transaction output from the utxo set.
//
// When there is no entry for the provided output, nil will be returned for
// both the entry and the error.
func dbFetchUtxoEntry(db database.DataAccessor, outpoint wire.OutPoint) (*UtxoEntry, error) {
	serialized, err := db.Get(outpointKey(outpoint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return deserializeUtxoEntry(serialized)
}

// dbFetchUtxoEntryByHash attempts to find and fetch a utxo for the given hash.
// It uses a cursor and seeks to the first indexed output of the hash.
//
// When there is no entry for the provided hash, nil will be returned for both
// the entry and the error.
func dbFetchUtxoEntryByHash(db database.DataAccessor, hash *chainhash.Hash) (*UtxoEntry, error) {
	cursor, err := db.Cursor(utxoSetBucket)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	serialized := make([]byte, chainhash.HashSize+4)
	copy(serialized, hash[:])
	err = cursor.Seek(utxoSetBucket.Key(serialized))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	// A seek that does not land exactly on index zero still positions the
	// cursor, so confirm the key belongs to the requested hash.
	cursorKey, err := cursor.Key()
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(cursorKey.Key(), hash[:]) {
		return nil, nil
	}

	value, err := cursor.Value()
	if err != nil {
		return nil, err
	}
	return deserializeUtxoEntry(value)
}

// dbPutUtxoView uses an existing database transaction to update the utxo set
// in the database based on the provided utxo view contents and state.  In
// particular, only the entries that have been marked as modified are written
// to the database.
func dbPutUtxoView(dbTx database.Transaction, view *UtxoViewpoint) error {
	for outpoint, entry := range view.entries {
		// No need to update the database if the entry was not modified.
		if entry == nil || !entry.isModified() {
			continue
		}

		// Remove the utxo entry if it is spent.  An entry that was
		// created fresh within the view never reached the database, so
		// there is nothing to delete.
		if entry.IsSpent() {
			if entry.isFresh() {
				continue
			}
			err := dbTx.Delete(outpointKey(outpoint))
			if err != nil {
				return err
			}
			continue
		}

		// Serialize and store the utxo entry.
		serialized, err := serializeUtxoEntry(entry)
		if err != nil {
			return err
		}
		err = dbTx.Put(outpointKey(outpoint), serialized)
		if err != nil {
			return err
		}
	}

	return nil
}

// -----------------------------------------------------------------------------
// The best chain state record houses the tip hash, height, total transaction
// count, cumulative work, and the serialized utxo commitment multiset:
//
//   <hash><height uint32><total txns uint64><work varbytes><multiset varbytes>
// -----------------------------------------------------------------------------

// bestChainState represents the data to be stored in the database for the
// current best chain state.
type bestChainState struct {
	hash      chainhash.Hash
	height    uint32
	totalTxns uint64
	workSum   *big.Int
	multiset  *muhash.MuHash
}

// serializeBestChainState returns the serialization of the passed block best
// chain state.
func serializeBestChainState(state bestChainState) ([]byte, error) {
	w := &bytes.Buffer{}
	if _, err := w.Write(state.hash[:]); err != nil {
		return nil, err
	}
	if err := wire.WriteElementUint32(w, state.height); err != nil {
		return nil, err
	}
	if err := wire.WriteElementUint64(w, state.totalTxns); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(w, state.workSum.Bytes()); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(w, serializeMultiset(state.multiset)); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// deserializeBestChainState deserializes the passed serialized best chain
// state.  This is data stored in the best chain state record and is updated
// after every block is connected or disconnected form the main chain.
func deserializeBestChainState(serialized []byte) (bestChainState, error) {
	var state bestChainState
	r := bytes.NewReader(serialized)
	if _, err := r.Read(state.hash[:]); err != nil {
		return bestChainState{}, errors.Wrap(err, "corrupt best chain state")
	}
	height, err := wire.ReadElementUint32(r)
	if err != nil {
		return bestChainState{}, errors.Wrap(err, "corrupt best chain state")
	}
	state.height = height
	state.totalTxns, err = wire.ReadElementUint64(r)
	if err != nil {
		return bestChainState{}, errors.Wrap(err, "corrupt best chain state")
	}
	workBytes, err := wire.ReadVarBytes(r, chainhash.HashSize, "work sum")
	if err != nil {
		return bestChainState{}, errors.Wrap(err, "corrupt best chain state")
	}
	state.workSum = new(big.Int).SetBytes(workBytes)
	msBytes, err := wire.ReadVarBytes(r, muhash.SerializedMuHashSize,
		"utxo multiset")
	if err != nil {
		return bestChainState{}, errors.Wrap(err, "corrupt best chain state")
	}
	state.multiset, err = deserializeMultiset(msBytes)
	if err != nil {
		return bestChainState{}, err
	}
	return state, nil
}

// dbPutBestState uses an existing database transaction to update the best
// chain state with the given parameters.
func dbPutBestState(dbTx database.Transaction, snapshot *BestState, workSum *big.Int, multiset *muhash.MuHash) error {
	serialized, err := serializeBestChainState(bestChainState{
		hash:      snapshot.Hash,
		height:    uint32(snapshot.Height),
		totalTxns: snapshot.TotalTxns,
		workSum:   workSum,
		multiset:  multiset,
	})
	if err != nil {
		return err
	}
	return dbTx.Put(bestChainStateKey, serialized)
}

// -----------------------------------------------------------------------------
// Full block data and undo records live in append-only flat-file stores.  The
// database proper only stores the location handles keyed by block hash, which
// makes the location lookup transactional with everything else written in the
// same batch.  Undo records carry a trailing checksum hash computed over the
// record bytes and the owning block hash so a record can never be paired with
// the wrong block.
// -----------------------------------------------------------------------------

// dbStoreBlock stores the provided block in the flat-file block store and
// indexes its location under the block hash.
func dbStoreBlock(dbTx database.Transaction, block *util.Block) error {
	blockBytes, err := block.Bytes()
	if err != nil {
		return err
	}
	location, err := dbTx.AppendToStore(blockStoreName, blockBytes)
	if err != nil {
		return err
	}
	key := blockLocationsBucket.Key(block.Hash()[:])
	return dbTx.Put(key, location)
}

// dbHasBlock returns whether the full data for the block with the given hash
// is stored.
func dbHasBlock(db database.DataAccessor, hash *chainhash.Hash) (bool, error) {
	return db.Has(blockLocationsBucket.Key(hash[:]))
}

// dbFetchBlockByHash retrieves the full block data for the provided hash from
// the flat-file block store.
func dbFetchBlockByHash(db database.DataAccessor, hash *chainhash.Hash) (*util.Block, error) {
	location, err := db.Get(blockLocationsBucket.Key(hash[:]))
	if err != nil {
		return nil, err
	}
	blockBytes, err := db.RetrieveFromStore(blockStoreName, location)
	if err != nil {
		return nil, err
	}
	return util.NewBlockFromBytes(blockBytes)
}

// undoChecksum computes the checksum hash stored alongside an undo record.
// It covers both the record bytes and the owning block hash.
func undoChecksum(serialized []byte, blockHash *chainhash.Hash) chainhash.Hash {
	buf := make([]byte, 0, len(serialized)+chainhash.HashSize)
	buf = append(buf, serialized...)
	buf = append(buf, blockHash[:]...)
	return chainhash.DoubleHashH(buf)
}

// dbStoreUndoData stores the undo record for the given block hash in the
// flat-file undo store, with a trailing checksum, and indexes its location.
func dbStoreUndoData(dbTx database.Transaction, blockHash *chainhash.Hash, stxos []SpentTxOut) error {
	serialized, err := serializeSpentTxOuts(stxos)
	if err != nil {
		return err
	}
	checksum := undoChecksum(serialized, blockHash)
	record := make([]byte, 0, len(serialized)+chainhash.HashSize)
	record = append(record, serialized...)
	record = append(record, checksum[:]...)

	location, err := dbTx.AppendToStore(undoStoreName, record)
	if err != nil {
		return err
	}
	return dbTx.Put(undoLocationsBucket.Key(blockHash[:]), location)
}

// dbFetchUndoData retrieves and verifies the undo record for the given block
// hash.
func dbFetchUndoData(db database.DataAccessor, blockHash *chainhash.Hash) ([]SpentTxOut, error) {
	location, err := db.Get(undoLocationsBucket.Key(blockHash[:]))
	if err != nil {
		return nil, err
	}
	record, err := db.RetrieveFromStore(undoStoreName, location)
	if err != nil {
		return nil, err
	}
	if len(record) < chainhash.HashSize {
		return nil, errors.Errorf("undo record for block %s is too "+
			"short", blockHash)
	}

	serialized := record[:len(record)-chainhash.HashSize]
	var storedChecksum chainhash.Hash
	copy(storedChecksum[:], record[len(record)-chainhash.HashSize:])
	if undoChecksum(serialized, blockHash) != storedChecksum {
		return nil, errors.Errorf("undo record for block %s failed "+
			"its checksum", blockHash)
	}

	return deserializeSpentTxOuts(serialized)
}

// dbPutTxIndexEntries indexes every transaction of the given block to the
// block hash when the transaction index is enabled.
func dbPutTxIndexEntries(dbTx database.Transaction, block *util.Block) error {
	blockHash := block.Hash()
	for _, tx := range block.Transactions() {
		err := dbTx.Put(txIndexBucket.Key(tx.Hash()[:]), blockHash[:])
		if err != nil {
			return err
		}
	}
	return nil
}

// dbRemoveTxIndexEntries removes the transaction index entries for every
// transaction of the given block.
func dbRemoveTxIndexEntries(dbTx database.Transaction, block *util.Block) error {
	for _, tx := range block.Transactions() {
		err := dbTx.Delete(txIndexBucket.Key(tx.Hash()[:]))
		if err != nil {
			return err
		}
	}
	return nil
}

// dbFetchTxIndexEntry returns the hash of the block that confirmed the given
// transaction, when the transaction index is enabled.
func dbFetchTxIndexEntry(db database.DataAccessor, txHash *chainhash.Hash) (*chainhash.Hash, error) {
	serialized, err := db.Get(txIndexBucket.Key(txHash[:]))
	if err != nil {
		return nil, err
	}
	var blockHash chainhash.Hash
	copy(blockHash[:], serialized)
	return &blockHash, nil
}

// createChainState initializes both the database and the chain state to the
// genesis block.  This includes creating the necessary buckets and inserting
// the genesis block, so it must only be called on an uninitialized database.
func (b *BlockChain) createChainState() error {
	// Create a new node from the genesis block and set it as the best node.
	genesisBlock := util.NewBlock(b.chainParams.GenesisBlock)
	genesisBlock.SetHeight(0)
	header := &genesisBlock.MsgBlock().Header
	node := newBlockNode(header, nil)
	node.status = statusDataStored | statusScriptsValid
	b.bestChain.SetTip(node)

	// Add the new node to the index which is used for faster lookups.
	b.index.addNode(node)

	// Initialize the state related to the best block.  Since it is the
	// genesis block, use its timestamp for the median time.
	numTxns := uint64(len(genesisBlock.MsgBlock().Transactions))
	blockSize := uint64(genesisBlock.MsgBlock().SerializeSize())
	b.stateSnapshot = newBestState(node, blockSize, numTxns, numTxns,
		time.Unix(node.timestamp, 0))
	b.utxoMultiset = muhash.NewMuHash()

	// Create the initial the database chain state including creating the
	// genesis block records.
	dbTx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = dbStoreBlockNode(dbTx, node)
	if err != nil {
		return err
	}
	err = dbStoreBlock(dbTx, genesisBlock)
	if err != nil {
		return err
	}
	err = dbPutBestState(dbTx, b.stateSnapshot, node.workSum, b.utxoMultiset)
	if err != nil {
		return err
	}
	err = dbTx.Put(txIndexEnabledKey, []byte{boolToByte(b.indexTxs)})
	if err != nil {
		return err
	}
	err = dbTx.Put(cleanShutdownKey, []byte{1})
	if err != nil {
		return err
	}

	return dbTx.Commit()
}

func boolToByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// initChainState attempts to load and initialize the chain state from the
// database.  When the db does not yet contain any chain state, both it and the
// chain state will be initialized to contain only the genesis block.
func (b *BlockChain) initChainState() error {
	// Determine the state of the chain database.
	hasState, err := b.db.Has(bestChainStateKey)
	if err != nil {
		return err
	}
	if !hasState {
		return b.createChainState()
	}

	// Fetch and deserialize the stored best chain state.
	serialized, err := b.db.Get(bestChainStateKey)
	if err != nil {
		return err
	}
	state, err := deserializeBestChainState(serialized)
	if err != nil {
		return err
	}

	// Load all of the headers from the data for the known best chain and
	// construct the block index accordingly.  Since the number of nodes are
	// already known, perform a single alloc for them versus a whole bunch
	// of little ones to reduce pressure on the GC.
	log.Infof("Loading block index...")
	cursor, err := b.db.Cursor(blockIndexBucket)
	if err != nil {
		return err
	}
	defer cursor.Close()

	var lastNode *blockNode
	type indexEntry struct {
		header *wire.BlockHeader
		height int32
		status blockStatus
	}
	entries := make(map[chainhash.Hash]indexEntry)
	for ok := cursor.Next(); ok; ok = cursor.Next() {
		value, err := cursor.Value()
		if err != nil {
			return err
		}
		header, height, status, err := deserializeBlockNode(value)
		if err != nil {
			return err
		}
		entries[header.BlockHash()] = indexEntry{header, height, status}
	}

	// Attach nodes in height order so every parent exists before its
	// children.
	byHeight := make(map[int32][]indexEntry)
	var maxHeight int32
	for _, e := range entries {
		byHeight[e.height] = append(byHeight[e.height], e)
		if e.height > maxHeight {
			maxHeight = e.height
		}
	}
	for height := int32(0); height <= maxHeight; height++ {
		for _, e := range byHeight[height] {
			var parent *blockNode
			if height > 0 {
				parent = b.index.LookupNode(&e.header.PrevBlock)
				if parent == nil {
					return AssertError("initChainState: could " +
						"not find parent for block " +
						e.header.BlockHash().String())
				}
			}
			node := newBlockNode(e.header, parent)
			node.status = e.status
			b.index.addNode(node)
			if node.hash == state.hash {
				lastNode = node
			}
		}
	}

	if lastNode == nil {
		return AssertError("initChainState: best chain tip " +
			state.hash.String() + " is missing from the block index")
	}

	// Set the best chain view to the stored best state.
	b.bestChain.SetTip(lastNode)

	// Load the best block to obtain its size and transaction count.
	block, err := dbFetchBlockByHash(b.db, &lastNode.hash)
	if err != nil {
		return err
	}
	blockSize := uint64(block.MsgBlock().SerializeSize())
	numTxns := uint64(len(block.MsgBlock().Transactions))

	// Initialize the state related to the best block.
	b.stateSnapshot = newBestState(lastNode, blockSize, numTxns,
		state.totalTxns, lastNode.CalcPastMedianTime())
	b.utxoMultiset = state.multiset

	// A dirty shutdown marker left behind by a crash is surfaced so the
	// operator knows a consistency scan happened; the flat-file stores
	// repair themselves on open.
	cleanShutdown, err := b.db.Get(cleanShutdownKey)
	if err != nil && !isNotFoundError(err) {
		return err
	}
	if err == nil && len(cleanShutdown) == 1 && cleanShutdown[0] == 0 {
		log.Warnf("Previous shutdown was unclean; block and undo " +
			"stores were repaired on open")
	}

	// Mark the running database as dirty until a clean shutdown.
	dbTx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()
	err = dbTx.Put(cleanShutdownKey, []byte{0})
	if err != nil {
		return err
	}
	return dbTx.Commit()
}

// markCleanShutdown records that the chain state was flushed and the process
// is shutting down in an orderly fashion.
func (b *BlockChain) markCleanShutdown() error {
	dbTx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()
	err = dbTx.Put(cleanShutdownKey, []byte{1})
	if err != nil {
		return err
	}
	return dbTx.Commit()
}

// BlockByHash returns the block from the main chain with the given hash.
//
// This function is safe for concurrent access.
func (b *BlockChain) BlockByHash(hash *chainhash.Hash) (*util.Block, error) {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	return b.fetchBlockByNode(b.index.LookupNode(hash))
}

// fetchBlockByNode loads the full block data for the provided node from the
// flat-file store.
func (b *BlockChain) fetchBlockByNode(node *blockNode) (*util.Block, error) {
	if node == nil {
		return nil, errors.New("block is not known")
	}
	block, err := dbFetchBlockByHash(b.db, &node.hash)
	if err != nil {
		return nil, err
	}
	block.SetHeight(node.height)
	return block, nil
}
