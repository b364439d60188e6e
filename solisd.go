// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/solisnet/solisd/blockchain"
	"github.com/solisnet/solisd/config"
	"github.com/solisnet/solisd/database"
	"github.com/solisnet/solisd/database/ffldb"
	"github.com/solisnet/solisd/mempool"
	"github.com/solisnet/solisd/txscript"
	"github.com/solisnet/solisd/util"
)

// dbDirname is the directory under the per-network data directory that holds
// the database.
const dbDirname = "db"

// node wires the validation engine together: database, chain state, signature
// cache, and the transaction memory pool.
type node struct {
	cfg      *config.Config
	db       database.Database
	chain    *blockchain.BlockChain
	txPool   *mempool.TxPool
	sigCache *txscript.SigCache

	started, shutdown int32
}

// newNode opens the database, restores the chain state, and constructs the
// mempool on top of it. Chain notifications keep the mempool consistent with
// the active tip.
func newNode(cfg *config.Config, interrupt <-chan struct{}) (*node, error) {
	dbPath := filepath.Join(cfg.DataDir, dbDirname)
	log.Infof("Loading database from '%s'", dbPath)
	db, err := ffldb.Open(dbPath)
	if err != nil {
		return nil, err
	}

	params := cfg.NetParams()
	if cfg.MaxReorgDepth > 0 {
		params.MaxReorgDepth = cfg.MaxReorgDepth
	}

	sigCache := txscript.NewSigCache(cfg.SigCacheMaxSize)
	chain, err := blockchain.New(&blockchain.Config{
		DB:          db,
		Interrupt:   interrupt,
		ChainParams: params,
		TimeSource:  blockchain.NewTimeSource(),
		SigCache:    sigCache,
		IndexTxs:    cfg.TxIndex,
	})
	if err != nil {
		dbErr := db.Close()
		if dbErr != nil {
			log.Errorf("Error closing database: %+v", dbErr)
		}
		return nil, err
	}

	txPool := mempool.New(&mempool.Config{
		Policy: mempool.Policy{
			AcceptNonStd:     cfg.RelayNonStd,
			FreeTxRelayLimit: cfg.FreeTxRelayLimit,
			MaxOrphanTxs:     cfg.MaxOrphanTxs,
			MaxOrphanTxSize:  config.DefaultMaxOrphanTxSize,
			MaxAncestorCount: cfg.MaxAncestorCount,
			MaxAncestorSize:  int64(cfg.MaxAncestorKB) * 1000,
			MaxTxVersion:     1,
			MinRelayTxFee:    cfg.MinRelayTxFee,
			MaxPoolSize:      cfg.MaxMempool,
			TxExpiryInterval: cfg.MempoolExpiry,
		},
		ChainParams:    params,
		FetchUtxoView:  chain.FetchUtxoView,
		CheckSpecialTx: chain.CheckSpecialTransaction,
		BestHeight:     func() int32 { return chain.BestSnapshot().Height },
		MedianTimePast: func() time.Time { return chain.BestSnapshot().MedianTime },
		SigCache:       sigCache,
	})

	n := &node{
		cfg:      cfg,
		db:       db,
		chain:    chain,
		txPool:   txPool,
		sigCache: sigCache,
	}

	// Keep the mempool consistent with the active chain: transactions
	// confirmed by a connected block leave the pool, transactions from a
	// disconnected block are re-admitted best effort.
	chain.Subscribe(n.handleChainNotification)

	atomic.StoreInt32(&n.started, 1)
	return n, nil
}

// handleChainNotification reacts to chain events on behalf of the mempool.
func (n *node) handleChainNotification(notification *blockchain.Notification) {
	switch notification.Type {
	case blockchain.NTBlockConnected:
		block, ok := notification.Data.(*util.Block)
		if !ok {
			log.Warnf("Chain connected notification is not a block")
			break
		}
		n.txPool.RemoveForBlock(block)

	case blockchain.NTBlockDisconnected:
		block, ok := notification.Data.(*util.Block)
		if !ok {
			log.Warnf("Chain disconnected notification is not a block")
			break
		}
		n.txPool.ProcessDisconnectedBlock(block)
	}
}

// stop gracefully shuts the node down: the chain state is flushed and marked
// cleanly closed before the database is released.
func (n *node) stop() error {
	if atomic.AddInt32(&n.shutdown, 1) != 1 {
		log.Infof("Node is already in the process of shutting down")
		return nil
	}

	err := n.chain.Close()
	if err != nil {
		log.Errorf("Error flushing chain state: %+v", err)
	}
	return n.db.Close()
}
