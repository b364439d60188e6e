// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math"
	"time"

	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// genesisCoinbaseTx is the coinbase transaction for the genesis blocks for
// the main network, test network, and simulation test network.
var genesisCoinbaseTx = wire.MsgTx{
	Version: 1,
	TxType:  wire.TxTypeNormal,
	TxIn: []*wire.TxIn{
		{
			PreviousOutPoint: wire.OutPoint{
				TxID:  chainhash.Hash{},
				Index: math.MaxUint32,
			},
			SignatureScript: []byte("2026-01-05 solis genesis"),
			Sequence:        wire.MaxTxInSequenceNum,
		},
	},
	TxOut: []*wire.TxOut{
		{
			Value:    0,
			PkScript: nil,
		},
	},
	LockTime: 0,
}

// genesisMerkleRoot is the hash of the first transaction in the genesis
// block for the main network.
var genesisMerkleRoot = genesisCoinbaseTx.TxHash()

// genesisBlock defines the genesis block of the block chain which serves as
// the public transaction ledger for the main network.
var genesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(0x686a3c00, 0),
		Bits:       0x1d00ffff,
		Nonce:      0x7a9d1c36,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// genesisHash is the hash of the first block in the block chain for the main
// network (genesis block).
var genesisHash = genesisBlock.BlockHash()

// testnetGenesisBlock defines the genesis block of the block chain which
// serves as the public transaction ledger for the test network.
var testnetGenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(0x686a3c01, 0),
		Bits:       0x1e00ffff,
		Nonce:      0x2083e,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// testnetGenesisHash is the hash of the first block in the block chain for
// the test network (genesis block).
var testnetGenesisHash = testnetGenesisBlock.BlockHash()

// simnetGenesisBlock defines the genesis block of the block chain which
// serves as the public transaction ledger for the simulation test network.
var simnetGenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(0x686a3c02, 0),
		Bits:       0x207fffff,
		Nonce:      0x2,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// simnetGenesisHash is the hash of the first block in the block chain for
// the simulation test network (genesis block).
var simnetGenesisHash = simnetGenesisBlock.BlockHash()
