// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// These variables are the chain proof-of-work limit parameters for each
// default network.
var (
	// bigOne is 1 represented as a big.Int. It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// mainPowLimit is the highest proof of work value a solis block can
	// have for the main network. It is the value 2^236 - 1.
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 236), bigOne)

	// testnetPowLimit is the highest proof of work value a solis block
	// can have for the test network. It is the value 2^240 - 1.
	testnetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 240), bigOne)

	// simnetPowLimit is the highest proof of work value a solis block
	// can have for the simulation test network. It is the value 2^255 - 1.
	simnetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

// Checkpoint identifies a known good point in the block chain. Blocks at or
// below a checkpoint height must match the checkpointed hash, and no
// reorganization is ever allowed below the most recent checkpoint.
type Checkpoint struct {
	Height int32
	Hash   *chainhash.Hash
}

// UpgradeVersion pins the minimum block version accepted from a given height
// onward. Blocks carrying an older version at or above Height are rejected
// as obsolete.
type UpgradeVersion struct {
	Height     int32
	MinVersion int32
}

// Params defines a solis network by its parameters. These parameters may be
// used by solis applications to differentiate networks as well as addresses
// and keys for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net wire.SolisNet

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// DNSSeeds defines a list of DNS seeds for the network that are used
	// as one method to discover peers.
	DNSSeeds []string

	// GenesisBlock defines the first block of the chain.
	GenesisBlock *wire.MsgBlock

	// GenesisHash is the starting block hash.
	GenesisHash *chainhash.Hash

	// PowLimit defines the highest allowed proof of work value for a
	// block as a uint256.
	PowLimit *big.Int

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	// TargetTimePerBlock is the desired amount of time to generate each
	// block.
	TargetTimePerBlock time.Duration

	// DifficultyWindowSize is the size of the moving window of blocks
	// used to calculate the required difficulty of each block.
	DifficultyWindowSize uint64

	// TimestampDeviationTolerance is the maximum amount a block timestamp
	// is allowed to be ahead of the current time.
	TimestampDeviationTolerance time.Duration

	// BaseSubsidy is the starting subsidy amount for mined or staked
	// blocks.
	BaseSubsidy int64

	// SubsidyReductionInterval is the interval of blocks before the
	// subsidy is halved.
	SubsidyReductionInterval int32

	// CoinbaseMaturity is the number of blocks required before newly
	// minted coins (coinbase or coinstake outputs) can be spent.
	CoinbaseMaturity uint16

	// PosActivationHeight is the height at which the network switches
	// from proof of work to proof of stake block production. Blocks at or
	// above this height must be proof of stake.
	PosActivationHeight int32

	// MaxReorgDepth is the maximum depth a chain reorganization may reach.
	// A competing chain whose fork point is buried deeper than this below
	// the current tip is rejected outright.
	MaxReorgDepth int32

	// Checkpoints ordered from oldest to newest.
	Checkpoints []Checkpoint

	// UpgradeVersions pins minimum block versions by height, ordered from
	// oldest to newest.
	UpgradeVersions []UpgradeVersion

	// ProviderCollateral is the exact amount a provider registration must
	// bind as collateral.
	ProviderCollateral util.Amount

	// MinRelayTxFee defines the minimum transaction fee in satoshi/kB to
	// be considered a non-zero fee for relay and mining purposes.
	MinRelayTxFee util.Amount

	// RelayNonStdTxs defines whether the network should relay non
	// standard transactions.
	RelayNonStdTxs bool

	// PubKeyHashAddrID is the base58check version byte for pay-to-pubkey-hash
	// addresses on the network.
	PubKeyHashAddrID byte
}

// MainnetParams defines the network parameters for the main solis network.
var MainnetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "16111",
	DNSSeeds:    []string{"dnsseed.solisnet.org"},

	// Chain parameters
	GenesisBlock:                &genesisBlock,
	GenesisHash:                 &genesisHash,
	PowLimit:                    mainPowLimit,
	PowLimitBits:                0x1d00ffff,
	TargetTimePerBlock:          time.Minute,
	DifficultyWindowSize:        2640,
	TimestampDeviationTolerance: 2 * time.Hour,
	BaseSubsidy:                 250 * util.SatoshiPerCoin,
	SubsidyReductionInterval:    525600,
	CoinbaseMaturity:            100,
	PosActivationHeight:         200000,
	MaxReorgDepth:               100,

	Checkpoints: []Checkpoint{},

	UpgradeVersions: []UpgradeVersion{
		{Height: 0, MinVersion: 1},
	},

	ProviderCollateral: 10000 * util.SatoshiPerCoin,

	// Policy
	MinRelayTxFee:  1000,
	RelayNonStdTxs: false,

	// Address encoding magic
	PubKeyHashAddrID: 0x3f, // starts with S
}

// TestnetParams defines the network parameters for the test solis network.
var TestnetParams = Params{
	Name:        "testnet",
	Net:         wire.TestNet,
	DefaultPort: "16211",
	DNSSeeds:    []string{"dnsseed-testnet.solisnet.org"},

	// Chain parameters
	GenesisBlock:                &testnetGenesisBlock,
	GenesisHash:                 &testnetGenesisHash,
	PowLimit:                    testnetPowLimit,
	PowLimitBits:                0x1e00ffff,
	TargetTimePerBlock:          time.Minute,
	DifficultyWindowSize:        2640,
	TimestampDeviationTolerance: 2 * time.Hour,
	BaseSubsidy:                 250 * util.SatoshiPerCoin,
	SubsidyReductionInterval:    525600,
	CoinbaseMaturity:            100,
	PosActivationHeight:         500,
	MaxReorgDepth:               100,

	Checkpoints: []Checkpoint{},

	UpgradeVersions: []UpgradeVersion{
		{Height: 0, MinVersion: 1},
	},

	ProviderCollateral: 10000 * util.SatoshiPerCoin,

	// Policy
	MinRelayTxFee:  1000,
	RelayNonStdTxs: true,

	// Address encoding magic
	PubKeyHashAddrID: 0x42, // starts with T
}

// SimnetParams defines the network parameters for the simulation test
// network. This network is similar to the normal test network except it is
// intended for private use within a group of individuals doing simulation
// testing. The functionality is intended to differ in that the only nodes
// which are specifically specified are used to create the network rather
// than following normal discovery rules. This is important as otherwise it
// would just turn into another public testnet.
var SimnetParams = Params{
	Name:        "simnet",
	Net:         wire.SimNet,
	DefaultPort: "16311",
	DNSSeeds:    []string{}, // NOTE: There must NOT be any seeds.

	// Chain parameters
	GenesisBlock:                &simnetGenesisBlock,
	GenesisHash:                 &simnetGenesisHash,
	PowLimit:                    simnetPowLimit,
	PowLimitBits:                0x207fffff,
	TargetTimePerBlock:          time.Minute,
	DifficultyWindowSize:        64,
	TimestampDeviationTolerance: 2 * time.Hour,
	BaseSubsidy:                 250 * util.SatoshiPerCoin,
	SubsidyReductionInterval:    210000,
	CoinbaseMaturity:            16,
	PosActivationHeight:         100000,
	MaxReorgDepth:               100,

	Checkpoints: nil,

	UpgradeVersions: []UpgradeVersion{
		{Height: 0, MinVersion: 1},
	},

	ProviderCollateral: 10000 * util.SatoshiPerCoin,

	// Policy
	MinRelayTxFee:  1000,
	RelayNonStdTxs: true,

	// Address encoding magic
	PubKeyHashAddrID: 0x7d, // starts with s
}

var (
	// ErrDuplicateNet describes an error where the parameters for a solis
	// network could not be set due to the network already being a standard
	// network or previously-registered via this package.
	ErrDuplicateNet = errors.New("duplicate solis network")
)

var registeredNets = map[wire.SolisNet]struct{}{}

// Register registers the network parameters for a solis network. This may
// error with ErrDuplicateNet if the network is already registered (either
// due to a previous Register call, or the network being one of the default
// networks).
//
// Network parameters should be registered into this package by a main package
// as early as possible. Then, library packages may lookup networks or network
// parameters based on inputs and work regardless of the network being standard
// or not.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = struct{}{}

	return nil
}

// mustRegister performs the same function as Register except it panics if
// there is an error. This should only be called from package init functions.
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

// LatestCheckpoint returns the most recent checkpoint for the network, or nil
// when it has none.
func (p *Params) LatestCheckpoint() *Checkpoint {
	if len(p.Checkpoints) == 0 {
		return nil
	}
	return &p.Checkpoints[len(p.Checkpoints)-1]
}

// MinBlockVersion returns the minimum block version the network accepts at
// the given height.
func (p *Params) MinBlockVersion(height int32) int32 {
	minVersion := int32(1)
	for _, upgrade := range p.UpgradeVersions {
		if height < upgrade.Height {
			break
		}
		minVersion = upgrade.MinVersion
	}
	return minVersion
}

func init() {
	// Register all default networks when the package is initialized.
	mustRegister(&MainnetParams)
	mustRegister(&TestnetParams)
	mustRegister(&SimnetParams)
}
