// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/kaspanet/go-secp256k1"

	"github.com/solisnet/solisd/chaincfg"
	"github.com/solisnet/solisd/txscript"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

const (
	// MaxSigOpsPerBlock is the maximum number of signature operations
	// allowed for a block.  It is a fraction of the max block payload size.
	MaxSigOpsPerBlock = wire.MaxBlockPayload / 50

	// MinCoinbaseScriptLen is the minimum length a coinbase script can be.
	// It must at least hold the serialized block height.
	MinCoinbaseScriptLen = serializedHeightLen

	// MaxCoinbaseScriptLen is the maximum length a coinbase script can be.
	MaxCoinbaseScriptLen = 100

	// serializedHeightLen is the number of bytes the block height occupies
	// at the front of a coinbase signature script.
	serializedHeightLen = 4

	// MaxOutputsPerBlock is the maximum number of transaction outputs there
	// can be in a block of max size.
	MaxOutputsPerBlock = wire.MaxBlockPayload / 9

	// coinstakeIndex is the position a coinstake transaction must occupy
	// in a proof-of-stake block.
	coinstakeIndex = 1
)

// isNullOutpoint determines whether or not a previous transaction output point
// is set.
func isNullOutpoint(outpoint *wire.OutPoint) bool {
	if outpoint.Index == math.MaxUint32 && outpoint.TxID == zeroHash {
		return true
	}
	return false
}

// ShouldHaveCoinstake returns whether a block at the provided height is
// required to be a proof-of-stake block for the given network.
func ShouldHaveCoinstake(params *chaincfg.Params, height int32) bool {
	return height >= params.PosActivationHeight
}

// IsFinalizedTransaction determines whether or not a transaction is finalized.
func IsFinalizedTransaction(tx *util.Tx, blockHeight int32, blockTime time.Time) bool {
	msgTx := tx.MsgTx()

	// Lock time of zero means the transaction is finalized.
	lockTime := msgTx.LockTime
	if lockTime == 0 {
		return true
	}

	// The lock time field of a transaction is either a block height at
	// which the transaction is finalized or a timestamp depending on if the
	// value is before the lockTimeThreshold.  When it is under the
	// threshold it is a block height.
	blockTimeOrHeight := int64(0)
	if lockTime < wire.LockTimeThreshold {
		blockTimeOrHeight = int64(blockHeight)
	} else {
		blockTimeOrHeight = blockTime.Unix()
	}
	if int64(lockTime) < blockTimeOrHeight {
		return true
	}

	// At this point, the transaction's lock time hasn't occurred yet, but
	// the transaction might still be finalized if the sequence number
	// for all transaction inputs is maxed out.
	for _, txIn := range msgTx.TxIn {
		if txIn.Sequence != math.MaxUint32 {
			return false
		}
	}
	return true
}

// CalcBlockSubsidy returns the subsidy amount a block at the provided height
// should have. This is mainly used for determining how much the coinbase for
// newly generated blocks awards as well as validating the coinbase for blocks
// has the expected value.
//
// The subsidy is halved every SubsidyReductionInterval blocks.  Mathematically
// this is: baseSubsidy / 2^(height/SubsidyReductionInterval)
func CalcBlockSubsidy(height int32, chainParams *chaincfg.Params) int64 {
	if chainParams.SubsidyReductionInterval == 0 {
		return chainParams.BaseSubsidy
	}

	// Equivalent to: baseSubsidy / 2^(height/subsidyHalvingInterval)
	return chainParams.BaseSubsidy >> uint(height/chainParams.SubsidyReductionInterval)
}

// CheckTransactionSanity performs some preliminary checks on a transaction to
// ensure it is sane.  These checks are context free.
func CheckTransactionSanity(tx *util.Tx) error {
	// A transaction must have at least one input.
	msgTx := tx.MsgTx()
	if len(msgTx.TxIn) == 0 {
		return ruleError(ErrNoTxInputs, "transaction has no inputs")
	}

	// A transaction must have at least one output.
	if len(msgTx.TxOut) == 0 {
		return ruleError(ErrNoTxOutputs, "transaction has no outputs")
	}

	// A transaction must not exceed the maximum allowed block payload when
	// serialized.
	serializedTxSize := msgTx.SerializeSize()
	if serializedTxSize > wire.MaxBlockPayload {
		str := fmt.Sprintf("serialized transaction is too big - got "+
			"%d, max %d", serializedTxSize, wire.MaxBlockPayload)
		return ruleError(ErrTxTooBig, str)
	}

	// Ensure the transaction amounts are in range.  Each transaction
	// output must not be negative or more than the max allowed per
	// transaction.  Also, the total of all outputs must abide by the same
	// restrictions.  All amounts in a transaction are in a unit value known
	// as a satoshi.
	var totalSatoshi int64
	for _, txOut := range msgTx.TxOut {
		satoshi := txOut.Value
		if satoshi < 0 {
			str := fmt.Sprintf("transaction output has negative "+
				"value of %v", satoshi)
			return ruleError(ErrBadTxOutValue, str)
		}
		if satoshi > util.MaxSatoshi {
			str := fmt.Sprintf("transaction output value of %v is "+
				"higher than max allowed value of %v", satoshi,
				util.MaxSatoshi)
			return ruleError(ErrBadTxOutValue, str)
		}

		// Two's complement int64 overflow guarantees that any overflow
		// is detected and reported.
		totalSatoshi += satoshi
		if totalSatoshi < 0 {
			str := fmt.Sprintf("total value of all transaction "+
				"outputs exceeds max allowed value of %v",
				util.MaxSatoshi)
			return ruleError(ErrBadTxOutValue, str)
		}
		if totalSatoshi > util.MaxSatoshi {
			str := fmt.Sprintf("total value of all transaction "+
				"outputs is %v which is higher than max "+
				"allowed value of %v", totalSatoshi,
				util.MaxSatoshi)
			return ruleError(ErrBadTxOutValue, str)
		}
	}

	// Check for duplicate transaction inputs.
	existingTxOut := make(map[wire.OutPoint]struct{})
	for _, txIn := range msgTx.TxIn {
		if _, exists := existingTxOut[txIn.PreviousOutPoint]; exists {
			return ruleError(ErrDuplicateTxInputs, "transaction "+
				"contains duplicate inputs")
		}
		existingTxOut[txIn.PreviousOutPoint] = struct{}{}
	}

	// Coinbase script length must be between min and max length.
	if tx.IsCoinBase() {
		slen := len(msgTx.TxIn[0].SignatureScript)
		if slen < MinCoinbaseScriptLen || slen > MaxCoinbaseScriptLen {
			str := fmt.Sprintf("coinbase transaction script length "+
				"of %d is out of range (min: %d, max: %d)",
				slen, MinCoinbaseScriptLen, MaxCoinbaseScriptLen)
			return ruleError(ErrBadCoinbaseScriptLen, str)
		}
	} else {
		// Previous transaction outputs referenced by the inputs to this
		// transaction must not be null.
		for _, txIn := range msgTx.TxIn {
			if isNullOutpoint(&txIn.PreviousOutPoint) {
				return ruleError(ErrBadTxInput, "transaction "+
					"input refers to previous output that "+
					"is null")
			}
		}
	}

	// The declared transaction type must match the payload it carries: a
	// plain transaction carries none, a special transaction carries one
	// that deserializes under its own rule set.
	switch msgTx.TxType {
	case wire.TxTypeNormal:
		if len(msgTx.Payload) != 0 {
			return ruleError(ErrInvalidPayload, "normal transaction "+
				"carries a special payload")
		}
	case wire.TxTypeProviderRegister:
		if len(msgTx.Payload) == 0 {
			return ruleError(ErrInvalidPayload, "provider "+
				"registration carries no payload")
		}
		if len(msgTx.Payload) > wire.MaxTxPayloadSize {
			str := fmt.Sprintf("special payload of %d bytes is "+
				"larger than the max allowed size of %d",
				len(msgTx.Payload), wire.MaxTxPayloadSize)
			return ruleError(ErrInvalidPayload, str)
		}
	default:
		str := fmt.Sprintf("unrecognized transaction type %d",
			msgTx.TxType)
		return ruleError(ErrInvalidPayload, str)
	}

	// A coinstake must have at least one input, at least two outputs, and
	// an empty first output.
	if tx.IsCoinStake() {
		if len(msgTx.TxOut) < 2 || !msgTx.TxOut[0].IsEmpty() {
			return ruleError(ErrBadCoinstakeShape, "coinstake "+
				"transaction does not have the required shape")
		}
	}

	return nil
}

// checkProofOfWork ensures the block header bits which indicate the target
// difficulty is in min/max range and that the block hash is less than the
// target difficulty as claimed.
//
// The flags modify the behavior of this function as follows:
//  - BFNoPoWCheck: The check to ensure the block hash is less than the target
//    difficulty is not performed.
func checkProofOfWork(header *wire.BlockHeader, powLimit *big.Int, flags BehaviorFlags) error {
	// The target difficulty must be larger than zero.
	target := CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		str := fmt.Sprintf("block target difficulty of %064x is too low",
			target)
		return ruleError(ErrUnexpectedDifficulty, str)
	}

	// The target difficulty must be less than the maximum allowed.
	if target.Cmp(powLimit) > 0 {
		str := fmt.Sprintf("block target difficulty of %064x is "+
			"higher than max of %064x", target, powLimit)
		return ruleError(ErrUnexpectedDifficulty, str)
	}

	// The block hash must be less than the claimed target unless the flag
	// to avoid proof of work checks is set.
	if flags&BFNoPoWCheck != BFNoPoWCheck {
		// The block hash must be less than the claimed target.
		hash := header.BlockHash()
		hashNum := HashToBig(&hash)
		if hashNum.Cmp(target) > 0 {
			str := fmt.Sprintf("block hash of %064x is higher than "+
				"expected max of %064x", hashNum, target)
			return ruleError(ErrHighHash, str)
		}
	}

	return nil
}

// checkBlockHeaderSanity performs some preliminary checks on a block header to
// ensure it is sane before continuing with processing.  These checks are
// context free.
func (b *BlockChain) checkBlockHeaderSanity(header *wire.BlockHeader, isProofOfStake bool, flags BehaviorFlags) error {
	// A proof-of-stake block claims no work; its validity rests on the
	// coinstake and block signature instead.  Only the target range is
	// checked for it.
	powFlags := flags
	if isProofOfStake {
		powFlags |= BFNoPoWCheck
	}
	err := checkProofOfWork(header, b.chainParams.PowLimit, powFlags)
	if err != nil {
		return err
	}

	// A block timestamp must not have a greater precision than one second.
	if !header.Timestamp.Equal(time.Unix(header.Timestamp.Unix(), 0)) {
		str := fmt.Sprintf("block timestamp of %v has a higher "+
			"precision than one second", header.Timestamp)
		return ruleError(ErrInvalidTime, str)
	}

	// Ensure the block time is not too far in the future.
	maxTimestamp := b.timeSource.Now().Add(b.chainParams.TimestampDeviationTolerance)
	if header.Timestamp.After(maxTimestamp) {
		str := fmt.Sprintf("block timestamp of %v is too far in the "+
			"future", header.Timestamp)
		return ruleError(ErrTimeTooNew, str)
	}

	return nil
}

// checkBlockSanity performs some preliminary checks on a block to ensure it is
// sane before continuing with block processing.  These checks are context
// free.
func (b *BlockChain) checkBlockSanity(block *util.Block, flags BehaviorFlags) error {
	msgBlock := block.MsgBlock()
	header := &msgBlock.Header
	isProofOfStake := msgBlock.IsProofOfStake()
	err := b.checkBlockHeaderSanity(header, isProofOfStake, flags)
	if err != nil {
		return err
	}

	// A block must have at least one transaction.
	numTx := len(msgBlock.Transactions)
	if numTx == 0 {
		return ruleError(ErrNoTransactions, "block does not contain "+
			"any transactions")
	}

	// A block must not exceed the maximum allowed block payload when
	// serialized.
	serializedSize := msgBlock.SerializeSize()
	if serializedSize > wire.MaxBlockPayload {
		str := fmt.Sprintf("serialized block is too big - got %d, "+
			"max %d", serializedSize, wire.MaxBlockPayload)
		return ruleError(ErrBlockTooBig, str)
	}

	// The first transaction in a block must be a coinbase.
	transactions := block.Transactions()
	if !transactions[0].IsCoinBase() {
		return ruleError(ErrFirstTxNotCoinbase, "first transaction in "+
			"block is not the coinbase")
	}

	// A block must not have more than one coinbase, and a coinstake may
	// only occupy the second position.
	for i, tx := range transactions[1:] {
		if tx.IsCoinBase() {
			str := fmt.Sprintf("block contains second coinbase at "+
				"index %d", i+1)
			return ruleError(ErrMultipleCoinbases, str)
		}
		if tx.IsCoinStake() && i+1 != coinstakeIndex {
			str := fmt.Sprintf("block contains coinstake at "+
				"index %d", i+1)
			return ruleError(ErrMultipleCoinstakes, str)
		}
	}

	// A proof-of-stake block must carry a block signature within bounds.
	// The signature itself is verified contextually once the coinstake's
	// staked output is known.
	if isProofOfStake {
		if len(msgBlock.Signature) == 0 {
			return ruleError(ErrBadBlockSignature, "proof-of-stake "+
				"block is missing its signature")
		}
		if len(msgBlock.Signature) > wire.MaxBlockSigSize {
			str := fmt.Sprintf("block signature of %d bytes is "+
				"larger than the max allowed size of %d",
				len(msgBlock.Signature), wire.MaxBlockSigSize)
			return ruleError(ErrBadBlockSignature, str)
		}
	} else if len(msgBlock.Signature) != 0 {
		return ruleError(ErrBadBlockSignature, "proof-of-work block "+
			"carries a block signature")
	}

	// Do some preliminary checks on each transaction to ensure they are
	// sane before continuing.
	for _, tx := range transactions {
		err := CheckTransactionSanity(tx)
		if err != nil {
			return err
		}
	}

	// Build merkle tree and ensure the calculated merkle root matches the
	// entry in the block header.  This also has the effect of caching all
	// of the transaction hashes in the block to speed up future hash
	// checks.
	calculatedMerkleRoot := CalcMerkleRoot(transactions)
	if !header.MerkleRoot.IsEqual(calculatedMerkleRoot) {
		str := fmt.Sprintf("block merkle root is invalid - block "+
			"header indicates %v, but calculated value is %v",
			header.MerkleRoot, calculatedMerkleRoot)
		return ruleError(ErrBadMerkleRoot, str)
	}

	// Check for duplicate transactions.  This check will be fairly quick
	// since the transaction hashes are already cached due to building the
	// merkle tree above.  Duplicated transactions would also trigger a
	// merkle-root malleation, so this rejects both.
	existingTxHashes := make(map[chainhash.Hash]struct{})
	for _, tx := range transactions {
		hash := tx.Hash()
		if _, exists := existingTxHashes[*hash]; exists {
			str := fmt.Sprintf("block contains duplicate "+
				"transaction %v", hash)
			return ruleError(ErrDuplicateTx, str)
		}
		existingTxHashes[*hash] = struct{}{}
	}

	// Two provider registrations within one block must not bind the same
	// owner key or collateral.
	err = checkBlockProviderDuplicates(block)
	if err != nil {
		return err
	}

	// The number of signature operations must be less than the maximum
	// allowed per block.
	totalSigOps := 0
	for _, tx := range transactions {
		totalSigOps += CountSigOps(tx)
		if totalSigOps > MaxSigOpsPerBlock {
			str := fmt.Sprintf("block contains too many signature "+
				"operations - got %v, max %v", totalSigOps,
				MaxSigOpsPerBlock)
			return ruleError(ErrTooManySigOps, str)
		}
	}

	return nil
}

// CheckBlockSanity performs some preliminary checks on a block to ensure it is
// sane before continuing with block processing.  These checks are context
// free.
func (b *BlockChain) CheckBlockSanity(block *util.Block) error {
	return b.checkBlockSanity(block, BFNone)
}

// CountSigOps returns the number of signature operations required to spend
// the outputs the passed transaction creates.  Every spendable output costs
// one signature verification when later consumed.
func CountSigOps(tx *util.Tx) int {
	totalSigOps := 0
	for _, txOut := range tx.MsgTx().TxOut {
		totalSigOps += txscript.GetSigOpCount(txOut.PkScript)
	}
	return totalSigOps
}

// ExtractCoinbaseHeight attempts to extract the height of the block from the
// scriptSig of a coinbase transaction.  Coinbase heights are of fixed width
// at the front of the signature script.
func ExtractCoinbaseHeight(coinbaseTx *util.Tx) (int32, error) {
	sigScript := coinbaseTx.MsgTx().TxIn[0].SignatureScript
	if len(sigScript) < serializedHeightLen {
		str := "the coinbase signature script must start with the " +
			"serialized block height"
		return 0, ruleError(ErrBadCoinbaseHeight, str)
	}

	serializedHeight := binary.LittleEndian.Uint32(sigScript[:serializedHeightLen])
	return int32(serializedHeight), nil
}

// checkSerializedHeight checks if the signature script in the passed
// transaction starts with the serialized block height of wantHeight.
func checkSerializedHeight(coinbaseTx *util.Tx, wantHeight int32) error {
	serializedHeight, err := ExtractCoinbaseHeight(coinbaseTx)
	if err != nil {
		return err
	}

	if serializedHeight != wantHeight {
		str := fmt.Sprintf("the coinbase signature script serialized "+
			"block height is %d when %d was expected",
			serializedHeight, wantHeight)
		return ruleError(ErrBadCoinbaseHeight, str)
	}
	return nil
}

// checkBlockHeaderContext performs several validation checks on the block
// header which depend on its position within the block chain.
//
// The flags modify the behavior of this function as follows:
//  - BFFastAdd: All checks except those involving comparing the header against
//    the checkpoints and maximum reorganization depth are not performed.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) checkBlockHeaderContext(header *wire.BlockHeader, prevNode *blockNode, flags BehaviorFlags) error {
	blockHeight := prevNode.height + 1
	fastAdd := flags&BFFastAdd == BFFastAdd

	if !fastAdd {
		// Ensure the difficulty specified in the block header matches
		// the calculated difficulty based on the previous block and
		// difficulty retarget rules.
		expectedDifficulty := b.calcNextRequiredDifficulty(prevNode)
		blockDifficulty := header.Bits
		if blockDifficulty != expectedDifficulty {
			str := fmt.Sprintf("block difficulty of %d is not the "+
				"expected value of %d", blockDifficulty,
				expectedDifficulty)
			return ruleError(ErrUnexpectedDifficulty, str)
		}

		// Ensure the timestamp for the block header is after the
		// median time of the last several blocks (medianTimeBlocks).
		medianTime := prevNode.CalcPastMedianTime()
		if !header.Timestamp.After(medianTime) {
			str := fmt.Sprintf("block timestamp of %v is not after "+
				"expected %v", header.Timestamp, medianTime)
			return ruleError(ErrTimeTooOld, str)
		}

		// Reject outdated block versions once the network has upgraded
		// past them.
		minVersion := b.chainParams.MinBlockVersion(blockHeight)
		if header.Version < minVersion {
			str := fmt.Sprintf("new blocks with version %d are no "+
				"longer valid at height %d, minimum version is "+
				"%d", header.Version, blockHeight, minVersion)
			return ruleError(ErrBlockVersionTooOld, str)
		}
	}

	// Ensure chain matches up to predetermined checkpoints.
	blockHash := header.BlockHash()
	if !b.verifyCheckpoint(blockHeight, &blockHash) {
		str := fmt.Sprintf("block at height %d does not match "+
			"checkpoint hash", blockHeight)
		return ruleError(ErrBadCheckpoint, str)
	}

	// Find the previous checkpoint and prevent blocks which fork the main
	// chain before it.  This prevents storage of new, otherwise valid,
	// blocks which build off of old blocks that are likely at a much easier
	// difficulty and therefore could be used to waste cache and disk space.
	checkpoint := b.LatestCheckpoint()
	if checkpoint != nil && blockHeight < checkpoint.Height {
		str := fmt.Sprintf("block at height %d forks the main chain "+
			"before the previous checkpoint at height %d",
			blockHeight, checkpoint.Height)
		return ruleError(ErrForkTooOld, str)
	}

	// Reject forks deeper than the maximum reorganization depth behind the
	// current best tip.  This is a finality safeguard: a competing chain
	// must diverge within the allowed window or it is refused outright
	// regardless of its claimed work.
	tip := b.bestChain.Tip()
	if tip != nil && !b.bestChain.Contains(prevNode) {
		fork := b.bestChain.FindFork(prevNode)
		if fork == nil || tip.height-fork.height >= b.chainParams.MaxReorgDepth {
			str := fmt.Sprintf("block forks the main chain at a "+
				"depth that exceeds the maximum reorganization "+
				"depth of %d", b.chainParams.MaxReorgDepth)
			return ruleError(ErrForkTooDeep, str)
		}
	}

	return nil
}

// checkBlockContext performs several validation checks on the block which
// depend on its position within the block chain.
//
// The flags modify the behavior of this function as follows:
//  - BFFastAdd: The transaction are not checked to see if they are finalized.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) checkBlockContext(block *util.Block, prevNode *blockNode, flags BehaviorFlags) error {
	// Perform all block header related validation checks.
	header := &block.MsgBlock().Header
	err := b.checkBlockHeaderContext(header, prevNode, flags)
	if err != nil {
		return err
	}

	blockHeight := prevNode.height + 1

	// The block production mode must match the height: proof of stake at
	// and above the activation height, proof of work below it.
	isProofOfStake := block.MsgBlock().IsProofOfStake()
	if ShouldHaveCoinstake(b.chainParams, blockHeight) {
		if !isProofOfStake {
			str := fmt.Sprintf("block at height %d must be proof "+
				"of stake", blockHeight)
			return ruleError(ErrSecondTxNotCoinstake, str)
		}
	} else if isProofOfStake {
		str := fmt.Sprintf("block at height %d must be proof of work",
			blockHeight)
		return ruleError(ErrMultipleCoinstakes, str)
	}

	fastAdd := flags&BFFastAdd == BFFastAdd
	if !fastAdd {
		blockTime := header.Timestamp

		// Ensure all transactions in the block are finalized.
		for _, tx := range block.Transactions() {
			if !IsFinalizedTransaction(tx, blockHeight, blockTime) {
				str := fmt.Sprintf("block contains unfinalized "+
					"transaction %v", tx.Hash())
				return ruleError(ErrUnfinalizedTx, str)
			}
		}

		// Ensure the coinbase starts with the serialized block height.
		// This ties every coinbase to its height, making each one
		// unique.
		coinbaseTx := block.Transactions()[0]
		err = checkSerializedHeight(coinbaseTx, blockHeight)
		if err != nil {
			return err
		}
	}

	return nil
}

// checkBlockSignature verifies the proof-of-stake block signature against the
// public key that owns the staked output of the block's coinstake.  The
// coinstake's reward output must be pay-to-pubkey so the staking key is
// recoverable without external data.
func checkBlockSignature(block *util.Block) error {
	msgBlock := block.MsgBlock()
	coinstake := msgBlock.Transactions[coinstakeIndex]

	var pubKeyBytes []byte
	for _, txOut := range coinstake.TxOut[1:] {
		extracted, err := txscript.ExtractPubKey(txOut.PkScript)
		if err == nil {
			pubKeyBytes = extracted
			break
		}
	}
	if pubKeyBytes == nil {
		return ruleError(ErrBadBlockSignature, "coinstake does not "+
			"pay to a recoverable staking key")
	}

	pubKey, err := secp256k1.DeserializeSchnorrPubKey(pubKeyBytes)
	if err != nil {
		return ruleError(ErrBadBlockSignature, "staking key is "+
			"malformed: "+err.Error())
	}
	signature, err := secp256k1.DeserializeSchnorrSignatureFromSlice(msgBlock.Signature)
	if err != nil {
		return ruleError(ErrBadBlockSignature, "block signature is "+
			"malformed: "+err.Error())
	}

	secpHash := secp256k1.Hash(*block.Hash())
	if !pubKey.SchnorrVerify(&secpHash, signature) {
		return ruleError(ErrBadBlockSignature, "block signature does "+
			"not verify against the staking key")
	}
	return nil
}

// CheckTransactionInputs performs a series of checks on the inputs to a
// transaction to ensure they are valid.  An example of some of the checks
// include verifying all inputs exist, ensuring the coinbase seasoning
// requirements are met, detecting double spends, validating all values and
// fees are in the legal range and the total output amount doesn't exceed the
// input amount.  As it checks the inputs, it also calculates the total fees
// for the transaction and returns that value.
//
// NOTE: The transaction MUST have already been sanity checked with the
// CheckTransactionSanity function prior to calling this function.
func CheckTransactionInputs(tx *util.Tx, txHeight int32, utxoView *UtxoViewpoint, chainParams *chaincfg.Params) (int64, error) {
	// Coinbase transactions have no inputs.
	if tx.IsCoinBase() {
		return 0, nil
	}

	txHash := tx.Hash()
	var totalSatoshiIn int64
	for txInIndex, txIn := range tx.MsgTx().TxIn {
		// Ensure the referenced input transaction is available.
		utxo := utxoView.LookupEntry(txIn.PreviousOutPoint)
		if utxo == nil || utxo.IsSpent() {
			str := fmt.Sprintf("output %v referenced from "+
				"transaction %s:%d either does not exist or "+
				"has already been spent", txIn.PreviousOutPoint,
				txHash, txInIndex)
			return 0, ruleError(ErrMissingTxOut, str)
		}

		// Ensure the transaction is not spending coins which have not
		// yet reached the required coinbase maturity.
		if utxo.IsCoinBase() || utxo.IsCoinStake() {
			originHeight := utxo.BlockHeight()
			blocksSincePrev := txHeight - originHeight
			coinbaseMaturity := int32(chainParams.CoinbaseMaturity)
			if blocksSincePrev < coinbaseMaturity {
				str := fmt.Sprintf("tried to spend minted "+
					"coins at height %v before required "+
					"maturity of %v blocks", originHeight,
					coinbaseMaturity)
				return 0, ruleError(ErrImmatureSpend, str)
			}
		}

		// Ensure the transaction amounts are in range.  Each of the
		// output values of the input transactions must not be negative
		// or more than the max allowed per transaction.  All amounts in
		// a transaction are in a unit value known as a satoshi.
		originTxSatoshi := utxo.Amount()
		if originTxSatoshi < 0 {
			str := fmt.Sprintf("transaction output has negative "+
				"value of %v", util.Amount(originTxSatoshi))
			return 0, ruleError(ErrBadTxOutValue, str)
		}
		if originTxSatoshi > util.MaxSatoshi {
			str := fmt.Sprintf("transaction output value of %v is "+
				"higher than max allowed value of %v",
				util.Amount(originTxSatoshi), util.MaxSatoshi)
			return 0, ruleError(ErrBadTxOutValue, str)
		}

		// The total of all outputs must not be more than the max
		// allowed per transaction.  Also, we could potentially overflow
		// the accumulator so check for overflow.
		lastSatoshiIn := totalSatoshiIn
		totalSatoshiIn += originTxSatoshi
		if totalSatoshiIn < lastSatoshiIn ||
			totalSatoshiIn > util.MaxSatoshi {
			str := fmt.Sprintf("total value of all transaction "+
				"inputs is %v which is higher than max "+
				"allowed value of %v", totalSatoshiIn,
				util.MaxSatoshi)
			return 0, ruleError(ErrBadTxOutValue, str)
		}
	}

	// Calculate the total output amount for this transaction.  It is safe
	// to ignore overflow and out of range errors here because those error
	// conditions would have already been caught by the transaction sanity
	// checks.
	var totalSatoshiOut int64
	for _, txOut := range tx.MsgTx().TxOut {
		totalSatoshiOut += txOut.Value
	}

	// A coinstake mints its stake reward, so its outputs legitimately
	// exceed its inputs.  The block-level accounting bounds the minted
	// amount.
	if tx.IsCoinStake() {
		return 0, nil
	}

	// Ensure the transaction does not spend more than its inputs.
	if totalSatoshiIn < totalSatoshiOut {
		str := fmt.Sprintf("total value of all transaction inputs for "+
			"transaction %v is %v which is less than the amount "+
			"spent of %v", txHash, totalSatoshiIn, totalSatoshiOut)
		return 0, ruleError(ErrSpendTooHigh, str)
	}

	// NOTE: bitcoind checks if the transaction fees are < 0 here, but that
	// is an impossible condition because of the check above that ensures
	// the inputs are >= the outputs.
	txFeeInSatoshi := totalSatoshiIn - totalSatoshiOut
	return txFeeInSatoshi, nil
}

// checkConnectBlock performs several checks to confirm connecting the passed
// block to the chain represented by the passed view does not violate any
// rules.  In addition, the passed view is updated to spend all of the
// referenced outputs and add all of the new utxos created by block.  Thus, the
// view will represent the state of the chain as if the block were actually
// connected and consequently the best hash for the view is also updated to
// passed block.
//
// An example of some of the checks performed are ensuring connecting the block
// would not cause any duplicate transaction hashes for old transactions that
// aren't fully spent, double spends, exceeding the maximum allowed signature
// operations per block, invalid values in relation to the expected block
// subsidy, and the two-pass script verification.
//
// The stxos slice, when non-nil, is appended with an entry per spent output so
// the effects of the block can be reversed later.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) checkConnectBlock(node *blockNode, block *util.Block, view *UtxoViewpoint, stxos *[]SpentTxOut) error {
	// If the side chain blocks end up in the database, a call to
	// CheckBlockSanity should be done here in case a previous version
	// allowed a block that is no longer valid.  However, since the
	// implementation only currently uses memory for the side chain blocks,
	// it isn't currently necessary.

	// The coinbase for the Genesis block is not spendable, so just return
	// an error now.
	if node.hash.IsEqual(b.chainParams.GenesisHash) {
		str := "the coinbase for the genesis block is not spendable"
		return ruleError(ErrMissingTxOut, str)
	}

	// Load all of the utxos referenced by the inputs for all transactions
	// in the block don't already exist in the utxo view from the database.
	//
	// These utxo entries are needed for verification of things such as
	// transaction inputs, counting pay-to-script-hashes, and scripts.
	err := view.fetchInputUtxos(b.db, block)
	if err != nil {
		return err
	}

	isProofOfStake := block.MsgBlock().IsProofOfStake()
	transactions := block.Transactions()

	// Verify the proof-of-stake block signature now that the coinstake's
	// staked output is available.
	if isProofOfStake {
		err := checkBlockSignature(block)
		if err != nil {
			return err
		}
	}

	// Perform several checks on the inputs for each transaction.  Also
	// accumulate the total fees.  This could technically be combined with
	// the loop below for efficiency, but doing so would require sacrificing
	// readability.
	var totalFees int64
	for _, tx := range transactions {
		txFee, err := CheckTransactionInputs(tx, node.height, view,
			b.chainParams)
		if err != nil {
			return err
		}

		// Sum the total fees and ensure we don't overflow the
		// accumulator.
		lastTotalFees := totalFees
		totalFees += txFee
		if totalFees < lastTotalFees {
			return ruleError(ErrBadFees, "total fees for block "+
				"overflows accumulator")
		}

		// Validate any special payload the transaction carries against
		// the current view and registration state.
		err = b.checkSpecialTransaction(tx, node.height, view)
		if err != nil {
			return err
		}

		// Add all of the outputs for this transaction which are not
		// provably unspendable as available utxos.  Also, the passed
		// spent txos slice is updated to contain an entry for each
		// spent txout in the order each transaction spends them.
		err = view.connectTransaction(tx, node.height, stxos)
		if err != nil {
			return err
		}
	}

	// The amount minted by this block must not exceed the expected subsidy
	// plus the fees it collects.  For proof of work the mint is the
	// coinbase's total output; for proof of stake the coinbase must be
	// empty of value and the mint is the coinstake's outputs minus its
	// staked inputs.
	expectedMint := CalcBlockSubsidy(node.height, b.chainParams) + totalFees
	minted, err := calcMintedValue(block, view, isProofOfStake)
	if err != nil {
		return err
	}
	if minted > expectedMint {
		str := fmt.Sprintf("block mints %v which is more than the "+
			"expected value of %v", minted, expectedMint)
		return ruleError(ErrBadCoinbaseValue, str)
	}

	// Now that the inexpensive checks are done and have passed, verify the
	// transactions are actually allowed to spend the coins by running the
	// expensive signature checks against the fanned-out worker pool.  Doing
	// this last helps prevent CPU exhaustion attacks.
	err = checkBlockScripts(block, view, b.sigCache)
	if err != nil {
		return err
	}

	// Update the best hash for view to include this block since all of its
	// transactions have been connected.
	view.SetBestHash(&node.hash)

	return nil
}

// calcMintedValue computes the value a block mints into existence.
func calcMintedValue(block *util.Block, view *UtxoViewpoint, isProofOfStake bool) (int64, error) {
	transactions := block.Transactions()
	coinbase := transactions[0].MsgTx()

	var coinbaseOut int64
	for _, txOut := range coinbase.TxOut {
		coinbaseOut += txOut.Value
	}

	if !isProofOfStake {
		return coinbaseOut, nil
	}

	// In a proof-of-stake block the coinbase must not carry value; the
	// reward rides on the coinstake.
	if coinbaseOut != 0 {
		return 0, ruleError(ErrBadCoinbaseValue, "proof-of-stake "+
			"coinbase carries value")
	}

	coinstake := transactions[coinstakeIndex].MsgTx()
	var stakeOut int64
	for _, txOut := range coinstake.TxOut {
		stakeOut += txOut.Value
	}

	// The coinstake's inputs were connected to the view by the caller, so
	// their originating amounts live in the spent entries.  They were
	// validated by CheckTransactionInputs before connecting.
	var stakeIn int64
	for _, txIn := range coinstake.TxIn {
		entry := view.LookupEntry(txIn.PreviousOutPoint)
		if entry == nil {
			return 0, AssertError(fmt.Sprintf("coinstake input %v "+
				"missing from view during mint accounting",
				txIn.PreviousOutPoint))
		}
		stakeIn += entry.Amount()
	}

	return stakeOut - stakeIn, nil
}
