// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"fmt"

	"github.com/kaspanet/go-secp256k1"

	"github.com/solisnet/solisd/database"
	"github.com/solisnet/solisd/txscript"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

var (
	// providerOwnersBucket maps an owner key hash to the hash of the
	// transaction that registered it.  It enforces the key-reuse ban.
	providerOwnersBucket = database.MakeBucket([]byte("provider-owners"))

	// providerCollateralsBucket maps a collateral outpoint to the hash of
	// the transaction that bound it.
	providerCollateralsBucket = database.MakeBucket([]byte("provider-collaterals"))
)

// extractProviderPayload deserializes the provider registration payload
// carried by the passed transaction.
func extractProviderPayload(tx *util.Tx) (*wire.ProviderRegistration, error) {
	var payload wire.ProviderRegistration
	err := payload.Deserialize(bytes.NewReader(tx.MsgTx().Payload))
	if err != nil {
		str := fmt.Sprintf("provider registration payload of "+
			"transaction %v is malformed: %v", tx.Hash(), err)
		return nil, ruleError(ErrInvalidPayload, str)
	}
	return &payload, nil
}

// calcInputsHash computes the hash committing a special payload to the
// inputs of its carrying transaction.  It covers every input outpoint in
// order.
func calcInputsHash(msgTx *wire.MsgTx) chainhash.Hash {
	buf := make([]byte, 0, len(msgTx.TxIn)*(chainhash.HashSize+4))
	for _, txIn := range msgTx.TxIn {
		buf = append(buf, txIn.PreviousOutPoint.TxID[:]...)
		idx := txIn.PreviousOutPoint.Index
		buf = append(buf, byte(idx), byte(idx>>8), byte(idx>>16),
			byte(idx>>24))
	}
	return chainhash.DoubleHashH(buf)
}

// checkProviderRegistrationSanity performs the context-free portion of
// provider registration validation: field bounds, key presence, collateral
// shape for internal collateral, and the inputs-hash commitment.
func checkProviderRegistrationSanity(tx *util.Tx, payload *wire.ProviderRegistration, chainCollateral int64) error {
	if payload.Version == 0 || payload.Version > wire.ProviderPayloadVersion {
		str := fmt.Sprintf("provider registration version %d is not "+
			"supported", payload.Version)
		return ruleError(ErrInvalidPayload, str)
	}
	if payload.Mode != wire.ProviderModeService {
		str := fmt.Sprintf("provider registration mode %d is not "+
			"supported", payload.Mode)
		return ruleError(ErrInvalidPayload, str)
	}
	if payload.OperatorReward > wire.MaxOperatorReward {
		str := fmt.Sprintf("provider operator reward %d exceeds the "+
			"maximum of %d", payload.OperatorReward,
			wire.MaxOperatorReward)
		return ruleError(ErrInvalidPayload, str)
	}

	// All three key hashes must be set.  A null key would make the
	// registration unownable and its payouts unspendable.
	var nullKeyHash [wire.KeyHashSize]byte
	if payload.OwnerKeyHash == nullKeyHash ||
		payload.OperatorKeyHash == nullKeyHash ||
		payload.VotingKeyHash == nullKeyHash {

		return ruleError(ErrInvalidPayload, "provider registration "+
			"carries a null key hash")
	}

	// The payout script must be a recognized standard form so the payout
	// is actually claimable.
	if txscript.GetScriptClass(payload.PayoutScript) == txscript.NonStandardTy {
		return ruleError(ErrInvalidPayload, "provider payout script "+
			"is not a standard form")
	}

	// The payload must commit to the carrying transaction's inputs.  This
	// prevents moving a payload onto a different transaction.
	if payload.InputsHash != calcInputsHash(tx.MsgTx()) {
		return ruleError(ErrInvalidPayload, "provider registration "+
			"inputs hash does not commit to the transaction inputs")
	}

	// Internal collateral must point at an output of this transaction with
	// the exact collateral amount, and needs no extra ownership proof
	// since the transaction inputs already authorize it.
	if !payload.HasExternalCollateral() {
		idx := payload.CollateralOutpoint.Index
		if idx >= uint32(len(tx.MsgTx().TxOut)) {
			str := fmt.Sprintf("provider collateral index %d is "+
				"out of range", idx)
			return ruleError(ErrBadPayloadCollateral, str)
		}
		if tx.MsgTx().TxOut[idx].Value != chainCollateral {
			str := fmt.Sprintf("provider collateral output has "+
				"%d when exactly %d is required",
				tx.MsgTx().TxOut[idx].Value, chainCollateral)
			return ruleError(ErrBadPayloadCollateral, str)
		}
		if len(payload.Signature) != 0 {
			return ruleError(ErrInvalidPayload, "provider "+
				"registration with internal collateral must "+
				"not carry a signature")
		}
	} else if len(payload.Signature) == 0 {
		return ruleError(ErrInvalidPayload, "provider registration "+
			"with external collateral is missing its ownership "+
			"signature")
	}

	return nil
}

// checkBlockProviderDuplicates rejects blocks in which two provider
// registrations bind the same owner key or the same collateral.  Reuse
// against already-confirmed registrations is checked contextually.
func checkBlockProviderDuplicates(block *util.Block) error {
	var seenOwners map[[wire.KeyHashSize]byte]struct{}
	var seenCollaterals map[wire.OutPoint]struct{}
	for _, tx := range block.Transactions() {
		if tx.MsgTx().TxType != wire.TxTypeProviderRegister {
			continue
		}
		payload, err := extractProviderPayload(tx)
		if err != nil {
			return err
		}
		if seenOwners == nil {
			seenOwners = make(map[[wire.KeyHashSize]byte]struct{})
			seenCollaterals = make(map[wire.OutPoint]struct{})
		}

		if _, exists := seenOwners[payload.OwnerKeyHash]; exists {
			return ruleError(ErrDuplicatePayloadKey, "block "+
				"contains two provider registrations with the "+
				"same owner key")
		}
		seenOwners[payload.OwnerKeyHash] = struct{}{}

		collateral := payload.CollateralOutpoint
		if !payload.HasExternalCollateral() {
			collateral = wire.OutPoint{
				TxID:  *tx.Hash(),
				Index: payload.CollateralOutpoint.Index,
			}
		}
		if _, exists := seenCollaterals[collateral]; exists {
			return ruleError(ErrDuplicatePayloadKey, "block "+
				"contains two provider registrations binding "+
				"the same collateral")
		}
		seenCollaterals[collateral] = struct{}{}
	}
	return nil
}

// checkSpecialTransaction validates any special payload the transaction
// carries against the current utxo view and the confirmed provider registry.
// Plain transactions pass through untouched.
//
// This function MUST be called with the chain state lock held (for writes).
func (b *BlockChain) checkSpecialTransaction(tx *util.Tx, txHeight int32, view *UtxoViewpoint) error {
	if tx.MsgTx().TxType != wire.TxTypeProviderRegister {
		return nil
	}

	payload, err := extractProviderPayload(tx)
	if err != nil {
		return err
	}
	err = checkProviderRegistrationSanity(tx, payload,
		int64(b.chainParams.ProviderCollateral))
	if err != nil {
		return err
	}

	// The owner key must not already be registered.
	hasOwner, err := b.db.Has(providerOwnersBucket.Key(payload.OwnerKeyHash[:]))
	if err != nil {
		return err
	}
	if hasOwner {
		return ruleError(ErrDuplicatePayloadKey, "provider owner key "+
			"is already registered")
	}

	// Likewise the collateral must not already back another provider.
	collateral := payload.CollateralOutpoint
	if !payload.HasExternalCollateral() {
		collateral = wire.OutPoint{TxID: *tx.Hash(), Index: collateral.Index}
	}
	hasCollateral, err := b.db.Has(
		providerCollateralsBucket.Key(serializeOutpoint(collateral)))
	if err != nil {
		return err
	}
	if hasCollateral {
		return ruleError(ErrDuplicatePayloadKey, "provider collateral "+
			"is already bound to another registration")
	}

	// External collateral must exist unspent with the exact required
	// amount, pay to a recoverable key, and the payload signature must
	// prove ownership of that key.  The carrying transaction must not
	// spend the collateral it references.
	if payload.HasExternalCollateral() {
		for _, txIn := range tx.MsgTx().TxIn {
			if txIn.PreviousOutPoint == payload.CollateralOutpoint {
				return ruleError(ErrBadPayloadCollateral,
					"provider registration spends its own "+
						"external collateral")
			}
		}

		// The collateral is referenced rather than spent, so it is not
		// among the inputs the view was populated from.  Pull it in
		// from the utxo set on demand.
		err := view.fetchUtxos(b.db, map[wire.OutPoint]struct{}{
			payload.CollateralOutpoint: {},
		})
		if err != nil {
			return err
		}

		utxo := view.LookupEntry(payload.CollateralOutpoint)
		if utxo == nil || utxo.IsSpent() {
			return ruleError(ErrBadPayloadCollateral, "provider "+
				"collateral does not exist or is spent")
		}
		if utxo.Amount() != int64(b.chainParams.ProviderCollateral) {
			str := fmt.Sprintf("provider collateral has %d when "+
				"exactly %d is required", utxo.Amount(),
				int64(b.chainParams.ProviderCollateral))
			return ruleError(ErrBadPayloadCollateral, str)
		}

		pubKeyBytes, err := txscript.ExtractPubKey(utxo.PkScript())
		if err != nil {
			return ruleError(ErrBadPayloadCollateral, "provider "+
				"collateral does not pay to a recoverable key")
		}
		err = verifyPayloadSignature(payload, pubKeyBytes)
		if err != nil {
			return err
		}
	}

	return nil
}

// CheckSpecialTransaction validates any special payload the passed transaction
// carries against the given utxo view and the confirmed provider registry.  It
// is the admission-time counterpart of the checks performed when a block
// containing the transaction is connected.
//
// This function is safe for concurrent access.
func (b *BlockChain) CheckSpecialTransaction(tx *util.Tx, txHeight int32, view *UtxoViewpoint) error {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	return b.checkSpecialTransaction(tx, txHeight, view)
}

// verifyPayloadSignature checks the payload ownership signature against the
// given serialized public key.  The signature covers the canonical sign
// string of the payload.
func verifyPayloadSignature(payload *wire.ProviderRegistration, pubKeyBytes []byte) error {
	sigHash, err := payload.SignatureHash()
	if err != nil {
		return ruleError(ErrInvalidPayload, "provider registration "+
			"sign string could not be computed: "+err.Error())
	}

	pubKey, err := secp256k1.DeserializeSchnorrPubKey(pubKeyBytes)
	if err != nil {
		return ruleError(ErrBadPayloadCollateral, "provider collateral "+
			"key is malformed: "+err.Error())
	}
	signature, err := secp256k1.DeserializeSchnorrSignatureFromSlice(payload.Signature)
	if err != nil {
		return ruleError(ErrInvalidPayload, "provider registration "+
			"signature is malformed: "+err.Error())
	}

	secpHash := secp256k1.Hash(sigHash)
	if !pubKey.SchnorrVerify(&secpHash, signature) {
		return ruleError(ErrBadPayloadCollateral, "provider "+
			"registration signature does not verify against the "+
			"collateral key")
	}
	return nil
}

// serializeOutpoint returns the canonical byte form of an outpoint used for
// registry keys.
func serializeOutpoint(outpoint wire.OutPoint) []byte {
	serialized := make([]byte, chainhash.HashSize+4)
	copy(serialized, outpoint.TxID[:])
	byteOrderPutUint32(serialized[chainhash.HashSize:], outpoint.Index)
	return serialized
}

// dbPutProviderRegistrations records the provider registrations confirmed by
// the given block into the registry buckets.
func dbPutProviderRegistrations(dbTx database.Transaction, block *util.Block) error {
	for _, tx := range block.Transactions() {
		if tx.MsgTx().TxType != wire.TxTypeProviderRegister {
			continue
		}
		payload, err := extractProviderPayload(tx)
		if err != nil {
			return err
		}

		txHash := tx.Hash()
		err = dbTx.Put(providerOwnersBucket.Key(payload.OwnerKeyHash[:]),
			txHash[:])
		if err != nil {
			return err
		}

		collateral := payload.CollateralOutpoint
		if !payload.HasExternalCollateral() {
			collateral = wire.OutPoint{TxID: *txHash, Index: collateral.Index}
		}
		err = dbTx.Put(
			providerCollateralsBucket.Key(serializeOutpoint(collateral)),
			txHash[:])
		if err != nil {
			return err
		}
	}
	return nil
}

// dbRemoveProviderRegistrations removes the provider registrations confirmed
// by the given block from the registry buckets.  It is the disconnect-side
// inverse of dbPutProviderRegistrations.
func dbRemoveProviderRegistrations(dbTx database.Transaction, block *util.Block) error {
	for _, tx := range block.Transactions() {
		if tx.MsgTx().TxType != wire.TxTypeProviderRegister {
			continue
		}
		payload, err := extractProviderPayload(tx)
		if err != nil {
			return err
		}

		err = dbTx.Delete(providerOwnersBucket.Key(payload.OwnerKeyHash[:]))
		if err != nil {
			return err
		}

		collateral := payload.CollateralOutpoint
		if !payload.HasExternalCollateral() {
			collateral = wire.OutPoint{TxID: *tx.Hash(), Index: collateral.Index}
		}
		err = dbTx.Delete(
			providerCollateralsBucket.Key(serializeOutpoint(collateral)))
		if err != nil {
			return err
		}
	}
	return nil
}
