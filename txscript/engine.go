// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"fmt"

	"github.com/kaspanet/go-secp256k1"

	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/wire"
)

// ScriptFlags is a bitmask defining additional operations or tests that will
// be done when verifying a transaction input.
type ScriptFlags uint32

const (
	// ScriptStrictEncoding requires public keys and signatures to
	// deserialize without error. It is part of the mandatory, consensus
	// enforced flag set.
	ScriptStrictEncoding ScriptFlags = 1 << iota

	// ScriptRejectNonStandard rejects unlocking scripts that are valid
	// under consensus rules but carry trailing garbage or otherwise
	// deviate from standard relay policy.
	ScriptRejectNonStandard
)

// MandatoryScriptFlags is the script flag set every block connection
// enforces. A transaction failing these flags can never be valid.
const MandatoryScriptFlags = ScriptStrictEncoding

// StandardScriptFlags is the script flag set applied to transactions entering
// the memory pool. It is a strict superset of MandatoryScriptFlags.
const StandardScriptFlags = MandatoryScriptFlags | ScriptRejectNonStandard

// VerifyTransactionInput checks that the unlocking script of the idx'th input
// of tx satisfies the locking script pkScript under the provided flags.
//
// When sigCache is not nil, valid signature triples are memoized so
// revalidation of the same input (mempool admission followed by block
// connection) skips the expensive Schnorr verification.
func VerifyTransactionInput(tx *wire.MsgTx, idx int, pkScript []byte,
	flags ScriptFlags, sigCache *SigCache) error {

	if idx < 0 || idx >= len(tx.TxIn) {
		return scriptError(ErrMalformedScript, fmt.Sprintf(
			"transaction input index %d out of range", idx))
	}
	sigScript := tx.TxIn[idx].SignatureScript

	switch GetScriptClass(pkScript) {
	case PubKeyTy:
		return verifyPubKeyInput(tx, idx, pkScript, sigScript, flags,
			sigCache)

	case PubKeyHashTy:
		return verifyPubKeyHashInput(tx, idx, pkScript, sigScript, flags,
			sigCache)
	}

	return scriptError(ErrUnsupportedScriptVersion, fmt.Sprintf(
		"unrecognized locking script of length %d", len(pkScript)))
}

// verifyPubKeyInput verifies an input spending a pay-to-pubkey output. The
// unlocking script is a signature followed by the hash type byte.
func verifyPubKeyInput(tx *wire.MsgTx, idx int, pkScript, sigScript []byte,
	flags ScriptFlags, sigCache *SigCache) error {

	if len(sigScript) < sigWithHashTypeLen {
		return scriptError(ErrMalformedScript, fmt.Sprintf(
			"unlocking script of length %d is too short for "+
				"pay-to-pubkey", len(sigScript)))
	}
	if flags&ScriptRejectNonStandard != 0 &&
		len(sigScript) != sigWithHashTypeLen {

		return scriptError(ErrNonStandardScript, fmt.Sprintf(
			"unlocking script carries %d trailing bytes",
			len(sigScript)-sigWithHashTypeLen))
	}

	serializedPubKey := pkScript[1:]
	return checkSignature(tx, idx, pkScript, sigScript, serializedPubKey,
		sigCache)
}

// verifyPubKeyHashInput verifies an input spending a pay-to-pubkey-hash
// output. The unlocking script is a signature, the hash type byte, and the
// serialized public key whose hash160 must match the locking script
// commitment.
func verifyPubKeyHashInput(tx *wire.MsgTx, idx int, pkScript, sigScript []byte,
	flags ScriptFlags, sigCache *SigCache) error {

	const wantLen = sigWithHashTypeLen + PubKeySize
	if len(sigScript) < wantLen {
		return scriptError(ErrMalformedScript, fmt.Sprintf(
			"unlocking script of length %d is too short for "+
				"pay-to-pubkey-hash", len(sigScript)))
	}
	if flags&ScriptRejectNonStandard != 0 && len(sigScript) != wantLen {
		return scriptError(ErrNonStandardScript, fmt.Sprintf(
			"unlocking script carries %d trailing bytes",
			len(sigScript)-wantLen))
	}

	serializedPubKey := sigScript[sigWithHashTypeLen : sigWithHashTypeLen+PubKeySize]
	pubKeyHash := util.Hash160(serializedPubKey)
	if !bytes.Equal(pubKeyHash, pkScript[1:]) {
		return scriptError(ErrPubKeyHashMismatch,
			"public key does not hash to the committed value")
	}

	return checkSignature(tx, idx, pkScript, sigScript, serializedPubKey,
		sigCache)
}

// checkSignature verifies the leading signature of sigScript over the
// signature hash of tx's idx'th input against serializedPubKey.
func checkSignature(tx *wire.MsgTx, idx int, pkScript, sigScript,
	serializedPubKey []byte, sigCache *SigCache) error {

	hashType := SigHashType(sigScript[SignatureSize])
	sigHash, err := CalcSignatureHash(tx, idx, pkScript, hashType)
	if err != nil {
		return err
	}

	var serializedSig [SignatureSize]byte
	copy(serializedSig[:], sigScript[:SignatureSize])

	// Short circuit when this exact triple has already been verified.
	if sigCache != nil && sigCache.Exists(sigHash, serializedSig[:],
		serializedPubKey) {
		return nil
	}

	pubKey, err := secp256k1.DeserializeSchnorrPubKey(serializedPubKey)
	if err != nil {
		return scriptError(ErrPubKeyFormat, fmt.Sprintf(
			"cannot deserialize public key: %v", err))
	}

	signature, err := secp256k1.DeserializeSchnorrSignatureFromSlice(
		serializedSig[:])
	if err != nil {
		return scriptError(ErrSigFormat, fmt.Sprintf(
			"cannot deserialize signature: %v", err))
	}

	secpHash := secp256k1.Hash(sigHash)
	if !pubKey.SchnorrVerify(&secpHash, signature) {
		return scriptError(ErrSigVerify, "signature verification failed")
	}

	if sigCache != nil {
		sigCache.Add(sigHash, serializedSig[:], serializedPubKey)
	}
	return nil
}
