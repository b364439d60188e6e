// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"

	"github.com/kaspanet/go-secp256k1"

	"github.com/solisnet/solisd/util"
)

// Script classes. A locking script is a single class byte followed by the
// class-specific commitment.
const (
	// classPubKey commits to a serialized Schnorr public key. The
	// unlocking script is a signature.
	classPubKey = 0x01

	// classPubKeyHash commits to the hash160 of a serialized Schnorr
	// public key. The unlocking script is a signature followed by the
	// public key.
	classPubKeyHash = 0x02
)

const (
	// PubKeySize is the length of a serialized Schnorr public key.
	PubKeySize = secp256k1.SerializedSchnorrPublicKeySize

	// PubKeyHashSize is the length of a hash160 public key commitment.
	PubKeyHashSize = 20

	// SignatureSize is the length of a serialized Schnorr signature.
	SignatureSize = secp256k1.SerializedSchnorrSignatureSize

	// pubKeyScriptLen is the length of a pay-to-pubkey locking script.
	pubKeyScriptLen = 1 + PubKeySize

	// pubKeyHashScriptLen is the length of a pay-to-pubkey-hash locking
	// script.
	pubKeyHashScriptLen = 1 + PubKeyHashSize

	// sigWithHashTypeLen is the length of a serialized signature followed
	// by its signature hash type byte.
	sigWithHashTypeLen = SignatureSize + 1
)

// ScriptClass is an enumeration for the list of standard types of script.
type ScriptClass byte

// Classes of script payment known about in the blockchain.
const (
	NonStandardTy ScriptClass = iota // None of the recognized forms.
	PubKeyTy                         // Pay to pubkey.
	PubKeyHashTy                     // Pay to pubkey hash.
)

// scriptClassToName houses the human-readable strings which describe each
// script class.
var scriptClassToName = []string{
	NonStandardTy: "nonstandard",
	PubKeyTy:      "pubkey",
	PubKeyHashTy:  "pubkeyhash",
}

// String implements the Stringer interface by returning the name of
// the enum script class. If the enum is invalid then "Invalid" will be
// returned.
func (t ScriptClass) String() string {
	if int(t) > len(scriptClassToName) || int(t) < 0 {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// GetScriptClass returns the class of the locking script passed. NonStandardTy
// will be returned when the script does not parse as any recognized form.
func GetScriptClass(pkScript []byte) ScriptClass {
	if len(pkScript) == 0 {
		return NonStandardTy
	}

	switch pkScript[0] {
	case classPubKey:
		if len(pkScript) == pubKeyScriptLen {
			return PubKeyTy
		}
	case classPubKeyHash:
		if len(pkScript) == pubKeyHashScriptLen {
			return PubKeyHashTy
		}
	}

	return NonStandardTy
}

// IsPayToPubKeyHash returns whether the script is in the standard
// pay-to-pubkey-hash format.
func IsPayToPubKeyHash(pkScript []byte) bool {
	return GetScriptClass(pkScript) == PubKeyHashTy
}

// ExtractPubKey returns the serialized public key a pay-to-pubkey locking
// script commits to.
func ExtractPubKey(pkScript []byte) ([]byte, error) {
	if GetScriptClass(pkScript) != PubKeyTy {
		return nil, scriptError(ErrMalformedScript,
			"script is not pay-to-pubkey")
	}
	return pkScript[1:], nil
}

// ExtractPubKeyHash returns the public key hash a pay-to-pubkey-hash locking
// script commits to.
func ExtractPubKeyHash(pkScript []byte) ([]byte, error) {
	if GetScriptClass(pkScript) != PubKeyHashTy {
		return nil, scriptError(ErrMalformedScript,
			"script is not pay-to-pubkey-hash")
	}
	return pkScript[1:], nil
}

// GetSigOpCount returns the number of signature operations the passed
// locking script requires to be spent. Each recognized class costs exactly
// one signature verification; unrecognized scripts cost none since they
// cannot be spent.
func GetSigOpCount(pkScript []byte) int {
	switch GetScriptClass(pkScript) {
	case PubKeyTy, PubKeyHashTy:
		return 1
	}
	return 0
}

// IsUnspendable returns whether the passed locking script is unspendable, or
// guaranteed to fail at execution. This allows inputs to be pruned instantly
// when entering the UTXO set.
func IsUnspendable(pkScript []byte) bool {
	return GetScriptClass(pkScript) == NonStandardTy
}

// PayToPubKey creates a new locking script which pays to the provided
// serialized public key.
func PayToPubKey(serializedPubKey []byte) ([]byte, error) {
	if len(serializedPubKey) != PubKeySize {
		return nil, scriptError(ErrPubKeyFormat, fmt.Sprintf(
			"invalid public key length %d", len(serializedPubKey)))
	}

	script := make([]byte, pubKeyScriptLen)
	script[0] = classPubKey
	copy(script[1:], serializedPubKey)
	return script, nil
}

// PayToPubKeyHash creates a new locking script which pays to the provided
// public key hash.
func PayToPubKeyHash(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != PubKeyHashSize {
		return nil, scriptError(ErrMalformedScript, fmt.Sprintf(
			"invalid public key hash length %d", len(pubKeyHash)))
	}

	script := make([]byte, pubKeyHashScriptLen)
	script[0] = classPubKeyHash
	copy(script[1:], pubKeyHash)
	return script, nil
}

// PayToAddress creates a new locking script which pays to the provided
// address.
func PayToAddress(addr util.Address) ([]byte, error) {
	switch addr := addr.(type) {
	case *util.AddressPubKey:
		return PayToPubKey(addr.ScriptAddress())
	case *util.AddressPubKeyHash:
		return PayToPubKeyHash(addr.ScriptAddress())
	}
	return nil, scriptError(ErrMalformedScript, fmt.Sprintf(
		"unable to generate locking script for unsupported address "+
			"type %T", addr))
}
