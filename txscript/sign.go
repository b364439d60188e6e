// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"github.com/kaspanet/go-secp256k1"
	"github.com/pkg/errors"

	"github.com/solisnet/solisd/wire"
)

// RawTxInSignature returns the serialized Schnorr signature for the input idx
// of the given transaction, with hashType appended to it.
func RawTxInSignature(tx *wire.MsgTx, idx int, pkScript []byte,
	hashType SigHashType, key *secp256k1.SchnorrKeyPair) ([]byte, error) {

	sigHash, err := CalcSignatureHash(tx, idx, pkScript, hashType)
	if err != nil {
		return nil, err
	}

	secpHash := secp256k1.Hash(sigHash)
	signature, err := key.SchnorrSign(&secpHash)
	if err != nil {
		return nil, errors.Errorf("cannot sign tx input: %s", err)
	}

	return append(signature.Serialize()[:], byte(hashType)), nil
}

// SignatureScript creates an unlocking script for tx to spend coins sent from
// a previous output to the owner of key. tx must include all transaction
// inputs and outputs, however txin scripts are allowed to be filled or empty.
// The returned script is calculated to be used as the idx'th txin sigscript
// for tx. pkScript is the locking script of the previous output being spent
// as the idx'th input.
func SignatureScript(tx *wire.MsgTx, idx int, pkScript []byte,
	hashType SigHashType, key *secp256k1.SchnorrKeyPair) ([]byte, error) {

	sig, err := RawTxInSignature(tx, idx, pkScript, hashType, key)
	if err != nil {
		return nil, err
	}

	switch GetScriptClass(pkScript) {
	case PubKeyTy:
		return sig, nil

	case PubKeyHashTy:
		pubKey, err := key.SchnorrPublicKey()
		if err != nil {
			return nil, err
		}
		serializedPubKey, err := pubKey.Serialize()
		if err != nil {
			return nil, err
		}
		return append(sig, serializedPubKey[:]...), nil
	}

	return nil, scriptError(ErrUnsupportedScriptVersion,
		"cannot sign unrecognized locking script")
}
