// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"testing"

	"github.com/kaspanet/go-secp256k1"

	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// testKey generates a fresh signing key along with its serialized public key.
func testKey(t *testing.T) (*secp256k1.SchnorrKeyPair, []byte) {
	t.Helper()

	key, err := secp256k1.GenerateSchnorrKeyPair()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pubKey, err := key.SchnorrPublicKey()
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	serialized, err := pubKey.Serialize()
	if err != nil {
		t.Fatalf("failed to serialize public key: %v", err)
	}
	return key, serialized[:]
}

// spendingTx builds a transaction with a single input referencing a dummy
// outpoint and a single output, suitable for signing against a locking
// script.
func spendingTx() *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			TxID:  chainhash.Hash{0x01},
			Index: 0,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(100000, []byte{0x02, 0x01, 0xbb}))
	return tx
}

// signInput signs the sole input of tx against pkScript and installs the
// unlocking script.
func signInput(t *testing.T, tx *wire.MsgTx, pkScript []byte,
	key *secp256k1.SchnorrKeyPair) {

	t.Helper()
	sigScript, err := SignatureScript(tx, 0, pkScript, SigHashAll, key)
	if err != nil {
		t.Fatalf("SignatureScript: %v", err)
	}
	tx.TxIn[0].SignatureScript = sigScript
}

// TestSignAndVerifyPubKey signs a pay-to-pubkey spend and ensures it
// verifies, and that signatures from a different key do not.
func TestSignAndVerifyPubKey(t *testing.T) {
	key, serializedPubKey := testKey(t)
	pkScript, err := PayToPubKey(serializedPubKey)
	if err != nil {
		t.Fatalf("PayToPubKey: %v", err)
	}

	tx := spendingTx()
	signInput(t, tx, pkScript, key)

	if len(tx.TxIn[0].SignatureScript) != SignatureSize+1 {
		t.Fatalf("pay-to-pubkey unlocking script is %d bytes, want %d",
			len(tx.TxIn[0].SignatureScript), SignatureSize+1)
	}
	if err := VerifyTransactionInput(tx, 0, pkScript, StandardScriptFlags, nil); err != nil {
		t.Fatalf("VerifyTransactionInput: %v", err)
	}

	// A signature from a different key must not verify.
	otherKey, _ := testKey(t)
	signInput(t, tx, pkScript, otherKey)
	err = VerifyTransactionInput(tx, 0, pkScript, StandardScriptFlags, nil)
	assertScriptError(t, err, ErrSigVerify)
}

// TestSignAndVerifyPubKeyHash signs a pay-to-pubkey-hash spend and ensures it
// verifies, including the hash commitment on the carried public key.
func TestSignAndVerifyPubKeyHash(t *testing.T) {
	key, serializedPubKey := testKey(t)
	pkScript, err := PayToPubKeyHash(util.Hash160(serializedPubKey))
	if err != nil {
		t.Fatalf("PayToPubKeyHash: %v", err)
	}

	tx := spendingTx()
	signInput(t, tx, pkScript, key)

	wantLen := SignatureSize + 1 + PubKeySize
	if len(tx.TxIn[0].SignatureScript) != wantLen {
		t.Fatalf("pay-to-pubkey-hash unlocking script is %d bytes, "+
			"want %d", len(tx.TxIn[0].SignatureScript), wantLen)
	}
	if err := VerifyTransactionInput(tx, 0, pkScript, StandardScriptFlags, nil); err != nil {
		t.Fatalf("VerifyTransactionInput: %v", err)
	}

	// A valid signature carrying a public key that does not hash to the
	// locking script commitment is rejected.
	otherKey, _ := testKey(t)
	signInput(t, tx, pkScript, otherKey)
	err = VerifyTransactionInput(tx, 0, pkScript, StandardScriptFlags, nil)
	assertScriptError(t, err, ErrPubKeyHashMismatch)
}

// TestVerifyTrailingBytes ensures unlocking scripts with trailing garbage are
// rejected under standard policy but tolerated under consensus rules.
func TestVerifyTrailingBytes(t *testing.T) {
	key, serializedPubKey := testKey(t)
	pkScript, err := PayToPubKey(serializedPubKey)
	if err != nil {
		t.Fatalf("PayToPubKey: %v", err)
	}

	tx := spendingTx()
	signInput(t, tx, pkScript, key)
	tx.TxIn[0].SignatureScript = append(tx.TxIn[0].SignatureScript, 0x00)

	err = VerifyTransactionInput(tx, 0, pkScript, StandardScriptFlags, nil)
	assertScriptError(t, err, ErrNonStandardScript)

	if err := VerifyTransactionInput(tx, 0, pkScript, MandatoryScriptFlags, nil); err != nil {
		t.Fatalf("consensus verification rejected trailing bytes: %v",
			err)
	}
}

// TestVerifyMalleatedTx ensures changing any committed part of a signed
// transaction invalidates the signature.
func TestVerifyMalleatedTx(t *testing.T) {
	key, serializedPubKey := testKey(t)
	pkScript, err := PayToPubKey(serializedPubKey)
	if err != nil {
		t.Fatalf("PayToPubKey: %v", err)
	}

	tx := spendingTx()
	signInput(t, tx, pkScript, key)

	tx.TxOut[0].Value++
	err = VerifyTransactionInput(tx, 0, pkScript, StandardScriptFlags, nil)
	assertScriptError(t, err, ErrSigVerify)
}

// TestVerifyWithSigCache ensures a verified input is memoized so the same
// triple passes again via the cache.
func TestVerifyWithSigCache(t *testing.T) {
	key, serializedPubKey := testKey(t)
	pkScript, err := PayToPubKey(serializedPubKey)
	if err != nil {
		t.Fatalf("PayToPubKey: %v", err)
	}

	tx := spendingTx()
	signInput(t, tx, pkScript, key)

	sigCache := NewSigCache(10)
	if err := VerifyTransactionInput(tx, 0, pkScript, StandardScriptFlags, sigCache); err != nil {
		t.Fatalf("VerifyTransactionInput: %v", err)
	}

	sigHash, err := CalcSignatureHash(tx, 0, pkScript, SigHashAll)
	if err != nil {
		t.Fatalf("CalcSignatureHash: %v", err)
	}
	sig := tx.TxIn[0].SignatureScript[:SignatureSize]
	if !sigCache.Exists(sigHash, sig, serializedPubKey) {
		t.Fatal("verified signature was not added to the cache")
	}

	if err := VerifyTransactionInput(tx, 0, pkScript, StandardScriptFlags, sigCache); err != nil {
		t.Fatalf("cached verification failed: %v", err)
	}
}

// TestCalcSignatureHashErrors ensures invalid hash types and input indexes
// are rejected.
func TestCalcSignatureHashErrors(t *testing.T) {
	tx := spendingTx()

	_, err := CalcSignatureHash(tx, 0, []byte{0x01}, SigHashType(0x02))
	assertScriptError(t, err, ErrInvalidSignatureHashType)

	_, err = CalcSignatureHash(tx, 1, []byte{0x01}, SigHashAll)
	assertScriptError(t, err, ErrMalformedScript)
}

// assertScriptError fails the test unless err is an Error carrying the
// wanted code.
func assertScriptError(t *testing.T, err error, want ErrorCode) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected script error %v, got no error", want)
	}
	serr, ok := err.(Error)
	if !ok {
		t.Fatalf("expected txscript.Error, got %T: %v", err, err)
	}
	if serr.ErrorCode != want {
		t.Fatalf("wrong script error code: got %v, want %v",
			serr.ErrorCode, want)
	}
}
