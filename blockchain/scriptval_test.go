// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/kaspanet/go-secp256k1"

	"github.com/solisnet/solisd/txscript"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/util/chainhash"
	"github.com/solisnet/solisd/wire"
)

// fundedSpend returns a view containing a funded pay-to-pubkey output along
// with a transaction spending it, signed by the given key.
func fundedSpend(t *testing.T, key *secp256k1.SchnorrKeyPair, payScript []byte) (*UtxoViewpoint, *wire.MsgTx) {
	t.Helper()

	fundTx := wire.NewMsgTx(1)
	fundTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			TxID:  chainhash.Hash{0x01},
			Index: 0,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	fundTx.AddTxOut(wire.NewTxOut(50000, payScript))

	view := NewUtxoViewpoint()
	view.AddTxOuts(util.NewTx(fundTx), 100)

	spendTx := wire.NewMsgTx(1)
	spendTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			TxID:  fundTx.TxHash(),
			Index: 0,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	spendTx.AddTxOut(wire.NewTxOut(49000, payScript))

	sigScript, err := txscript.SignatureScript(spendTx, 0, payScript,
		txscript.SigHashAll, key)
	if err != nil {
		t.Fatalf("failed to sign spend: %v", err)
	}
	spendTx.TxIn[0].SignatureScript = sigScript
	return view, spendTx
}

// TestValidateTransactionScripts ensures a correctly signed input verifies and
// a corrupted signature is rejected as a script validation failure.
func TestValidateTransactionScripts(t *testing.T) {
	key, payScript := newTestKey(t)
	sigCache := txscript.NewSigCache(10)

	view, spendTx := fundedSpend(t, key, payScript)
	err := ValidateTransactionScripts(util.NewTx(spendTx), view,
		txscript.MandatoryScriptFlags, sigCache)
	if err != nil {
		t.Fatalf("valid spend failed script validation: %v", err)
	}

	// Flip a bit in the middle of the signature.
	view, spendTx = fundedSpend(t, key, payScript)
	spendTx.TxIn[0].SignatureScript[10] ^= 0x01
	err = ValidateTransactionScripts(util.NewTx(spendTx), view,
		txscript.MandatoryScriptFlags, sigCache)
	assertRuleError(t, err, ErrScriptValidation)
}

// TestValidateScriptsWrongKey ensures a signature made by a different key than
// the one the output pays fails verification.
func TestValidateScriptsWrongKey(t *testing.T) {
	key, payScript := newTestKey(t)
	otherKey, _ := newTestKey(t)
	sigCache := txscript.NewSigCache(10)

	view, spendTx := fundedSpend(t, key, payScript)

	// Re-sign the spend with a key the output does not pay to.
	sigScript, err := txscript.SignatureScript(spendTx, 0, payScript,
		txscript.SigHashAll, otherKey)
	if err != nil {
		t.Fatalf("failed to sign spend: %v", err)
	}
	spendTx.TxIn[0].SignatureScript = sigScript

	err = ValidateTransactionScripts(util.NewTx(spendTx), view,
		txscript.MandatoryScriptFlags, sigCache)
	assertRuleError(t, err, ErrScriptValidation)
}

// TestValidateScriptsMissingInput ensures an input referencing an unknown
// output is reported as missing rather than as a script failure.
func TestValidateScriptsMissingInput(t *testing.T) {
	key, payScript := newTestKey(t)
	sigCache := txscript.NewSigCache(10)

	view, spendTx := fundedSpend(t, key, payScript)
	spendTx.TxIn[0].PreviousOutPoint.Index = 1
	err := ValidateTransactionScripts(util.NewTx(spendTx), view,
		txscript.MandatoryScriptFlags, sigCache)
	assertRuleError(t, err, ErrMissingTxOut)
}
