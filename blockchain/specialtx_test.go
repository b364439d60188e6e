// Copyright (c) 2013-2017 The btcsuite developers
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

// testCollateral is the collateral amount used by the registration helpers.
const testCollateral = int64(10000 * util.SatoshiPerCoin)

// newProviderRegistration builds a provider registration transaction with
// internal collateral at output 0 along with its deserialized payload.  The
// payload commits to the transaction inputs, so callers mutating inputs must
// refresh InputsHash themselves.
func newProviderRegistration(t *testing.T, prevOut wire.OutPoint) (*util.Tx, *wire.ProviderRegistration) {
	t.Helper()

	payoutScript := make([]byte, 33)
	payoutScript[0] = 0x01

	msgTx := wire.NewMsgTx(1)
	msgTx.TxType = wire.TxTypeProviderRegister
	msgTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: prevOut,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	msgTx.AddTxOut(wire.NewTxOut(testCollateral, payoutScript))

	payload := &wire.ProviderRegistration{
		Version:            wire.ProviderPayloadVersion,
		Mode:               wire.ProviderModeService,
		CollateralOutpoint: wire.OutPoint{Index: 0},
		Service:            "provider.example.org:16111",
		OperatorReward:     500,
		PayoutScript:       payoutScript,
		InputsHash:         calcInputsHash(msgTx),
	}
	payload.OwnerKeyHash[0] = 0x11
	payload.OperatorKeyHash[0] = 0x22
	payload.VotingKeyHash[0] = 0x33

	serialized, err := payload.Bytes()
	if err != nil {
		t.Fatalf("failed to serialize payload: %v", err)
	}
	msgTx.Payload = serialized

	return util.NewTx(msgTx), payload
}

// TestProviderRegistrationSanity exercises the context-free payload checks.
func TestProviderRegistrationSanity(t *testing.T) {
	prevOut := wire.OutPoint{TxID: chainhash.Hash{0x01}, Index: 0}

	tests := []struct {
		name   string
		mutate func(tx *util.Tx, p *wire.ProviderRegistration)
		code   ErrorCode
		valid  bool
	}{
		{
			name:   "valid internal collateral",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {},
			valid:  true,
		},
		{
			name: "version zero",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.Version = 0
			},
			code: ErrInvalidPayload,
		},
		{
			name: "version from the future",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.Version = wire.ProviderPayloadVersion + 1
			},
			code: ErrInvalidPayload,
		},
		{
			name: "unknown mode",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.Mode = 1
			},
			code: ErrInvalidPayload,
		},
		{
			name: "operator reward over 100 percent",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.OperatorReward = wire.MaxOperatorReward + 1
			},
			code: ErrInvalidPayload,
		},
		{
			name: "null owner key",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.OwnerKeyHash = [wire.KeyHashSize]byte{}
			},
			code: ErrInvalidPayload,
		},
		{
			name: "null voting key",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.VotingKeyHash = [wire.KeyHashSize]byte{}
			},
			code: ErrInvalidPayload,
		},
		{
			name: "nonstandard payout script",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.PayoutScript = []byte{0xff, 0x01}
			},
			code: ErrInvalidPayload,
		},
		{
			name: "inputs hash does not commit to inputs",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.InputsHash[0] ^= 0x01
			},
			code: ErrInvalidPayload,
		},
		{
			name: "internal collateral index out of range",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.CollateralOutpoint.Index = 1
			},
			code: ErrBadPayloadCollateral,
		},
		{
			name: "internal collateral with wrong amount",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				tx.MsgTx().TxOut[0].Value = testCollateral - 1
			},
			code: ErrBadPayloadCollateral,
		},
		{
			name: "internal collateral with stray signature",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.Signature = make([]byte, 64)
			},
			code: ErrInvalidPayload,
		},
		{
			name: "external collateral without signature",
			mutate: func(tx *util.Tx, p *wire.ProviderRegistration) {
				p.CollateralOutpoint.TxID = chainhash.Hash{0x02}
			},
			code: ErrInvalidPayload,
		},
	}

	for _, test := range tests {
		tx, payload := newProviderRegistration(t, prevOut)
		test.mutate(tx, payload)

		err := checkProviderRegistrationSanity(tx, payload, testCollateral)
		if test.valid {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", test.name, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("%s: check passed, want %v", test.name, test.code)
			continue
		}
		rerr, ok := err.(RuleError)
		if !ok {
			t.Errorf("%s: unexpected error type %T: %v", test.name,
				err, err)
			continue
		}
		if rerr.ErrorCode != test.code {
			t.Errorf("%s: got %v, want %v", test.name,
				rerr.ErrorCode, test.code)
		}
	}
}

// TestBlockProviderDuplicates ensures a block may not contain two provider
// registrations binding the same owner key or collateral.
func TestBlockProviderDuplicates(t *testing.T) {
	tx1, _ := newProviderRegistration(t,
		wire.OutPoint{TxID: chainhash.Hash{0x01}})
	tx2, payload2 := newProviderRegistration(t,
		wire.OutPoint{TxID: chainhash.Hash{0x02}})

	// Distinct owner keys and internal collaterals are fine.
	payload2.OwnerKeyHash[0] = 0x44
	payload2.InputsHash = calcInputsHash(tx2.MsgTx())
	serialized, err := payload2.Bytes()
	if err != nil {
		t.Fatalf("failed to serialize payload: %v", err)
	}
	tx2.MsgTx().Payload = serialized

	block := viewTestBlock(10, tx1.MsgTx(), tx2.MsgTx())
	if err := checkBlockProviderDuplicates(block); err != nil {
		t.Fatalf("distinct registrations rejected: %v", err)
	}

	// Same owner key in two registrations is rejected.
	tx3, _ := newProviderRegistration(t,
		wire.OutPoint{TxID: chainhash.Hash{0x03}})
	block = viewTestBlock(10, tx1.MsgTx(), tx3.MsgTx())
	assertRuleError(t, checkBlockProviderDuplicates(block),
		ErrDuplicatePayloadKey)

	// Same external collateral in two registrations is rejected.
	sharedCollateral := wire.OutPoint{TxID: chainhash.Hash{0x05}, Index: 3}
	txs := make([]*wire.MsgTx, 2)
	for i := range txs {
		tx, payload := newProviderRegistration(t,
			wire.OutPoint{TxID: chainhash.Hash{byte(0x06 + i)}})
		payload.OwnerKeyHash[0] = byte(0x50 + i)
		payload.CollateralOutpoint = sharedCollateral
		payload.Signature = make([]byte, 64)
		payload.InputsHash = calcInputsHash(tx.MsgTx())
		serialized, err := payload.Bytes()
		if err != nil {
			t.Fatalf("failed to serialize payload: %v", err)
		}
		tx.MsgTx().Payload = serialized
		txs[i] = tx.MsgTx()
	}
	block = viewTestBlock(10, txs...)
	assertRuleError(t, checkBlockProviderDuplicates(block),
		ErrDuplicatePayloadKey)
}

// createProviderRegistration builds and signs a provider registration funded
// by the given output whose collateral is held externally at collateralOut.
// Ownership of the collateral is proven with the harness key, so the
// collateral output must pay to the harness pay-to-pubkey script.
func (tc *testChain) createProviderRegistration(funding spendableOut, collateralOut wire.OutPoint, owner byte) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.TxType = wire.TxTypeProviderRegister
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: funding.prevOut,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    funding.amount,
		PkScript: tc.payScript,
	})

	payload := &wire.ProviderRegistration{
		Version:            wire.ProviderPayloadVersion,
		Mode:               wire.ProviderModeService,
		CollateralOutpoint: collateralOut,
		Service:            "provider.example.org:16111",
		OperatorReward:     500,
		PayoutScript:       tc.payScript,
		InputsHash:         calcInputsHash(tx),
	}
	payload.OwnerKeyHash[0] = owner
	payload.OperatorKeyHash[0] = 0x22
	payload.VotingKeyHash[0] = 0x33

	sigHash, err := payload.SignatureHash()
	if err != nil {
		tc.t.Fatalf("SignatureHash: %v", err)
	}
	secpHash := secp256k1.Hash(sigHash)
	signature, err := tc.key.SchnorrSign(&secpHash)
	if err != nil {
		tc.t.Fatalf("SchnorrSign: %v", err)
	}
	payload.Signature = signature.Serialize()[:]

	serialized, err := payload.Bytes()
	if err != nil {
		tc.t.Fatalf("failed to serialize payload: %v", err)
	}
	tx.Payload = serialized

	// The signature script is computed last since it commits to the final
	// payload bytes.
	sigScript, err := txscript.SignatureScript(tx, 0, tc.payScript,
		txscript.SigHashAll, tc.key)
	if err != nil {
		tc.t.Fatalf("failed to sign registration: %v", err)
	}
	tx.TxIn[0].SignatureScript = sigScript
	return tx
}

// TestExternalCollateralConnect confirms a collateral output on the chain,
// registers a provider referencing it externally, and ensures the block
// containing the registration connects.  A registration referencing an
// outpoint absent from the utxo set stays rejected.
func TestExternalCollateralConnect(t *testing.T) {
	params := simnetParams()
	params.ProviderCollateral = 50 * util.SatoshiPerCoin

	tc, teardown := newTestChain(t, "externalcollateral", params)
	defer teardown()

	genesis := tc.genesis()
	a1 := tc.buildBlock(genesis, 0)
	tc.acceptBlock(a1)
	tip := tc.extendChain(a1, int(params.CoinbaseMaturity))

	// Split the matured coinbase into the exact collateral amount and
	// change.
	out := makeSpendableOut(a1, 0, 0)
	collateralValue := int64(params.ProviderCollateral)
	splitTx := wire.NewMsgTx(1)
	splitTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: out.prevOut,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	splitTx.AddTxOut(&wire.TxOut{
		Value:    collateralValue,
		PkScript: tc.payScript,
	})
	splitTx.AddTxOut(&wire.TxOut{
		Value:    out.amount - collateralValue,
		PkScript: tc.payScript,
	})
	sigScript, err := txscript.SignatureScript(splitTx, 0, tc.payScript,
		txscript.SigHashAll, tc.key)
	if err != nil {
		t.Fatalf("failed to sign split transaction: %v", err)
	}
	splitTx.TxIn[0].SignatureScript = sigScript

	tip = tc.buildBlock(tip, 0, splitTx)
	if !tc.acceptBlock(tip) {
		t.Fatal("split block did not extend the main chain")
	}

	// The collateral output is confirmed and unspent.
	collateralOut := wire.OutPoint{TxID: splitTx.TxHash(), Index: 0}
	entry, err := tc.chain.FetchUtxoEntry(collateralOut)
	if err != nil {
		t.Fatalf("FetchUtxoEntry(collateral): %v", err)
	}
	if entry == nil || entry.IsSpent() {
		t.Fatalf("collateral output %v missing from the utxo set",
			collateralOut)
	}

	// The registration spends the change output and references the
	// collateral without consuming it.
	regTx := tc.createProviderRegistration(makeSpendableOut(tip, 1, 1),
		collateralOut, 0x11)
	regBlock := tc.buildBlock(tip, 0, regTx)
	if err := tc.chain.CheckConnectBlockTemplate(regBlock); err != nil {
		t.Fatalf("valid external-collateral registration rejected: %v",
			err)
	}
	if !tc.acceptBlock(regBlock) {
		t.Fatal("registration block did not extend the main chain")
	}

	// The collateral stays unspent after the registration connects.
	entry, err = tc.chain.FetchUtxoEntry(collateralOut)
	if err != nil {
		t.Fatalf("FetchUtxoEntry(collateral): %v", err)
	}
	if entry == nil || entry.IsSpent() {
		t.Fatalf("collateral output %v consumed by the registration",
			collateralOut)
	}

	// A registration whose collateral outpoint is not in the utxo set is
	// refused.
	missing := wire.OutPoint{TxID: chainhash.Hash{0x99}, Index: 0}
	badTx := tc.createProviderRegistration(makeSpendableOut(regBlock, 1, 0),
		missing, 0x44)
	badBlock := tc.buildBlock(regBlock, 0, badTx)
	_, _, err = tc.chain.ProcessBlock(badBlock, BFNone)
	assertRuleError(t, err, ErrBadPayloadCollateral)
}

// TestPayloadSignature ensures external collateral ownership signatures
// verify against the collateral key and reject tampering.
func TestPayloadSignature(t *testing.T) {
	key, payScript := newTestKey(t)
	serializedPubKey := payScript[1:]

	_, payload := newProviderRegistration(t,
		wire.OutPoint{TxID: chainhash.Hash{0x01}})
	payload.CollateralOutpoint = wire.OutPoint{
		TxID:  chainhash.Hash{0x07},
		Index: 1,
	}

	sigHash, err := payload.SignatureHash()
	if err != nil {
		t.Fatalf("SignatureHash: %v", err)
	}
	secpHash := secp256k1.Hash(sigHash)
	signature, err := key.SchnorrSign(&secpHash)
	if err != nil {
		t.Fatalf("SchnorrSign: %v", err)
	}
	payload.Signature = signature.Serialize()[:]

	if err := verifyPayloadSignature(payload, serializedPubKey); err != nil {
		t.Fatalf("valid ownership signature rejected: %v", err)
	}

	// Changing any signed field invalidates the signature.
	payload.OperatorReward++
	assertRuleError(t, verifyPayloadSignature(payload, serializedPubKey),
		ErrBadPayloadCollateral)
	payload.OperatorReward--

	// A signature from a different key does not verify.
	_, otherScript := newTestKey(t)
	assertRuleError(t, verifyPayloadSignature(payload, otherScript[1:]),
		ErrBadPayloadCollateral)

	// Garbage where the signature should be is rejected as malformed.
	payload.Signature = make([]byte, 10)
	assertRuleError(t, verifyPayloadSignature(payload, serializedPubKey),
		ErrInvalidPayload)
}
