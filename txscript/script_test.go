// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"testing"

	"github.com/solisnet/solisd/util"
)

// TestGetScriptClass ensures locking scripts are classified by their class
// byte and exact length.
func TestGetScriptClass(t *testing.T) {
	tests := []struct {
		name   string
		script []byte
		class  ScriptClass
	}{
		{
			name:   "pay-to-pubkey",
			script: append([]byte{0x01}, make([]byte, PubKeySize)...),
			class:  PubKeyTy,
		},
		{
			name:   "pay-to-pubkey-hash",
			script: append([]byte{0x02}, make([]byte, PubKeyHashSize)...),
			class:  PubKeyHashTy,
		},
		{
			name:   "empty script",
			script: nil,
			class:  NonStandardTy,
		},
		{
			name:   "unknown class byte",
			script: append([]byte{0x03}, make([]byte, PubKeySize)...),
			class:  NonStandardTy,
		},
		{
			name:   "pay-to-pubkey with truncated key",
			script: append([]byte{0x01}, make([]byte, PubKeySize-1)...),
			class:  NonStandardTy,
		},
		{
			name:   "pay-to-pubkey with trailing byte",
			script: append([]byte{0x01}, make([]byte, PubKeySize+1)...),
			class:  NonStandardTy,
		},
		{
			name:   "pay-to-pubkey-hash with truncated hash",
			script: append([]byte{0x02}, make([]byte, PubKeyHashSize-1)...),
			class:  NonStandardTy,
		},
	}

	for _, test := range tests {
		class := GetScriptClass(test.script)
		if class != test.class {
			t.Errorf("%s: got %v, want %v", test.name, class,
				test.class)
		}
	}
}

// TestPayToScripts ensures the locking script constructors commit to the
// passed data and reject malformed input.
func TestPayToScripts(t *testing.T) {
	pubKey := make([]byte, PubKeySize)
	pubKey[0] = 0xaa
	pkScript, err := PayToPubKey(pubKey)
	if err != nil {
		t.Fatalf("PayToPubKey: %v", err)
	}
	if GetScriptClass(pkScript) != PubKeyTy {
		t.Fatalf("PayToPubKey built a %v script",
			GetScriptClass(pkScript))
	}
	if !bytes.Equal(pkScript[1:], pubKey) {
		t.Fatal("PayToPubKey script does not commit to the public key")
	}

	if _, err := PayToPubKey(pubKey[:PubKeySize-1]); err == nil {
		t.Fatal("PayToPubKey accepted a truncated public key")
	}

	pkHash := util.Hash160(pubKey)
	pkhScript, err := PayToPubKeyHash(pkHash)
	if err != nil {
		t.Fatalf("PayToPubKeyHash: %v", err)
	}
	if GetScriptClass(pkhScript) != PubKeyHashTy {
		t.Fatalf("PayToPubKeyHash built a %v script",
			GetScriptClass(pkhScript))
	}
	if !bytes.Equal(pkhScript[1:], pkHash) {
		t.Fatal("PayToPubKeyHash script does not commit to the hash")
	}

	if _, err := PayToPubKeyHash(pkHash[:PubKeyHashSize-1]); err == nil {
		t.Fatal("PayToPubKeyHash accepted a truncated hash")
	}
}

// TestPayToAddress ensures address types map to their corresponding locking
// scripts.
func TestPayToAddress(t *testing.T) {
	pubKey := make([]byte, PubKeySize)
	pubKey[0] = 0xaa

	pkAddr, err := util.NewAddressPubKey(pubKey, 0x3f)
	if err != nil {
		t.Fatalf("NewAddressPubKey: %v", err)
	}
	script, err := PayToAddress(pkAddr)
	if err != nil {
		t.Fatalf("PayToAddress: %v", err)
	}
	want, err := PayToPubKey(pubKey)
	if err != nil {
		t.Fatalf("PayToPubKey: %v", err)
	}
	if !bytes.Equal(script, want) {
		t.Fatal("pay-to-pubkey address script mismatch")
	}

	pkhAddr := pkAddr.AddressPubKeyHash()
	script, err = PayToAddress(pkhAddr)
	if err != nil {
		t.Fatalf("PayToAddress: %v", err)
	}
	want, err = PayToPubKeyHash(util.Hash160(pubKey))
	if err != nil {
		t.Fatalf("PayToPubKeyHash: %v", err)
	}
	if !bytes.Equal(script, want) {
		t.Fatal("pay-to-pubkey-hash address script mismatch")
	}

	if _, err := PayToAddress(nil); err == nil {
		t.Fatal("PayToAddress accepted a nil address")
	}
}

// TestIsUnspendable ensures scripts that cannot be satisfied are reported as
// unspendable.
func TestIsUnspendable(t *testing.T) {
	tests := []struct {
		script      []byte
		unspendable bool
	}{
		{append([]byte{0x01}, make([]byte, PubKeySize)...), false},
		{append([]byte{0x02}, make([]byte, PubKeyHashSize)...), false},
		{nil, true},
		{[]byte{0xff}, true},
		{append([]byte{0x01}, make([]byte, PubKeySize+1)...), true},
	}

	for i, test := range tests {
		if got := IsUnspendable(test.script); got != test.unspendable {
			t.Errorf("test %d: got %v, want %v", i, got,
				test.unspendable)
		}
	}
}
