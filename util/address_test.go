// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

// The pay-to-pubkey-hash address magics for the default networks.  They are
// duplicated here to avoid importing chaincfg, which would create an import
// cycle.
const (
	mainnetPubKeyHashAddrID = 0x3f
	testnetPubKeyHashAddrID = 0x42
	simnetPubKeyHashAddrID  = 0x7d
)

func TestAddressPubKeyHash(t *testing.T) {
	pkHash, err := hex.DecodeString("e34cce70c86373273efcc54ce7d2a491bb4a0e84")
	if err != nil {
		t.Fatalf("invalid test hash: %v", err)
	}

	tests := []struct {
		name       string
		netID      byte
		wantPrefix string
	}{
		{"mainnet", mainnetPubKeyHashAddrID, "S"},
		{"testnet", testnetPubKeyHashAddrID, "T"},
		{"simnet", simnetPubKeyHashAddrID, "s"},
	}
	for _, test := range tests {
		addr, err := NewAddressPubKeyHash(pkHash, test.netID)
		if err != nil {
			t.Errorf("%s: NewAddressPubKeyHash: %v", test.name, err)
			continue
		}

		encoded := addr.EncodeAddress()
		if !strings.HasPrefix(encoded, test.wantPrefix) {
			t.Errorf("%s: address %s does not start with %s",
				test.name, encoded, test.wantPrefix)
			continue
		}
		if addr.String() != encoded {
			t.Errorf("%s: String does not match EncodeAddress",
				test.name)
			continue
		}
		if !bytes.Equal(addr.ScriptAddress(), pkHash) {
			t.Errorf("%s: ScriptAddress does not match the hash",
				test.name)
			continue
		}
		if !addr.IsForNet(test.netID) {
			t.Errorf("%s: IsForNet rejected its own network",
				test.name)
			continue
		}
		if addr.IsForNet(test.netID + 1) {
			t.Errorf("%s: IsForNet accepted a foreign network",
				test.name)
			continue
		}

		// The encoded form must decode back to the same hash.
		decoded, err := DecodeAddress(encoded, test.netID)
		if err != nil {
			t.Errorf("%s: DecodeAddress: %v", test.name, err)
			continue
		}
		if !bytes.Equal(decoded.ScriptAddress(), pkHash) {
			t.Errorf("%s: decoded hash mismatch", test.name)
			continue
		}
	}

	// Hashes that are not exactly 20 bytes are rejected.
	if _, err := NewAddressPubKeyHash(pkHash[:19], mainnetPubKeyHashAddrID); err == nil {
		t.Fatal("NewAddressPubKeyHash accepted a short hash")
	}
	if _, err := NewAddressPubKeyHash(append(pkHash, 0x00), mainnetPubKeyHashAddrID); err == nil {
		t.Fatal("NewAddressPubKeyHash accepted a long hash")
	}
}

func TestDecodeAddressErrors(t *testing.T) {
	pkHash, err := hex.DecodeString("e34cce70c86373273efcc54ce7d2a491bb4a0e84")
	if err != nil {
		t.Fatalf("invalid test hash: %v", err)
	}
	addr, err := NewAddressPubKeyHash(pkHash, mainnetPubKeyHashAddrID)
	if err != nil {
		t.Fatalf("NewAddressPubKeyHash: %v", err)
	}
	encoded := addr.EncodeAddress()

	// Corrupting a character invalidates the checksum.
	corrupt := []byte(encoded)
	if corrupt[4] != '2' {
		corrupt[4] = '2'
	} else {
		corrupt[4] = '3'
	}
	if _, err := DecodeAddress(string(corrupt), mainnetPubKeyHashAddrID); err != ErrChecksumMismatch {
		t.Fatalf("corrupt address: got %v, want %v", err,
			ErrChecksumMismatch)
	}

	// A valid address for another network is refused.
	if _, err := DecodeAddress(encoded, testnetPubKeyHashAddrID); err == nil {
		t.Fatal("decoded a mainnet address as testnet")
	}

	// Payloads that are not pubkey hashes are refused.
	if _, err := DecodeAddress("3MNQE1X", mainnetPubKeyHashAddrID); err == nil {
		t.Fatal("decoded an address with a short payload")
	}
}

func TestAddressPubKey(t *testing.T) {
	serializedPubKey, err := hex.DecodeString("2689c7c2dab13309fb143e0e8fe3" +
		"96342521887e976690b6b47f5b2a4b7d448e")
	if err != nil {
		t.Fatalf("invalid test pubkey: %v", err)
	}

	addr, err := NewAddressPubKey(serializedPubKey, mainnetPubKeyHashAddrID)
	if err != nil {
		t.Fatalf("NewAddressPubKey: %v", err)
	}

	// ScriptAddress carries the raw public key while the encoded form
	// commits to its hash.
	if !bytes.Equal(addr.ScriptAddress(), serializedPubKey) {
		t.Fatal("ScriptAddress does not match the public key")
	}
	if addr.String() != hex.EncodeToString(serializedPubKey) {
		t.Fatal("String does not match the hex encoded public key")
	}

	pkhAddr := addr.AddressPubKeyHash()
	if addr.EncodeAddress() != pkhAddr.EncodeAddress() {
		t.Fatal("pay-to-pubkey encoded form does not match its " +
			"pay-to-pubkey-hash equivalent")
	}
	if !bytes.Equal(pkhAddr.ScriptAddress(), Hash160(serializedPubKey)) {
		t.Fatal("converted address hash does not match Hash160 of " +
			"the public key")
	}

	// Public keys must be exactly 32 bytes.
	if _, err := NewAddressPubKey(serializedPubKey[:31], mainnetPubKeyHashAddrID); err == nil {
		t.Fatal("NewAddressPubKey accepted a short public key")
	}
}
