// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"encoding/hex"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// serializedPubKeySize is the length of a serialized Schnorr public key.
const serializedPubKeySize = 32

var (
	// ErrChecksumMismatch describes an error where decoding failed due
	// to a bad checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnknownAddressType describes an error where an address can not
	// be decoded as a specific address type due to the string encoding
	// beginning with an unrecognized identifier byte or unsupported
	// payload length.
	ErrUnknownAddressType = errors.New("unknown address type")
)

// Address is an interface type for any type of destination a transaction
// output may spend to.  Use DecodeAddress to decode a string encoding of an
// address into a concrete type.
type Address interface {
	// String returns the string encoding of the transaction output
	// destination.
	//
	// Please note that String differs subtly from EncodeAddress: String
	// will return the value as a string without any conversion, while
	// EncodeAddress may convert destination types (for example,
	// converting pubkeys to pubkey hashes) before encoding as a payment
	// address string.
	String() string

	// EncodeAddress returns the string encoding of the payment address
	// associated with the Address value.
	EncodeAddress() string

	// ScriptAddress returns the raw bytes of the address to be used when
	// inserting the address into a locking script.
	ScriptAddress() []byte

	// IsForNet returns whether or not the address is associated with the
	// network identified by the passed pay-to-pubkey-hash address magic.
	IsForNet(pubKeyHashAddrID byte) bool
}

// DecodeAddress decodes the string encoding of an address and returns the
// Address if it is a valid encoding for the network identified by the passed
// pay-to-pubkey-hash address magic.
func DecodeAddress(addr string, pubKeyHashAddrID byte) (Address, error) {
	decoded, netID, err := base58.CheckDecode(addr)
	if err != nil {
		if err == base58.ErrChecksum {
			return nil, ErrChecksumMismatch
		}
		return nil, errors.Errorf("decoded address is of unknown "+
			"format: %v", err)
	}

	if len(decoded) != ripemd160.Size {
		return nil, ErrUnknownAddressType
	}
	if netID != pubKeyHashAddrID {
		return nil, errors.Errorf("address %v is for the wrong network",
			addr)
	}
	return newAddressPubKeyHash(decoded, netID)
}

// AddressPubKeyHash is an Address for a pay-to-pubkey-hash transaction output.
type AddressPubKeyHash struct {
	hash  [ripemd160.Size]byte
	netID byte
}

// NewAddressPubKeyHash returns a new AddressPubKeyHash.  pkHash must be 20
// bytes.
func NewAddressPubKeyHash(pkHash []byte, pubKeyHashAddrID byte) (*AddressPubKeyHash, error) {
	return newAddressPubKeyHash(pkHash, pubKeyHashAddrID)
}

func newAddressPubKeyHash(pkHash []byte, netID byte) (*AddressPubKeyHash, error) {
	if len(pkHash) != ripemd160.Size {
		return nil, errors.New("pkHash must be 20 bytes")
	}

	addr := &AddressPubKeyHash{netID: netID}
	copy(addr.hash[:], pkHash)
	return addr, nil
}

// EncodeAddress returns the string encoding of a pay-to-pubkey-hash address.
func (a *AddressPubKeyHash) EncodeAddress() string {
	return base58.CheckEncode(a.hash[:], a.netID)
}

// ScriptAddress returns the bytes to be included in a locking script to pay
// to a pubkey hash.
func (a *AddressPubKeyHash) ScriptAddress() []byte {
	return a.hash[:]
}

// IsForNet returns whether or not the pay-to-pubkey-hash address is
// associated with the network identified by the passed address magic.
func (a *AddressPubKeyHash) IsForNet(pubKeyHashAddrID byte) bool {
	return a.netID == pubKeyHashAddrID
}

// String returns a human-readable string for the pay-to-pubkey-hash address.
// This is equivalent to calling EncodeAddress, but is provided so the type
// can be used as a fmt.Stringer.
func (a *AddressPubKeyHash) String() string {
	return a.EncodeAddress()
}

// Hash160 returns the underlying array of the pubkey hash.  This can be
// useful when an array is more appropriate than a slice (for example, when
// used as map keys).
func (a *AddressPubKeyHash) Hash160() *[ripemd160.Size]byte {
	return &a.hash
}

// AddressPubKey is an Address for a pay-to-pubkey transaction output.
type AddressPubKey struct {
	pubKey       []byte
	pubKeyHashID byte
}

// NewAddressPubKey returns a new AddressPubKey which represents a
// pay-to-pubkey address.  serializedPubKey must be a serialized Schnorr
// public key.
func NewAddressPubKey(serializedPubKey []byte, pubKeyHashAddrID byte) (*AddressPubKey, error) {
	if len(serializedPubKey) != serializedPubKeySize {
		return nil, errors.Errorf("invalid public key length %d",
			len(serializedPubKey))
	}

	pubKey := make([]byte, serializedPubKeySize)
	copy(pubKey, serializedPubKey)
	return &AddressPubKey{
		pubKey:       pubKey,
		pubKeyHashID: pubKeyHashAddrID,
	}, nil
}

// EncodeAddress returns the string encoding of the public key as a
// pay-to-pubkey-hash address.  Note that the public key format (uncompressed,
// compressed, etc) will change the resulting address.
func (a *AddressPubKey) EncodeAddress() string {
	return base58.CheckEncode(Hash160(a.pubKey), a.pubKeyHashID)
}

// ScriptAddress returns the bytes to be included in a locking script to pay
// to a public key.
func (a *AddressPubKey) ScriptAddress() []byte {
	return a.pubKey
}

// IsForNet returns whether or not the pay-to-pubkey address is associated
// with the network identified by the passed address magic.
func (a *AddressPubKey) IsForNet(pubKeyHashAddrID byte) bool {
	return a.pubKeyHashID == pubKeyHashAddrID
}

// String returns the hex-encoded human-readable string for the pay-to-pubkey
// address.  This is not the same as calling EncodeAddress.
func (a *AddressPubKey) String() string {
	return hex.EncodeToString(a.pubKey)
}

// AddressPubKeyHash returns the pay-to-pubkey address converted to a
// pay-to-pubkey-hash address.
func (a *AddressPubKey) AddressPubKeyHash() *AddressPubKeyHash {
	addr := &AddressPubKeyHash{netID: a.pubKeyHashID}
	copy(addr.hash[:], Hash160(a.pubKey))
	return addr
}
