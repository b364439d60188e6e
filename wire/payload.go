// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/solisnet/solisd/util/chainhash"
)

const (
	// ProviderPayloadVersion is the current latest supported provider
	// registration payload version.
	ProviderPayloadVersion uint16 = 1

	// ProviderModeService is the only provider operating mode currently
	// defined.
	ProviderModeService uint16 = 0

	// KeyHashSize is the size of the hash160 key identifiers carried by
	// provider registration payloads.
	KeyHashSize = 20

	// MaxProviderServiceLen is the maximum length of the provider service
	// address string.
	MaxProviderServiceLen = 256

	// MaxOperatorReward is the maximum operator reward share, expressed
	// in hundredths of a percent.
	MaxOperatorReward uint16 = 10000
)

// ProviderRegistration is the payload of a TxTypeProviderRegister
// transaction. It registers a provider by binding owner, operator and voting
// keys to a collateral outpoint.
//
// The collateral may be internal, meaning an output of the carrying
// transaction itself (CollateralOutpoint.TxID is zero and the index points
// into the carrier outputs), or external, referencing an unspent output
// elsewhere in the chain. External collateral requires Signature to prove
// ownership; internal collateral requires Signature to be empty since the
// transaction inputs already authorize it.
type ProviderRegistration struct {
	Version            uint16
	Mode               uint16
	CollateralOutpoint OutPoint
	Service            string
	OwnerKeyHash       [KeyHashSize]byte
	OperatorKeyHash    [KeyHashSize]byte
	VotingKeyHash      [KeyHashSize]byte
	OperatorReward     uint16
	PayoutScript       []byte
	InputsHash         chainhash.Hash
	Signature          []byte
}

// HasExternalCollateral returns whether the payload references collateral
// held outside the carrying transaction.
func (p *ProviderRegistration) HasExternalCollateral() bool {
	return p.CollateralOutpoint.TxID != chainhash.ZeroHash
}

// Serialize encodes the payload to w.
func (p *ProviderRegistration) Serialize(w io.Writer) error {
	err := WriteElementUint16(w, p.Version)
	if err != nil {
		return err
	}

	err = WriteElementUint16(w, p.Mode)
	if err != nil {
		return err
	}

	err = writeOutPoint(w, &p.CollateralOutpoint)
	if err != nil {
		return err
	}

	err = WriteVarString(w, p.Service)
	if err != nil {
		return err
	}

	_, err = w.Write(p.OwnerKeyHash[:])
	if err != nil {
		return err
	}

	_, err = w.Write(p.OperatorKeyHash[:])
	if err != nil {
		return err
	}

	_, err = w.Write(p.VotingKeyHash[:])
	if err != nil {
		return err
	}

	err = WriteElementUint16(w, p.OperatorReward)
	if err != nil {
		return err
	}

	err = WriteVarBytes(w, p.PayoutScript)
	if err != nil {
		return err
	}

	_, err = w.Write(p.InputsHash[:])
	if err != nil {
		return err
	}

	return WriteVarBytes(w, p.Signature)
}

// Deserialize decodes a payload from r into the receiver.
func (p *ProviderRegistration) Deserialize(r io.Reader) error {
	var err error
	p.Version, err = ReadElementUint16(r)
	if err != nil {
		return err
	}

	p.Mode, err = ReadElementUint16(r)
	if err != nil {
		return err
	}

	err = readOutPoint(r, &p.CollateralOutpoint)
	if err != nil {
		return err
	}

	p.Service, err = ReadVarString(r, MaxProviderServiceLen)
	if err != nil {
		return err
	}

	_, err = io.ReadFull(r, p.OwnerKeyHash[:])
	if err != nil {
		return err
	}

	_, err = io.ReadFull(r, p.OperatorKeyHash[:])
	if err != nil {
		return err
	}

	_, err = io.ReadFull(r, p.VotingKeyHash[:])
	if err != nil {
		return err
	}

	p.OperatorReward, err = ReadElementUint16(r)
	if err != nil {
		return err
	}

	p.PayoutScript, err = ReadVarBytes(r, MaxTxPayloadSize, "payout script")
	if err != nil {
		return err
	}

	_, err = io.ReadFull(r, p.InputsHash[:])
	if err != nil {
		return err
	}

	p.Signature, err = ReadVarBytes(r, MaxTxPayloadSize, "payload signature")
	return err
}

// Bytes returns the serialized payload.
func (p *ProviderRegistration) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	err := p.Serialize(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PayloadHash computes the hash of the payload with the signature blanked
// out. This is what external collateral owners sign.
func (p *ProviderRegistration) PayloadHash() (chainhash.Hash, error) {
	blanked := *p
	blanked.Signature = nil
	serialized, err := blanked.Bytes()
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH(serialized), nil
}

// SignString builds the canonical human-readable string an external
// collateral owner commits to. Every field that binds the registration is
// folded into the payload hash, so the string pins the full payload.
func (p *ProviderRegistration) SignString() (string, error) {
	payloadHash, err := p.PayloadHash()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s|%d|%s|%s|%s",
		hex.EncodeToString(p.PayoutScript),
		p.OperatorReward,
		hex.EncodeToString(p.OwnerKeyHash[:]),
		hex.EncodeToString(p.VotingKeyHash[:]),
		payloadHash), nil
}

// SignatureHash returns the double sha256 digest of the canonical sign
// string, which is the message external collateral signatures cover.
func (p *ProviderRegistration) SignatureHash() (chainhash.Hash, error) {
	signString, err := p.SignString()
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH([]byte(signString)), nil
}
