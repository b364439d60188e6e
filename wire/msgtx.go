// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/solisnet/solisd/util/chainhash"
)

const (
	// TxVersion is the current latest supported transaction version.
	TxVersion int32 = 1

	// MaxTxInSequenceNum is the maximum sequence number the sequence field
	// of a transaction input can be.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// MaxPrevOutIndex is the maximum index the index field of a previous
	// outpoint can be.
	MaxPrevOutIndex uint32 = 0xffffffff

	// minTxInPayload is the minimum payload size for a transaction input:
	// PreviousOutPoint.TxID + PreviousOutPoint.Index 4 bytes + varint for
	// SignatureScript length 1 byte + Sequence 4 bytes.
	minTxInPayload = 9 + chainhash.HashSize

	// MinTxOutPayload is the minimum payload size for a transaction output:
	// Value 8 bytes + varint for PkScript length 1 byte.
	MinTxOutPayload = 9

	// maxTxInPerMessage is the maximum number of transactions inputs that
	// a transaction which fits into a message could possibly have.
	maxTxInPerMessage = (MaxBlockPayload / minTxInPayload) + 1

	// maxTxOutPerMessage is the maximum number of transactions outputs that
	// a transaction which fits into a message could possibly have.
	maxTxOutPerMessage = (MaxBlockPayload / MinTxOutPayload) + 1

	// MaxTxPayloadSize is the maximum number of bytes a special transaction
	// payload may occupy.
	MaxTxPayloadSize = 10000

	// LockTimeThreshold is the number below which a lock time is
	// interpreted to be a block height.  Since an epoch timestamp of
	// 500,000,000 is Nov 5, 1985 at 00:53:20 UTC, any value below it is
	// unambiguously a height.
	LockTimeThreshold = 5e8

	// freeListMaxScriptSize is the size of each buffer in the free list
	// that is used for deserializing scripts from the wire before they are
	// concatenated into a single contiguous buffer.
	freeListMaxScriptSize = 512

	// freeListMaxItems is the number of buffers to keep in the free list
	// to use for script deserialization.
	freeListMaxItems = 12500
)

// TxType identifies the variant of a transaction. Normal value-transfer
// transactions carry no payload; special transactions carry an
// independently-versioned payload validated by its own rule set.
type TxType uint16

const (
	// TxTypeNormal is a plain value-transfer transaction.
	TxTypeNormal TxType = 0

	// TxTypeProviderRegister carries a provider (masternode) registration
	// payload.
	TxTypeProviderRegister TxType = 1
)

// String returns the TxType in human-readable form.
func (t TxType) String() string {
	switch t {
	case TxTypeNormal:
		return "normal"
	case TxTypeProviderRegister:
		return "provider-register"
	}
	return "unknown-" + strconv.Itoa(int(t))
}

// OutPoint defines a data type that is used to track previous transaction
// outputs.
type OutPoint struct {
	TxID  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new transaction outpoint point with the
// provided transaction ID and index.
func NewOutPoint(txID *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{
		TxID:  *txID,
		Index: index,
	}
}

// String returns the OutPoint in the human-readable form "txid:index".
func (o OutPoint) String() string {
	// Allocate enough for ID string, colon, and 10 digits. Although at the
	// time of writing, the maximum index is typically much smaller, there
	// may be indexes in the future that require more than 10 digits.
	buf := make([]byte, 2*chainhash.HashSize+1, 2*chainhash.HashSize+1+10)
	copy(buf, o.TxID.String())
	buf[2*chainhash.HashSize] = ':'
	buf = strconv.AppendUint(buf, uint64(o.Index), 10)
	return string(buf)
}

// TxIn defines a transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction input.
func (t *TxIn) SerializeSize() int {
	// Outpoint TxID 32 bytes + Outpoint Index 4 bytes + Sequence 4 bytes +
	// serialized varint size for the length of SignatureScript +
	// SignatureScript bytes.
	return 40 + VarIntSerializeSize(uint64(len(t.SignatureScript))) +
		len(t.SignatureScript)
}

// NewTxIn returns a new transaction input with the provided previous outpoint
// point and signature script with a default sequence of MaxTxInSequenceNum.
func NewTxIn(prevOut *OutPoint, signatureScript []byte) *TxIn {
	return &TxIn{
		PreviousOutPoint: *prevOut,
		SignatureScript:  signatureScript,
		Sequence:         MaxTxInSequenceNum,
	}
}

// TxOut defines a transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// SerializeSize returns the number of bytes it would take to serialize the
// the transaction output.
func (t *TxOut) SerializeSize() int {
	// Value 8 bytes + serialized varint size for the length of PkScript +
	// PkScript bytes.
	return 8 + VarIntSerializeSize(uint64(len(t.PkScript))) + len(t.PkScript)
}

// IsEmpty returns whether the transaction output carries no value and no
// locking script. The first output of a coinstake transaction is required to
// be empty.
func (t *TxOut) IsEmpty() bool {
	return t.Value == 0 && len(t.PkScript) == 0
}

// NewTxOut returns a new transaction output with the provided value and
// locking script.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{
		Value:    value,
		PkScript: pkScript,
	}
}

// MsgTx implements the Message interface and represents a solis transaction.
//
// Use the AddTxIn and AddTxOut functions to build up the list of transaction
// inputs and outputs.
type MsgTx struct {
	Version  int32
	TxType   TxType
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32

	// Payload is the auxiliary data of special transactions. It must be
	// empty when TxType is TxTypeNormal.
	Payload []byte
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// TxHash generates the hash for the transaction.
func (msg *MsgTx) TxHash() chainhash.Hash {
	// Encode the transaction and calculate double sha256 on the result.
	// Ignore the error returns since the only way the encode could fail
	// is being out of memory or due to nil pointers, both of which would
	// cause a run-time panic.
	buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSize()))
	_ = msg.Serialize(buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Copy creates a deep copy of a transaction so that the original does not get
// modified when the copy is manipulated.
func (msg *MsgTx) Copy() *MsgTx {
	// Create new tx and start by copying primitive values and making space
	// for the transaction inputs and outputs.
	newTx := MsgTx{
		Version:  msg.Version,
		TxType:   msg.TxType,
		TxIn:     make([]*TxIn, 0, len(msg.TxIn)),
		TxOut:    make([]*TxOut, 0, len(msg.TxOut)),
		LockTime: msg.LockTime,
	}

	if len(msg.Payload) > 0 {
		newTx.Payload = make([]byte, len(msg.Payload))
		copy(newTx.Payload, msg.Payload)
	}

	// Deep copy the old TxIn data.
	for _, oldTxIn := range msg.TxIn {
		// Deep copy the old previous outpoint.
		oldOutPoint := oldTxIn.PreviousOutPoint
		newOutPoint := OutPoint{}
		newOutPoint.TxID.SetBytes(oldOutPoint.TxID[:])
		newOutPoint.Index = oldOutPoint.Index

		// Deep copy the old signature script.
		var newScript []byte
		oldScript := oldTxIn.SignatureScript
		oldScriptLen := len(oldScript)
		if oldScriptLen > 0 {
			newScript = make([]byte, oldScriptLen)
			copy(newScript, oldScript[:oldScriptLen])
		}

		// Create new txIn with the deep copied data.
		newTxIn := TxIn{
			PreviousOutPoint: newOutPoint,
			SignatureScript:  newScript,
			Sequence:         oldTxIn.Sequence,
		}

		// Finally, append this fully copied txin.
		newTx.TxIn = append(newTx.TxIn, &newTxIn)
	}

	// Deep copy the old TxOut data.
	for _, oldTxOut := range msg.TxOut {
		// Deep copy the old PkScript
		var newScript []byte
		oldScript := oldTxOut.PkScript
		oldScriptLen := len(oldScript)
		if oldScriptLen > 0 {
			newScript = make([]byte, oldScriptLen)
			copy(newScript, oldScript[:oldScriptLen])
		}

		// Create new txOut with the deep copied data and append it to
		// new Tx.
		newTxOut := TxOut{
			Value:    oldTxOut.Value,
			PkScript: newScript,
		}
		newTx.TxOut = append(newTx.TxOut, &newTxOut)
	}

	return &newTx
}

// IsCoinBase determines whether or not a transaction is a coinbase. A
// coinbase is a special transaction created by miners/stakers that has
// exactly one input, where the previous outpoint is null (zero ID with a
// max-value index).
func (msg *MsgTx) IsCoinBase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}

	prevOut := &msg.TxIn[0].PreviousOutPoint
	return prevOut.Index == math.MaxUint32 && prevOut.TxID == chainhash.ZeroHash
}

// IsCoinStake determines whether or not a transaction is a coinstake. A
// coinstake spends a real previous output (the stake), has at least two
// outputs, and its first output is empty by convention.
func (msg *MsgTx) IsCoinStake() bool {
	if msg.IsCoinBase() {
		return false
	}
	if len(msg.TxIn) == 0 || len(msg.TxOut) < 2 {
		return false
	}
	return msg.TxOut[0].IsEmpty()
}

// Deserialize decodes a transaction from r into the receiver. The wire
// encoding is: version, type, inputs, outputs, lock time, and - for special
// transaction types - a variable length payload.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	version, err := ReadElementUint32(r)
	if err != nil {
		return err
	}
	msg.Version = int32(version)

	txType, err := ReadElementUint16(r)
	if err != nil {
		return err
	}
	msg.TxType = TxType(txType)

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	// Prevent more input transactions than could possibly fit into a
	// message. It would be possible to cause memory exhaustion and panics
	// without a sane upper bound on this count.
	if count > uint64(maxTxInPerMessage) {
		return errors.Errorf("too many input transactions to fit into "+
			"max message size [count %d, max %d]", count, maxTxInPerMessage)
	}

	msg.TxIn = make([]*TxIn, count)
	for i := uint64(0); i < count; i++ {
		ti := TxIn{}
		err = readTxIn(r, &ti)
		if err != nil {
			return err
		}
		msg.TxIn[i] = &ti
	}

	count, err = ReadVarInt(r)
	if err != nil {
		return err
	}

	// Prevent more output transactions than could possibly fit into a
	// message.
	if count > uint64(maxTxOutPerMessage) {
		return errors.Errorf("too many output transactions to fit into "+
			"max message size [count %d, max %d]", count, maxTxOutPerMessage)
	}

	msg.TxOut = make([]*TxOut, count)
	for i := uint64(0); i < count; i++ {
		to := TxOut{}
		err = readTxOut(r, &to)
		if err != nil {
			return err
		}
		msg.TxOut[i] = &to
	}

	msg.LockTime, err = ReadElementUint32(r)
	if err != nil {
		return err
	}

	if msg.TxType != TxTypeNormal {
		msg.Payload, err = ReadVarBytes(r, MaxTxPayloadSize, "transaction payload")
		if err != nil {
			return err
		}
	}

	return nil
}

// Serialize encodes the transaction to w.
func (msg *MsgTx) Serialize(w io.Writer) error {
	err := WriteElementUint32(w, uint32(msg.Version))
	if err != nil {
		return err
	}

	err = WriteElementUint16(w, uint16(msg.TxType))
	if err != nil {
		return err
	}

	err = WriteVarInt(w, uint64(len(msg.TxIn)))
	if err != nil {
		return err
	}

	for _, ti := range msg.TxIn {
		err = writeTxIn(w, ti)
		if err != nil {
			return err
		}
	}

	err = WriteVarInt(w, uint64(len(msg.TxOut)))
	if err != nil {
		return err
	}

	for _, to := range msg.TxOut {
		err = writeTxOut(w, to)
		if err != nil {
			return err
		}
	}

	err = WriteElementUint32(w, msg.LockTime)
	if err != nil {
		return err
	}

	if msg.TxType != TxTypeNormal {
		err = WriteVarBytes(w, msg.Payload)
		if err != nil {
			return err
		}
	}

	return nil
}

// SerializeSize returns the number of bytes it would take to serialize the
// the transaction.
func (msg *MsgTx) SerializeSize() int {
	// Version 4 bytes + TxType 2 bytes + LockTime 4 bytes + serialized
	// varint size for the number of transaction inputs and outputs.
	n := 10 + VarIntSerializeSize(uint64(len(msg.TxIn))) +
		VarIntSerializeSize(uint64(len(msg.TxOut)))

	for _, txIn := range msg.TxIn {
		n += txIn.SerializeSize()
	}

	for _, txOut := range msg.TxOut {
		n += txOut.SerializeSize()
	}

	if msg.TxType != TxTypeNormal {
		n += VarIntSerializeSize(uint64(len(msg.Payload))) + len(msg.Payload)
	}

	return n
}

// NewMsgTx returns a new tx message that conforms to the Message interface.
// The return instance has a default version of TxVersion and there are no
// transaction inputs or outputs. Also, the lock time is set to zero to
// indicate the transaction is valid immediately as opposed to some time in
// future.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{
		Version: version,
		TxIn:    make([]*TxIn, 0, 8),
		TxOut:   make([]*TxOut, 0, 8),
	}
}

// readOutPoint reads the next sequence of bytes from r as an OutPoint.
func readOutPoint(r io.Reader, op *OutPoint) error {
	_, err := io.ReadFull(r, op.TxID[:])
	if err != nil {
		return err
	}

	op.Index, err = ReadElementUint32(r)
	return err
}

// writeOutPoint encodes op to w.
func writeOutPoint(w io.Writer, op *OutPoint) error {
	_, err := w.Write(op.TxID[:])
	if err != nil {
		return err
	}

	return WriteElementUint32(w, op.Index)
}

// readTxIn reads the next sequence of bytes from r as a transaction input.
func readTxIn(r io.Reader, ti *TxIn) error {
	err := readOutPoint(r, &ti.PreviousOutPoint)
	if err != nil {
		return err
	}

	ti.SignatureScript, err = ReadVarBytes(r, MaxBlockPayload,
		"transaction input signature script")
	if err != nil {
		return err
	}

	ti.Sequence, err = ReadElementUint32(r)
	return err
}

// writeTxIn encodes ti to w.
func writeTxIn(w io.Writer, ti *TxIn) error {
	err := writeOutPoint(w, &ti.PreviousOutPoint)
	if err != nil {
		return err
	}

	err = WriteVarBytes(w, ti.SignatureScript)
	if err != nil {
		return err
	}

	return WriteElementUint32(w, ti.Sequence)
}

// readTxOut reads the next sequence of bytes from r as a transaction output.
func readTxOut(r io.Reader, to *TxOut) error {
	value, err := ReadElementUint64(r)
	if err != nil {
		return err
	}
	to.Value = int64(value)

	to.PkScript, err = ReadVarBytes(r, MaxBlockPayload,
		"transaction output public key script")
	return err
}

// writeTxOut encodes to to w.
func writeTxOut(w io.Writer, to *TxOut) error {
	err := WriteElementUint64(w, uint64(to.Value))
	if err != nil {
		return err
	}

	return WriteVarBytes(w, to.PkScript)
}

// String returns a short human-readable representation of the transaction.
func (msg *MsgTx) String() string {
	return fmt.Sprintf("%s (%s)", msg.TxHash(), msg.TxType)
}
