// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"
)

// ErrorCode identifies a kind of script error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrUnsupportedScriptVersion is returned when a locking script starts
	// with a class byte this engine does not know.
	ErrUnsupportedScriptVersion ErrorCode = iota

	// ErrMalformedScript is returned when a locking or unlocking script
	// does not have the exact shape its class requires.
	ErrMalformedScript

	// ErrInvalidSignatureHashType is returned when the signature hash type
	// carried by an unlocking script is not supported.
	ErrInvalidSignatureHashType

	// ErrPubKeyFormat is returned when the public key carried by a script
	// cannot be deserialized.
	ErrPubKeyFormat

	// ErrSigFormat is returned when a signature cannot be deserialized.
	ErrSigFormat

	// ErrPubKeyHashMismatch is returned when the public key in an
	// unlocking script does not hash to the value committed to by the
	// locking script.
	ErrPubKeyHashMismatch

	// ErrSigVerify is returned when a signature fails to verify against
	// the public key and signature hash.
	ErrSigVerify

	// ErrNonStandardScript is returned when ScriptRejectNonStandard is set
	// and a script is valid under consensus rules but not under standard
	// relay policy.
	ErrNonStandardScript

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnsupportedScriptVersion: "ErrUnsupportedScriptVersion",
	ErrMalformedScript:          "ErrMalformedScript",
	ErrInvalidSignatureHashType: "ErrInvalidSignatureHashType",
	ErrPubKeyFormat:             "ErrPubKeyFormat",
	ErrSigFormat:                "ErrSigFormat",
	ErrPubKeyHashMismatch:       "ErrPubKeyHashMismatch",
	ErrSigVerify:                "ErrSigVerify",
	ErrNonStandardScript:        "ErrNonStandardScript",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a script-related error. It is used to indicate three
// classes of errors:
//  1. Script execution failures due to violating one of the many requirements
//     imposed by the script engine or evaluating to false.
//  2. Improperly formed scripts.
//  3. Standardness violations when the caller requested standard policy.
//
// The caller can use type assertions to determine if an error is an Error and
// access the ErrorCode field to ascertain the specific reason for the
// failure.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// scriptError creates an Error given a set of arguments.
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a script error
// with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	serr, ok := err.(Error)
	return ok && serr.ErrorCode == c
}
