// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"runtime"

	"github.com/solisnet/solisd/txscript"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/wire"
)

// txValidateItem holds a transaction along with which input to validate.
type txValidateItem struct {
	txInIndex int
	txIn      *wire.TxIn
	tx        *util.Tx
}

// txValidator provides a type which asynchronously validates transaction
// inputs.  It provides several channels for communication and a processing
// function that is intended to be in run multiple goroutines.
type txValidator struct {
	validateChan chan *txValidateItem
	quitChan     chan struct{}
	resultChan   chan error
	utxoView     *UtxoViewpoint
	flags        txscript.ScriptFlags
	sigCache     *txscript.SigCache
}

// sendResult sends the result of a script pair validation on the internal
// result channel while respecting the quit channel.  This allows orderly
// shutdown when the validation process is aborted early due to a validation
// error in one of the other goroutines.
func (v *txValidator) sendResult(result error) {
	select {
	case v.resultChan <- result:
	case <-v.quitChan:
	}
}

// validateHandler consumes items to validate from the internal validate
// channel and returns the result of the validation on the internal result
// channel. It must be run as a goroutine.
func (v *txValidator) validateHandler() {
out:
	for {
		select {
		case txVI := <-v.validateChan:
			// Ensure the referenced input utxo is available.
			txIn := txVI.txIn
			utxo := v.utxoView.LookupEntry(txIn.PreviousOutPoint)
			if utxo == nil {
				str := fmt.Sprintf("unable to find unspent "+
					"output %v referenced from "+
					"transaction %s:%d",
					txIn.PreviousOutPoint, txVI.tx.Hash(),
					txVI.txInIndex)
				err := ruleError(ErrMissingTxOut, str)
				v.sendResult(err)
				break out
			}

			// Verify the input against the locking script of the
			// referenced output.  Checks operate on immutable
			// copies of the script and transaction, so the chain
			// state lock is not required here.
			err := validateTransactionInput(txVI.tx.MsgTx(),
				txVI.txInIndex, utxo.PkScript(), v.flags,
				v.sigCache)
			if err != nil {
				v.sendResult(err)
				break out
			}

			// Validation succeeded.
			v.sendResult(nil)

		case <-v.quitChan:
			break out
		}
	}
}

// Validate validates the scripts for all of the passed transaction inputs
// using multiple goroutines.
func (v *txValidator) Validate(items []*txValidateItem) error {
	if len(items) == 0 {
		return nil
	}

	// Limit the number of goroutines to do script validation based on the
	// number of processor cores.  This helps ensure the system stays
	// reasonably responsive under heavy load.
	maxGoRoutines := runtime.NumCPU() * 3
	if maxGoRoutines <= 0 {
		maxGoRoutines = 1
	}
	if maxGoRoutines > len(items) {
		maxGoRoutines = len(items)
	}

	// Start up validation handlers that are used to asynchronously
	// validate each transaction input.
	for i := 0; i < maxGoRoutines; i++ {
		go v.validateHandler()
	}

	// Validate each of the inputs.  The quit channel is closed when any
	// errors occur so all processing goroutines exit regardless of which
	// input had the validation error.
	numInputs := len(items)
	currentItem := 0
	processedItems := 0
	for processedItems < numInputs {
		// Only send items while there are still items that need to
		// be processed.  The select statement will never select a nil
		// channel.
		var validateChan chan *txValidateItem
		var item *txValidateItem
		if currentItem < numInputs {
			validateChan = v.validateChan
			item = items[currentItem]
		}

		select {
		case validateChan <- item:
			currentItem++

		case err := <-v.resultChan:
			processedItems++
			if err != nil {
				close(v.quitChan)
				return err
			}
		}
	}

	close(v.quitChan)
	return nil
}

// newTxValidator returns a new instance of txValidator to be used for
// validating transaction scripts asynchronously.
func newTxValidator(utxoView *UtxoViewpoint, flags txscript.ScriptFlags, sigCache *txscript.SigCache) *txValidator {
	return &txValidator{
		validateChan: make(chan *txValidateItem),
		quitChan:     make(chan struct{}),
		resultChan:   make(chan error),
		utxoView:     utxoView,
		flags:        flags,
		sigCache:     sigCache,
	}
}

// validateTransactionInput runs the two-pass verification of a single input:
// first under the standard flag set, and on a policy-only failure again under
// only the mandatory consensus flags.  A mandatory failure after a standard
// pass would indicate a verification-logic defect and is surfaced as an
// internal error rather than a rule violation.
func validateTransactionInput(msgTx *wire.MsgTx, txInIndex int, pkScript []byte,
	flags txscript.ScriptFlags, sigCache *txscript.SigCache) error {

	err := txscript.VerifyTransactionInput(msgTx, txInIndex, pkScript, flags,
		sigCache)
	if err == nil {
		return nil
	}

	// When the failing flags carried no policy-only bits the failure is a
	// consensus failure and is final.
	if flags&^txscript.MandatoryScriptFlags == 0 {
		str := fmt.Sprintf("failed to validate input %d: %v", txInIndex,
			err)
		return ruleError(ErrScriptValidation, str)
	}

	// Retry with just the mandatory consensus flags to permit network
	// heterogeneity: an input that fails only local policy is not invalid.
	mandatoryErr := txscript.VerifyTransactionInput(msgTx, txInIndex,
		pkScript, txscript.MandatoryScriptFlags, sigCache)
	if mandatoryErr != nil {
		str := fmt.Sprintf("failed to validate input %d: %v", txInIndex,
			mandatoryErr)
		return ruleError(ErrScriptValidation, str)
	}

	// The input is valid under consensus rules but failed the stricter
	// policy pass.  If the failure was anything other than the policy check
	// itself, the two flag sets disagree in a way that indicates a
	// verification-logic defect, not an invalid transaction.  Surface that
	// distinctly so it is never swallowed as an ordinary rejection.
	if !txscript.IsErrorCode(err, txscript.ErrNonStandardScript) {
		return AssertError(fmt.Sprintf("input %d passed mandatory "+
			"script flags but failed standard flags with a "+
			"non-policy error: %v", txInIndex, err))
	}

	str := fmt.Sprintf("input %d failed policy-only script checks: %v",
		txInIndex, err)
	return ruleError(ErrScriptValidation, str)
}

// ValidateTransactionScripts validates the scripts for the passed transaction
// using multiple goroutines.
func ValidateTransactionScripts(tx *util.Tx, utxoView *UtxoViewpoint,
	flags txscript.ScriptFlags, sigCache *txscript.SigCache) error {

	// Collect all of the transaction inputs and required information for
	// validation.
	txIns := tx.MsgTx().TxIn
	txValItems := make([]*txValidateItem, 0, len(txIns))
	for txInIdx, txIn := range txIns {
		// Skip coinbases.
		if isNullOutpoint(&txIn.PreviousOutPoint) {
			continue
		}

		txVI := &txValidateItem{
			txInIndex: txInIdx,
			txIn:      txIn,
			tx:        tx,
		}
		txValItems = append(txValItems, txVI)
	}

	// Validate all of the inputs.
	validator := newTxValidator(utxoView, flags, sigCache)
	return validator.Validate(txValItems)
}

// checkBlockScripts executes and validates the scripts for all transactions of
// the passed block using multiple goroutines.  Block connection always uses
// only the mandatory consensus flag set.
func checkBlockScripts(block *util.Block, utxoView *UtxoViewpoint,
	sigCache *txscript.SigCache) error {

	// Collect all of the transaction inputs and required information for
	// validation for all transactions in the block into a single slice.
	numInputs := 0
	for _, tx := range block.Transactions() {
		numInputs += len(tx.MsgTx().TxIn)
	}
	txValItems := make([]*txValidateItem, 0, numInputs)
	for _, tx := range block.Transactions() {
		for txInIdx, txIn := range tx.MsgTx().TxIn {
			// Skip coinbases.
			if isNullOutpoint(&txIn.PreviousOutPoint) {
				continue
			}

			txVI := &txValidateItem{
				txInIndex: txInIdx,
				txIn:      txIn,
				tx:        tx,
			}
			txValItems = append(txValItems, txVI)
		}
	}

	// Validate all of the inputs.
	validator := newTxValidator(utxoView, txscript.MandatoryScriptFlags,
		sigCache)
	return validator.Validate(txValItems)
}

