// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wtxmgr"
	"github.com/btcsuite/hdengine/wallet/txrules"
	"github.com/btcsuite/hdengine/wallet/txsizes"
)

var (
	// ErrFeeTooHigh is returned when funding a transaction would pay more
	// than the maximum fee the caller accepts.
	ErrFeeTooHigh = errors.New("transaction fee exceeds maximum fee")

	// ErrNoChangeSource is returned when a transaction is funded without
	// a way to create a change output.
	ErrNoChangeSource = errors.New("no change source")
)

// txSelectionError is defined so that we can signal the missing
// amount to the calling software, so that one can easily create
// transactions which satisfy the fee requirements.
type txSelectionError struct {
	targetAmount btcutil.Amount
	txFee        btcutil.Amount
	availableAmt btcutil.Amount
}

func (txSelectionError) InputSourceError() {

}

func (e txSelectionError) Error() string {
	return fmt.Sprintf("insufficient funds available to construct "+
		"transaction: amount: %v, minimum fee: %v, available amount: %v",
		e.targetAmount, e.txFee, e.availableAmt)
}

// InputSelectionStrategy defines how funds are selected when
// building a transaction.
type InputSelectionStrategy int

const (
	// PositiveYieldingSelection requires the inputs to be
	// ordered by amount so that we can fail early in case
	// an input is not positive yielding. This means the selection
	// does not care of follow up inputs as soon as the first is negative
	// yielding.
	PositiveYieldingSelection InputSelectionStrategy = iota

	// RandomSelection means there could still be some inputs
	// which are larger than the previous ones therefore this strategy
	// considers all inputs as long as the target amount is not
	// reached.
	RandomSelection

	// ConstantSelection should use all inputs which are present when
	// creating the transaction, also the ones which are negative yielding.
	// All inputs are added although less would be also sufficient to create
	// the transaction.
	ConstantSelection
)

// InputSizer returns the worst case size of an input redeeming pkScript.  The
// second return value is false when the script is unknown to the sizer, in
// which case a compressed P2PKH input is assumed.
type InputSizer func(pkScript []byte) (txsizes.InputSize, bool)

// FundOptions describes the transaction Fund creates.
type FundOptions struct {
	// Outputs are the outputs of the transaction, not including the
	// change.  They are not modified.
	Outputs []*wire.TxOut

	// Credits are the candidate inputs, considered in order.
	Credits []wtxmgr.Credit

	// Required are inputs that are always spent, ahead of the selected
	// credits.
	Required []wtxmgr.Credit

	// FeeRatePerKb is the fee rate in satoshis per 1000 vbytes.
	FeeRatePerKb btcutil.Amount

	// MaxFee is the largest fee the transaction may pay.  Zero means no
	// limit.
	MaxFee btcutil.Amount

	// SubtractFee pays the fee out of the outputs instead of adding it on
	// top of them.  The fee is split evenly across the outputs.
	SubtractFee bool

	// Strategy is how credits are selected.
	Strategy InputSelectionStrategy

	// Change creates the change output script.
	Change *ChangeSource

	// InputSize sizes inputs for fee estimation.  When nil every input is
	// assumed to redeem a compressed P2PKH output.
	InputSize InputSizer
}

// inputState holds the current state of the transaction including all inputs
// which were selected so far.
type inputState struct {
	// feeRatePerKb is the feerate which is used for fee calculation.
	feeRatePerKb btcutil.Amount

	// txFee is the fee of the current transaction state
	// when serialized in satoshis.
	txFee btcutil.Amount

	// inputTotal is the total value of all selected inputs.
	inputTotal btcutil.Amount

	// targetAmount is the amount we want to fund with the transaction
	// not include the change.
	targetAmount btcutil.Amount

	// subtractFee is set when the fee is paid by the outputs.
	subtractFee bool

	// changeOutpoint is the  change output of the transaction. This will
	// be what is left over after subtracting the targetAmount and
	// the tx fee from the inputTotal.
	//
	// NOTE: This (value) might be below the dust limit, or even negative
	// since it is the change remaining in case we pay the fee for a change
	// output.
	changeOutpoint wire.TxOut

	// inputs is the set of tx inputs which will be used to create the
	// transaction. We used the Credit type here because we need to know
	// which type the unspent inputs are (P2WKH, P2PKH etc.) to calculate
	// the fees correctly.
	//
	// NOTE: Depending on the selection strategy it can contain negative
	// yielding inputs (ConstantSelection)
	inputs []wtxmgr.Credit

	// outputs are the outputs of the transaction not including the change.
	outputs []*wire.TxOut

	// sizer sizes the selected inputs.
	sizer InputSizer
}

// inputSize returns the size estimate of a single selected input.
func (t *inputState) inputSize(pkScript []byte) txsizes.InputSize {
	if t.sizer != nil {
		if size, ok := t.sizer(pkScript); ok {
			return size
		}
	}

	return txsizes.InputSize{Base: txsizes.RedeemP2PKHInputSize}
}

// virtualSizeEstimate is the (worst case) tx size with the current set of
// inputs. It takes a parameter whether to add a change output or not.
func (t *inputState) virtualSizeEstimate(change bool) int {
	sizes := make([]txsizes.InputSize, 0, len(t.inputs))
	for _, input := range t.inputs {
		sizes = append(sizes, t.inputSize(input.PkScript))
	}

	changeScriptSize := 0
	if change {
		changeScriptSize = len(t.changeOutpoint.PkScript)
	}

	return txsizes.EstimateVirtualSize(sizes, t.outputs, changeScriptSize)
}

// enoughInput returns true if we've accumulated enough inputs to pay the fees
// and have at least one output that meets the dust limit.
func (t *inputState) enoughInput() bool {
	if len(t.inputs) == 0 {
		return false
	}

	// The outputs pay the fee, so the inputs only need to cover them.
	if t.subtractFee {
		return len(t.outputs) > 0 && t.inputTotal >= t.targetAmount
	}

	// If we have a change output above dust, then we certainly have enough
	// inputs to the transaction.
	if !txrules.IsDustOutput(&t.changeOutpoint,
		txrules.DefaultRelayFeePerKb) {
		return true
	}

	// We did not have enough input for a change output. Check if we have
	// enough input to pay the fees for a transaction with no change
	// output.
	t.txFee = txrules.FeeForSerializeSize(
		t.feeRatePerKb, t.virtualSizeEstimate(false),
	)

	if t.inputTotal < t.targetAmount+t.txFee {
		return false
	}

	// We still have to check whether we have an output when we could not
	// create change output.
	if len(t.outputs) == 0 {
		return false
	}

	// We passed all and can create a valid transaction paying for the fees.
	return true
}

// clone copies the inputState.
func (t *inputState) clone() inputState {
	s := inputState{
		feeRatePerKb:   t.feeRatePerKb,
		txFee:          t.txFee,
		inputTotal:     t.inputTotal,
		targetAmount:   t.targetAmount,
		subtractFee:    t.subtractFee,
		changeOutpoint: t.changeOutpoint,
		outputs:        make([]*wire.TxOut, len(t.outputs)),
		inputs:         make([]wtxmgr.Credit, len(t.inputs)),
		sizer:          t.sizer,
	}

	// we deepcopy outputs otherwise changing the clone would lead to
	// changing the initial state of the outputs.
	for idx, out := range t.outputs {
		cpy := *out
		s.outputs[idx] = &cpy
	}

	copy(s.inputs, t.inputs)

	return s
}

// totalOutput returns the value left for the outputs of the current tx
// selection after paying the fee, including the change output.
//
// NOTE: This might be dust or even negativ when adding a negative yielding.
func (t *inputState) totalOutput() btcutil.Amount {
	// When there are still no inputs added we default to a total amount
	// of 0 to bootstrap the tx selection process. Otherwise the addition
	// of inputs fail unless they overshoot the target amount. This happens
	// because the change output can be negative until the final target
	// amount is not met.
	if len(t.inputs) == 0 {
		return 0
	}

	return t.inputTotal - t.txFee
}

// addToState adds new inputs to a copy of the set. It returns nil if the
// inputs decrease the tx output value after paying fees and the strategy
// rejects such inputs.
func (t *inputState) addToState(strategy InputSelectionStrategy,
	inputs ...wtxmgr.Credit) *inputState {

	// Clone the current set state.
	tempInputState := t.clone()

	for _, input := range inputs {
		tempInputState.inputs = append(tempInputState.inputs, input)
		tempInputState.inputTotal += input.Amount
	}

	// Recalculate the tx fee.
	tempInputState.txFee = txrules.FeeForSerializeSize(
		tempInputState.feeRatePerKb,
		tempInputState.virtualSizeEstimate(true),
	)

	change := tempInputState.inputTotal - tempInputState.targetAmount
	if !tempInputState.subtractFee {
		change -= tempInputState.txFee
	}
	tempInputState.changeOutpoint.Value = int64(change)

	// Calculate the yield of this input from the change in total tx output
	// value.
	inputYield := tempInputState.totalOutput() - t.totalOutput()

	switch strategy {
	// Don't add inputs that cost more for us to use when selecting
	// inputs via positive yield or random selection.
	case PositiveYieldingSelection, RandomSelection:
		if inputYield <= 0 {
			return nil
		}

	// ConstantSelection does not include an yield check. All inputs
	// are used for the transaction.
	case ConstantSelection:
	}

	return &tempInputState
}

func (t *inputState) add(strategy InputSelectionStrategy,
	inputs ...wtxmgr.Credit) bool {

	newState := t.addToState(strategy, inputs...)
	if newState == nil {
		return false
	}

	// We copy the contents of the new state to our main inputState.
	// just copying the pointer would lead to information loss.
	*t = newState.clone()
	return true
}

// selectionError describes the current shortfall of the state.
func (t *inputState) selectionError() error {
	return txSelectionError{
		targetAmount: t.targetAmount,
		txFee:        t.txFee,
		availableAmt: t.inputTotal,
	}
}

// subtractFromOutputs takes fee out of the outputs, split evenly with the
// remainder paid by the first output.
func subtractFromOutputs(outputs []*wire.TxOut, fee btcutil.Amount) error {
	share := int64(fee) / int64(len(outputs))
	remainder := int64(fee) % int64(len(outputs))

	for idx, out := range outputs {
		out.Value -= share
		if idx == 0 {
			out.Value -= remainder
		}

		if out.Value <= 0 || txrules.IsDustOutput(
			out, txrules.DefaultRelayFeePerKb) {

			return fmt.Errorf("output %d can not pay its fee "+
				"share: %w", idx, txrules.ErrOutputIsDust)
		}
	}

	return nil
}

// Fund creates an unsigned transaction paying to zero or more non-change
// outputs.  An appropriate transaction fee is included based on the
// transaction size.
//
// Required inputs are always spent.  The remaining inputs are added depending
// on the input selection strategy: in general inputs are selected one at a
// time and evaluated whether the current inputs suffice the funding amount
// plus fees.  When constant input selection is required all inputs are added
// in a batch.
//
// When the input overshoots the amount of outputs an appropriate change is
// constructed. This change output however is not considered when its below
// the dust limit of the bitcoin network.
//
// If the inputs were unable to provide enough value to pay for every output
// and any necessary fees, an InputSourceError is returned.
//
// BUGS: Fee estimation is off when redeeming inputs from a uncompressed P2PKH.
// Because one cannot evaluate whether an uncompressed or compressed public
// key was used in the P2PKH output before knowing the ScriptSig.
// We use the compressed format to estimate P2PKH inputs because uncompressed
// public keys are very rare which would lead to overpaying fees most of the
// time.
func Fund(opts *FundOptions) (*AuthoredTx, error) {
	if opts.Change == nil || opts.Change.NewScript == nil {
		return nil, ErrNoChangeSource
	}

	changeScript, err := opts.Change.NewScript()
	if err != nil {
		return nil, err
	}

	state := inputState{
		feeRatePerKb: opts.FeeRatePerKb,
		targetAmount: SumOutputValues(opts.Outputs),
		subtractFee:  opts.SubtractFee,
		outputs:      opts.Outputs,
		changeOutpoint: wire.TxOut{
			PkScript: changeScript,
		},
		sizer: opts.InputSize,
	}

	// Copy the outputs so the caller's outputs are never modified.
	state = state.clone()

	if len(opts.Required) > 0 {
		state.add(ConstantSelection, opts.Required...)
	}

	switch opts.Strategy {
	case PositiveYieldingSelection, RandomSelection:
		// We look through all our inputs and add an input until
		// the amount is enough to pay the target amount and the
		// transaction fees.
		for _, input := range opts.Credits {
			if state.enoughInput() {
				// We stop considering inputs when the input
				// amount is enough to fund the transaction.
				break
			}

			// In case adding a new input fails in the positive
			// yielding strategy we fail quickly because all
			// follow up inputs will be negative yielding too.
			if !state.add(opts.Strategy, input) &&
				opts.Strategy == PositiveYieldingSelection {

				return nil, state.selectionError()
			}
		}

	case ConstantSelection:
		// In case of a constant selection all inputs are added
		// although they might be negative yielding so we do not
		// check for the return value.
		if len(opts.Credits) > 0 {
			state.add(ConstantSelection, opts.Credits...)
		}
	}

	// This check is needed to make sure our input amount suffice
	// after considering all eligable inputs.
	if !state.enoughInput() {
		return nil, state.selectionError()
	}

	// We need the inputs in the right format.
	numberInputs := len(state.inputs)
	txIn := make([]*wire.TxIn, 0, numberInputs)
	inputValues := make([]btcutil.Amount, 0, numberInputs)
	scripts := make([][]byte, 0, numberInputs)

	for _, input := range state.inputs {
		outPoint := input.OutPoint
		txIn = append(txIn, wire.NewTxIn(&outPoint, nil, nil))
		inputValues = append(inputValues, input.Amount)
		scripts = append(scripts, input.PkScript)
	}

	outputs := state.outputs

	// Default is no change output. We check if changeOutpoint in the
	// input state is above dust, and add the change output to the
	// transaction.
	withChange := !txrules.IsDustOutput(&state.changeOutpoint,
		txrules.DefaultRelayFeePerKb)

	if state.subtractFee {
		fee := txrules.FeeForSerializeSize(
			state.feeRatePerKb, state.virtualSizeEstimate(withChange),
		)
		if err := subtractFromOutputs(outputs, fee); err != nil {
			return nil, err
		}
	}

	unsignedTransaction := &wire.MsgTx{
		Version:  wire.TxVersion,
		TxIn:     txIn,
		TxOut:    outputs,
		LockTime: 0,
	}

	changeIndex := -1
	if withChange {
		l := len(outputs)
		change := state.changeOutpoint
		unsignedTransaction.TxOut = append(outputs[:l:l], &change)
		changeIndex = l
	}

	fee := state.inputTotal - SumOutputValues(unsignedTransaction.TxOut)
	if opts.MaxFee > 0 && fee > opts.MaxFee {
		return nil, fmt.Errorf("%w: fee %v, maximum %v", ErrFeeTooHigh,
			fee, opts.MaxFee)
	}

	return &AuthoredTx{
		Tx:              unsignedTransaction,
		PrevScripts:     scripts,
		PrevInputValues: inputValues,
		TotalInput:      state.inputTotal,
		Fee:             fee,
		ChangeIndex:     changeIndex,
	}, nil
}
