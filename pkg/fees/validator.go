// Package fees accumulates transaction value, classifies outputs and applies
// the coin's fee policy.
//
// All arithmetic is checked: any 64-bit overflow fails the session rather
// than wrapping. The fee ceiling is expressed per 1000 virtual bytes, so the
// threshold for a transaction of weight w is w*max_fee_kb/4000.
package fees

import (
	"math"
	"math/bits"

	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// OutputClass tells the orchestrator whether an output must be shown.
type OutputClass uint8

const (
	OutputExternal OutputClass = iota // Shown to the user
	OutputChange                      // Provably ours, accepted silently
)

func (c OutputClass) String() string {
	if c == OutputChange {
		return "change"
	}
	return "external"
}

// Warning is a recoverable policy finding that needs user confirmation.
type Warning uint8

const (
	WarningFeeTooHigh Warning = iota + 1
)

func (w Warning) String() string {
	if w == WarningFeeTooHigh {
		return "fee_too_high"
	}
	return "unknown"
}

// Validator holds the running totals of one session.
type Validator struct {
	coin      *coins.CoinInfo
	totalIn   uint64
	totalOut  uint64
	changeOut uint64
	segwitIn  uint64
}

// NewValidator returns a Validator enforcing the policy of coin.
func NewValidator(coin *coins.CoinInfo) *Validator {
	return &Validator{coin: coin}
}

func overflow(what string) error {
	return txmsg.NewError(txmsg.KindFee, txmsg.ErrFeeOverflow, "%s overflows", what)
}

func add(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// AccumulateInput adds an input amount. Segwit amounts are also tracked
// separately since segwit change may not exceed them.
func (v *Validator) AccumulateInput(amount uint64, segwit bool) error {
	total, ok := add(v.totalIn, amount)
	if !ok {
		return overflow("input total")
	}
	if segwit {
		sw, ok := add(v.segwitIn, amount)
		if !ok {
			return overflow("segwit input total")
		}
		v.segwitIn = sw
	}
	v.totalIn = total
	return nil
}

// CheckDust rejects outputs below the coin's dust limit. OP_RETURN outputs
// carry no value and are exempt.
func (v *Validator) CheckDust(amount uint64, opReturn bool) error {
	if opReturn {
		if amount != 0 {
			return txmsg.NewError(txmsg.KindFee, txmsg.ErrInvalidOutput, "OP_RETURN output with non-zero amount")
		}
		return nil
	}
	if amount < v.coin.DustLimit {
		return txmsg.NewError(txmsg.KindFee, txmsg.ErrDustOutput,
			"output amount %d below dust limit %d", amount, v.coin.DustLimit)
	}
	return nil
}

// AccumulateOutput adds an output amount and classifies it.
func (v *Validator) AccumulateOutput(amount uint64, isChange bool) (OutputClass, error) {
	total, ok := add(v.totalOut, amount)
	if !ok {
		return OutputExternal, overflow("output total")
	}
	if isChange {
		change, ok := add(v.changeOut, amount)
		if !ok {
			return OutputExternal, overflow("change total")
		}
		v.changeOut = change
	}
	v.totalOut = total
	if isChange {
		return OutputChange, nil
	}
	return OutputExternal, nil
}

// threshold returns weight*perKB/4000, saturating on overflow.
func threshold(weight, perKB uint64) uint64 {
	hi, lo := bits.Mul64(weight, perKB)
	if hi != 0 {
		return math.MaxUint64 / 4000
	}
	return lo / 4000
}

// Finalize computes the fee and applies the fee-rate policy for a
// transaction of the given weight.
func (v *Validator) Finalize(weight uint64) (uint64, []Warning, error) {
	if v.totalOut > v.totalIn {
		return 0, nil, txmsg.NewError(txmsg.KindFee, txmsg.ErrNotEnoughFunds,
			"outputs %d exceed inputs %d", v.totalOut, v.totalIn)
	}
	fee := v.totalIn - v.totalOut

	if fee < threshold(weight, v.coin.MinFeeKB) {
		return fee, nil, txmsg.NewError(txmsg.KindFee, txmsg.ErrFeeTooLow,
			"fee %d below minimum rate %d per kB", fee, v.coin.MinFeeKB)
	}

	var warnings []Warning
	if fee > threshold(weight, v.coin.MaxFeeKB) {
		warnings = append(warnings, WarningFeeTooHigh)
	}
	return fee, warnings, nil
}

// TotalIn returns the sum of input amounts.
func (v *Validator) TotalIn() uint64 { return v.totalIn }

// TotalOut returns the sum of output amounts.
func (v *Validator) TotalOut() uint64 { return v.totalOut }

// ChangeOut returns the sum of change amounts.
func (v *Validator) ChangeOut() uint64 { return v.changeOut }

// SegwitIn returns the sum of segwit input amounts.
func (v *Validator) SegwitIn() uint64 { return v.segwitIn }

// SpendingAmount returns the value leaving the wallet: outputs minus change.
func (v *Validator) SpendingAmount() uint64 { return v.totalOut - v.changeOut }
