package signing

// Phase is the position of a Signer in the signing protocol.
type Phase uint8

const (
	PhaseInit            Phase = iota // No session
	PhaseGatherInputs                 // Pass 1
	PhaseGatherPrevTx                 // Streaming the previous transaction of the current input
	PhaseGatherOutputs                // Pass 2
	PhaseConfirmOutput                // Waiting for the user to approve an external output
	PhaseConfirmFee                   // Fee above the coin's ceiling
	PhaseConfirmLockTime              // Non-zero lock time
	PhaseConfirmForeign               // Foreign key path or unowned input
	PhaseSignInputs                   // Pass 3
	PhaseEmitSignatures               // Releasing the buffered signatures
	PhaseFinished
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseGatherInputs:
		return "gather_inputs"
	case PhaseGatherPrevTx:
		return "gather_prev_tx"
	case PhaseGatherOutputs:
		return "gather_outputs"
	case PhaseConfirmOutput:
		return "confirm_output"
	case PhaseConfirmFee:
		return "confirm_fee"
	case PhaseConfirmLockTime:
		return "confirm_lock_time"
	case PhaseConfirmForeign:
		return "confirm_foreign"
	case PhaseSignInputs:
		return "sign_inputs"
	case PhaseEmitSignatures:
		return "emit_signatures"
	case PhaseFinished:
		return "finished"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no session is running in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseInit || p == PhaseFinished || p == PhaseAborted
}

// Pass identifies one of the orchestrator's passes over the transaction.
type Pass uint8

const (
	PassInputs Pass = iota + 1
	PassOutputs
	PassSigning
)

func (p Pass) String() string {
	switch p {
	case PassInputs:
		return "inputs"
	case PassOutputs:
		return "outputs"
	case PassSigning:
		return "signing"
	default:
		return "unknown"
	}
}
