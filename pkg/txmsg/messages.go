package txmsg

// RequestType tells the host what the device needs next.
type RequestType uint8

const (
	RequestInput                 RequestType = iota + 1 // Send input Index
	RequestOutput                                       // Send output Index
	RequestPrevMeta                                     // Send the header of previous transaction PrevHash
	RequestPrevInput                                    // Send input Index of PrevHash
	RequestPrevOutput                                   // Send output Index of PrevHash
	RequestPrevExtraData                                // Send ExtraDataLen bytes of PrevHash from ExtraDataOffset
	RequestConfirmOutput                                // Show Output / Address to the user
	RequestConfirmFee                                   // Show Fee to the user
	RequestConfirmLockTime                              // Show LockTime to the user
	RequestConfirmForeignAddress                        // Warn about a foreign path or unowned input
	RequestSignature                                    // Signature for input Index is ready
	RequestFinished                                     // Session completed
	RequestFailure                                      // Session aborted with FailureCode
)

func (t RequestType) String() string {
	switch t {
	case RequestInput:
		return "input"
	case RequestOutput:
		return "output"
	case RequestPrevMeta:
		return "prev_meta"
	case RequestPrevInput:
		return "prev_input"
	case RequestPrevOutput:
		return "prev_output"
	case RequestPrevExtraData:
		return "prev_extra_data"
	case RequestConfirmOutput:
		return "confirm_output"
	case RequestConfirmFee:
		return "confirm_fee"
	case RequestConfirmLockTime:
		return "confirm_lock_time"
	case RequestConfirmForeignAddress:
		return "confirm_foreign_address"
	case RequestSignature:
		return "signature"
	case RequestFinished:
		return "finished"
	case RequestFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Request is the single message the device emits per step.
type Request struct {
	Type            RequestType
	Index           uint32     // Input or output index (current or previous transaction)
	PrevHash        [32]byte   // Previous transaction being streamed
	ExtraDataOffset uint32     // RequestPrevExtraData
	ExtraDataLen    uint32     // RequestPrevExtraData
	Output          *TxOutput  // RequestConfirmOutput
	Address         string     // RequestConfirmOutput display address
	Fee             uint64     // RequestConfirmFee
	Weight          uint64     // RequestConfirmFee estimated weight
	LockTime        uint32     // RequestConfirmLockTime
	Signature       *Signature // RequestSignature
	FailureCode     string     // RequestFailure
}

// AckType identifies the payload of an Ack.
type AckType uint8

const (
	AckSignTx     AckType = iota + 1 // Open a session
	AckInput                         // Input
	AckOutput                        // Output
	AckPrevMeta                      // PrevMeta
	AckPrevInput                     // PrevInput
	AckPrevOutput                    // PrevOutput
	AckExtraData                     // ExtraData
	AckConfirm                       // Confirmed
	AckContinue                      // Signature received
	AckCancel                        // Abort the session
)

func (t AckType) String() string {
	switch t {
	case AckSignTx:
		return "sign_tx"
	case AckInput:
		return "input"
	case AckOutput:
		return "output"
	case AckPrevMeta:
		return "prev_meta"
	case AckPrevInput:
		return "prev_input"
	case AckPrevOutput:
		return "prev_output"
	case AckExtraData:
		return "extra_data"
	case AckConfirm:
		return "confirm"
	case AckContinue:
		return "continue"
	case AckCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Ack is the host's answer to the previous Request.
type Ack struct {
	Type       AckType
	SignTx     *SignTx
	Input      *TxInput
	Output     *TxOutput
	PrevMeta   *PrevTx
	PrevInput  *PrevInput
	PrevOutput *TxOutputBin
	ExtraData  []byte
	Confirmed  bool
}

// Expects reports whether ack answers req.
func (r *Request) Expects(t AckType) bool {
	switch r.Type {
	case RequestInput:
		return t == AckInput
	case RequestOutput:
		return t == AckOutput
	case RequestPrevMeta:
		return t == AckPrevMeta
	case RequestPrevInput:
		return t == AckPrevInput
	case RequestPrevOutput:
		return t == AckPrevOutput
	case RequestPrevExtraData:
		return t == AckExtraData
	case RequestConfirmOutput, RequestConfirmFee, RequestConfirmLockTime, RequestConfirmForeignAddress:
		return t == AckConfirm
	case RequestSignature:
		return t == AckContinue
	default:
		return false
	}
}
