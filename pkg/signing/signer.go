// Package signing drives a transaction signing session.
//
// A Signer is a restartable state machine. The host feeds it one Ack at a
// time and receives exactly one Request in return; nothing blocks inside the
// Signer, and waiting for the user is just another phase. A session runs
// three passes over the transaction:
//
//  1. Inputs are streamed once. Each one is committed to, fed to the digest
//     builder and the fee validator, and, when its digest does not commit to
//     the spent amount, proven against its streamed previous transaction.
//  2. Outputs are streamed once, classified as change or external, and
//     external outputs are confirmed by the user before the next one is
//     requested. The fee policy and the remaining checkpoints follow.
//  3. Every owned input is requested again and compared with its pass 1
//     commitment before it is signed. Legacy inputs additionally re-stream
//     the whole transaction, which must hash to the pass 1 check digest.
//
// Signatures are buffered and released only once every owned input has been
// signed, so a failure at any input releases nothing.
package signing

import (
	"crypto/sha256"
	"hash"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/suffix-labs/txsigner/pkg/coins"
	"github.com/suffix-labs/txsigner/pkg/crypto"
	"github.com/suffix-labs/txsigner/pkg/digest"
	"github.com/suffix-labs/txsigner/pkg/fees"
	"github.com/suffix-labs/txsigner/pkg/multisig"
	"github.com/suffix-labs/txsigner/pkg/txmsg"
)

// Signer runs one signing session at a time. It is not safe for concurrent
// use.
type Signer struct {
	keychain crypto.Keychain
	coins    *coins.Table
	log      zerolog.Logger
	observer Observer

	phase Phase
	sess  *session
}

// session is everything that lives from SignTx to Finished or Aborted.
type session struct {
	id      uuid.UUID
	log     zerolog.Logger
	coin    *coins.CoinInfo
	tx      txmsg.SignTx
	pending *txmsg.Request

	builder   digest.Builder
	validator *fees.Validator
	weight    *fees.WeightCalculator
	tracker   multisig.Tracker
	check     hash.Hash
	checkSum  [32]byte

	inputs     []inputRecord
	index      uint32
	foreign    bool
	changeSeen bool
	fee        uint64
	authorized uint64

	cur    *txmsg.TxInput
	prev   *prevStream
	legacy *legacyPass

	sigs    []*txmsg.Signature
	emitted int
}

// inputRecord is what pass 1 remembers about an input.
type inputRecord struct {
	commitment [32]byte
	family     digest.Family
	amount     uint64
	owned      bool
}

// NewSigner returns an idle Signer deriving keys from keychain.
func NewSigner(keychain crypto.Keychain, opts ...Option) *Signer {
	s := &Signer{
		keychain: keychain,
		coins:    coins.Default(),
		log:      zerolog.Nop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the current phase.
func (s *Signer) Phase() Phase {
	return s.phase
}

// SessionID returns the id of the running session, if any.
func (s *Signer) SessionID() (uuid.UUID, bool) {
	if s.sess == nil {
		return uuid.Nil, false
	}
	return s.sess.id, true
}

// Next consumes the host's answer to the previous request and returns the
// next request. On failure the request is a RequestFailure carrying only the
// error code, the session is gone, and the full error is returned for the
// caller's logs.
func (s *Signer) Next(ack *txmsg.Ack) (*txmsg.Request, error) {
	if ack == nil {
		return s.fail(processError("empty ack"))
	}
	if s.sess == nil {
		if ack.Type != txmsg.AckSignTx {
			e := processError("%s without a session", ack.Type)
			return &txmsg.Request{Type: txmsg.RequestFailure, FailureCode: e.Code}, e
		}
		req, err := s.begin(ack.SignTx)
		if err != nil {
			return s.fail(err)
		}
		return s.send(req)
	}

	switch {
	case ack.Type == txmsg.AckSignTx:
		return s.fail(txmsg.NewError(txmsg.KindProcess, txmsg.ErrSessionActive, "session %s already running", s.sess.id))
	case ack.Type == txmsg.AckCancel:
		return s.fail(txmsg.NewError(txmsg.KindCancelled, txmsg.ErrCancelled, "cancelled by host"))
	case !s.sess.pending.Expects(ack.Type):
		return s.fail(processError("%s does not answer %s", ack.Type, s.sess.pending.Type))
	}

	req, err := s.step(ack)
	if err != nil {
		return s.fail(err)
	}
	return s.send(req)
}

func (s *Signer) step(ack *txmsg.Ack) (*txmsg.Request, error) {
	switch s.phase {
	case PhaseGatherInputs:
		return s.onInput(ack.Input)
	case PhaseGatherPrevTx:
		return s.onPrevTx(ack)
	case PhaseGatherOutputs:
		return s.onOutput(ack.Output)
	case PhaseConfirmOutput, PhaseConfirmFee, PhaseConfirmLockTime, PhaseConfirmForeign:
		return s.onConfirm(ack.Confirmed)
	case PhaseSignInputs:
		return s.onSign(ack)
	case PhaseEmitSignatures:
		return s.onContinue()
	default:
		return nil, processError("no transition from %s", s.phase)
	}
}

// send records req as the request the next ack must answer. Terminal
// requests end the session.
func (s *Signer) send(req *txmsg.Request) (*txmsg.Request, error) {
	if req.Type == txmsg.RequestFinished {
		s.sess.log.Info().
			Str("coin", s.sess.coin.Name).
			Uint64("fee", s.sess.fee).
			Int("signatures", len(s.sess.sigs)).
			Msg("signing finished")
		s.setPhase(PhaseFinished)
		s.sess = nil
		return req, nil
	}
	s.sess.pending = req
	return req, nil
}

// fail aborts the session. All accumulated state is dropped; key material
// never outlives a single signing step, so there is nothing else to wipe.
func (s *Signer) fail(err error) (*txmsg.Request, error) {
	e := txmsg.AsError(err)
	log := s.log
	if s.sess != nil {
		log = s.sess.log
	}
	log.Warn().
		Stringer("kind", e.Kind).
		Str("code", e.Code).
		Stringer("phase", s.phase).
		Msg("signing aborted")

	s.sess = nil
	s.setPhase(PhaseAborted)
	return &txmsg.Request{Type: txmsg.RequestFailure, FailureCode: e.Code}, e
}

func (s *Signer) setPhase(p Phase) {
	if p == s.phase {
		return
	}
	from := s.phase
	s.phase = p
	s.observer.PhaseChanged(from, p)
}

func processError(format string, args ...interface{}) *txmsg.Error {
	return txmsg.NewError(txmsg.KindProcess, txmsg.ErrUnexpectedMessage, format, args...)
}

func signingError(code, format string, args ...interface{}) *txmsg.Error {
	return txmsg.NewError(txmsg.KindSigning, code, format, args...)
}

// Limits on the counts a host may announce. A 1 MB transaction holds at most
// this many of the smallest possible inputs (41 bytes) and outputs (9 bytes).
const (
	MaxInputs  = 1000000 / 41
	MaxOutputs = 1000000 / 9
)

// begin opens a session.
func (s *Signer) begin(tx *txmsg.SignTx) (*txmsg.Request, error) {
	if tx == nil {
		return nil, signingError(txmsg.ErrInvalidInput, "missing session parameters")
	}
	coin, ok := s.coins.ByName(tx.CoinName)
	if !ok {
		return nil, signingError(txmsg.ErrUnsupportedCoin, "unknown coin %q", tx.CoinName)
	}
	if tx.InputsCount == 0 {
		return nil, signingError(txmsg.ErrInvalidInput, "transaction without inputs")
	}
	if tx.OutputsCount == 0 {
		return nil, signingError(txmsg.ErrInvalidOutput, "transaction without outputs")
	}
	if tx.InputsCount > MaxInputs {
		return nil, signingError(txmsg.ErrInvalidInput, "%d inputs exceed the limit of %d", tx.InputsCount, MaxInputs)
	}
	if tx.OutputsCount > MaxOutputs {
		return nil, signingError(txmsg.ErrInvalidOutput, "%d outputs exceed the limit of %d", tx.OutputsCount, MaxOutputs)
	}
	if coin.Decred && tx.Version > 0xFFFF {
		return nil, signingError(txmsg.ErrInvalidInput, "decred version %d out of range", tx.Version)
	}

	builder, err := digest.New(coin, tx)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	s.sess = &session{
		id:        id,
		log:       s.log.With().Str("session", id.String()).Logger(),
		coin:      coin,
		tx:        *tx,
		builder:   builder,
		validator: fees.NewValidator(coin),
		weight:    fees.NewWeightCalculator(tx.InputsCount, tx.OutputsCount, coin.Decred),
		check:     sha256.New(),
	}
	s.sess.log.Debug().
		Str("coin", coin.Name).
		Uint32("inputs", tx.InputsCount).
		Uint32("outputs", tx.OutputsCount).
		Stringer("family", builder.Family()).
		Msg("signing started")

	s.setPhase(PhaseGatherInputs)
	s.observer.PassStarted(PassInputs, tx.InputsCount)
	return &txmsg.Request{Type: txmsg.RequestInput, Index: 0}, nil
}

// onConfirm handles every user checkpoint.
func (s *Signer) onConfirm(confirmed bool) (*txmsg.Request, error) {
	if !confirmed {
		return nil, txmsg.NewError(txmsg.KindCancelled, txmsg.ErrCancelled, "user declined %s", s.sess.pending.Type)
	}
	switch s.phase {
	case PhaseConfirmOutput:
		s.setPhase(PhaseGatherOutputs)
		return s.nextOutput()
	case PhaseConfirmFee:
		return s.confirmLockTime()
	case PhaseConfirmLockTime:
		return s.confirmForeign()
	default:
		return s.startSigning()
	}
}

// derivePublicKey derives the key at path only long enough to read its public
// half.
func (s *Signer) derivePublicKey(path []uint32) ([]byte, error) {
	key, err := s.deriveKey(path)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	return key.PublicKey().Bytes(), nil
}

func (s *Signer) deriveKey(path []uint32) (*crypto.PrivateKey, error) {
	key, err := s.keychain.DerivePrivateKey(path)
	if err != nil {
		return nil, txmsg.WrapError(txmsg.KindSigning, txmsg.ErrKeyDerivation, err, "derive key")
	}
	return key, nil
}

// foreignPath reports whether path is a BIP-44 style path of another coin.
func foreignPath(coin *coins.CoinInfo, path []uint32) bool {
	if len(path) < 2 {
		return false
	}
	switch path[0] {
	case 44 | txmsg.HardenedKeyStart, 49 | txmsg.HardenedKeyStart,
		84 | txmsg.HardenedKeyStart, 48 | txmsg.HardenedKeyStart:
		return path[1] != coin.Slip44|txmsg.HardenedKeyStart
	default:
		return false
	}
}
