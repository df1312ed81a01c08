package signing

import "github.com/rs/zerolog"

// Observer receives progress notifications at pass and item boundaries. It
// is called synchronously from Signer.Next and must not call back into the
// Signer.
type Observer interface {
	PhaseChanged(from, to Phase)
	PassStarted(pass Pass, items uint32)
	ItemProcessed(pass Pass, index uint32)
}

type nopObserver struct{}

func (nopObserver) PhaseChanged(Phase, Phase)  {}
func (nopObserver) PassStarted(Pass, uint32)   {}
func (nopObserver) ItemProcessed(Pass, uint32) {}

// LogObserver reports progress to a zerolog logger at debug level.
type LogObserver struct {
	Logger zerolog.Logger
}

func (o LogObserver) PhaseChanged(from, to Phase) {
	o.Logger.Debug().Stringer("from", from).Stringer("to", to).Msg("phase changed")
}

func (o LogObserver) PassStarted(pass Pass, items uint32) {
	o.Logger.Debug().Stringer("pass", pass).Uint32("items", items).Msg("pass started")
}

func (o LogObserver) ItemProcessed(pass Pass, index uint32) {
	o.Logger.Debug().Stringer("pass", pass).Uint32("index", index).Msg("item processed")
}
