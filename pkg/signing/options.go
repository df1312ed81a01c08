package signing

import (
	"github.com/rs/zerolog"
	"github.com/suffix-labs/txsigner/pkg/coins"
)

// Option configures a Signer.
type Option func(*Signer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Signer) { s.log = l }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(s *Signer) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithCoins replaces the embedded coin table.
func WithCoins(t *coins.Table) Option {
	return func(s *Signer) {
		if t != nil {
			s.coins = t
		}
	}
}
