package resolver

import "time"

// Ticker is the subset of *time.Ticker the resolver needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers and deadlines. Tests substitute a manual clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (realClock) NewTicker(d time.Duration) Ticker      { return realTicker{time.NewTicker(d)} }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
