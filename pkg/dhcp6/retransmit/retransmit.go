// Package retransmit implements the RFC 3315 section 14 retransmission
// timing algorithm: initial/subsequent retransmission time computation
// with randomization, and the per-exchange constant tables.
package retransmit

import (
	"math/rand/v2"
	"time"
)

// Params is one exchange's retransmission constants (RFC 3315 section 14
// names these IRT/MRT/MRC/MRD). A zero MRT means "no cap"; a zero MRC
// means "unlimited retries" (the caller enforces its own stopping
// condition, e.g. reaching T2).
type Params struct {
	IRT time.Duration
	MRT time.Duration
	MRC int
	MRD time.Duration
}

// Exchange-specific constants (RFC 3315 section 5.5 per-message table).
var (
	Solicit = Params{IRT: 1 * time.Second, MRT: 120 * time.Second, MRC: 0, MRD: 0}
	Request = Params{IRT: 1 * time.Second, MRT: 30 * time.Second, MRC: 10, MRD: 0}
	Confirm = Params{IRT: 1 * time.Second, MRT: 4 * time.Second, MRC: 0, MRD: 10 * time.Second}
	Renew   = Params{IRT: 10 * time.Second, MRT: 600 * time.Second, MRC: 0, MRD: 0}
	Rebind  = Params{IRT: 10 * time.Second, MRT: 600 * time.Second, MRC: 0, MRD: 0}
	Decline = Params{IRT: 1 * time.Second, MRT: 0, MRC: 5, MRD: 0}
	Inform  = Params{IRT: 1 * time.Second, MRT: 120 * time.Second, MRC: 0, MRD: 0}
)

// Initial delay bounds (RFC 3315 section 18.2.1 and 15; SOL_MAX_DELAY
// etc.), used by the state machine to arm the one-shot entry timer
// before the first transmit.
const (
	SolMaxDelay = 1 * time.Second
	CnfMaxDelay = 1 * time.Second
	InfMaxDelay = 1 * time.Second
)

// Scheduler tracks the try count and previous RT for one in-flight
// exchange. Construct it with NewScheduler; the zero value has no
// exchange parameters.
type Scheduler struct {
	params Params
	try    int
	prevRT time.Duration
}

// NewScheduler returns a scheduler for the given exchange, ready to
// compute its first RT.
func NewScheduler(p Params) *Scheduler {
	return &Scheduler{params: p}
}

// Reset clears the try counter and previous RT, as happens on entering a
// state fresh.
func (s *Scheduler) Reset() {
	s.try = 0
	s.prevRT = 0
}

// Try returns the number of transmits made so far in this exchange.
func (s *Scheduler) Try() int { return s.try }

// Done reports whether MRC has been reached (MRC == 0 means unlimited).
func (s *Scheduler) Done() bool {
	return s.params.MRC > 0 && s.try >= s.params.MRC
}

// Next computes the next retransmission delay and increments the try
// count. The first call after Reset computes RT = IRT + RAND*IRT;
// subsequent calls compute RT' = 2*RT + RAND*RT, clamped against MRT.
func (s *Scheduler) Next() time.Duration {
	var rt time.Duration
	if s.try == 0 {
		rt = jitter(s.params.IRT, 1.0)
	} else {
		rt = jitterAround(2 * s.prevRT)
		if s.params.MRT > 0 && rt > s.params.MRT {
			rt = jitter(s.params.MRT, 1.0)
		}
	}
	s.prevRT = rt
	s.try++
	return rt
}

// jitter returns base*scale with a uniform +/-10% randomization applied,
// i.e. the RT = IRT + RAND*IRT formula with scale=1.
func jitter(base time.Duration, scale float64) time.Duration {
	r := randSigned()
	return time.Duration(float64(base) * scale * (1 + r))
}

// jitterAround computes RT' = 2*RT_prev + RAND*RT_prev given the
// already-doubled 2*RT_prev, matching the RFC 3315 section 14 formula
// where RAND is applied to the prior RT, not the doubled value.
func jitterAround(doubled time.Duration) time.Duration {
	prev := doubled / 2
	r := randSigned()
	return doubled + time.Duration(float64(prev)*r)
}

// randSigned draws a uniform float64 in [-0.1, 0.1].
func randSigned() float64 {
	return -0.1 + 0.2*rand.Float64()
}

// InitialDelay draws a uniform delay in [0, max), used for the one-shot
// entry timers on Solicit/Confirm/Inform.
func InitialDelay(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}
