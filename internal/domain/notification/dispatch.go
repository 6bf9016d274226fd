package notification

import (
	"context"
	"math/rand/v2"
	"time"
)

// OpKind distinguishes an initial send from a resend when simulating
// delivery. Resends are deliberately less reliable so retry handling stays
// exercised.
type OpKind string

const (
	OpInitialSend OpKind = "initial_send"
	OpResend      OpKind = "resend"
)

// Outcome is the result of a simulated dispatch. FailureReason is non-empty
// exactly when Sent is false.
type Outcome struct {
	Sent          bool
	FailureReason string
}

// DelayRange bounds the artificial provider latency for one operation.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// DispatchPolicy configures the simulated delivery behavior per channel and
// operation kind. Failure chances are percentages in [0,100]; forcing 0 or
// 100 makes outcomes deterministic, which tests rely on.
type DispatchPolicy struct {
	EmailFailurePercent  int
	SMSFailurePercent    int
	ResendFailurePercent int

	EmailDelay  DelayRange
	SMSDelay    DelayRange
	ResendDelay DelayRange
}

// DefaultDispatchPolicy returns the policy used when none is configured:
// Email initial sends fail 5% of the time after 100-500ms, SMS 3% after
// 50-300ms, and resends of either channel fail 20% of the time after
// 100-500ms.
func DefaultDispatchPolicy() DispatchPolicy {
	return DispatchPolicy{
		EmailFailurePercent:  5,
		SMSFailurePercent:    3,
		ResendFailurePercent: 20,
		EmailDelay:           DelayRange{Min: 100 * time.Millisecond, Max: 500 * time.Millisecond},
		SMSDelay:             DelayRange{Min: 50 * time.Millisecond, Max: 300 * time.Millisecond},
		ResendDelay:          DelayRange{Min: 100 * time.Millisecond, Max: 500 * time.Millisecond},
	}
}

// failurePercent resolves the configured failure chance for a channel and
// operation kind.
func (p DispatchPolicy) failurePercent(ch Channel, op OpKind) int {
	if op == OpResend {
		return p.ResendFailurePercent
	}
	switch ch {
	case ChannelSMS:
		return p.SMSFailurePercent
	default:
		return p.EmailFailurePercent
	}
}

// delay resolves the latency range for a channel and operation kind.
func (p DispatchPolicy) delay(ch Channel, op OpKind) DelayRange {
	if op == OpResend {
		return p.ResendDelay
	}
	switch ch {
	case ChannelSMS:
		return p.SMSDelay
	default:
		return p.EmailDelay
	}
}

// emailFailureReasons and smsFailureReasons are the fixed pools a simulated
// failure draws its human-readable reason from.
var emailFailureReasons = []string{
	"Invalid email address",
	"Mailbox full",
	"Email server unreachable",
	"Recipient email blocked",
	"Spam filter rejection",
	"Email service rate limit exceeded",
}

var smsFailureReasons = []string{
	"Invalid phone number",
	"Phone number not in service",
	"SMS gateway timeout",
	"Carrier rejection",
	"Daily SMS limit exceeded",
}

// Rand is the source of randomness for the simulator. IntN must return a
// uniform value in [0,n) and be safe for concurrent use. The default source
// delegates to math/rand/v2's process-wide generator, which is
// goroutine-safe; tests inject a deterministic stub.
type Rand interface {
	IntN(n int) int
}

type processRand struct{}

func (processRand) IntN(n int) int { return rand.IntN(n) }

// Simulator produces simulated dispatch outcomes: an artificial provider
// delay followed by a probabilistic Sent/Failed decision. Every call draws
// independent randomness, so it is safe to invoke from any number of
// in-flight requests.
type Simulator struct {
	policy DispatchPolicy
	rnd    Rand
}

// NewSimulator creates a dispatch simulator with the given policy.
// A nil rnd falls back to the process-wide generator.
func NewSimulator(policy DispatchPolicy, rnd Rand) *Simulator {
	if rnd == nil {
		rnd = processRand{}
	}
	return &Simulator{policy: policy, rnd: rnd}
}

// Attempt simulates one delivery attempt on the given channel. It sleeps for
// a uniformly drawn duration within the configured range (honoring context
// cancellation) and then decides the outcome by comparing a uniform draw in
// [1,100] against the configured failure chance.
func (s *Simulator) Attempt(ctx context.Context, ch Channel, op OpKind) (Outcome, error) {
	if err := s.sleep(ctx, s.policy.delay(ch, op)); err != nil {
		return Outcome{}, err
	}

	chance := s.policy.failurePercent(ch, op)
	if s.rnd.IntN(100)+1 <= chance {
		return Outcome{Sent: false, FailureReason: s.failureReason(ch)}, nil
	}
	return Outcome{Sent: true}, nil
}

// sleep waits for a random duration within the range, returning early if the
// context is cancelled.
func (s *Simulator) sleep(ctx context.Context, r DelayRange) error {
	if r.Max <= 0 {
		return nil
	}
	d := r.Min
	if span := r.Max - r.Min; span > 0 {
		d += time.Duration(s.rnd.IntN(int(span)))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// failureReason picks a random reason from the channel's pool.
func (s *Simulator) failureReason(ch Channel) string {
	pool := emailFailureReasons
	if ch == ChannelSMS {
		pool = smsFailureReasons
	}
	return pool[s.rnd.IntN(len(pool))]
}
