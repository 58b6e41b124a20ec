// Package recovery decides what the engine does after a step fails.
//
// The decision is a small state machine over state.Meta. Retry comes first:
// while RetryCount is below MaxRetries the failed step runs again. Once
// retries are spent the run rolls back to LastSuccessfulStep with RetryCount
// reset to 0. With no step to roll back to (or the rollback budget spent) the
// run fails.
//
//	p := recovery.Policy{MaxRetries: 2}
//	d := p.Decide(meta, "parse", err)
//	switch d.Action {
//	case recovery.Retry:    // run d.Target again
//	case recovery.Rollback: // resume at d.Target
//	case recovery.Fail:     // stop the run
//	}
package recovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// DefaultMaxRetries is the retry limit used when none is configured.
const DefaultMaxRetries = 3

// ErrInvalidPolicy indicates a policy with negative limits.
var ErrInvalidPolicy = errors.New("invalid recovery policy")

// Action is the outcome of a recovery decision.
type Action int

const (
	// Retry re-runs the failed step.
	Retry Action = iota + 1
	// Rollback resumes at the last successful step.
	Rollback
	// Fail stops the run.
	Fail
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Retry:
		return "retry"
	case Rollback:
		return "rollback"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Decision tells the engine where to go after a failure.
type Decision struct {
	Action Action

	// Target is the step to run next. Empty for Fail.
	Target string

	// Delay is the backoff to wait before a retry.
	Delay time.Duration

	// Meta is the bookkeeping after the decision. The engine stores it on
	// the State before continuing.
	Meta state.Meta
}

// Policy configures recovery. The zero value retries nothing and rolls
// back without limit.
type Policy struct {
	// MaxRetries is the number of retries per failure before rollback.
	MaxRetries int

	// MaxRollbacks bounds rollbacks per run. 0 means unlimited.
	MaxRollbacks int

	// Backoff spaces out retries. The zero value retries immediately.
	Backoff Backoff
}

// DefaultPolicy returns a policy with DefaultMaxRetries and no backoff.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries}
}

// Validate reports negative limits.
func (p Policy) Validate() error {
	var errs []error
	if p.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%w: max retries %d", ErrInvalidPolicy, p.MaxRetries))
	}
	if p.MaxRollbacks < 0 {
		errs = append(errs, fmt.Errorf("%w: max rollbacks %d", ErrInvalidPolicy, p.MaxRollbacks))
	}
	if err := p.Backoff.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Decide records the failure of step and picks the next action.
// meta is not modified; the returned Decision carries the new bookkeeping.
func (p Policy) Decide(meta state.Meta, step string, err error) Decision {
	m := meta.Clone()
	m.MaxRetries = p.MaxRetries

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	rec := state.ErrorRecord{Step: step, Attempt: m.RetryCount + 1, Message: msg}
	m.Errors = append(m.Errors, rec)
	m.Log = append(m.Log, rec.String())

	if m.RetryCount < p.MaxRetries {
		m.RetryCount++
		m.FailedStep = step
		m.Log = append(m.Log, fmt.Sprintf("Retry %d/%d for %s", m.RetryCount, p.MaxRetries, step))
		return Decision{
			Action: Retry,
			Target: step,
			Delay:  p.Backoff.Delay(m.RetryCount),
			Meta:   m,
		}
	}

	if m.LastSuccessfulStep != "" && (p.MaxRollbacks == 0 || m.Rollbacks < p.MaxRollbacks) {
		m.RetryCount = 0
		m.FailedStep = step
		m.Rollbacks++
		m.Log = append(m.Log, fmt.Sprintf("Rolling back to %s", m.LastSuccessfulStep))
		return Decision{
			Action: Rollback,
			Target: m.LastSuccessfulStep,
			Meta:   m,
		}
	}

	m.FailedStep = step
	m.Log = append(m.Log, fmt.Sprintf("Run failed at %s: no recovery possible", step))
	return Decision{Action: Fail, Meta: m}
}

// Succeeded returns meta updated for a completed step: RetryCount resets
// and step becomes the rollback target.
func Succeeded(meta state.Meta, step string) state.Meta {
	m := meta.Clone()
	m.RetryCount = 0
	m.FailedStep = ""
	m.LastSuccessfulStep = step
	m.Log = append(m.Log, fmt.Sprintf("%s completed", step))
	return m
}
