package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/solana"
)

// TxState is the lifecycle state of one swap transaction.
type TxState string

const (
	StateBuilt     TxState = "BUILT"
	StateSigned    TxState = "SIGNED"
	StateSubmitted TxState = "SUBMITTED"
	StateConfirmed TxState = "CONFIRMED"
	StateFailed    TxState = "FAILED"
)

// TxEvent triggers a state transition.
type TxEvent string

const (
	EventSign    TxEvent = "SIGN"
	EventSubmit  TxEvent = "SUBMIT"
	EventConfirm TxEvent = "CONFIRM"
	EventFail    TxEvent = "FAIL"
)

type transition struct {
	from  TxState
	event TxEvent
}

// transitions is the authoritative transition table.
var transitions = map[transition]TxState{
	{StateBuilt, EventSign}:        StateSigned,
	{StateSigned, EventSubmit}:     StateSubmitted,
	{StateSigned, EventFail}:       StateFailed,
	{StateSubmitted, EventConfirm}: StateConfirmed,
	{StateSubmitted, EventFail}:    StateFailed,
}

// SignData accompanies EventSign.
type SignData struct {
	SignedTx  string
	Signature solana.Signature
}

// SubmitData accompanies EventSubmit.
type SubmitData struct {
	Attempts int
}

// FailData accompanies EventFail.
type FailData struct {
	Reason string
}

// Lifecycle tracks a built transaction until it is confirmed or failed.
// Safe for concurrent access.
type Lifecycle struct {
	mu sync.Mutex

	TraceID       string
	State         TxState
	UnsignedTx    string
	SignedTx      string
	Signature     solana.Signature
	Attempts      int
	FailureReason string
	CreatedAt     time.Time
	SignedAt      time.Time
	SubmittedAt   time.Time
	CompletedAt   time.Time
}

// NewLifecycle starts a lifecycle in the BUILT state.
func NewLifecycle(traceID, unsignedTx string) *Lifecycle {
	return &Lifecycle{
		TraceID:    traceID,
		State:      StateBuilt,
		UnsignedTx: unsignedTx,
		CreatedAt:  time.Now(),
	}
}

// Transition advances the lifecycle. data must match the event:
//   - EventSign:   *SignData
//   - EventSubmit: *SubmitData
//   - EventFail:   *FailData
//   - EventConfirm: nil
func (l *Lifecycle) Transition(event TxEvent, data any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.State
	next, ok := transitions[transition{from: l.State, event: event}]
	if !ok {
		return fmt.Errorf("invalid transition: state=%s event=%s", l.State, event)
	}

	now := time.Now()
	switch event {
	case EventSign:
		sd, ok := data.(*SignData)
		if !ok || sd == nil || sd.Signature == "" {
			return fmt.Errorf("event %s requires *SignData, got %T", event, data)
		}
		l.SignedTx = sd.SignedTx
		l.Signature = sd.Signature
		l.SignedAt = now

	case EventSubmit:
		if sd, ok := data.(*SubmitData); ok && sd != nil {
			l.Attempts = sd.Attempts
		}
		l.SubmittedAt = now

	case EventFail:
		if fd, ok := data.(*FailData); ok && fd != nil {
			l.FailureReason = fd.Reason
		}
	}

	l.State = next
	if l.isTerminalLocked() {
		l.CompletedAt = now
	}

	log.Debug().
		Str("trace_id", l.TraceID).
		Str("sig", string(l.Signature)).
		Str("prev_state", string(prev)).
		Str("event", string(event)).
		Str("new_state", string(l.State)).
		Msg("execution: transaction state transition")
	return nil
}

// IsTerminal reports whether the lifecycle has finished.
func (l *Lifecycle) IsTerminal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isTerminalLocked()
}

func (l *Lifecycle) isTerminalLocked() bool {
	return l.State == StateConfirmed || l.State == StateFailed
}

// GetState returns the current state.
func (l *Lifecycle) GetState() TxState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.State
}

// AuditStatus maps the current state to the stored transaction status.
// Anything short of submission is a failure.
func (l *Lifecycle) AuditStatus() domain.TxStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.State {
	case StateSubmitted:
		return domain.TxSubmitted
	case StateConfirmed:
		return domain.TxConfirmed
	default:
		return domain.TxFailed
	}
}
