package mirror

import (
	"context"
	"errors"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrForbidden       = errors.New("missing permissions")
)

// Channel is the part of the chat platform the mirror needs. Errors should
// wrap ErrMessageNotFound or ErrForbidden when they mean that.
type Channel interface {
	FetchMessage(ctx context.Context, channelID string, id coords.MessageID) error
	EditMessage(ctx context.Context, channelID string, id coords.MessageID, s Summary) error
	SendMessage(ctx context.Context, channelID string, s Summary) (coords.MessageID, error)
}

type OutcomeKind int

const (
	Edited OutcomeKind = iota + 1
	Created
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Edited:
		return "edited"
	case Created:
		return "created"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type FailureReason string

const (
	ReasonPermission FailureReason = "permission"
	ReasonTransport  FailureReason = "transport"
)

type Outcome struct {
	Kind      OutcomeKind
	MessageID coords.MessageID
	Reason    FailureReason
	// Err is the send error for Failed, or the edit error that caused a
	// replacement for Created.
	Err error
}

// Apply records a newly created mirror in state. Other outcomes leave state
// unchanged.
func (o Outcome) Apply(state map[string]coords.MessageID, channelID string) bool {
	if o.Kind != Created {
		return false
	}
	state[channelID] = o.MessageID
	return true
}

// Reconcile brings the channel's mirror up to date: the recorded message is
// edited in place when it still exists, otherwise a new one is sent. state
// is read only.
func Reconcile(ctx context.Context, ch Channel, channelID string, s Summary, state map[string]coords.MessageID) Outcome {
	var editErr error
	if id, ok := state[channelID]; ok {
		editErr = ch.FetchMessage(ctx, channelID, id)
		if editErr == nil {
			editErr = ch.EditMessage(ctx, channelID, id, s)
		}
		if editErr == nil {
			return Outcome{Kind: Edited, MessageID: id}
		}
	}
	id, err := ch.SendMessage(ctx, channelID, s)
	if err != nil {
		reason := ReasonTransport
		if errors.Is(err, ErrForbidden) {
			reason = ReasonPermission
		}
		return Outcome{Kind: Failed, Reason: reason, Err: err}
	}
	return Outcome{Kind: Created, MessageID: id, Err: editErr}
}

// ResyncAll reconciles every channel that has a mirror on record.
func ResyncAll(ctx context.Context, ch Channel, s Summary, state map[string]coords.MessageID) map[string]Outcome {
	out := make(map[string]Outcome, len(state))
	for channelID := range state {
		if ctx.Err() != nil {
			break
		}
		out[channelID] = Reconcile(ctx, ch, channelID, s, state)
	}
	return out
}
