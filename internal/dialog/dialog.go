package dialog

import (
	"context"
	"sync"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

const DefaultTimeout = 30 * time.Second

type State int

const (
	Pending State = iota
	Confirmed
	Cancelled
	Expired
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	case Expired:
		return "expired"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s != Pending }

type TargetKind int

const (
	TargetLocation TargetKind = iota + 1
	TargetDimension
)

// Target is what a confirmed dialog deletes: one location across every
// dimension, or every location of one dimension.
type Target struct {
	Kind      TargetKind
	Location  string
	Dimension coords.Dimension
}

func LocationTarget(name string) Target { return Target{Kind: TargetLocation, Location: name} }

func DimensionTarget(dim coords.Dimension) Target {
	return Target{Kind: TargetDimension, Dimension: dim}
}

func (t Target) Describe() string {
	if t.Kind == TargetDimension {
		return "all coordinates in " + t.Dimension.Label()
	}
	return t.Location
}

type Dialog struct {
	ID        string
	Target    Target
	Requester string
	ChannelID string
	Opened    time.Time
	Deadline  time.Time

	mu     sync.Mutex
	state  State
	done   chan struct{}
	timer  *time.Timer
	onDone func(*Dialog)
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Done is closed once the dialog leaves Pending.
func (d *Dialog) Done() <-chan struct{} { return d.done }

func (d *Dialog) Confirm() bool { return d.resolve(Confirmed) }

func (d *Dialog) Cancel() bool { return d.resolve(Cancelled) }

// Wait blocks until the dialog is resolved. A cancelled ctx cancels the
// dialog.
func (d *Dialog) Wait(ctx context.Context) State {
	select {
	case <-d.done:
	case <-ctx.Done():
		d.Cancel()
	}
	return d.State()
}

func (d *Dialog) resolve(next State) bool {
	d.mu.Lock()
	if d.state != Pending {
		d.mu.Unlock()
		return false
	}
	d.state = next
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.done)
	onDone := d.onDone
	d.mu.Unlock()

	if onDone != nil {
		onDone(d)
	}
	return true
}
