package dialog

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownDialog   = errors.New("unknown or finished dialog")
	ErrNotRequester    = errors.New("only the requester can answer this dialog")
	ErrAlreadyResolved = errors.New("dialog already resolved")
	ErrUnknownAction   = errors.New("unknown dialog action")
)

type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

const customIDPrefix = "coords:dialog:"

// CustomID encodes a button payload for action on dialog id.
func CustomID(action Action, id string) string {
	return customIDPrefix + string(action) + ":" + id
}

func ParseCustomID(s string) (Action, string, bool) {
	rest, ok := strings.CutPrefix(s, customIDPrefix)
	if !ok {
		return "", "", false
	}
	action, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return "", "", false
	}
	return Action(action), id, true
}

// Manager tracks open dialogs. Resolved dialogs are forgotten immediately.
type Manager struct {
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	open map[string]*Dialog
}

func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		timeout: timeout,
		now:     time.Now,
		open:    make(map[string]*Dialog),
	}
}

func (m *Manager) Timeout() time.Duration { return m.timeout }

// Open starts a pending dialog that expires after the manager timeout.
func (m *Manager) Open(target Target, requester, channelID string) *Dialog {
	now := m.now()
	d := &Dialog{
		ID:        uuid.NewString(),
		Target:    target,
		Requester: requester,
		ChannelID: channelID,
		Opened:    now,
		Deadline:  now.Add(m.timeout),
		done:      make(chan struct{}),
		onDone:    m.forget,
	}
	m.mu.Lock()
	m.open[d.ID] = d
	m.mu.Unlock()

	d.mu.Lock()
	d.timer = time.AfterFunc(m.timeout, func() { d.resolve(Expired) })
	d.mu.Unlock()
	return d
}

func (m *Manager) Get(id string) (*Dialog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.open[id]
	return d, ok
}

// Resolve applies a button press from userID.
func (m *Manager) Resolve(id string, action Action, userID string) (State, error) {
	d, ok := m.Get(id)
	if !ok {
		return Pending, ErrUnknownDialog
	}
	if d.Requester != userID {
		return d.State(), ErrNotRequester
	}
	var applied bool
	switch action {
	case ActionConfirm:
		applied = d.Confirm()
	case ActionCancel:
		applied = d.Cancel()
	default:
		return d.State(), ErrUnknownAction
	}
	if !applied {
		return d.State(), ErrAlreadyResolved
	}
	return d.State(), nil
}

// Pending returns how many dialogs are waiting for an answer.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// CancelAll cancels every open dialog, used on shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	open := make([]*Dialog, 0, len(m.open))
	for _, d := range m.open {
		open = append(open, d)
	}
	m.mu.Unlock()
	for _, d := range open {
		d.Cancel()
	}
}

func (m *Manager) forget(d *Dialog) {
	m.mu.Lock()
	delete(m.open, d.ID)
	m.mu.Unlock()
}
