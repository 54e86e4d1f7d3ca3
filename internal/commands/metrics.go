package commands

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
)

type commandKey struct {
	name string
	code string
}

// Metrics counts command, mirror and dialog outcomes. A nil *Metrics
// discards everything.
type Metrics struct {
	mu       sync.Mutex
	commands map[commandKey]uint64
	mirror   map[string]uint64
	dialogs  map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		commands: make(map[commandKey]uint64),
		mirror:   make(map[string]uint64),
		dialogs:  make(map[string]uint64),
	}
}

func (m *Metrics) ObserveCommand(name, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.mu.Lock()
	m.commands[commandKey{name: name, code: code}]++
	m.mu.Unlock()
}

func (m *Metrics) ObserveMirror(kind mirror.OutcomeKind) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.mirror[kind.String()]++
	m.mu.Unlock()
}

func (m *Metrics) ObserveDialog(event string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.dialogs[event]++
	m.mu.Unlock()
}

func (m *Metrics) CommandCount(name, code string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commands[commandKey{name: name, code: code}]
}

// WritePrometheus writes every counter in the Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Fprintf(w, "# HELP coords_commands_total Commands handled, by result code.\n")
	fmt.Fprintf(w, "# TYPE coords_commands_total counter\n")
	keys := make([]commandKey, 0, len(m.commands))
	for k := range m.commands {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].code < keys[j].code
	})
	for _, k := range keys {
		fmt.Fprintf(w, "coords_commands_total{command=%q,code=%q} %d\n", k.name, k.code, m.commands[k])
	}

	fmt.Fprintf(w, "# HELP coords_mirror_reconcile_total Mirror reconciliations, by outcome.\n")
	fmt.Fprintf(w, "# TYPE coords_mirror_reconcile_total counter\n")
	writeLabeled(w, "coords_mirror_reconcile_total", "outcome", m.mirror)

	fmt.Fprintf(w, "# HELP coords_dialogs_total Delete confirmations, by event.\n")
	fmt.Fprintf(w, "# TYPE coords_dialogs_total counter\n")
	writeLabeled(w, "coords_dialogs_total", "event", m.dialogs)
}

func writeLabeled(w io.Writer, metric, label string, counts map[string]uint64) {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "%s{%s=%q} %d\n", metric, label, k, counts[k])
	}
}
