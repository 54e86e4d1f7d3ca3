package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

type fakeChannel struct {
	messages map[coords.MessageID]Summary
	nextID   coords.MessageID
	editErr  error
	sendErr  error
	sends    int
	edits    int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{messages: map[coords.MessageID]Summary{}, nextID: 1000}
}

func (f *fakeChannel) FetchMessage(ctx context.Context, channelID string, id coords.MessageID) error {
	if _, ok := f.messages[id]; !ok {
		return fmt.Errorf("fetch %d: %w", id, ErrMessageNotFound)
	}
	return nil
}

func (f *fakeChannel) EditMessage(ctx context.Context, channelID string, id coords.MessageID, s Summary) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits++
	f.messages[id] = s
	return nil
}

func (f *fakeChannel) SendMessage(ctx context.Context, channelID string, s Summary) (coords.MessageID, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sends++
	f.nextID++
	f.messages[f.nextID] = s
	return f.nextID, nil
}

func TestRender_SpawnPoint(t *testing.T) {
	doc := coords.NewDocument()
	if _, err := doc.Upsert(coords.Overworld, "spawn point", coords.Coordinate{X: 100, Y: 64, Z: -200}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s := Render(doc, "steve")

	if len(s.Blocks) != 3 {
		t.Fatalf("blocks=%d want 3", len(s.Blocks))
	}
	if got, want := s.Blocks[0].Lines, "Spawn Point: X=100 Y=64 Z=-200"; len(got) != 1 || got[0] != want {
		t.Fatalf("overworld lines=%q want [%q]", got, want)
	}
	if !s.Blocks[1].Empty() || !strings.Contains(s.Blocks[1].Body(), EmptyPlaceholder) {
		t.Fatalf("nether should render placeholder, got %q", s.Blocks[1].Body())
	}
	text := s.Text()
	for _, want := range []string{Title, "🌳 **Overworld**", "👹 **Nether**", "😈 **End**", "🔄 Last updated by: steve"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "Overworld") > strings.Index(text, "Nether") || strings.Index(text, "Nether") > strings.Index(text, "End") {
		t.Fatalf("dimensions out of order:\n%s", text)
	}
}

func TestRender_NoFooterWithoutUser(t *testing.T) {
	if s := Render(coords.NewDocument(), ""); s.Footer != "" {
		t.Fatalf("footer=%q want empty", s.Footer)
	}
}

func TestReconcile_CreatesWhenUntracked(t *testing.T) {
	ch := newFakeChannel()
	state := map[string]coords.MessageID{}
	out := Reconcile(context.Background(), ch, "c1", Summary{Title: "x"}, state)
	if out.Kind != Created || out.MessageID == 0 {
		t.Fatalf("outcome=%+v want created", out)
	}
	if len(state) != 0 {
		t.Fatalf("reconcile mutated state: %v", state)
	}
	if !out.Apply(state, "c1") || state["c1"] != out.MessageID {
		t.Fatalf("apply did not record id: %v", state)
	}
}

func TestReconcile_EditsExisting(t *testing.T) {
	ch := newFakeChannel()
	ch.messages[77] = Summary{}
	state := map[string]coords.MessageID{"c1": 77}
	out := Reconcile(context.Background(), ch, "c1", Summary{Title: "new"}, state)
	if out.Kind != Edited || out.MessageID != 77 {
		t.Fatalf("outcome=%+v want edited 77", out)
	}
	if ch.sends != 0 || ch.messages[77].Title != "new" {
		t.Fatalf("sends=%d title=%q", ch.sends, ch.messages[77].Title)
	}
	if out.Apply(state, "c1") {
		t.Fatalf("edited outcome should not change state")
	}
}

func TestReconcile_ReplacesStaleMessage(t *testing.T) {
	ch := newFakeChannel()
	state := map[string]coords.MessageID{"c1": 5}
	out := Reconcile(context.Background(), ch, "c1", Summary{}, state)
	if out.Kind != Created || !errors.Is(out.Err, ErrMessageNotFound) {
		t.Fatalf("outcome=%+v want created after not found", out)
	}
	out.Apply(state, "c1")
	if state["c1"] == 5 {
		t.Fatalf("stale id kept")
	}
}

func TestReconcile_EditFailureFallsBackToSend(t *testing.T) {
	ch := newFakeChannel()
	ch.messages[9] = Summary{}
	ch.editErr = errors.New("edit rejected")
	out := Reconcile(context.Background(), ch, "c1", Summary{}, map[string]coords.MessageID{"c1": 9})
	if out.Kind != Created || ch.sends != 1 {
		t.Fatalf("outcome=%+v sends=%d", out, ch.sends)
	}
}

func TestReconcile_SendForbidden(t *testing.T) {
	ch := newFakeChannel()
	ch.sendErr = fmt.Errorf("send: %w", ErrForbidden)
	state := map[string]coords.MessageID{"c1": 5}
	out := Reconcile(context.Background(), ch, "c1", Summary{}, state)
	if out.Kind != Failed || out.Reason != ReasonPermission {
		t.Fatalf("outcome=%+v want failed/permission", out)
	}
	out.Apply(state, "c1")
	if state["c1"] != 5 {
		t.Fatalf("failed outcome changed state: %v", state)
	}

	ch.sendErr = errors.New("timeout")
	if out := Reconcile(context.Background(), ch, "c2", Summary{}, state); out.Reason != ReasonTransport {
		t.Fatalf("reason=%s want transport", out.Reason)
	}
}

func TestResyncAll(t *testing.T) {
	ch := newFakeChannel()
	ch.messages[1] = Summary{}
	state := map[string]coords.MessageID{"a": 1, "b": 2}
	outcomes := ResyncAll(context.Background(), ch, Summary{Title: "t"}, state)
	if outcomes["a"].Kind != Edited || outcomes["b"].Kind != Created {
		t.Fatalf("outcomes=%+v", outcomes)
	}
}
