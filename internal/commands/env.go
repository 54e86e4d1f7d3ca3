package commands

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/dialog"
	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/store"
)

type ChangeRecorder interface {
	RecordChange(c coords.Change)
}

// ChangeRecorders fans a change out to every recorder.
type ChangeRecorders []ChangeRecorder

func (rs ChangeRecorders) RecordChange(c coords.Change) {
	for _, r := range rs {
		if r != nil {
			r.RecordChange(c)
		}
	}
}

type HistoryReader interface {
	RecentChanges(ctx context.Context, location string, limit int) ([]coords.Change, error)
	CountChanges(ctx context.Context) (int, error)
}

type BackupSource interface {
	Latest() (string, error)
}

type CommandSyncer interface {
	SyncCommands(ctx context.Context) (int, error)
}

type SummaryPublisher interface {
	Publish(s mirror.Summary)
}

// Env is everything a handler may touch. Only Store is required.
type Env struct {
	Store   *store.Store
	Channel mirror.Channel
	Dialogs *dialog.Manager
	Backups BackupSource
	Changes ChangeRecorder
	History HistoryReader
	Syncer  CommandSyncer
	Feed    SummaryPublisher
	OwnerID string
	Logger  *log.Logger
	Metrics *Metrics
	Now     func() time.Time
}

func (env *Env) now() time.Time {
	if env.Now != nil {
		return env.Now()
	}
	return time.Now()
}

func (env *Env) logf(format string, args ...any) {
	if env.Logger != nil {
		env.Logger.Printf(format, args...)
	}
}

func (env *Env) recordChange(req Request, c coords.Change) {
	if env.Changes == nil {
		return
	}
	c.Time = env.now().UTC()
	c.UserID = req.User.ID
	c.UserName = req.User.Name
	c.ChannelID = req.ChannelID
	env.Changes.RecordChange(c)
}

// refreshMirror publishes the new summary and reconciles the mirror of the
// request channel. done is the reply used when the mirror is up to date.
func (env *Env) refreshMirror(ctx context.Context, req Request, doc *coords.Document, done string) Response {
	summary := mirror.Render(doc, req.User.Name)
	if env.Feed != nil {
		env.Feed.Publish(summary)
	}
	if env.Channel == nil || req.ChannelID == "" {
		return Response{Content: done}
	}

	out := mirror.Reconcile(ctx, env.Channel, req.ChannelID, summary, doc.Messages)
	env.Metrics.ObserveMirror(out.Kind)
	switch out.Kind {
	case mirror.Failed:
		env.logf("mirror reconcile channel=%s outcome=failed reason=%s err=%v", req.ChannelID, out.Reason, out.Err)
		if out.Reason == mirror.ReasonPermission {
			return Failure(ErrCodeNoPermission, "❌ Missing permissions!")
		}
		return Failure(ErrCodeInternal, "❌ Could not update the coordinates message.")
	case mirror.Created:
		if out.Err != nil {
			env.logf("mirror reconcile channel=%s outcome=created replaced_err=%v", req.ChannelID, out.Err)
		}
		_, err := env.Store.Update(ctx, func(d *coords.Document) error {
			out.Apply(d.Messages, req.ChannelID)
			return nil
		})
		if err != nil {
			env.logf("mirror record failed channel=%s message=%s err=%v", req.ChannelID, out.MessageID, err)
		}
	}
	return Response{Content: done, Dismiss: true}
}

// ResyncMirrors re-renders every tracked mirror, for use after the document
// changed outside of a command.
func ResyncMirrors(ctx context.Context, env *Env) (map[string]mirror.Outcome, error) {
	doc, err := env.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	summary := mirror.Render(doc, "")
	if env.Feed != nil {
		env.Feed.Publish(summary)
	}
	if env.Channel == nil {
		return nil, nil
	}
	outcomes := mirror.ResyncAll(ctx, env.Channel, summary, doc.Messages)
	created := false
	for channelID, out := range outcomes {
		env.Metrics.ObserveMirror(out.Kind)
		if out.Kind == mirror.Failed {
			env.logf("mirror resync channel=%s outcome=failed reason=%s err=%v", channelID, out.Reason, out.Err)
		}
		if out.Kind == mirror.Created {
			created = true
		}
	}
	if created {
		_, err = env.Store.Update(ctx, func(d *coords.Document) error {
			for channelID, out := range outcomes {
				out.Apply(d.Messages, channelID)
			}
			return nil
		})
	}
	return outcomes, err
}

// storeFailure turns an error from a store update into a reply.
func (env *Env) storeFailure(op string, err error) Response {
	switch {
	case errors.Is(err, coords.ErrEmptyName):
		return Failure(ErrCodeBadRequest, "❌ The location name cannot be empty.")
	case errors.Is(err, coords.ErrUnknownDimension):
		return Failure(ErrCodeBadRequest, "❌ Unknown dimension. Use overworld, nether or end.")
	}
	env.logf("store %s failed err=%v", op, err)
	return Failure(ErrCodeInternal, "⚠️ Could not access the saved coordinates, try again later.")
}
