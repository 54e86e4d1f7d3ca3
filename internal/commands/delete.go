package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/dialog"
)

var errNothingToDelete = errors.New("nothing to delete")

func deleteCommand() *Command {
	return &Command{
		Definition: Definition{
			Name:        "delete",
			Description: "Delete a location from every dimension, or clear one dimension",
			Options:     []Option{locationOption, dimensionOption},
		},
		Handler: handleDelete,
	}
}

// handleDelete only opens the confirmation dialog. The gateway shows the
// prompt and then calls AwaitDelete.
func handleDelete(ctx context.Context, env *Env, req Request) Response {
	rawLoc, hasLoc := req.String("location")
	rawDim, hasDim := req.String("dimension")
	switch {
	case hasLoc && hasDim:
		return Failure(ErrCodeBadRequest, "ℹ️ Choose either a location or a dimension, not both.")
	case !hasLoc && !hasDim:
		return Failure(ErrCodeBadRequest, "ℹ️ Tell me what to delete: a location, or a dimension to clear.")
	}
	if env.Dialogs == nil {
		return Failure(ErrCodeInternal, "⚠️ Deletion is not available right now.")
	}

	doc, err := env.Store.Load(ctx)
	if err != nil {
		return env.storeFailure("delete", err)
	}

	var target dialog.Target
	var question string
	if hasLoc {
		name := coords.FormatName(rawLoc)
		matches := doc.Lookup(name)
		if len(matches) == 0 {
			return Failure(ErrCodeNotFound, fmt.Sprintf("❌ **%s** is not saved in any dimension.", name))
		}
		target = dialog.LocationTarget(name)
		question = fmt.Sprintf("⚠️ Delete **%s** from %s?", name, dimensionList(matches))
	} else {
		dim, err := coords.ParseDimension(rawDim)
		if err != nil {
			return Failure(ErrCodeBadRequest, "❌ Unknown dimension. Use overworld, nether or end.")
		}
		n := doc.Count(dim)
		if n == 0 {
			return Failure(ErrCodeNotFound, fmt.Sprintf("🚫 %s has no coordinates to delete.", dim.Label()))
		}
		target = dialog.DimensionTarget(dim)
		question = fmt.Sprintf("⚠️ Delete all %d coordinates in %s %s?", n, dim.Emoji(), dim.Label())
	}

	d := env.Dialogs.Open(target, req.User.ID, req.ChannelID)
	env.Metrics.ObserveDialog("opened")
	env.logf("dialog opened id=%s target=%q user=%s", d.ID, target.Describe(), req.User.ID)
	text := fmt.Sprintf("%s This cannot be undone. (expires in %s)", question, env.Dialogs.Timeout().Round(time.Second))
	return Response{Content: text, Prompt: &Prompt{Dialog: d, Text: text}}
}

// AwaitDelete waits for the answer to a delete prompt and applies the
// deletion when it was confirmed.
func AwaitDelete(ctx context.Context, env *Env, d *dialog.Dialog, req Request) Response {
	state := d.Wait(ctx)
	env.Metrics.ObserveDialog(state.String())
	env.logf("dialog resolved id=%s state=%s", d.ID, state)
	switch state {
	case dialog.Cancelled:
		return Response{Content: "❎ Deletion cancelled. Nothing was removed.", Code: ErrCodeCancelled}
	case dialog.Expired:
		return Response{Content: "⌛ No answer in time. Nothing was removed.", Code: ErrCodeExpired}
	}
	return applyDelete(ctx, env, d.Target, req)
}

func applyDelete(ctx context.Context, env *Env, target dialog.Target, req Request) Response {
	var removed []coords.Match
	var cleared int
	doc, err := env.Store.Update(ctx, func(doc *coords.Document) error {
		switch target.Kind {
		case dialog.TargetLocation:
			removed = doc.Lookup(target.Location)
			if !doc.DeleteLocation(target.Location) {
				return errNothingToDelete
			}
		case dialog.TargetDimension:
			cleared = doc.ClearDimension(target.Dimension)
			if cleared == 0 {
				return errNothingToDelete
			}
		}
		return nil
	})
	if errors.Is(err, errNothingToDelete) {
		return Failure(ErrCodeConflict, "❌ Nothing left to delete, it was already removed.")
	}
	if err != nil {
		return env.storeFailure("delete", err)
	}

	var done string
	if target.Kind == dialog.TargetLocation {
		for _, m := range removed {
			prev := m.Coordinate
			env.recordChange(req, coords.Change{
				Action:    coords.ActionDelete,
				Dimension: m.Dimension,
				Location:  target.Location,
				Previous:  &prev,
			})
		}
		done = fmt.Sprintf("🗑️ Deleted **%s** from %s.", target.Location, dimensionList(removed))
	} else {
		env.recordChange(req, coords.Change{
			Action:    coords.ActionClear,
			Dimension: target.Dimension,
			Removed:   cleared,
		})
		done = fmt.Sprintf("🗑️ Cleared %d coordinates from %s %s.", cleared, target.Dimension.Emoji(), target.Dimension.Label())
	}

	resp := env.refreshMirror(ctx, req, doc, done)
	resp.Dismiss = false
	return resp
}

func dimensionList(matches []coords.Match) string {
	out := ""
	for i, m := range matches {
		switch {
		case i == 0:
		case i == len(matches)-1:
			out += " and "
		default:
			out += ", "
		}
		out += m.Dimension.Emoji() + " " + m.Dimension.Label()
	}
	return out
}
