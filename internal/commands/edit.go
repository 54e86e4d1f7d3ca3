package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

func editCommand() *Command {
	return &Command{
		Definition: Definition{
			Name:        "edit-coordinate",
			Description: "Change the coordinates of an existing location",
			Options:     entryOptions(),
		},
		Handler: handleEdit,
	}
}

func handleEdit(ctx context.Context, env *Env, req Request) Response {
	e, problem := entryFromRequest(req)
	if problem != "" {
		return Failure(ErrCodeBadRequest, problem)
	}
	name := coords.FormatName(e.raw)

	var prev coords.Coordinate
	doc, err := env.Store.Update(ctx, func(doc *coords.Document) error {
		old, ok := doc.Get(e.dimension, name)
		if !ok {
			return errEntryMissing
		}
		prev = old
		if _, err := doc.Upsert(e.dimension, name, e.coord); err != nil {
			return err
		}
		doc.RecordActivity(req.User.ID)
		return nil
	})
	if errors.Is(err, errEntryMissing) {
		return Failure(ErrCodeNotFound, fmt.Sprintf("❌ **%s** does not exist in %s. Use /save-coordinate to add it.", name, e.dimension.Label()))
	}
	if err != nil {
		return env.storeFailure("edit", err)
	}

	env.recordChange(req, coords.Change{
		Action:     coords.ActionEdit,
		Dimension:  e.dimension,
		Location:   name,
		Coordinate: &e.coord,
		Previous:   &prev,
	})
	done := fmt.Sprintf("✏️ Moved **%s** in %s %s: %s → %s", name, e.dimension.Emoji(), e.dimension.Label(), prev, e.coord)
	return env.refreshMirror(ctx, req, doc, done)
}
