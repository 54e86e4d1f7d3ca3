package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

var errEntryMissing = errors.New("entry missing")

type entry struct {
	raw       string
	dimension coords.Dimension
	coord     coords.Coordinate
}

// entryFromRequest reads location, dimension and x/y/z. problem is a user
// facing message when something is missing or malformed.
func entryFromRequest(req Request) (e entry, problem string) {
	raw, ok := req.String("location")
	if !ok {
		return e, "❌ Give the location a name."
	}
	rawDim, _ := req.String("dimension")
	dim, err := coords.ParseDimension(rawDim)
	if err != nil {
		return e, "❌ Unknown dimension. Use overworld, nether or end."
	}
	x, okX := req.Int("x")
	y, okY := req.Int("y")
	z, okZ := req.Int("z")
	if !okX || !okY || !okZ {
		return e, "❌ X, Y and Z must all be whole numbers."
	}
	return entry{raw: raw, dimension: dim, coord: coords.Coordinate{X: x, Y: y, Z: z}}, ""
}

func entryOptions() []Option {
	return []Option{
		required(locationOption),
		required(dimensionOption),
		axisOption("x"),
		axisOption("y"),
		axisOption("z"),
	}
}

func saveCommand() *Command {
	return &Command{
		Definition: Definition{
			Name:        "save-coordinate",
			Description: "Save or overwrite a location's coordinates",
			Options:     entryOptions(),
		},
		Handler: handleSave,
	}
}

func handleSave(ctx context.Context, env *Env, req Request) Response {
	e, problem := entryFromRequest(req)
	if problem != "" {
		return Failure(ErrCodeBadRequest, problem)
	}

	var res coords.UpsertResult
	doc, err := env.Store.Update(ctx, func(doc *coords.Document) error {
		r, err := doc.Upsert(e.dimension, e.raw, e.coord)
		if err != nil {
			return err
		}
		res = r
		doc.RecordActivity(req.User.ID)
		return nil
	})
	if err != nil {
		return env.storeFailure("save", err)
	}

	env.recordChange(req, coords.Change{
		Action:     coords.ActionSave,
		Dimension:  e.dimension,
		Location:   res.Name,
		Coordinate: &e.coord,
		Previous:   res.Previous,
	})
	verb := "Saved"
	if res.Previous != nil {
		verb = "Overwrote"
	}
	done := fmt.Sprintf("✅ %s **%s** in %s %s: %s", verb, res.Name, e.dimension.Emoji(), e.dimension.Label(), e.coord)
	return env.refreshMirror(ctx, req, doc, done)
}
