package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
)

func getCommand() *Command {
	return &Command{
		Definition: Definition{
			Name:        "get-coordinates",
			Description: "Show saved coordinates",
			Options:     []Option{dimensionOption, locationOption},
		},
		Handler: handleGet,
	}
}

func handleGet(ctx context.Context, env *Env, req Request) Response {
	doc, err := env.Store.Load(ctx)
	if err != nil {
		return env.storeFailure("get", err)
	}
	rawDim, hasDim := req.String("dimension")
	rawLoc, hasLoc := req.String("location")

	var dim coords.Dimension
	if hasDim {
		if dim, err = coords.ParseDimension(rawDim); err != nil {
			return Failure(ErrCodeBadRequest, "❌ Unknown dimension. Use overworld, nether or end.")
		}
	}
	name := coords.FormatName(rawLoc)

	switch {
	case hasDim && hasLoc:
		c, ok := doc.Get(dim, name)
		if !ok {
			return Failure(ErrCodeNotFound, fmt.Sprintf("❌ **%s** is not saved in %s.", name, dim.Label()))
		}
		return Response{Content: fmt.Sprintf("%s **%s** · %s", dim.Emoji(), dim.Label(), mirror.FormatLine(name, c))}

	case hasLoc:
		matches := doc.Lookup(name)
		if len(matches) == 0 {
			return Failure(ErrCodeNotFound, fmt.Sprintf("❌ No coordinates saved for **%s**.", name))
		}
		lines := make([]string, 0, len(matches)+1)
		lines = append(lines, fmt.Sprintf("📍 **%s**", name))
		for _, m := range matches {
			lines = append(lines, fmt.Sprintf("%s **%s**: %s", m.Dimension.Emoji(), m.Dimension.Label(), m.Coordinate))
		}
		return Response{Content: strings.Join(lines, "\n")}

	case hasDim:
		return Response{Content: mirror.RenderDimension(doc, dim).Text()}
	}

	s := mirror.Render(doc, "")
	return Response{Content: s.Text(), Summary: &s}
}
