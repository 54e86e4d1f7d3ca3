package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

const historyLimit = 10

func historyCommand() *Command {
	return &Command{
		Definition: Definition{
			Name:        "history",
			Description: "Show recent changes, optionally for one location",
			Options:     []Option{locationOption},
		},
		Handler: handleHistory,
	}
}

func handleHistory(ctx context.Context, env *Env, req Request) Response {
	if env.History == nil {
		return Failure(ErrCodeNotFound, "📜 History is not enabled.")
	}
	raw, _ := req.String("location")
	name := coords.FormatName(raw)

	changes, err := env.History.RecentChanges(ctx, name, historyLimit)
	if err != nil {
		env.logf("history query failed location=%q err=%v", name, err)
		return Failure(ErrCodeInternal, "⚠️ Could not read the history.")
	}
	if len(changes) == 0 {
		if name != "" {
			return Response{Content: fmt.Sprintf("📜 No recorded changes for **%s**.", name)}
		}
		return Response{Content: "📜 No recorded changes yet."}
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "📜 **Recent changes for %s**", name)
	} else {
		b.WriteString("📜 **Recent changes**")
	}
	for _, c := range changes {
		fmt.Fprintf(&b, "\n`%s` %s", c.Time.UTC().Format("2006-01-02 15:04"), DescribeChange(c))
	}
	return Response{Content: b.String()}
}

// DescribeChange renders one change as a line of text.
func DescribeChange(c coords.Change) string {
	who := c.UserName
	if who == "" {
		who = c.UserID
	}
	where := c.Dimension.Emoji() + " " + c.Dimension.Label()
	var what string
	switch c.Action {
	case coords.ActionSave:
		what = fmt.Sprintf("saved **%s** in %s at %s", c.Location, where, coordOrDash(c.Coordinate))
		if c.Previous != nil {
			what += fmt.Sprintf(" (was %s)", c.Previous)
		}
	case coords.ActionEdit:
		what = fmt.Sprintf("moved **%s** in %s from %s to %s", c.Location, where, coordOrDash(c.Previous), coordOrDash(c.Coordinate))
	case coords.ActionDelete:
		what = fmt.Sprintf("deleted **%s** from %s", c.Location, where)
	case coords.ActionClear:
		what = fmt.Sprintf("cleared %d coordinates from %s", c.Removed, where)
	default:
		what = string(c.Action)
	}
	return what + " by " + who
}

func coordOrDash(c *coords.Coordinate) string {
	if c == nil {
		return "-"
	}
	return c.String()
}
