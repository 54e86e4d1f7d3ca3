package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

const topContributors = 5

func statsCommand() *Command {
	return &Command{
		Definition: Definition{
			Name:        "stats",
			Description: "Show how many coordinates are saved and who saved them",
		},
		Handler: handleStats,
	}
}

func handleStats(ctx context.Context, env *Env, req Request) Response {
	doc, err := env.Store.Load(ctx)
	if err != nil {
		return env.storeFailure("stats", err)
	}

	var b strings.Builder
	b.WriteString("📊 **Coordinate statistics**\n")
	for _, d := range coords.AllDimensions() {
		fmt.Fprintf(&b, "%s %s: %d\n", d.Emoji(), d.Label(), doc.Count(d))
	}
	fmt.Fprintf(&b, "📍 Total: %d\n", doc.Total())

	last := "never"
	if ts, ok := doc.LastUpdated(); ok {
		last = describeRelative(ts, env.now())
	}
	fmt.Fprintf(&b, "🕒 Last update: %s\n", last)

	if env.History != nil {
		if n, err := env.History.CountChanges(ctx); err != nil {
			env.logf("stats history count failed err=%v", err)
		} else {
			fmt.Fprintf(&b, "📜 Recorded changes: %d\n", n)
		}
	}

	top := rankContributors(doc.Metadata.UserActivity, topContributors)
	if len(top) > 0 {
		b.WriteString("\n🏆 **Top contributors**\n")
		for i, c := range top {
			fmt.Fprintf(&b, "%d. <@%s> (%d)\n", i+1, c.userID, c.count)
		}
	}
	return Response{Content: strings.TrimRight(b.String(), "\n")}
}

type contributor struct {
	userID string
	count  int
}

func rankContributors(activity map[string]int, limit int) []contributor {
	out := make([]contributor, 0, len(activity))
	for id, n := range activity {
		if n > 0 {
			out = append(out, contributor{userID: id, count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].userID < out[j].userID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func describeRelative(when, now time.Time) string {
	if when.IsZero() {
		return "never"
	}
	if now.Before(when) {
		now = when
	}
	diff := now.Sub(when)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff/time.Minute), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff/time.Hour), "hour") + " ago"
	case diff < 30*24*time.Hour:
		return plural(int(diff/(24*time.Hour)), "day") + " ago"
	}
	return when.UTC().Format("2006-01-02")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
