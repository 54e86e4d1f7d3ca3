package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

type OptionKind int

const (
	OptionString OptionKind = iota + 1
	OptionInteger
)

type Choice struct {
	Name  string
	Value string
}

type Option struct {
	Name         string
	Description  string
	Kind         OptionKind
	Required     bool
	Autocomplete bool
	Choices      []Choice
}

// Definition describes a command as it is registered with the gateway.
type Definition struct {
	Name        string
	Description string
	Options     []Option
	OwnerOnly   bool
}

type Handler func(ctx context.Context, env *Env, req Request) Response

type Command struct {
	Definition
	Handler Handler
}

// Table maps command names to commands.
type Table struct {
	byName  map[string]*Command
	ordered []*Command
}

// NewTable panics on incomplete or duplicate definitions.
func NewTable(cmds ...*Command) *Table {
	t := &Table{byName: make(map[string]*Command, len(cmds))}
	for _, cmd := range cmds {
		if cmd.Handler == nil {
			panic("commands: handler must not be nil")
		}
		key := strings.ToLower(strings.TrimSpace(cmd.Name))
		if key == "" {
			panic("commands: command must have a name")
		}
		if _, exists := t.byName[key]; exists {
			panic(fmt.Sprintf("commands: duplicate registration for %q", cmd.Name))
		}
		t.byName[key] = cmd
		t.ordered = append(t.ordered, cmd)
	}
	return t
}

// Builtin is the full command set of the bot.
func Builtin() *Table {
	return NewTable(
		saveCommand(),
		getCommand(),
		editCommand(),
		deleteCommand(),
		statsCommand(),
		backupCommand(),
		historyCommand(),
		resyncCommand(),
	)
}

func (t *Table) Find(name string) (*Command, bool) {
	cmd, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return cmd, ok
}

// All returns commands in registration order.
func (t *Table) All() []*Command {
	out := make([]*Command, len(t.ordered))
	copy(out, t.ordered)
	return out
}

func (t *Table) Dispatch(ctx context.Context, env *Env, req Request) Response {
	cmd, ok := t.Find(req.Command)
	if !ok {
		resp := Failure(ErrCodeBadRequest, "❓ Unknown command.")
		env.Metrics.ObserveCommand(req.Command, resp.Code)
		return resp
	}
	if cmd.OwnerOnly && (env.OwnerID == "" || req.User.ID != env.OwnerID) {
		resp := Failure(ErrCodeNoPermission, "⛔ Only the bot owner can use this command.")
		env.Metrics.ObserveCommand(cmd.Name, resp.Code)
		env.logf("command denied name=%s user=%s", cmd.Name, req.User.ID)
		return resp
	}

	start := time.Now()
	resp := cmd.Handler(ctx, env, req)
	env.Metrics.ObserveCommand(cmd.Name, resp.Code)
	env.logf("command name=%s user=%s channel=%s code=%q ms=%d",
		cmd.Name, req.User.ID, req.ChannelID, resp.Code, time.Since(start).Milliseconds())
	return resp
}

// Autocomplete suggests location names for the focused option of req.
func (t *Table) Autocomplete(ctx context.Context, env *Env, req Request, focused string) []string {
	cmd, ok := t.Find(req.Command)
	if !ok {
		return nil
	}
	for _, opt := range cmd.Options {
		if opt.Name != focused || !opt.Autocomplete {
			continue
		}
		doc, err := env.Store.Load(ctx)
		if err != nil {
			env.logf("autocomplete load failed err=%v", err)
			return nil
		}
		prefix, _ := req.String(focused)
		return doc.Suggest(prefix, coords.DefaultSuggestLimit)
	}
	return nil
}

var (
	locationOption = Option{
		Name:         "location",
		Description:  "Location name",
		Kind:         OptionString,
		Autocomplete: true,
	}
	dimensionOption = Option{
		Name:        "dimension",
		Description: "Dimension",
		Kind:        OptionString,
		Choices: []Choice{
			{Name: "Overworld", Value: string(coords.Overworld)},
			{Name: "Nether", Value: string(coords.Nether)},
			{Name: "End", Value: string(coords.End)},
		},
	}
)

func required(o Option) Option {
	o.Required = true
	return o
}

func axisOption(name string) Option {
	return Option{Name: name, Description: strings.ToUpper(name) + " coordinate", Kind: OptionInteger, Required: true}
}
