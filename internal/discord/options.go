package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/jcvilalta/MineDeezCoords/internal/commands"
)

// ApplicationCommands converts the command table into the payload of a bulk
// overwrite.
func ApplicationCommands(table *commands.Table) []*discordgo.ApplicationCommand {
	cmds := table.All()
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		ac := &discordgo.ApplicationCommand{
			Name:        c.Name,
			Description: c.Description,
		}
		if c.OwnerOnly {
			perm := int64(discordgo.PermissionAdministrator)
			ac.DefaultMemberPermissions = &perm
		}
		for _, o := range c.Options {
			ac.Options = append(ac.Options, commandOption(o))
		}
		out = append(out, ac)
	}
	return out
}

func commandOption(o commands.Option) *discordgo.ApplicationCommandOption {
	opt := &discordgo.ApplicationCommandOption{
		Name:         o.Name,
		Description:  o.Description,
		Required:     o.Required,
		Autocomplete: o.Autocomplete,
		Type:         discordgo.ApplicationCommandOptionString,
	}
	if o.Kind == commands.OptionInteger {
		opt.Type = discordgo.ApplicationCommandOptionInteger
	}
	for _, ch := range o.Choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: ch.Name, Value: ch.Value})
	}
	return opt
}

// requestOptions flattens interaction options into request values and
// reports the option focused by an autocomplete interaction.
func requestOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) (values map[string]any, focused string) {
	values = make(map[string]any, len(opts))
	for _, o := range opts {
		if o == nil {
			continue
		}
		if len(o.Options) > 0 {
			sub, f := requestOptions(o.Options)
			for k, v := range sub {
				values[k] = v
			}
			if f != "" {
				focused = f
			}
			continue
		}
		values[o.Name] = o.Value
		if o.Focused {
			focused = o.Name
		}
	}
	return values, focused
}

func userFrom(i *discordgo.Interaction) commands.User {
	var u *discordgo.User
	nick := ""
	if i.Member != nil && i.Member.User != nil {
		u = i.Member.User
		nick = i.Member.Nick
	} else if i.User != nil {
		u = i.User
	}
	if u == nil {
		return commands.User{}
	}
	name := nick
	if name == "" {
		name = u.GlobalName
	}
	if name == "" {
		name = u.Username
	}
	return commands.User{ID: u.ID, Name: name}
}

func autocompleteChoices(names []string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(names))
	for _, n := range names {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: choiceName(n), Value: n})
	}
	return out
}
