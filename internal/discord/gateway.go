// Package discord connects the command table to a Discord bot session.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jcvilalta/MineDeezCoords/internal/commands"
	"github.com/jcvilalta/MineDeezCoords/internal/dialog"
)

type Options struct {
	Token   string
	AppID   string
	GuildID string
	Logger  *log.Logger
}

// Gateway receives interactions and answers them through the command
// table. Commands are registered on every Ready event.
type Gateway struct {
	session *discordgo.Session
	table   *commands.Table
	env     *commands.Env
	appID   string
	guildID string
	logger  *log.Logger

	mu  sync.Mutex
	ctx context.Context
	wg  sync.WaitGroup
}

func New(opts Options, table *commands.Table) (*Gateway, error) {
	if opts.Token == "" {
		return nil, errors.New("discord token is required")
	}
	s, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return &Gateway{
		session: s,
		table:   table,
		appID:   opts.AppID,
		guildID: opts.GuildID,
		logger:  opts.Logger,
		ctx:     context.Background(),
	}, nil
}

func (g *Gateway) Session() *discordgo.Session { return g.session }

// Run opens the session with env and blocks until ctx is done. Pending
// delete dialogs are cancelled on the way out.
func (g *Gateway) Run(ctx context.Context, env *commands.Env) error {
	g.mu.Lock()
	g.ctx = ctx
	g.env = env
	g.mu.Unlock()

	removeReady := g.session.AddHandler(g.onReady)
	removeInteraction := g.session.AddHandler(g.onInteraction)
	defer removeReady()
	defer removeInteraction()

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	<-ctx.Done()
	if env.Dialogs != nil {
		env.Dialogs.CancelAll()
	}
	g.wg.Wait()
	return g.session.Close()
}

// SyncCommands replaces the registered commands with the table.
func (g *Gateway) SyncCommands(ctx context.Context) (int, error) {
	appID := g.appID
	if appID == "" && g.session.State != nil && g.session.State.User != nil {
		appID = g.session.State.User.ID
	}
	if appID == "" {
		return 0, errors.New("application id unknown before ready")
	}
	registered, err := g.session.ApplicationCommandBulkOverwrite(appID, g.guildID, ApplicationCommands(g.table), discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("bulk overwrite commands: %w", err)
	}
	return len(registered), nil
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.logf("discord ready user=%s guilds=%d", r.User.Username, len(r.Guilds))
	ctx, cancel := context.WithTimeout(g.baseContext(), 30*time.Second)
	defer cancel()
	n, err := g.SyncCommands(ctx)
	if err != nil {
		g.logf("command sync failed err=%v", err)
		return
	}
	g.logf("command sync ok count=%d guild=%q", n, g.guildID)
}

func (g *Gateway) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic == nil || ic.Interaction == nil {
		return
	}
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		g.handleCommand(ic.Interaction)
	case discordgo.InteractionApplicationCommandAutocomplete:
		g.handleAutocomplete(ic.Interaction)
	case discordgo.InteractionMessageComponent:
		g.handleComponent(ic.Interaction)
	}
}

func (g *Gateway) handleCommand(i *discordgo.Interaction) {
	ctx := g.baseContext()
	data := i.ApplicationCommandData()
	values, _ := requestOptions(data.Options)
	req := commands.Request{
		Command:   data.Name,
		User:      userFrom(i),
		ChannelID: i.ChannelID,
		Options:   values,
	}

	if err := g.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx)); err != nil {
		g.logf("interaction defer failed command=%s err=%v", data.Name, err)
		return
	}

	resp := g.table.Dispatch(ctx, g.env, req)
	if resp.Prompt != nil && resp.Prompt.Dialog != nil {
		g.sendPrompt(ctx, i, req, resp.Prompt)
		return
	}
	g.reply(ctx, i, resp)
}

// sendPrompt shows the confirmation buttons and waits for the answer in
// the background.
func (g *Gateway) sendPrompt(ctx context.Context, i *discordgo.Interaction, req commands.Request, p *commands.Prompt) {
	d := p.Dialog
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Confirm", Style: discordgo.DangerButton, CustomID: dialog.CustomID(dialog.ActionConfirm, d.ID)},
			discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: dialog.CustomID(dialog.ActionCancel, d.ID)},
		}},
	}
	text := p.Text
	if _, err := g.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content:    &text,
		Components: &components,
	}, discordgo.WithContext(ctx)); err != nil {
		g.logf("prompt send failed dialog=%s err=%v", d.ID, err)
		d.Cancel()
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		resp := commands.AwaitDelete(ctx, g.env, d, req)
		// The dialog may have ended because ctx is done; the edit still
		// needs a live context.
		editCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		none := []discordgo.MessageComponent{}
		content := resp.Content
		if _, err := g.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{
			Content:    &content,
			Components: &none,
		}, discordgo.WithContext(editCtx)); err != nil {
			g.logf("prompt result edit failed dialog=%s err=%v", d.ID, err)
		}
	}()
}

// reply turns a response into the final state of a deferred interaction.
// Ephemeral replies replace the public placeholder with a private followup.
func (g *Gateway) reply(ctx context.Context, i *discordgo.Interaction, resp commands.Response) {
	if resp.Dismiss && !resp.Ephemeral {
		if err := g.session.InteractionResponseDelete(i, discordgo.WithContext(ctx)); err != nil {
			g.logf("interaction delete failed err=%v", err)
		}
		return
	}

	content := resp.Content
	var embeds []*discordgo.MessageEmbed
	if resp.Summary != nil {
		embeds = append(embeds, SummaryEmbed(*resp.Summary))
		content = ""
	}
	var files []*discordgo.File
	if resp.Attachment != nil {
		files = append(files, &discordgo.File{
			Name:        resp.Attachment.Name,
			ContentType: "application/json",
			Reader:      bytes.NewReader(resp.Attachment.Data),
		})
	}

	if resp.Ephemeral {
		if err := g.session.InteractionResponseDelete(i, discordgo.WithContext(ctx)); err != nil {
			g.logf("interaction delete failed err=%v", err)
		}
		if _, err := g.session.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
			Content: content,
			Embeds:  embeds,
			Files:   files,
			Flags:   discordgo.MessageFlagsEphemeral,
		}, discordgo.WithContext(ctx)); err != nil {
			g.logf("followup send failed code=%s err=%v", resp.Code, err)
		}
		return
	}

	if _, err := g.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &embeds,
		Files:   files,
	}, discordgo.WithContext(ctx)); err != nil {
		g.logf("interaction edit failed code=%s err=%v", resp.Code, err)
	}
}

func (g *Gateway) handleAutocomplete(i *discordgo.Interaction) {
	ctx := g.baseContext()
	data := i.ApplicationCommandData()
	values, focused := requestOptions(data.Options)
	req := commands.Request{Command: data.Name, User: userFrom(i), ChannelID: i.ChannelID, Options: values}
	names := g.table.Autocomplete(ctx, g.env, req, focused)
	if err := g.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: autocompleteChoices(names)},
	}, discordgo.WithContext(ctx)); err != nil {
		g.logf("autocomplete respond failed command=%s err=%v", data.Name, err)
	}
}

func (g *Gateway) handleComponent(i *discordgo.Interaction) {
	ctx := g.baseContext()
	action, id, ok := dialog.ParseCustomID(i.MessageComponentData().CustomID)
	if !ok || g.env == nil || g.env.Dialogs == nil {
		return
	}
	user := userFrom(i)
	_, err := g.env.Dialogs.Resolve(id, action, user.ID)
	if err == nil {
		// The waiting goroutine edits the prompt with the result.
		if err := g.session.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		}, discordgo.WithContext(ctx)); err != nil {
			g.logf("component ack failed dialog=%s err=%v", id, err)
		}
		return
	}

	msg := "⌛ This confirmation is no longer active."
	if errors.Is(err, dialog.ErrNotRequester) {
		msg = "⛔ Only the person who asked for the deletion can answer."
	}
	g.logf("component rejected dialog=%s user=%s err=%v", id, user.ID, err)
	if err := g.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: msg, Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx)); err != nil {
		g.logf("component reply failed dialog=%s err=%v", id, err)
	}
}

func (g *Gateway) baseContext() context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctx
}

func (g *Gateway) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}
