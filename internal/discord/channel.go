package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
)

// JSON error codes returned by the Discord API.
const (
	codeUnknownMessage     = 10008
	codeUnknownChannel     = 10003
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

// Channel implements mirror.Channel on a discordgo session.
type Channel struct {
	s *discordgo.Session
}

func NewChannel(s *discordgo.Session) *Channel { return &Channel{s: s} }

func (c *Channel) FetchMessage(ctx context.Context, channelID string, id coords.MessageID) error {
	_, err := c.s.ChannelMessage(channelID, id.String(), discordgo.WithContext(ctx))
	return classify(err)
}

func (c *Channel) EditMessage(ctx context.Context, channelID string, id coords.MessageID, s mirror.Summary) error {
	_, err := c.s.ChannelMessageEditEmbed(channelID, id.String(), SummaryEmbed(s), discordgo.WithContext(ctx))
	return classify(err)
}

func (c *Channel) SendMessage(ctx context.Context, channelID string, s mirror.Summary) (coords.MessageID, error) {
	msg, err := c.s.ChannelMessageSendEmbed(channelID, SummaryEmbed(s), discordgo.WithContext(ctx))
	if err != nil {
		return 0, classify(err)
	}
	id, err := coords.ParseMessageID(msg.ID)
	if err != nil {
		return 0, fmt.Errorf("parse message id %q: %w", msg.ID, err)
	}
	return id, nil
}

// classify maps REST failures onto the mirror sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case codeUnknownMessage, codeUnknownChannel:
			return fmt.Errorf("%w: %v", mirror.ErrMessageNotFound, err)
		case codeMissingAccess, codeMissingPermissions:
			return fmt.Errorf("%w: %v", mirror.ErrForbidden, err)
		}
	}
	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", mirror.ErrMessageNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", mirror.ErrForbidden, err)
		}
	}
	return err
}
