package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
)

// Discord embed limits.
const (
	maxFieldValue = 1024
	maxFields     = 25
	maxChoiceName = 100
)

const codeFence = "```"

// SummaryEmbed renders a summary as one embed with a field per dimension.
// Dimensions whose lines do not fit one field continue in further fields.
func SummaryEmbed(s mirror.Summary) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       s.Title,
		Description: s.Description,
		Color:       s.Color,
	}
	for _, b := range s.Blocks {
		e.Fields = append(e.Fields, blockFields(b)...)
	}
	if len(e.Fields) > maxFields {
		hidden := len(e.Fields) - (maxFields - 1)
		e.Fields = append(e.Fields[:maxFields-1], &discordgo.MessageEmbedField{
			Name:  "…",
			Value: fmt.Sprintf("%d more sections not shown", hidden),
		})
	}
	if s.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: s.Footer}
	}
	return e
}

func blockFields(b mirror.Block) []*discordgo.MessageEmbedField {
	if b.Empty() {
		return []*discordgo.MessageEmbedField{{Name: b.Heading, Value: b.Body()}}
	}
	// Room left for the fences and their newlines.
	budget := maxFieldValue - 2*len(codeFence) - 2

	var out []*discordgo.MessageEmbedField
	name := b.Heading
	var cur []string
	size := 0
	flush := func() {
		out = append(out, &discordgo.MessageEmbedField{
			Name:  name,
			Value: codeFence + "\n" + strings.Join(cur, "\n") + "\n" + codeFence,
		})
		name = b.Heading + " (cont.)"
		cur = cur[:0]
		size = 0
	}
	for _, line := range b.Lines {
		if len(line) > budget {
			line = truncate(line, budget)
		}
		add := len(line)
		if len(cur) > 0 {
			add++
		}
		if size+add > budget {
			flush()
			add = len(line)
		}
		cur = append(cur, line)
		size += add
	}
	if len(cur) > 0 {
		flush()
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i+len("…") > n {
			break
		}
		cut = i
	}
	return s[:cut] + "…"
}

func choiceName(s string) string {
	r := []rune(s)
	if len(r) <= maxChoiceName {
		return s
	}
	return string(r[:maxChoiceName-1]) + "…"
}
