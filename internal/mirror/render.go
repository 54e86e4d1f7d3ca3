package mirror

import (
	"strings"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
)

const (
	Title            = "🌍 GLOBAL COORDINATES"
	Description      = "**Saved coordinates per dimension:**"
	EmptyPlaceholder = "🚫 No coordinates"
	Color            = 0xBF40BF
)

// Block is the rendering of one dimension.
type Block struct {
	Dimension coords.Dimension `json:"dimension"`
	Heading   string           `json:"heading"`
	Lines     []string         `json:"lines"`
}

func (b Block) Empty() bool { return len(b.Lines) == 0 }

// Body is the code block shown under the heading.
func (b Block) Body() string {
	if b.Empty() {
		return "```\n" + EmptyPlaceholder + "\n```"
	}
	return "```\n" + strings.Join(b.Lines, "\n") + "\n```"
}

func (b Block) Text() string { return b.Heading + "\n" + b.Body() }

type Summary struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Blocks      []Block `json:"blocks"`
	Footer      string  `json:"footer,omitempty"`
	Color       int     `json:"color"`
}

func (s Summary) Text() string {
	var b strings.Builder
	b.WriteString(s.Title)
	b.WriteString("\n")
	b.WriteString(s.Description)
	for _, block := range s.Blocks {
		b.WriteString("\n\n")
		b.WriteString(block.Text())
	}
	if s.Footer != "" {
		b.WriteString("\n\n")
		b.WriteString(s.Footer)
	}
	return b.String()
}

// Render builds the summary of every dimension. updatedBy may be empty, in
// which case no footer is shown.
func Render(doc *coords.Document, updatedBy string) Summary {
	s := Summary{
		Title:       Title,
		Description: Description,
		Color:       Color,
	}
	for _, d := range coords.AllDimensions() {
		s.Blocks = append(s.Blocks, RenderDimension(doc, d))
	}
	if updatedBy != "" {
		s.Footer = "🔄 Last updated by: " + updatedBy
	}
	return s
}

func RenderDimension(doc *coords.Document, dim coords.Dimension) Block {
	b := Block{
		Dimension: dim,
		Heading:   dim.Emoji() + " **" + dim.Label() + "**",
	}
	doc.Dimensions[dim].Each(func(name string, c coords.Coordinate) {
		b.Lines = append(b.Lines, FormatLine(name, c))
	})
	return b
}

func FormatLine(name string, c coords.Coordinate) string {
	return name + ": " + c.String()
}
