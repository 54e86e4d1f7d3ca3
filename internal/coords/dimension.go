package coords

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrEmptyName        = errors.New("empty location name")
)

type Dimension string

const (
	Overworld Dimension = "overworld"
	Nether    Dimension = "nether"
	End       Dimension = "end"
)

var dimensionOrder = []Dimension{Overworld, Nether, End}

// AllDimensions returns the three dimensions in render order.
func AllDimensions() []Dimension {
	out := make([]Dimension, len(dimensionOrder))
	copy(out, dimensionOrder)
	return out
}

func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case Overworld, Nether, End:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
}

func (d Dimension) Valid() bool {
	switch d {
	case Overworld, Nether, End:
		return true
	}
	return false
}

func (d Dimension) Label() string {
	switch d {
	case Overworld:
		return "Overworld"
	case Nether:
		return "Nether"
	case End:
		return "End"
	}
	return string(d)
}

func (d Dimension) Emoji() string {
	switch d {
	case Overworld:
		return "🌳"
	case Nether:
		return "👹"
	case End:
		return "😈"
	}
	return "❔"
}
