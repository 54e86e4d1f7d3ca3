package commands

import (
	"math"
	"strings"

	"github.com/jcvilalta/MineDeezCoords/internal/dialog"
	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
)

type User struct {
	ID   string
	Name string
}

// Request is a parsed invocation. Options hold string or integer values
// keyed by option name.
type Request struct {
	Command   string
	User      User
	ChannelID string
	Options   map[string]any
}

// String returns the trimmed option value; blank values count as absent.
func (r Request) String(name string) (string, bool) {
	v, ok := r.Options[name].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r Request) Int(name string) (int, bool) {
	switch v := r.Options[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}

type Attachment struct {
	Name string
	Data []byte
}

// Prompt asks the requester to confirm or cancel a pending dialog.
type Prompt struct {
	Dialog *dialog.Dialog
	Text   string
}

type Response struct {
	// Content is a plain text fallback when Summary is set.
	Content    string
	Summary    *mirror.Summary
	Attachment *Attachment
	Prompt     *Prompt
	Code       string
	Ephemeral  bool
	// Dismiss marks replies whose result is visible in the mirror message,
	// so the gateway can drop its own acknowledgement.
	Dismiss bool
}

func (r Response) OK() bool { return r.Code == "" }

func Failure(code, content string) Response {
	return Response{Content: content, Code: code, Ephemeral: true}
}
