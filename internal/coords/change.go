package coords

import "time"

type ChangeAction string

const (
	ActionSave   ChangeAction = "save"
	ActionEdit   ChangeAction = "edit"
	ActionDelete ChangeAction = "delete"
	ActionClear  ChangeAction = "clear"
)

// Change is one applied mutation of the registry, as written to the change
// log and the history index.
type Change struct {
	Time       time.Time    `json:"time"`
	Action     ChangeAction `json:"action"`
	Dimension  Dimension    `json:"dimension,omitempty"`
	Location   string       `json:"location,omitempty"`
	Coordinate *Coordinate  `json:"coordinate,omitempty"`
	Previous   *Coordinate  `json:"previous,omitempty"`
	Removed    int          `json:"removed,omitempty"`
	UserID     string       `json:"user_id"`
	UserName   string       `json:"user_name,omitempty"`
	ChannelID  string       `json:"channel_id,omitempty"`
}
