package observer

import "github.com/jcvilalta/MineDeezCoords/internal/mirror"

// Version is the observer feed protocol version.
const Version = "0.1"

const TypeSummary = "SUMMARY"

// SummaryMsg is sent on connect and after every change of the registry.
type SummaryMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Seq             uint64         `json:"seq"`
	SentAt          string         `json:"sent_at"`
	Summary         mirror.Summary `json:"summary"`
}

// HTTP response for GET /observer/latest.
type LatestResponse struct {
	ProtocolVersion string          `json:"protocol_version"`
	Seq             uint64          `json:"seq"`
	Subscribers     int             `json:"subscribers"`
	Summary         *mirror.Summary `json:"summary,omitempty"`
}
