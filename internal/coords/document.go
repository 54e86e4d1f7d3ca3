package coords

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MessageID identifies a chat message. Older documents stored ids as
// strings, so decoding accepts both numbers and numeric strings.
type MessageID int64

func (id MessageID) String() string { return strconv.FormatInt(int64(id), 10) }

func ParseMessageID(s string) (MessageID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse message id %q: %w", s, err)
	}
	return MessageID(n), nil
}

func (id *MessageID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseMessageID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

type Metadata struct {
	LastUpdated  *string        `json:"last_updated"`
	UserActivity map[string]int `json:"user_activity"`
}

// DimensionMap holds the locations of every dimension. It always encodes
// in render order.
type DimensionMap map[Dimension]*Locations

func (m DimensionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range dimensionOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		val, err := m[d].MarshalJSON()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%q:", string(d))
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the three known dimensions and drops anything else.
func (m *DimensionMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(DimensionMap, len(dimensionOrder))
	for key, val := range raw {
		d := Dimension(key)
		if !d.Valid() {
			continue
		}
		locs := &Locations{}
		if err := locs.UnmarshalJSON(val); err != nil {
			return fmt.Errorf("dimension %s: %w", key, err)
		}
		out[d] = locs
	}
	*m = out
	return nil
}

type Document struct {
	Messages   map[string]MessageID `json:"messages"`
	Dimensions DimensionMap         `json:"dimensions"`
	Metadata   Metadata             `json:"metadata"`
}

func NewDocument() *Document {
	doc := &Document{}
	doc.Normalize()
	return doc
}

// Normalize fills in whatever a partial document left out.
func (doc *Document) Normalize() {
	if doc.Messages == nil {
		doc.Messages = make(map[string]MessageID)
	}
	if doc.Dimensions == nil {
		doc.Dimensions = make(DimensionMap, len(dimensionOrder))
	}
	for _, d := range dimensionOrder {
		if doc.Dimensions[d] == nil {
			doc.Dimensions[d] = &Locations{}
		}
	}
	for key := range doc.Dimensions {
		if !key.Valid() {
			delete(doc.Dimensions, key)
		}
	}
	if doc.Metadata.UserActivity == nil {
		doc.Metadata.UserActivity = make(map[string]int)
	}
}

func (doc *Document) Clone() *Document {
	out := NewDocument()
	for k, v := range doc.Messages {
		out.Messages[k] = v
	}
	for _, d := range dimensionOrder {
		out.Dimensions[d] = doc.Dimensions[d].Clone()
	}
	if doc.Metadata.LastUpdated != nil {
		s := *doc.Metadata.LastUpdated
		out.Metadata.LastUpdated = &s
	}
	for k, v := range doc.Metadata.UserActivity {
		out.Metadata.UserActivity[k] = v
	}
	return out
}

func (doc *Document) RecordActivity(userID string) {
	if userID == "" {
		return
	}
	doc.Normalize()
	doc.Metadata.UserActivity[userID]++
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// LastUpdated parses metadata.last_updated. Timestamps written without a
// zone are read as UTC.
func (doc *Document) LastUpdated() (time.Time, bool) {
	if doc.Metadata.LastUpdated == nil {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(*doc.Metadata.LastUpdated)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
