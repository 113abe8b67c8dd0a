// Package analytics segments fan chat logs into conversations and engagement stages, builds
// per-fan transcripts for profiling and prepares keyed stage texts for embedding.
package analytics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Event is one message (or purchase) in the raw log. Row is the zero-based data row in the input
// and breaks timestamp ties.
type Event struct {
	Row         int
	FanID       string
	ModelID     string
	Timestamp   time.Time
	MessageText string
	Purchase    bool
	IsSystem    bool
}

// FanModelID is the grouping key for a fan talking to one model.
func (e Event) FanModelID() string {
	return FanModelID(e.FanID, e.ModelID)
}

func FanModelID(fanID, modelID string) string {
	return fanID + "_" + modelID
}

// InputError reports a problem with the event log that makes it unusable.
type InputError struct {
	Line   int // 1-based line in the file, 0 when not tied to a row
	Column string
	Msg    string
}

func (e *InputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("event log line %d column %q: %s", e.Line, e.Column, e.Msg)
	}
	if e.Column != "" {
		return fmt.Sprintf("event log column %q: %s", e.Column, e.Msg)
	}
	return "event log: " + e.Msg
}

// columnAliases maps alternate export headers onto canonical column names.
var columnAliases = map[string]string{
	"model_name":  "model_id",
	"datetime":    "timestamp",
	"purchased":   "purchase",
	"fan_message": "message_text",
}

var requiredColumns = []string{"fan_id", "model_id", "timestamp", "message_text", "purchase"}

// ParseFlag interprets TRUE/FALSE/1/0 case-insensitively. Any other token is false.
func ParseFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "1":
		return true
	default:
		return false
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the common "YYYY-MM-DD[ HH:MM[:SS[.frac]]]" export forms.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ReadEvents decodes a CSV event log with a header row. Missing required columns and
// unparseable timestamps are reported as *InputError. System events are kept and flagged;
// use DropSystemEvents before segmenting.
func ReadEvents(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &InputError{Msg: "missing header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("ReadEvents: header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, &InputError{Column: c, Msg: "required column missing"}
		}
	}
	sysCol, hasSys := cols["is_system"]

	field := func(rec []string, name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var events []Event
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := row + 2
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, &InputError{Line: line, Msg: err.Error()}
		}
		// Quoted fields may span lines, so ask the reader where the record started.
		line, _ := cr.FieldPos(0)

		ts, err := ParseTimestamp(field(rec, "timestamp"))
		if err != nil {
			return nil, &InputError{Line: line, Column: "timestamp", Msg: err.Error()}
		}
		fanID := strings.TrimSpace(field(rec, "fan_id"))
		if fanID == "" {
			return nil, &InputError{Line: line, Column: "fan_id", Msg: "empty fan id"}
		}
		modelID := strings.TrimSpace(field(rec, "model_id"))
		if modelID == "" {
			return nil, &InputError{Line: line, Column: "model_id", Msg: "empty model id"}
		}

		e := Event{
			Row:         row,
			FanID:       fanID,
			ModelID:     modelID,
			Timestamp:   ts,
			MessageText: field(rec, "message_text"),
			Purchase:    ParseFlag(field(rec, "purchase")),
		}
		if hasSys && sysCol < len(rec) {
			e.IsSystem = ParseFlag(rec[sysCol])
		}
		events = append(events, e)
	}
	return events, nil
}

// DropSystemEvents returns the events that are not system messages, preserving order.
func DropSystemEvents(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.IsSystem {
			out = append(out, e)
		}
	}
	return out
}
