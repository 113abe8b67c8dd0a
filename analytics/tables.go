package analytics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

var stagedHeader = []string{
	"fan_id", "model_id", "timestamp", "message_text", "purchase", "is_system",
	"fan_model_id", "conversation_id", "stage",
}

// WriteStagedEvents writes the staged event table with the input columns plus fan_model_id,
// conversation_id and stage.
func WriteStagedEvents(w io.Writer, staged []StagedEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(stagedHeader); err != nil {
		return err
	}
	for _, e := range staged {
		rec := []string{
			e.FanID,
			e.ModelID,
			formatTimestamp(e.Timestamp),
			e.MessageText,
			formatFlag(e.Purchase),
			formatFlag(e.IsSystem),
			e.FanModelID(),
			e.ConversationID,
			string(e.Stage),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadStagedEvents reads a table written by WriteStagedEvents. The event columns go through the
// same validation as ReadEvents.
func ReadStagedEvents(r io.Reader) ([]StagedEvent, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ReadStagedEvents: %w", err)
	}
	events, err := ReadEvents(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ReadStagedEvents: header: %w", err)
	}
	convCol, stageCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "conversation_id":
			convCol = i
		case "stage":
			stageCol = i
		}
	}
	if convCol < 0 {
		return nil, &InputError{Column: "conversation_id", Msg: "required column missing"}
	}
	if stageCol < 0 {
		return nil, &InputError{Column: "stage", Msg: "required column missing"}
	}

	out := make([]StagedEvent, 0, len(events))
	for i := 0; ; i++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &InputError{Line: i + 2, Msg: err.Error()}
		}
		if i >= len(events) || convCol >= len(rec) || stageCol >= len(rec) {
			return nil, &InputError{Line: i + 2, Msg: "short row"}
		}
		stage := Stage(strings.TrimSpace(rec[stageCol]))
		if !validStage(stage) {
			return nil, &InputError{Line: i + 2, Column: "stage", Msg: fmt.Sprintf("unknown stage %q", stage)}
		}
		out = append(out, StagedEvent{Event: events[i], ConversationID: rec[convCol], Stage: stage})
	}
	return out, nil
}

func validStage(s Stage) bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

var featureHeader = []string{
	"conversation_id", "fan_model_id", "start", "end", "message_count", "purchase_count",
	"purchase_rate", "duration_hours", "messages_before_first_purchase", "hours_to_first_purchase",
	"days_between_first_last_purchase", "days_since_last_message", "active",
}

func WriteConversationFeatures(w io.Writer, feats []ConversationFeatures) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(featureHeader); err != nil {
		return err
	}
	for _, f := range feats {
		rec := []string{
			f.ConversationID,
			f.FanModelID,
			formatTimestamp(f.Start),
			formatTimestamp(f.End),
			strconv.Itoa(f.MessageCount),
			strconv.Itoa(f.PurchaseCount),
			formatFloat(f.PurchaseRate),
			formatFloat(f.DurationHours),
			strconv.Itoa(f.MessagesBeforeFirstPurchase),
			formatOptionalFloat(f.HoursToFirstPurchase),
			strconv.Itoa(f.DaysBetweenFirstLastPurchase),
			strconv.Itoa(f.DaysSinceLastMessage),
			formatFlag(f.Active),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProfiles writes fan_model_id followed by the nine profile fields, one row per profile.
func WriteProfiles(w io.Writer, profiles []profile.Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"fan_model_id"}, profile.Fields...)); err != nil {
		return err
	}
	for _, p := range profiles {
		if err := cw.Write(append([]string{p.FanModelID}, p.Values()...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadProfiles reads a profile table. Column headers go through the same key normalisation as
// model output, so tables with humanised headers are accepted.
func ReadProfiles(r io.Reader) ([]profile.Profile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &InputError{Msg: "missing header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("ReadProfiles: header: %w", err)
	}

	idCol := -1
	fieldCols := make(map[int]string)
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "fan_model_id" {
			idCol = i
			continue
		}
		if f, ok := profile.NormalizeKey(h); ok {
			fieldCols[i] = f
		}
	}
	if idCol < 0 {
		return nil, &InputError{Column: "fan_model_id", Msg: "required column missing"}
	}

	var out []profile.Profile
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &InputError{Line: line, Msg: err.Error()}
		}
		if idCol >= len(rec) || strings.TrimSpace(rec[idCol]) == "" {
			return nil, &InputError{Line: line, Column: "fan_model_id", Msg: "empty fan_model_id"}
		}
		p := profile.Placeholder(strings.TrimSpace(rec[idCol]))
		for i, f := range fieldCols {
			if i < len(rec) {
				p.Set(f, rec[i])
			}
		}
		out = append(out, p)
	}
	return out, nil
}
