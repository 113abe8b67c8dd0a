// Package profile holds the per-fan profile record and the key normalisation applied to every
// profile that comes back from a model or from the cache.
package profile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Profile is one fan's behavioral profile. FanModelID is empty for cached values; the profiler
// tags it when the profile is emitted.
type Profile struct {
	FanModelID          string `json:"fan_model_id,omitempty"`
	AgeIndicators       string `json:"age_indicators"`
	JobOrCareer         string `json:"job_or_career"`
	LocationHints       string `json:"location_hints"`
	RelationshipStatus  string `json:"relationship_status"`
	PersonalityTraits   string `json:"personality_traits"`
	EmotionalNeeds      string `json:"emotional_needs"`
	PurchaseMotivations string `json:"purchase_motivations"`
	CommunicationStyle  string `json:"communication_style"`
	LifeEvents          string `json:"life_events"`
}

// Fields lists the canonical field names in column order.
var Fields = []string{
	"age_indicators",
	"job_or_career",
	"location_hints",
	"relationship_status",
	"personality_traits",
	"emotional_needs",
	"purchase_motivations",
	"communication_style",
	"life_events",
}

// HumanLabels are the field names as the model is asked to produce them.
var HumanLabels = []string{
	"Age indicators",
	"Job or career",
	"Location hints",
	"Relationship status",
	"Personality traits",
	"Emotional needs",
	"Purchase motivations",
	"Communication style",
	"Life events",
}

// keyMap is exact-match: "age indicators" or "Age Indicators" are not recognised.
var keyMap = func() map[string]string {
	m := make(map[string]string, 2*len(Fields))
	for i, f := range Fields {
		m[HumanLabels[i]] = f
		m[f] = f
	}
	return m
}()

// NormalizeKey maps a raw field name onto its canonical name. ok is false for unknown keys.
func NormalizeKey(key string) (string, bool) {
	k, ok := keyMap[key]
	return k, ok
}

// Placeholder is the profile emitted when no model output could be associated with a fan.
func Placeholder(fanModelID string) Profile {
	return Profile{FanModelID: fanModelID}
}

// IsPlaceholder reports whether every descriptive field is empty.
func (p Profile) IsPlaceholder() bool {
	for _, v := range p.Values() {
		if v != "" {
			return false
		}
	}
	return true
}

// WithFan returns a copy of p tagged with fanModelID.
func (p Profile) WithFan(fanModelID string) Profile {
	p.FanModelID = fanModelID
	return p
}

// Values returns the nine descriptive fields in Fields order.
func (p Profile) Values() []string {
	return []string{
		p.AgeIndicators,
		p.JobOrCareer,
		p.LocationHints,
		p.RelationshipStatus,
		p.PersonalityTraits,
		p.EmotionalNeeds,
		p.PurchaseMotivations,
		p.CommunicationStyle,
		p.LifeEvents,
	}
}

// Set assigns a canonical field by name. Unknown names are ignored and reported as false.
func (p *Profile) Set(field, value string) bool {
	switch field {
	case "age_indicators":
		p.AgeIndicators = value
	case "job_or_career":
		p.JobOrCareer = value
	case "location_hints":
		p.LocationHints = value
	case "relationship_status":
		p.RelationshipStatus = value
	case "personality_traits":
		p.PersonalityTraits = value
	case "emotional_needs":
		p.EmotionalNeeds = value
	case "purchase_motivations":
		p.PurchaseMotivations = value
	case "communication_style":
		p.CommunicationStyle = value
	case "life_events":
		p.LifeEvents = value
	default:
		return false
	}
	return true
}

// FromMap builds a Profile from a decoded JSON object, normalising keys through the fixed table.
// Keys outside the table are dropped and returned so callers can log them. When both spellings of
// a field are present the canonical one wins.
func FromMap(m map[string]any) (Profile, []string) {
	var p Profile
	var dropped []string
	for k, v := range m {
		field, ok := NormalizeKey(k)
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		if _, canonical := m[field]; canonical && k != field {
			continue
		}
		p.Set(field, stringify(v))
	}
	return p, dropped
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
