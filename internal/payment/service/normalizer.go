// Package service provides the stateless building blocks of webhook intake: notification
// parsing and identifier normalization, signature verification and the authenticity gate.
package service

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"unicode"
)

// NotificationFormat identifies which payload shape a notification arrived in.
type NotificationFormat string

const (
	// FormatCurrent is {"type": "...", "action": "...", "data": {"id": ...}}.
	FormatCurrent NotificationFormat = "current"
	// FormatLegacy is {"id": ..., "topic": "..."}.
	FormatLegacy NotificationFormat = "legacy"
	// FormatFlat is a bare {"payment_id": ...} or {"collection_id": ...}, as sent on client return URLs.
	FormatFlat NotificationFormat = "flat"
	// FormatUnrecognized matches none of the above.
	FormatUnrecognized NotificationFormat = "unrecognized"
)

// TypePayment is the notification type/topic carrying payment events.
const TypePayment = "payment"

// Notification is the normalized view of an inbound payment notification.
type Notification struct {
	Format NotificationFormat
	// Type is the notification type (current) or topic (legacy). Flat payloads are always "payment".
	Type string
	// Action is only present on the current format.
	Action string
	// RawID is the identifier exactly as received, converted to a string.
	RawID string
	// LiveMode is nil when the payload does not declare it.
	LiveMode *bool
}

// IsPayment reports whether the notification concerns a payment.
func (n *Notification) IsPayment() bool {
	return n.Type == TypePayment
}

// IsTest reports whether the provider flagged the notification as a simulation.
func (n *Notification) IsTest() bool {
	return n.LiveMode != nil && !*n.LiveMode
}

// EventKey is the idempotency key for the notification: <id>:<type>:<action>.
func (n *Notification) EventKey(normalizedID string) string {
	return normalizedID + ":" + n.Type + ":" + n.Action
}

// rawNotification captures every field any supported shape may carry.
type rawNotification struct {
	Type         string          `json:"type"`
	Action       string          `json:"action"`
	Topic        string          `json:"topic"`
	ID           json.RawMessage `json:"id"`
	LiveMode     *bool           `json:"live_mode"`
	PaymentID    json.RawMessage `json:"payment_id"`
	CollectionID json.RawMessage `json:"collection_id"`
	Data         *struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseNotification extracts a Notification from a JSON body, falling back to query
// parameters for fields the body does not carry. Shapes are tried in the order
// current, legacy, flat. A body that is not a JSON object is treated as empty.
func ParseNotification(body []byte, query url.Values) *Notification {
	var raw rawNotification
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			raw = rawNotification{}
		}
	}
	mergeQuery(&raw, query)

	if raw.Data != nil && raw.Type != "" {
		if id := idString(raw.Data.ID); id != "" {
			return &Notification{
				Format:   FormatCurrent,
				Type:     strings.ToLower(raw.Type),
				Action:   raw.Action,
				RawID:    id,
				LiveMode: raw.LiveMode,
			}
		}
	}

	if raw.Topic != "" {
		if id := idString(raw.ID); id != "" {
			return &Notification{
				Format:   FormatLegacy,
				Type:     strings.ToLower(raw.Topic),
				RawID:    id,
				LiveMode: raw.LiveMode,
			}
		}
	}

	for _, candidate := range []json.RawMessage{raw.PaymentID, raw.CollectionID} {
		if id := idString(candidate); id != "" {
			return &Notification{
				Format:   FormatFlat,
				Type:     TypePayment,
				RawID:    id,
				LiveMode: raw.LiveMode,
			}
		}
	}

	return &Notification{Format: FormatUnrecognized}
}

// mergeQuery fills fields missing from the body with their query string counterparts.
func mergeQuery(raw *rawNotification, query url.Values) {
	if len(query) == 0 {
		return
	}
	if raw.Type == "" {
		raw.Type = query.Get("type")
	}
	if raw.Action == "" {
		raw.Action = query.Get("action")
	}
	if raw.Topic == "" {
		raw.Topic = query.Get("topic")
	}
	if v := query.Get("data.id"); v != "" && (raw.Data == nil || idString(raw.Data.ID) == "") {
		raw.Data = &struct {
			ID json.RawMessage `json:"id"`
		}{ID: quote(v)}
	}
	if v := query.Get("id"); v != "" && idString(raw.ID) == "" {
		raw.ID = quote(v)
	}
	if v := query.Get("payment_id"); v != "" && idString(raw.PaymentID) == "" {
		raw.PaymentID = quote(v)
	}
	if v := query.Get("collection_id"); v != "" && idString(raw.CollectionID) == "" {
		raw.CollectionID = quote(v)
	}
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// idString converts a JSON string or number into its string form.
// Anything else (null, objects, arrays, booleans) yields "".
func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	default:
		return ""
	}
}

// IDClass classifies a normalized identifier.
type IDClass string

const (
	// IDActionable can be fetched from the provider.
	IDActionable IDClass = "actionable"
	// IDEmpty carries no identifier at all.
	IDEmpty IDClass = "empty"
	// IDOpaque is not numeric. It is passed to the provider unchanged.
	IDOpaque IDClass = "opaque"
	// IDPreference looks like a checkout preference id, which the payments endpoint cannot resolve.
	IDPreference IDClass = "preference"
)

// IsActionable reports whether the identifier is worth a provider call.
func (c IDClass) IsActionable() bool {
	return c == IDActionable || c == IDOpaque
}

// Normalizer turns raw identifiers into provider payment ids.
type Normalizer struct {
	// PreferencePrefix and PreferenceMinLength describe the numeric preference ids
	// observed on client return URLs.
	PreferencePrefix    string
	PreferenceMinLength int
}

// NewNormalizer returns a Normalizer with the observed preference-id heuristic.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		PreferencePrefix:    "204",
		PreferenceMinLength: 9,
	}
}

// NormalizeID strips the "-suffix" the provider sometimes appends to payment ids and
// classifies the result.
func (n *Normalizer) NormalizeID(raw string) (string, IDClass) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", IDEmpty
	}

	if idx := strings.IndexByte(id, '-'); idx > 0 && isDigits(id[:idx]) {
		id = id[:idx]
	}

	if !isDigits(id) {
		return id, IDOpaque
	}

	if n.IsPreferenceID(id) {
		return id, IDPreference
	}

	return id, IDActionable
}

// IsPreferenceID reports whether id matches the preference-id heuristic.
func (n *Normalizer) IsPreferenceID(id string) bool {
	if n.PreferencePrefix == "" {
		return false
	}
	return isDigits(id) &&
		len(id) >= n.PreferenceMinLength &&
		strings.HasPrefix(id, n.PreferencePrefix)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
