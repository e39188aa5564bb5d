package payment

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

// The bank aggregator only relays free-text narration, so the order
// reference travels as a token inside the transfer description.
var tokenPattern = regexp.MustCompile(`(?i)(SEVQR\s+OD\d{1,6}|OD\d{1,6})`)

// Notification is the normalized view of an incoming transfer notification.
type Notification struct {
	Amount      decimal.Decimal
	Description string
}

// ParseNotification decodes an untrusted aggregator payload. The real
// payload is sometimes double-encoded under a "data" string field; both
// shapes are accepted.
func ParseNotification(raw []byte) (*Notification, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformedPayload
	}

	if nested, ok := payload["data"].(string); ok {
		if err := json.Unmarshal([]byte(nested), &payload); err != nil {
			return nil, ErrMalformedPayload
		}
	}

	amount := readAmount(payload, "transferAmount")
	if amount.IsZero() {
		amount = readAmount(payload, "amount")
	}

	description, ok := payload["content"].(string)
	if !ok || description == "" {
		description, _ = payload["description"].(string)
	}

	return &Notification{
		Amount:      amount,
		Description: strings.ToUpper(description),
	}, nil
}

func readAmount(payload map[string]interface{}, key string) decimal.Decimal {
	switch v := payload[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return amount
	}
	return decimal.Zero
}

// ExtractToken pulls the order-reference token out of the transfer
// description. Matching is case-insensitive and tolerant of surrounding
// text.
func ExtractToken(description string) (string, bool) {
	if !strings.Contains(strings.ToUpper(description), "OD") {
		return "", false
	}

	match := tokenPattern.FindString(description)
	if match == "" {
		return "", false
	}

	return strings.ToUpper(normalizeSpaces(match)), true
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
