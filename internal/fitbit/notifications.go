package fitbit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseUpdateNotifications decodes a webhook notification body into its
// update entries, tolerating the signature wrapper some delivery paths wrap
// around the JSON array.
func ParseUpdateNotifications(body []byte) ([]UpdateNotification, error) {
	payload := stripSignature(string(body))

	var updates []UpdateNotification
	if err := json.Unmarshal([]byte(payload), &updates); err != nil {
		return nil, fmt.Errorf("parse update notifications: %w", err)
	}
	return updates, nil
}

// stripSignature cuts the notification payload down to the JSON array,
// dropping anything wrapped around it.
func stripSignature(body string) string {
	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end < start {
		return body
	}
	return body[start : end+1]
}
