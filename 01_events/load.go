package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"crash-review-pipeline/types"
)

// Load reads an event list written either as {"events": [...]} or a bare array.
func Load(path string) ([]types.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return Decode(data)
}

// Decode accepts {"events": [...]} or a bare array
func Decode(data []byte) ([]types.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []types.Event
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return list, nil
	}
	var wrapped types.EventList
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return wrapped.Events, nil
}
