package service

import (
	"encoding/json"
	"fmt"
)

// stopFlag is the JSON shape stored under the order_stop settings key.
type stopFlag struct {
	Stopped bool `json:"stopped"`
}

// DecodeStopFlag parses an app_settings order_stop value.
func DecodeStopFlag(value []byte) (bool, error) {
	var f stopFlag
	if err := json.Unmarshal(value, &f); err != nil {
		return false, fmt.Errorf("invalid order_stop value: %w", err)
	}
	return f.Stopped, nil
}

// EncodeStopFlag renders the order_stop settings value.
func EncodeStopFlag(stopped bool) []byte {
	b, _ := json.Marshal(stopFlag{Stopped: stopped})
	return b
}
