package services

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

func normaliseTags(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func encodeTags(values []string) (datatypes.JSON, error) {
	payload, err := json.Marshal(normaliseTags(values))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}

// DecodeInterestTags unpacks a stored tag column into a plain slice for API
// responses. Malformed payloads decode to nil rather than erroring.
func DecodeInterestTags(raw datatypes.JSON) []string {
	return decodeTags(raw)
}

func decodeTags(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func sharedTagCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[tag] = struct{}{}
	}
	count := 0
	for _, tag := range b {
		if _, ok := set[tag]; ok {
			count++
		}
	}
	return count
}
