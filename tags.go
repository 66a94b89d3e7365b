package ecsched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tag constants
const (
	tagName = "ecsched"
)

// Tag keys
const (
	keyID       = "id"       // System id
	keyBefore   = "before"   // Systems this one runs before, '|' separated
	keyAfter    = "after"    // Systems this one runs after, '|' separated
	keyCost     = "cost"     // Relative cost estimate
	keyInterval = "interval" // Run interval (time.ParseDuration syntax)
	keyMain     = "main"     // Main thread only
	keyDisabled = "disabled" // Registered but disabled
)

// TagInfo holds parsed tag information.
type TagInfo struct {
	ID         string
	Before     []string
	After      []string
	Cost       float64
	Interval   time.Duration
	MainThread bool
	Disabled   bool
}

// parseTag parses an ecsched struct tag.
func parseTag(tag string) (TagInfo, error) {
	info := TagInfo{}
	if tag == "" {
		return info, nil
	}

	for part := range strings.SplitSeq(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case keyMain:
			info.MainThread = true
		case keyDisabled:
			info.Disabled = true
		case keyID:
			info.ID = value
		case keyBefore:
			info.Before = append(info.Before, splitList(value)...)
		case keyAfter:
			info.After = append(info.After, splitList(value)...)
		case keyCost:
			cost, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return info, fmt.Errorf("tag %s: %w", part, err)
			}
			info.Cost = cost
		case keyInterval:
			d, err := time.ParseDuration(value)
			if err != nil {
				return info, fmt.Errorf("tag %s: %w", part, err)
			}
			info.Interval = d
		default:
			return info, fmt.Errorf("tag %s: unknown key %q", part, key)
		}

		if !hasValue && key != keyMain && key != keyDisabled {
			return info, fmt.Errorf("tag %s: missing value", part)
		}
	}

	return info, nil
}

func splitList(value string) []string {
	var out []string
	for item := range strings.SplitSeq(value, "|") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
