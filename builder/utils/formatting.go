package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frontmatter date layouts accepted by the content adapter, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func GetString(m map[string]interface{}, k string) string {
	if v, ok := m[k]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func GetSlice(m map[string]interface{}, k string) []string {
	var res []string
	if v, ok := m[k]; ok {
		switch l := v.(type) {
		case []interface{}:
			for _, i := range l {
				res = append(res, fmt.Sprintf("%v", i))
			}
		case []string:
			res = append(res, l...)
		case string:
			// a single scalar is accepted as a one-element list
			if s := strings.TrimSpace(l); s != "" {
				res = append(res, s)
			}
		}
	}
	return res
}

func GetBool(m map[string]interface{}, k string) bool {
	if v, ok := m[k]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// GetInt reads an integer field, accepting YAML ints, floats and numeric strings.
func GetInt(m map[string]interface{}, k string) (int, bool) {
	v, ok := m[k]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// GetTime reads a date field. YAML may already have decoded it as time.Time.
func GetTime(m map[string]interface{}, k string) (time.Time, bool) {
	v, ok := m[k]
	if !ok || v == nil {
		return time.Time{}, false
	}
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
