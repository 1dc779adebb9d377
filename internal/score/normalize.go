package score

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var clockPattern = regexp.MustCompile(`^(\d+):(\d{1,2})$`)

// Normalize converts a raw score (absent, numeric, or string) into a
// comparable number. The second return value is false when the value is
// unparseable; callers treat that as "no data".
//
// Strings of the form "m:ss" become m*60+s. Any other string is reduced to
// its digits, one leading minus and decimal points before parsing, so
// "42 pts" yields 42.
func Normalize(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		return normalizeString(string(v))
	case string:
		return normalizeString(v)
	case *float64:
		if v == nil {
			return 0, false
		}
		return finite(*v)
	default:
		return 0, false
	}
}

func normalizeString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if m := clockPattern.FindStringSubmatch(s); m != nil {
		minutes, err1 := strconv.ParseFloat(m[1], 64)
		seconds, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return finite(minutes*60 + seconds)
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatClock renders whole seconds as "mm:ss".
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return pad2(seconds/60) + ":" + pad2(seconds%60)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
