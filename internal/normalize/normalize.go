// Package normalize converts loosely shaped backend values into canonical
// numbers, prices, identifiers and absolute image URLs.
package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMediaBase is used when no media base URL is configured.
const DefaultMediaBase = "http://localhost:8000"

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// ToNumber coerces v to a finite float64. Anything that cannot be coerced,
// including nil and non-finite values, yields 0.
func ToNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case bool:
		if n {
			f = 1
		}
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case decimal.Decimal:
		f = n.InexactFloat64()
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case map[string]any:
		if amount, ok := n["amount"]; ok {
			return ToNumber(amount)
		}
		return ToNumber(n["value"])
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ToInt truncates ToNumber(v) toward zero.
func ToInt(v any) int {
	return int(math.Trunc(ToNumber(v)))
}

// Price returns v as a non-negative decimal. Numeric strings are parsed
// exactly so that "19.99" does not pick up float rounding noise.
func Price(v any) decimal.Decimal {
	var d decimal.Decimal
	switch p := v.(type) {
	case decimal.Decimal:
		d = p
	case json.Number:
		parsed, err := decimal.NewFromString(p.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(p))
		if err != nil {
			d = decimal.NewFromFloat(ToNumber(p))
		} else {
			d = parsed
		}
	default:
		d = decimal.NewFromFloat(ToNumber(v))
	}

	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ID renders an identifier that may arrive as a string or a number.
func ID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return ""
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}

// String returns v when it is a string and "" otherwise.
func String(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// Image resolves an image descriptor to an absolute URL. Strings that are
// already absolute http(s) URLs are returned unchanged; relative paths are
// served from mediaBase + "/storage/". Objects are resolved through their
// src, url or image_path field, in that order.
func Image(v any, mediaBase string) (string, bool) {
	switch img := v.(type) {
	case string:
		return resolvePath(img, mediaBase)
	case map[string]any:
		for _, field := range []string{"src", "url", "image_path"} {
			if s, ok := img[field].(string); ok && strings.TrimSpace(s) != "" {
				return resolvePath(s, mediaBase)
			}
		}
	}
	return "", false
}

// Images applies Image to every value and drops the ones that cannot be
// resolved. The result is never nil.
func Images(values []any, mediaBase string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if u, ok := Image(v, mediaBase); ok {
			out = append(out, u)
		}
	}
	return out
}

func resolvePath(path, mediaBase string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false
	}
	if absoluteURL.MatchString(path) {
		return path, true
	}
	if mediaBase == "" {
		mediaBase = DefaultMediaBase
	}
	return strings.TrimRight(mediaBase, "/") + "/storage/" + strings.TrimLeft(path, "/"), true
}
