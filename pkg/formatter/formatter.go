package formatter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrNoJSON is returned when content holds no parseable JSON, either bare or
// inside a markdown code fence.
var ErrNoJSON = errors.New("no json payload")

var codeFenceRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")

// FormatNumber converts an integer to a string with commas as thousands separators.
// Example: 1234567 -> "1,234,567"
func FormatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		s = s[1:]
	}

	le := len(s)
	if le <= 3 {
		if n < 0 {
			return "-" + s
		}
		return s
	}

	sepCount := (le - 1) / 3
	res := make([]byte, le+sepCount)

	j := len(res) - 1
	for i := le - 1; i >= 0; i-- {
		res[j] = s[i]
		j--
		if (le-i)%3 == 0 && i > 0 {
			res[j] = ','
			j--
		}
	}

	if n < 0 {
		return "-" + string(res)
	}
	return string(res)
}

// StripCodeFence returns the body of the first markdown code fence in content,
// or the trimmed content itself when there is no fence.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if m := codeFenceRegex.FindStringSubmatch(content); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return content
}

// ParseJSON unmarshals content into T, retrying with the code fence stripped.
func ParseJSON[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	cleaned := StripCodeFence(content)
	if cleaned != content {
		var fenced T
		if err := json.Unmarshal([]byte(cleaned), &fenced); err == nil {
			return fenced, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrNoJSON, Truncate(content, 200))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Percent renders part/total with one decimal, "0.0%" when total is zero.
func Percent(part, total int) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}
