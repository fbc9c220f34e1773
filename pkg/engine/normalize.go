package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject is returned when a response holds no {...} span at all.
var ErrNoJSONObject = errors.New("no valid JSON object found in response")

// Normalize trims a raw model response down to its JSON object. Fenced
// responses are cut to the span between the first '{' and the last '}';
// unfenced responses that do not start with '{' get the same treatment.
// Normalize only removes text, and Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) (string, error) {
	content := strings.TrimSpace(raw)

	if strings.Contains(content, "```") {
		if span, ok := objectSpan(content); ok {
			content = span
		}
	}

	if !strings.HasPrefix(content, "{") {
		span, ok := objectSpan(content)
		if !ok {
			return "", ErrNoJSONObject
		}
		content = span
	}
	return content, nil
}

func objectSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// EscapeStringNewlines replaces line breaks that fall inside an open string
// literal with the two-character escape \n. Whether a break is inside a
// string is decided by counting the unescaped double quotes on each line, so
// this is a heuristic for the common "model wrote a multi-line description"
// case, not a general JSON fixer.
func EscapeStringNewlines(s string) string {
	lines := strings.Split(s, "\n")
	var sb strings.Builder
	sb.Grow(len(s) + len(lines))

	inString := false
	for i, line := range lines {
		if unescapedQuotes(line)%2 == 1 {
			inString = !inString
		}
		if inString && strings.HasSuffix(line, "\r") {
			line = strings.TrimSuffix(line, "\r") + `\r`
		}
		sb.WriteString(line)
		if i == len(lines)-1 {
			break
		}
		if inString {
			sb.WriteString(`\n`)
		} else {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func unescapedQuotes(line string) int {
	count := 0
	backslashes := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			backslashes++
			continue
		case '"':
			if backslashes%2 == 0 {
				count++
			}
		}
		backslashes = 0
	}
	return count
}

// EscapeControlChars escapes every control character found inside a string
// literal, tracking string state character by character. It is the last
// repair tried before a response is declared unparseable.
func EscapeControlChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + len(s)/10)

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			sb.WriteByte(ch)
			escaped = false
			continue
		}
		if ch == '\\' {
			sb.WriteByte(ch)
			escaped = inString
			continue
		}
		if ch == '"' {
			inString = !inString
			sb.WriteByte(ch)
			continue
		}
		if !inString {
			sb.WriteByte(ch)
			continue
		}

		switch ch {
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if ch < 0x20 {
				sb.WriteString(fmt.Sprintf(`\u%04x`, ch))
			} else {
				sb.WriteByte(ch)
			}
		}
	}
	return sb.String()
}

// ParseObject normalizes a model response and decodes it as a JSON object,
// falling back to the two newline repairs when the first decode fails. The
// returned error is the one from the unrepaired decode.
func ParseObject(raw string) (map[string]any, error) {
	content, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	doc, firstErr := decodeObject(content)
	if firstErr == nil {
		return doc, nil
	}
	if doc, err := decodeObject(EscapeStringNewlines(content)); err == nil {
		return doc, nil
	}
	if doc, err := decodeObject(EscapeControlChars(content)); err == nil {
		return doc, nil
	}
	return nil, fmt.Errorf("invalid JSON response: %w", firstErr)
}

func decodeObject(content string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return doc, nil
}
