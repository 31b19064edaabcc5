package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	noAnswerText     = "No answer received"
	transportErrText = "Error contacting backend"
)

// Normalize turns a raw backend answer payload into a displayable Answer.
// Backends are free to return a flat scalar or a multi-section object; the
// session never has to special-case the shape at render time.
//
//   - absent, null, or empty answer -> single "Answer: No answer received" section
//   - scalar -> single "Answer" section with its text form
//   - object -> sections in payload order, array values as lists
func Normalize(raw json.RawMessage) Answer {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Answer{Sections: []Section{{Label: "Answer", Value: scalarValue(noAnswerText)}}}
	}

	if raw[0] == '{' {
		if sections, err := decodeSections(raw); err == nil {
			return Answer{Sections: sections}
		}
	}

	text := scalarText(raw)
	if text == "" {
		text = noAnswerText
	}
	return Answer{Sections: []Section{{Label: "Answer", Value: scalarValue(text)}}}
}

// ErrorAnswer is the bot payload for a failed round trip: the network call
// threw or no parseable body came back.
func ErrorAnswer() Answer {
	return Answer{Sections: []Section{{Label: "Error", Value: scalarValue(transportErrText)}}}
}

// decodeSections walks the object with the token API so section order
// survives; a map decode would shuffle it.
func decodeSections(raw json.RawMessage) ([]Section, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	sections := make([]Section, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		label, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		sections = append(sections, Section{Label: label, Value: sectionValue(value)})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return sections, nil
}

func sectionValue(raw json.RawMessage) SectionValue {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			list := make([]string, len(items))
			for i, item := range items {
				list[i] = scalarText(item)
			}
			return listValue(list)
		}
	}
	return scalarValue(scalarText(raw))
}

// scalarText is the generic text conversion: strings unquote, numbers and
// booleans keep their literal form, anything deeper falls back to its
// compact JSON text.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		return compact.String()
	}
	return strings.TrimSpace(string(raw))
}
