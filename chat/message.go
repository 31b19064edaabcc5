// Package chat holds the client-side conversation core: the append-only
// message log, the document selection context, the upload coordinator, and
// the dispatcher that drives one question/answer round trip.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message is one turn in the conversation. A user message carries Text; a
// bot message carries a structured Answer instead.
type Message struct {
	Sender    string
	Text      string
	Answer    Answer
	CreatedAt time.Time
}

// SectionValue is either scalar text or an ordered list of scalar texts,
// never both.
type SectionValue struct {
	Text string
	List []string
}

// IsList reports whether the value renders as a numbered list.
func (v SectionValue) IsList() bool {
	return v.List != nil
}

type Section struct {
	Label string
	Value SectionValue
}

// Answer is the normalized form of a backend response: an ordered sequence
// of labelled sections. Order is display order and must be preserved from
// the wire payload.
type Answer struct {
	Sections []Section
}

func scalarValue(text string) SectionValue {
	return SectionValue{Text: text}
}

func listValue(items []string) SectionValue {
	if items == nil {
		items = []string{}
	}
	return SectionValue{List: items}
}

// MarshalJSON writes the sections as one JSON object with labels as keys.
// A map would scramble the order, so the object is assembled by hand.
func (a Answer) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, section := range a.Sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		label, err := json.Marshal(section.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(label)
		buf.WriteByte(':')

		var value []byte
		if section.Value.IsList() {
			value, err = json.Marshal(section.Value.List)
		} else {
			value, err = json.Marshal(section.Value.Text)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Render produces the displayable text form of the answer: each section
// label followed by its value, list items numbered from one.
func (a Answer) Render() string {
	var sb strings.Builder
	for i, section := range a.Sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(section.Label)
		sb.WriteString(":")
		if section.Value.IsList() {
			for idx, item := range section.Value.List {
				sb.WriteString(fmt.Sprintf("\n%d. %s", idx+1, item))
			}
		} else {
			sb.WriteString(" ")
			sb.WriteString(section.Value.Text)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
