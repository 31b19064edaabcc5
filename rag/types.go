package rag

import (
	"bytes"
	"encoding/json"
)

type ChunkResult struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Title      string
	Content    string
	Score      float64
}

type RelatedDoc struct {
	Filename string
	Title    string
	Weight   float64
}

// Section is one labelled part of an answer; Text and List are mutually
// exclusive.
type Section struct {
	Label string
	Text  string
	List  []string
}

// Result is the engine's answer: ordered sections that serialize as one JSON
// object with the labels as keys, in order. Clients render them as-is.
type Result struct {
	Sections []Section
}

// MarshalJSON writes the sections as an object without going through a map,
// which would scramble the section order.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, section := range r.Sections {
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
		if section.List != nil {
			value, err = json.Marshal(section.List)
		} else {
			value, err = json.Marshal(section.Text)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
