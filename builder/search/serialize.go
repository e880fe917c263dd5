package search

import (
	"errors"
	"fmt"

	"github.com/Kush-Singh-26/quill/builder/models"
)

// Serialized is the persistable form of an Index: the options it was built
// with and the analyzed tokens of every document field. Posts are stored
// separately; lookup tables are rebuilt on load.
type Serialized struct {
	Options Options     `json:"options" msgpack:"options"`
	Records [][][]Token `json:"records" msgpack:"records"`
}

// Serialize returns the persistable form of the index.
func (idx *Index) Serialize() *Serialized {
	return &Serialized{
		Options: idx.opts,
		Records: idx.records,
	}
}

// Validate checks the structure of a decoded index.
func (s *Serialized) Validate() error {
	if s == nil {
		return errors.New("index: missing")
	}
	if err := s.Options.Validate(); err != nil {
		return fmt.Errorf("index options: %w", err)
	}
	for doc, fields := range s.Records {
		if len(fields) != len(s.Options.Fields) {
			return fmt.Errorf("record %d: has %d fields, want %d", doc, len(fields), len(s.Options.Fields))
		}
		for f, tokens := range fields {
			for _, tok := range tokens {
				if tok.Text == "" || tok.Offset < 0 {
					return fmt.Errorf("record %d field %d: malformed token", doc, f)
				}
			}
		}
	}
	return nil
}

// Deserialize rebuilds an index from its serialized form over the same
// posts it was built from.
func Deserialize(s *Serialized, posts []models.ProcessedPost) (*Index, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(s.Records) != len(posts) {
		return nil, fmt.Errorf("index has %d records for %d posts", len(s.Records), len(posts))
	}
	return newIndex(posts, s.Options, s.Records), nil
}
