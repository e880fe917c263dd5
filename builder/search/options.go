package search

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Kush-Singh-26/quill/builder/utils"
)

// Indexable fields of a ProcessedPost
const (
	FieldTitle      = "title"
	FieldTags       = "tags"
	FieldCategories = "categories"
	FieldBody       = "body"
)

// PositionDistance is how far into a field (in runes) a match can start
// before its position penalty reaches 1.
const PositionDistance = 100

// Field is an indexed field and its weight in the combined score.
type Field struct {
	Name   string  `json:"name" yaml:"name" msgpack:"name"`
	Weight float64 `json:"weight" yaml:"weight" msgpack:"weight"`
}

func (f Field) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required, validation.In(FieldTitle, FieldTags, FieldCategories, FieldBody)),
		validation.Field(&f.Weight, validation.Required, validation.Min(0.0)),
	)
}

// Options configures how the index is built and queried. The same options
// must be used to build and to read a serialized index; Hash identifies them.
type Options struct {
	Fields                []Field `json:"fields" msgpack:"fields"`
	MatchThreshold        float64 `json:"matchThreshold" msgpack:"match_threshold"`
	IgnorePositionInField bool    `json:"ignorePositionInField" msgpack:"ignore_position_in_field"`
	ExhaustiveMatching    bool    `json:"exhaustiveMatching" msgpack:"exhaustive_matching"`
	MinTokenLength        int     `json:"minTokenLength" msgpack:"min_token_length"`
}

// DefaultOptions returns the metadata-only field set, plus the body when
// includeBody is set.
func DefaultOptions(includeBody bool) Options {
	opts := Options{
		Fields: []Field{
			{Name: FieldTags, Weight: 0.7},
			{Name: FieldCategories, Weight: 0.7},
			{Name: FieldTitle, Weight: 0.6},
		},
		MatchThreshold:        0.55,
		IgnorePositionInField: true,
		ExhaustiveMatching:    true,
		MinTokenLength:        2,
	}
	if includeBody {
		opts.Fields = append(opts.Fields, Field{Name: FieldBody, Weight: 1.0})
	}
	return opts
}

func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Fields, validation.Required),
		validation.Field(&o.MatchThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&o.MinTokenLength, validation.Required, validation.Min(1)),
	)
}

// IncludesBody reports whether the body field is indexed
func (o Options) IncludesBody() bool {
	for _, f := range o.Fields {
		if f.Name == FieldBody {
			return true
		}
	}
	return false
}

// Hash is a stable digest of the options, stored next to serialized indexes.
func (o Options) Hash() string {
	data, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return utils.HashContent(data)
}
