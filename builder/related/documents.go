package related

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Kush-Singh-26/quill/builder/models"
	"github.com/Kush-Singh-26/quill/builder/search"
)

// PostsDocument is the posts namespace: the processed corpus and the
// signature it was derived from.
type PostsDocument struct {
	SchemaVersion int                    `json:"schemaVersion" msgpack:"schema_version"`
	PostCount     int                    `json:"postCount" msgpack:"post_count"`
	Fingerprint   string                 `json:"fingerprint" msgpack:"fingerprint"`
	Posts         []models.ProcessedPost `json:"posts" msgpack:"posts"`
}

func (d *PostsDocument) Version() int { return d.SchemaVersion }

func (d *PostsDocument) Validate() error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.Fingerprint, validation.Required),
		validation.Field(&d.PostCount, validation.Min(0)),
		validation.Field(&d.Posts, validation.NotNil),
	)
	if err != nil {
		return err
	}
	if d.PostCount != len(d.Posts) {
		return fmt.Errorf("postCount %d does not match %d posts", d.PostCount, len(d.Posts))
	}

	seen := make(map[string]bool, len(d.Posts))
	for i := range d.Posts {
		if err := validatePost(&d.Posts[i]); err != nil {
			return fmt.Errorf("posts[%d]: %w", i, err)
		}
		if seen[d.Posts[i].Permalink] {
			return fmt.Errorf("posts[%d]: duplicate permalink %s", i, d.Posts[i].Permalink)
		}
		seen[d.Posts[i].Permalink] = true
	}
	return nil
}

func validatePost(p *models.ProcessedPost) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Permalink, validation.Required),
		validation.Field(&p.Tags, validation.NotNil),
		validation.Field(&p.Categories, validation.NotNil),
	)
}

// IndexDocument is the index namespace. It matches the posts document 1:1
// through the fingerprint and post count, and the search options through
// ConfigHash.
type IndexDocument struct {
	SchemaVersion int                `json:"schemaVersion" msgpack:"schema_version"`
	ConfigHash    string             `json:"configHash" msgpack:"config_hash"`
	Fingerprint   string             `json:"fingerprint" msgpack:"fingerprint"`
	PostCount     int                `json:"postCount" msgpack:"post_count"`
	Index         *search.Serialized `json:"index" msgpack:"index"`
}

func (d *IndexDocument) Version() int { return d.SchemaVersion }

func (d *IndexDocument) Validate() error {
	err := validation.ValidateStruct(d,
		validation.Field(&d.ConfigHash, validation.Required),
		validation.Field(&d.Fingerprint, validation.Required),
		validation.Field(&d.Index, validation.NotNil),
	)
	if err != nil {
		return err
	}
	if d.PostCount != len(d.Index.Records) {
		return fmt.Errorf("postCount %d does not match %d index records", d.PostCount, len(d.Index.Records))
	}
	if h := d.Index.Options.Hash(); d.ConfigHash != h {
		return fmt.Errorf("configHash %s does not match embedded options %s", d.ConfigHash, h)
	}
	return nil
}
