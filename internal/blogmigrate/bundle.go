package blogmigrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
)

// BundleVersion is written into every exported bundle.
const BundleVersion = 1

// Bundle is the JSON data-exchange document. A nil section is absent and is
// neither imported nor reported; an empty section is present with no rows.
// Users are never part of a bundle.
type Bundle struct {
	Version     int                `json:"version"`
	ExportedAt  time.Time          `json:"exported_at"`
	Categories  []SourceCategory   `json:"categories"`
	Tags        []SourceTag        `json:"tags"`
	Blogs       []SourceBlog       `json:"blogs"`
	BlogTags    []SourceBlogTag    `json:"blog_tags"`
	FriendLinks []SourceFriendLink `json:"friend_links"`
	Projects    []SourceProject    `json:"projects"`
	Directories []SourceDirectory  `json:"directories"`
	Documents   []SourceDocument   `json:"documents"`
	Texts       []SourceText       `json:"texts"`
	Files       []SourceFile       `json:"files"`
}

// DecodeBundle reads a bundle from r. Unknown fields are ignored.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	return &b, nil
}

// Sections lists the entity types present in the bundle.
func (b *Bundle) Sections() []Entity {
	var out []Entity
	for _, e := range AllEntities {
		if b.has(e) {
			out = append(out, e)
		}
	}
	return out
}

func (b *Bundle) has(e Entity) bool {
	switch e {
	case Categories:
		return b.Categories != nil
	case Tags:
		return b.Tags != nil
	case Blogs:
		return b.Blogs != nil
	case BlogTags:
		return b.BlogTags != nil
	case Directories:
		return b.Directories != nil
	case Documents:
		return b.Documents != nil
	case Files:
		return b.Files != nil
	case FriendLinks:
		return b.FriendLinks != nil
	case Projects:
		return b.Projects != nil
	case Texts:
		return b.Texts != nil
	}
	return false
}

// BundleSource reads a decoded bundle as a migration source.
type BundleSource struct {
	b *Bundle
}

func NewBundleSource(b *Bundle) *BundleSource {
	return &BundleSource{b: b}
}

// Provides reports whether the bundle carries the entity type.
func (s *BundleSource) Provides(e Entity) bool { return s.b.has(e) }

func (s *BundleSource) Categories(context.Context) ([]SourceCategory, error) {
	return s.b.Categories, nil
}

func (s *BundleSource) Tags(context.Context) ([]SourceTag, error) { return s.b.Tags, nil }

func (s *BundleSource) Blogs(context.Context) ([]SourceBlog, error) { return s.b.Blogs, nil }

func (s *BundleSource) BlogTags(context.Context) ([]SourceBlogTag, error) {
	return s.b.BlogTags, nil
}

func (s *BundleSource) Directories(context.Context) ([]SourceDirectory, error) {
	return s.b.Directories, nil
}

func (s *BundleSource) Documents(context.Context) ([]SourceDocument, error) {
	return s.b.Documents, nil
}

func (s *BundleSource) Files(context.Context) ([]SourceFile, error) { return s.b.Files, nil }

func (s *BundleSource) FriendLinks(context.Context) ([]SourceFriendLink, error) {
	return s.b.FriendLinks, nil
}

func (s *BundleSource) Projects(context.Context) ([]SourceProject, error) {
	return s.b.Projects, nil
}

func (s *BundleSource) Texts(context.Context) ([]SourceText, error) { return s.b.Texts, nil }

func (s *BundleSource) Users(context.Context) ([]SourceUser, error) { return nil, nil }

// Querier is the read side of a pgx pool, connection or transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Export queries of the new schema, aliased to the SourceXxx db tags.
var exportQueries = map[Entity]string{
	Categories:  `SELECT id, name, intro, logo, created_at FROM categories ORDER BY id`,
	Tags:        `SELECT id, name FROM tags ORDER BY id`,
	Blogs:       `SELECT id, title, slug, author, content, html, thumbnail, category_id, view_count::bigint AS view_count, is_published, created_at FROM blogs ORDER BY id`,
	BlogTags:    `SELECT blog_id, tag_id FROM blog_tags ORDER BY blog_id, tag_id`,
	Directories: `SELECT id, name, intro, parent_id, created_at FROM directories ORDER BY id`,
	Documents:   `SELECT id, name, filename, content, directory_id, created_at FROM documents ORDER BY id`,
	Files: `SELECT id, filename, original_filename, file_type, file_size::bigint AS file_size, url,
		thumbnail_url AS thumbnail, width, height, bucket_name, object_key, created_at FROM files ORDER BY id`,
	FriendLinks: `SELECT id, name, url, logo, intro, email, status::bigint AS status, created_at FROM friend_links ORDER BY id`,
	Projects:    `SELECT id, name, description, logo, github_url, preview_url, download_url FROM projects ORDER BY id`,
	Texts:       `SELECT id, name, intro, content, is_encrypted, view_password, created_at, updated_at FROM texts ORDER BY id`,
}

func collect[T any](ctx context.Context, q Querier, e Entity) ([]T, error) {
	rows, err := q.Query(ctx, exportQueries[e])
	if err != nil {
		return nil, fmt.Errorf("exporting %s: %w", e, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("exporting %s: %w", e, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Export reads every bundle section from the new schema. Every section is
// present in the result, empty tables as empty lists.
func Export(ctx context.Context, q Querier, now time.Time) (*Bundle, error) {
	b := &Bundle{Version: BundleVersion, ExportedAt: now.UTC()}
	var err error
	if b.Categories, err = collect[SourceCategory](ctx, q, Categories); err != nil {
		return nil, err
	}
	if b.Tags, err = collect[SourceTag](ctx, q, Tags); err != nil {
		return nil, err
	}
	if b.Blogs, err = collect[SourceBlog](ctx, q, Blogs); err != nil {
		return nil, err
	}
	if b.BlogTags, err = collect[SourceBlogTag](ctx, q, BlogTags); err != nil {
		return nil, err
	}
	if b.FriendLinks, err = collect[SourceFriendLink](ctx, q, FriendLinks); err != nil {
		return nil, err
	}
	if b.Projects, err = collect[SourceProject](ctx, q, Projects); err != nil {
		return nil, err
	}
	if b.Directories, err = collect[SourceDirectory](ctx, q, Directories); err != nil {
		return nil, err
	}
	if b.Documents, err = collect[SourceDocument](ctx, q, Documents); err != nil {
		return nil, err
	}
	if b.Texts, err = collect[SourceText](ctx, q, Texts); err != nil {
		return nil, err
	}
	if b.Files, err = collect[SourceFile](ctx, q, Files); err != nil {
		return nil, err
	}
	return b, nil
}
