// Package blogmigrate moves blog content from the legacy MySQL schema (or a
// JSON export bundle) into the Postgres schema, one entity type at a time,
// with per-row outcomes and idempotent upserts.
package blogmigrate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entity names a migratable entity type by its target table.
type Entity string

const (
	Categories  Entity = "categories"
	Tags        Entity = "tags"
	Blogs       Entity = "blogs"
	BlogTags    Entity = "blog_tags"
	Directories Entity = "directories"
	Documents   Entity = "documents"
	Files       Entity = "files"
	FriendLinks Entity = "friend_links"
	Projects    Entity = "projects"
	Texts       Entity = "texts"
	Users       Entity = "users"
)

// AllEntities lists every entity type in canonical migration order.
var AllEntities = []Entity{
	Categories, Tags, Blogs, BlogTags, Directories, Documents,
	Files, FriendLinks, Projects, Texts, Users,
}

// HasSequence reports whether the target table has a serial id column.
func (e Entity) HasSequence() bool {
	return e != BlogTags
}

func (e Entity) known() bool {
	for _, k := range AllEntities {
		if k == e {
			return true
		}
	}
	return false
}

// ParseEntities converts table names (case-insensitive, "-" accepted for
// "_") into entity types. An empty list means every entity.
func ParseEntities(names []string) ([]Entity, error) {
	if len(names) == 0 {
		return append([]Entity(nil), AllEntities...), nil
	}
	out := make([]Entity, 0, len(names))
	seen := make(map[Entity]bool)
	for _, n := range names {
		e := Entity(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(n)), "-", "_"))
		if e == "" {
			continue
		}
		if !e.known() {
			return nil, fmt.Errorf("unknown table %q", n)
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// Source row shapes. Every non-key column is nullable in the legacy schema,
// so every non-key field is a pointer. The db tags are the column aliases
// used by the legacy reader; the json tags are the export bundle fields.

type SourceCategory struct {
	ID        int64      `db:"id" json:"id"`
	Name      *string    `db:"name" json:"name"`
	Intro     *string    `db:"intro" json:"intro"`
	Logo      *string    `db:"logo" json:"logo"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}

type SourceTag struct {
	ID   int64   `db:"id" json:"id"`
	Name *string `db:"name" json:"name"`
}

type SourceBlog struct {
	ID          int64      `db:"id" json:"id"`
	Title       *string    `db:"title" json:"title"`
	Slug        *string    `db:"slug" json:"slug"`
	Author      *string    `db:"author" json:"author"`
	Content     *string    `db:"content" json:"content"`
	HTML        *string    `db:"html" json:"html"`
	Thumbnail   *string    `db:"thumbnail" json:"thumbnail"`
	CategoryID  *int64     `db:"category_id" json:"category_id"`
	ViewCount   *int64     `db:"view_count" json:"view_count"`
	IsPublished *bool      `db:"is_published" json:"is_published,omitempty"`
	CreatedAt   *time.Time `db:"created_at" json:"created_at,omitempty"`
}

type SourceBlogTag struct {
	BlogID int64 `db:"blog_id" json:"blog_id"`
	TagID  int64 `db:"tag_id" json:"tag_id"`
}

type SourceDirectory struct {
	ID        int64      `db:"id" json:"id"`
	Name      *string    `db:"name" json:"name"`
	Intro     *string    `db:"intro" json:"intro"`
	ParentID  *int64     `db:"parent_id" json:"parent_id"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}

type SourceDocument struct {
	ID          int64      `db:"id" json:"id"`
	Name        *string    `db:"name" json:"name"`
	Filename    *string    `db:"filename" json:"filename"`
	Content     *string    `db:"content" json:"content"`
	DirectoryID *int64     `db:"directory_id" json:"directory_id"`
	CreatedAt   *time.Time `db:"created_at" json:"created_at,omitempty"`
}

type SourceFile struct {
	ID               int64      `db:"id" json:"id"`
	Filename         *string    `db:"filename" json:"filename"`
	OriginalFilename *string    `db:"original_filename" json:"original_filename"`
	FileType         *string    `db:"file_type" json:"file_type"`
	FileSize         *int64     `db:"file_size" json:"file_size"`
	URL              *string    `db:"url" json:"url"`
	Thumbnail        *string    `db:"thumbnail" json:"thumbnail_url"`
	Width            *int32     `db:"width" json:"width"`
	Height           *int32     `db:"height" json:"height"`
	BucketName       *string    `db:"bucket_name" json:"bucket_name"`
	ObjectKey        *string    `db:"object_key" json:"object_key"`
	CreatedAt        *time.Time `db:"created_at" json:"created_at,omitempty"`
}

type SourceFriendLink struct {
	ID        int64      `db:"id" json:"id"`
	Name      *string    `db:"name" json:"name"`
	URL       *string    `db:"url" json:"url"`
	Logo      *string    `db:"logo" json:"logo"`
	Intro     *string    `db:"intro" json:"intro"`
	Email     *string    `db:"email" json:"email"`
	Status    *int64     `db:"status" json:"status"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}

type SourceProject struct {
	ID          int64   `db:"id" json:"id"`
	Name        *string `db:"name" json:"name"`
	Description *string `db:"description" json:"description"`
	Logo        *string `db:"logo" json:"logo"`
	GithubURL   *string `db:"github_url" json:"github_url"`
	PreviewURL  *string `db:"preview_url" json:"preview_url"`
	DownloadURL *string `db:"download_url" json:"download_url"`
}

type SourceText struct {
	ID           int64      `db:"id" json:"id"`
	Name         *string    `db:"name" json:"name"`
	Intro        *string    `db:"intro" json:"intro"`
	Content      *string    `db:"content" json:"content"`
	IsEncrypted  *Flag      `db:"is_encrypted" json:"is_encrypted"`
	ViewPassword *string    `db:"view_password" json:"view_password"`
	CreatedAt    *time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Flag is a legacy boolean column. MySQL stores these as TINYINT, so any
// non-zero value reads as true.
type Flag bool

func (f *Flag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(v)
	case int64:
		*f = v != 0
	case float64:
		*f = v != 0
	case []byte:
		*f = parseFlag(string(v))
	case string:
		*f = parseFlag(v)
	case time.Time:
		*f = Flag(!v.IsZero())
	default:
		return fmt.Errorf("cannot scan %T into Flag", src)
	}
	return nil
}

// UnmarshalJSON accepts booleans, numbers and numeric or boolean strings.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return f.Scan(v)
}

func parseFlag(s string) Flag {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "0", "f", "false", "n", "no", "off":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n != 0
	}
	return true
}

// SourceUser never appears in an export bundle.
type SourceUser struct {
	ID       int64   `db:"id" json:"-"`
	Nickname *string `db:"nickname" json:"-"`
	Email    *string `db:"email" json:"-"`
	Password *string `db:"password" json:"-"`
	Avatar   *string `db:"avatar" json:"-"`
}
