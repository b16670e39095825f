package blogmigrate

import (
	"fmt"
	"time"
)

// Upsert is one idempotent write: insert Columns/Values into Table, and on a
// Conflict key collision overwrite the Update columns. No Update columns
// means the existing row is left alone.
type Upsert struct {
	Table    string
	Conflict []string
	Columns  []string
	Values   []any
	Update   []string
}

// Record is a transformed row ready for the target.
type Record interface {
	// Label names the row in report messages, e.g. "Blog 42".
	Label() string
	Upsert() Upsert
}

type Category struct {
	ID        int64
	Name      string
	Intro     *string
	Logo      *string
	CreatedAt time.Time
}

func (c Category) Label() string { return fmt.Sprintf("Category %d", c.ID) }

func (c Category) Upsert() Upsert {
	return Upsert{
		Table:    string(Categories),
		Conflict: []string{"id"},
		Columns:  []string{"id", "name", "intro", "logo", "created_at"},
		Values:   []any{c.ID, c.Name, c.Intro, c.Logo, c.CreatedAt},
		Update:   []string{"name", "intro", "logo"},
	}
}

type Tag struct {
	ID   int64
	Name string
}

func (t Tag) Label() string { return fmt.Sprintf("Tag %d", t.ID) }

func (t Tag) Upsert() Upsert {
	return Upsert{
		Table:    string(Tags),
		Conflict: []string{"id"},
		Columns:  []string{"id", "name"},
		Values:   []any{t.ID, t.Name},
		Update:   []string{"name"},
	}
}

type Blog struct {
	ID          int64
	Title       string
	Slug        string
	Author      *string
	Content     string
	HTML        *string
	Thumbnail   *string
	CategoryID  *int64
	ViewCount   int64
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// publishedSet marks an explicit source value, which is then also
	// applied to an existing row.
	publishedSet bool
}

func (b Blog) Label() string { return fmt.Sprintf("Blog %d", b.ID) }

func (b Blog) Upsert() Upsert {
	update := []string{"title", "slug", "author", "content", "html", "thumbnail", "category_id", "view_count"}
	if b.publishedSet {
		update = append(update, "is_published")
	}
	return Upsert{
		Table:    string(Blogs),
		Conflict: []string{"id"},
		Columns: []string{"id", "title", "slug", "author", "content", "html", "thumbnail",
			"category_id", "view_count", "is_published", "created_at", "updated_at"},
		Values: []any{b.ID, b.Title, b.Slug, b.Author, b.Content, b.HTML, b.Thumbnail,
			b.CategoryID, b.ViewCount, b.IsPublished, b.CreatedAt, b.UpdatedAt},
		Update: update,
	}
}

type BlogTag struct {
	BlogID int64
	TagID  int64
}

func (bt BlogTag) Label() string { return fmt.Sprintf("BlogTag %d-%d", bt.BlogID, bt.TagID) }

func (bt BlogTag) Upsert() Upsert {
	return Upsert{
		Table:    string(BlogTags),
		Conflict: []string{"blog_id", "tag_id"},
		Columns:  []string{"blog_id", "tag_id"},
		Values:   []any{bt.BlogID, bt.TagID},
	}
}

type Directory struct {
	ID        int64
	Name      string
	Intro     *string
	ParentID  *int64
	SortOrder int32
	CreatedAt time.Time
}

func (d Directory) Label() string { return fmt.Sprintf("Directory %d", d.ID) }

func (d Directory) Upsert() Upsert {
	return Upsert{
		Table:    string(Directories),
		Conflict: []string{"id"},
		Columns:  []string{"id", "name", "intro", "parent_id", "sort_order", "created_at"},
		Values:   []any{d.ID, d.Name, d.Intro, d.ParentID, d.SortOrder, d.CreatedAt},
		Update:   []string{"name", "intro", "parent_id"},
	}
}

type Document struct {
	ID          int64
	Name        string
	Filename    *string
	Content     string
	DirectoryID *int64
	SortOrder   int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (d Document) Label() string { return fmt.Sprintf("Document %d", d.ID) }

func (d Document) Upsert() Upsert {
	return Upsert{
		Table:    string(Documents),
		Conflict: []string{"id"},
		Columns:  []string{"id", "name", "filename", "content", "directory_id", "sort_order", "created_at", "updated_at"},
		Values:   []any{d.ID, d.Name, d.Filename, d.Content, d.DirectoryID, d.SortOrder, d.CreatedAt, d.UpdatedAt},
		Update:   []string{"name", "filename", "content", "directory_id"},
	}
}

type File struct {
	ID               int64
	Filename         string
	OriginalFilename *string
	FileType         *string
	FileSize         *int64
	URL              string
	ThumbnailURL     *string
	Width            *int32
	Height           *int32
	BucketName       *string
	ObjectKey        *string
	CreatedAt        time.Time
}

func (f File) Label() string { return fmt.Sprintf("File %d", f.ID) }

func (f File) Upsert() Upsert {
	return Upsert{
		Table:    string(Files),
		Conflict: []string{"id"},
		Columns: []string{"id", "filename", "original_filename", "file_type", "file_size", "url",
			"thumbnail_url", "width", "height", "bucket_name", "object_key", "created_at"},
		Values: []any{f.ID, f.Filename, f.OriginalFilename, f.FileType, f.FileSize, f.URL,
			f.ThumbnailURL, f.Width, f.Height, f.BucketName, f.ObjectKey, f.CreatedAt},
		Update: []string{"filename", "original_filename", "file_type", "file_size", "url",
			"thumbnail_url", "width", "height"},
	}
}

// Friend link moderation states.
const (
	LinkPending  int16 = 0
	LinkApproved int16 = 1
	LinkRejected int16 = 2
)

type FriendLink struct {
	ID        int64
	Name      string
	URL       string
	Logo      *string
	Intro     *string
	Email     *string
	Status    int16
	CreatedAt time.Time
}

func (l FriendLink) Label() string { return fmt.Sprintf("FriendLink %d", l.ID) }

func (l FriendLink) Upsert() Upsert {
	return Upsert{
		Table:    string(FriendLinks),
		Conflict: []string{"id"},
		Columns:  []string{"id", "name", "url", "logo", "intro", "email", "status", "created_at"},
		Values:   []any{l.ID, l.Name, l.URL, l.Logo, l.Intro, l.Email, l.Status, l.CreatedAt},
		Update:   []string{"name", "url", "logo", "intro", "email", "status"},
	}
}

type Project struct {
	ID          int64
	Name        string
	Description *string
	Logo        *string
	GithubURL   *string
	PreviewURL  *string
	DownloadURL *string
	SortOrder   int32
	CreatedAt   time.Time
}

func (p Project) Label() string { return fmt.Sprintf("Project %d", p.ID) }

func (p Project) Upsert() Upsert {
	return Upsert{
		Table:    string(Projects),
		Conflict: []string{"id"},
		Columns: []string{"id", "name", "description", "logo", "github_url", "preview_url",
			"download_url", "sort_order", "created_at"},
		Values: []any{p.ID, p.Name, p.Description, p.Logo, p.GithubURL, p.PreviewURL,
			p.DownloadURL, p.SortOrder, p.CreatedAt},
		Update: []string{"name", "description", "logo", "github_url", "preview_url", "download_url"},
	}
}

type Text struct {
	ID           int64
	Name         string
	Intro        *string
	Content      string
	IsEncrypted  bool
	ViewPassword *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (t Text) Label() string { return fmt.Sprintf("Text %d", t.ID) }

func (t Text) Upsert() Upsert {
	return Upsert{
		Table:    string(Texts),
		Conflict: []string{"id"},
		Columns:  []string{"id", "name", "intro", "content", "is_encrypted", "view_password", "created_at", "updated_at"},
		Values:   []any{t.ID, t.Name, t.Intro, t.Content, t.IsEncrypted, t.ViewPassword, t.CreatedAt, t.UpdatedAt},
		Update:   []string{"name", "intro", "content", "is_encrypted", "view_password"},
	}
}

// User keeps the legacy password hash as-is. The hash is only written on
// insert so a password changed in the new system survives a re-run.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        *string
	Nickname     *string
	Avatar       *string
	CreatedAt    time.Time
}

func (u User) Label() string { return fmt.Sprintf("User %d", u.ID) }

func (u User) Upsert() Upsert {
	return Upsert{
		Table:    string(Users),
		Conflict: []string{"id"},
		Columns:  []string{"id", "username", "password_hash", "email", "nickname", "avatar", "created_at", "updated_at"},
		Values:   []any{u.ID, u.Username, u.PasswordHash, u.Email, u.Nickname, u.Avatar, u.CreatedAt, u.CreatedAt},
		Update:   []string{"username", "email", "nickname", "avatar"},
	}
}
