package blogmigrate

import (
	"fmt"
	"strings"
	"time"
)

// SkipError marks a source row that fails a business rule. It is recorded
// as Skipped, never as Failed.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return e.Reason }

func skipf(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// text returns the value of an optional string, or "" when absent.
func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return t.UTC()
}

// fallbackSlug is the deterministic alias for rows without one.
func fallbackSlug(entity string, id int64) string {
	return fmt.Sprintf("%s-%d", entity, id)
}

// TransformCategory maps a legacy category. now stands in for missing timestamps.
func TransformCategory(s SourceCategory, now time.Time) (Record, error) {
	name := text(s.Name)
	if blank(name) {
		return nil, skipf("Category %d has empty name, skipped", s.ID)
	}
	return Category{ID: s.ID, Name: name, Intro: s.Intro, Logo: s.Logo, CreatedAt: timeOr(s.CreatedAt, now)}, nil
}

func TransformTag(s SourceTag, _ time.Time) (Record, error) {
	name := text(s.Name)
	if blank(name) {
		return nil, skipf("Tag %d has empty name, skipped", s.ID)
	}
	return Tag{ID: s.ID, Name: name}, nil
}

// TransformBlog requires a title and content. The category reference is
// left for the target's foreign key to check.
func TransformBlog(s SourceBlog, now time.Time) (Record, error) {
	title, content := text(s.Title), text(s.Content)
	if blank(title) || blank(content) {
		return nil, skipf("Blog %d has empty title or content, skipped", s.ID)
	}
	slug := strings.TrimSpace(text(s.Slug))
	if slug == "" {
		slug = fallbackSlug("blog", s.ID)
	}
	var views int64
	if s.ViewCount != nil && *s.ViewCount > 0 {
		views = *s.ViewCount
	}
	created := timeOr(s.CreatedAt, now)
	b := Blog{
		ID:          s.ID,
		Title:       title,
		Slug:        slug,
		Author:      s.Author,
		Content:     content,
		HTML:        s.HTML,
		Thumbnail:   s.Thumbnail,
		CategoryID:  s.CategoryID,
		ViewCount:   views,
		IsPublished: true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if s.IsPublished != nil {
		b.IsPublished = *s.IsPublished
		b.publishedSet = true
	}
	return b, nil
}

func TransformBlogTag(s SourceBlogTag, _ time.Time) (Record, error) {
	if s.BlogID <= 0 || s.TagID <= 0 {
		return nil, skipf("BlogTag %d-%d has an invalid id, skipped", s.BlogID, s.TagID)
	}
	return BlogTag{BlogID: s.BlogID, TagID: s.TagID}, nil
}

// TransformDirectory does not check the parent; the migrator only attempts
// a directory once its parent is in place.
func TransformDirectory(s SourceDirectory, now time.Time) (Record, error) {
	name := text(s.Name)
	if blank(name) {
		return nil, skipf("Directory %d has empty name, skipped", s.ID)
	}
	return Directory{ID: s.ID, Name: name, Intro: s.Intro, ParentID: s.ParentID, CreatedAt: timeOr(s.CreatedAt, now)}, nil
}

func TransformDocument(s SourceDocument, now time.Time) (Record, error) {
	name := text(s.Name)
	if blank(name) {
		return nil, skipf("Document %d has empty name, skipped", s.ID)
	}
	created := timeOr(s.CreatedAt, now)
	return Document{
		ID:          s.ID,
		Name:        name,
		Filename:    s.Filename,
		Content:     text(s.Content),
		DirectoryID: s.DirectoryID,
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

func TransformFile(s SourceFile, now time.Time) (Record, error) {
	url := strings.TrimSpace(text(s.URL))
	if url == "" {
		return nil, skipf("File %d has no URL, skipped", s.ID)
	}
	filename := text(s.Filename)
	if blank(filename) {
		filename = "unknown"
	}
	return File{
		ID:               s.ID,
		Filename:         filename,
		OriginalFilename: s.OriginalFilename,
		FileType:         s.FileType,
		FileSize:         s.FileSize,
		URL:              url,
		ThumbnailURL:     s.Thumbnail,
		Width:            s.Width,
		Height:           s.Height,
		BucketName:       s.BucketName,
		ObjectKey:        s.ObjectKey,
		CreatedAt:        timeOr(s.CreatedAt, now),
	}, nil
}

// friendLinkStatus maps the legacy state column. Anything that is not a
// known pending/approved value lands in rejected.
func friendLinkStatus(state *int64) int16 {
	if state == nil {
		return LinkRejected
	}
	switch *state {
	case int64(LinkPending), int64(LinkApproved):
		return int16(*state)
	default:
		return LinkRejected
	}
}

func TransformFriendLink(s SourceFriendLink, now time.Time) (Record, error) {
	name, url := text(s.Name), strings.TrimSpace(text(s.URL))
	if blank(name) || url == "" {
		return nil, skipf("FriendLink %d has empty name or url, skipped", s.ID)
	}
	return FriendLink{
		ID:        s.ID,
		Name:      name,
		URL:       url,
		Logo:      s.Logo,
		Intro:     s.Intro,
		Email:     s.Email,
		Status:    friendLinkStatus(s.Status),
		CreatedAt: timeOr(s.CreatedAt, now),
	}, nil
}

func TransformProject(s SourceProject, now time.Time) (Record, error) {
	name := text(s.Name)
	if blank(name) {
		return nil, skipf("Project %d has empty name, skipped", s.ID)
	}
	return Project{
		ID:          s.ID,
		Name:        name,
		Description: s.Description,
		Logo:        s.Logo,
		GithubURL:   s.GithubURL,
		PreviewURL:  s.PreviewURL,
		DownloadURL: s.DownloadURL,
		CreatedAt:   now,
	}, nil
}

// TransformText skips encrypted texts that have no view password.
func TransformText(s SourceText, now time.Time) (Record, error) {
	name := text(s.Name)
	if blank(name) {
		return nil, skipf("Text %d has empty name, skipped", s.ID)
	}
	encrypted := s.IsEncrypted != nil && bool(*s.IsEncrypted)
	if encrypted && blank(text(s.ViewPassword)) {
		return nil, skipf("Text %d is encrypted but has no view password, skipped", s.ID)
	}
	created := timeOr(s.CreatedAt, now)
	return Text{
		ID:           s.ID,
		Name:         name,
		Intro:        s.Intro,
		Content:      text(s.Content),
		IsEncrypted:  encrypted,
		ViewPassword: s.ViewPassword,
		CreatedAt:    created,
		UpdatedAt:    timeOr(s.UpdatedAt, created),
	}, nil
}

func TransformUser(s SourceUser, now time.Time) (Record, error) {
	hash := strings.TrimSpace(text(s.Password))
	if hash == "" {
		return nil, skipf("User %d has no password, skipped", s.ID)
	}
	username := strings.TrimSpace(text(s.Nickname))
	if username == "" {
		username = fallbackSlug("user", s.ID)
	}
	return User{
		ID:           s.ID,
		Username:     username,
		PasswordHash: hash,
		Email:        s.Email,
		Nickname:     s.Nickname,
		Avatar:       s.Avatar,
		CreatedAt:    now,
	}, nil
}
