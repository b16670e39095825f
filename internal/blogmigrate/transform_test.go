package blogmigrate

import (
	"errors"
	"testing"
	"time"

	"github.com/mdddj/blog-new/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func skipReason(t *testing.T, err error) string {
	t.Helper()
	var skip *SkipError
	testutil.True(t, errors.As(err, &skip))
	return skip.Reason
}

func TestTransformBlogSlugFallback(t *testing.T) {
	t.Parallel()
	rec, err := TransformBlog(SourceBlog{ID: 42, Title: ptr("Hello"), Content: ptr("body")}, testNow)
	testutil.NoError(t, err)
	b := rec.(Blog)
	testutil.Equal(t, "blog-42", b.Slug)
	testutil.Equal(t, int64(0), b.ViewCount)
	testutil.True(t, b.IsPublished)
	testutil.Equal(t, testNow, b.CreatedAt)
	testutil.Equal(t, testNow, b.UpdatedAt)
	testutil.Equal(t, "Blog 42", rec.Label())

	// is_published is only overwritten on conflict when the source says so.
	testutil.False(t, contains(rec.Upsert().Update, "is_published"))
}

func TestTransformBlog(t *testing.T) {
	t.Parallel()
	created := time.Date(2019, 5, 4, 10, 0, 0, 0, time.FixedZone("CST", 8*3600))

	tests := []struct {
		name    string
		src     SourceBlog
		skip    string
		slug    string
		views   int64
		publish bool
	}{
		{name: "empty title", src: SourceBlog{ID: 1, Title: ptr("  "), Content: ptr("x")}, skip: "Blog 1 has empty title or content, skipped"},
		{name: "null content", src: SourceBlog{ID: 2, Title: ptr("t")}, skip: "Blog 2 has empty title or content, skipped"},
		{name: "alias kept", src: SourceBlog{ID: 3, Title: ptr("t"), Content: ptr("c"), Slug: ptr(" my-post ")}, slug: "my-post", publish: true},
		{name: "negative views clamp", src: SourceBlog{ID: 4, Title: ptr("t"), Content: ptr("c"), ViewCount: ptr(int64(-3))}, slug: "blog-4", publish: true},
		{name: "views kept", src: SourceBlog{ID: 5, Title: ptr("t"), Content: ptr("c"), ViewCount: ptr(int64(17))}, slug: "blog-5", views: 17, publish: true},
		{name: "explicit draft", src: SourceBlog{ID: 6, Title: ptr("t"), Content: ptr("c"), IsPublished: ptr(false), CreatedAt: &created}, slug: "blog-6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, err := TransformBlog(tt.src, testNow)
			if tt.skip != "" {
				testutil.Nil(t, rec)
				testutil.Equal(t, tt.skip, skipReason(t, err))
				return
			}
			testutil.NoError(t, err)
			b := rec.(Blog)
			testutil.Equal(t, tt.slug, b.Slug)
			testutil.Equal(t, tt.views, b.ViewCount)
			testutil.Equal(t, tt.publish, b.IsPublished)
		})
	}
}

func TestTransformBlogKeepsSourceTimestampInUTC(t *testing.T) {
	t.Parallel()
	created := time.Date(2019, 5, 4, 10, 0, 0, 0, time.FixedZone("CST", 8*3600))
	rec, err := TransformBlog(SourceBlog{ID: 7, Title: ptr("t"), Content: ptr("c"), IsPublished: ptr(false), CreatedAt: &created}, testNow)
	testutil.NoError(t, err)
	b := rec.(Blog)
	testutil.Equal(t, time.Date(2019, 5, 4, 2, 0, 0, 0, time.UTC), b.CreatedAt)
	testutil.True(t, contains(b.Upsert().Update, "is_published"))
}

func TestTransformSkips(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		run  func() (Record, error)
		want string
	}{
		{"category", func() (Record, error) { return TransformCategory(SourceCategory{ID: 3}, testNow) }, "Category 3 has empty name, skipped"},
		{"tag", func() (Record, error) { return TransformTag(SourceTag{ID: 4, Name: ptr("")}, testNow) }, "Tag 4 has empty name, skipped"},
		{"blog tag", func() (Record, error) { return TransformBlogTag(SourceBlogTag{BlogID: 0, TagID: 2}, testNow) }, "BlogTag 0-2 has an invalid id, skipped"},
		{"directory", func() (Record, error) { return TransformDirectory(SourceDirectory{ID: 5}, testNow) }, "Directory 5 has empty name, skipped"},
		{"document", func() (Record, error) { return TransformDocument(SourceDocument{ID: 6}, testNow) }, "Document 6 has empty name, skipped"},
		{"file", func() (Record, error) { return TransformFile(SourceFile{ID: 7, URL: ptr(" ")}, testNow) }, "File 7 has no URL, skipped"},
		{"friend link", func() (Record, error) {
			return TransformFriendLink(SourceFriendLink{ID: 8, Name: ptr("x")}, testNow)
		}, "FriendLink 8 has empty name or url, skipped"},
		{"project", func() (Record, error) { return TransformProject(SourceProject{ID: 9}, testNow) }, "Project 9 has empty name, skipped"},
		{"encrypted text", func() (Record, error) {
			return TransformText(SourceText{ID: 10, Name: ptr("n"), IsEncrypted: ptr(Flag(true))}, testNow)
		}, "Text 10 is encrypted but has no view password, skipped"},
		{"user", func() (Record, error) { return TransformUser(SourceUser{ID: 11, Nickname: ptr("bob")}, testNow) }, "User 11 has no password, skipped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, err := tt.run()
			testutil.Nil(t, rec)
			testutil.Equal(t, tt.want, skipReason(t, err))
		})
	}
}

func TestTransformDefaults(t *testing.T) {
	t.Parallel()

	rec, err := TransformDocument(SourceDocument{ID: 1, Name: ptr("readme")}, testNow)
	testutil.NoError(t, err)
	doc := rec.(Document)
	testutil.Equal(t, "", doc.Content)
	testutil.Equal(t, int32(0), doc.SortOrder)
	testutil.Equal(t, testNow, doc.CreatedAt)

	rec, err = TransformFile(SourceFile{ID: 2, URL: ptr("https://cdn/x.png")}, testNow)
	testutil.NoError(t, err)
	testutil.Equal(t, "unknown", rec.(File).Filename)

	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err = TransformText(SourceText{ID: 3, Name: ptr("n"), CreatedAt: &created}, testNow)
	testutil.NoError(t, err)
	txt := rec.(Text)
	testutil.Equal(t, created, txt.UpdatedAt)
	testutil.False(t, txt.IsEncrypted)

	rec, err = TransformText(SourceText{ID: 4, Name: ptr("n"), IsEncrypted: ptr(Flag(true)), ViewPassword: ptr("pw")}, testNow)
	testutil.NoError(t, err)
	testutil.True(t, rec.(Text).IsEncrypted)

	rec, err = TransformProject(SourceProject{ID: 5, Name: ptr("p")}, testNow)
	testutil.NoError(t, err)
	testutil.Equal(t, testNow, rec.(Project).CreatedAt)
}

func TestTransformUser(t *testing.T) {
	t.Parallel()
	rec, err := TransformUser(SourceUser{ID: 7, Password: ptr("$2a$10$hash")}, testNow)
	testutil.NoError(t, err)
	u := rec.(User)
	testutil.Equal(t, "user-7", u.Username)
	testutil.Equal(t, "$2a$10$hash", u.PasswordHash)

	rec, err = TransformUser(SourceUser{ID: 8, Nickname: ptr(" alice "), Password: ptr("h")}, testNow)
	testutil.NoError(t, err)
	testutil.Equal(t, "alice", rec.(User).Username)

	// A re-run never overwrites a password changed in the new system.
	testutil.False(t, contains(rec.Upsert().Update, "password_hash"))
}

func TestFriendLinkStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   *int64
		want int16
	}{
		{nil, LinkRejected},
		{ptr(int64(0)), LinkPending},
		{ptr(int64(1)), LinkApproved},
		{ptr(int64(2)), LinkRejected},
		{ptr(int64(9)), LinkRejected},
		{ptr(int64(-1)), LinkRejected},
		{ptr(int64(40000)), LinkRejected},
		{ptr(int64(65536 + 1)), LinkRejected},
	}
	for _, tt := range tests {
		rec, err := TransformFriendLink(SourceFriendLink{ID: 1, Name: ptr("n"), URL: ptr("https://x"), Status: tt.in}, testNow)
		testutil.NoError(t, err)
		testutil.Equal(t, tt.want, rec.(FriendLink).Status)
	}
}

func TestBlogTagUpsertDoesNothingOnConflict(t *testing.T) {
	t.Parallel()
	rec, err := TransformBlogTag(SourceBlogTag{BlogID: 1, TagID: 2}, testNow)
	testutil.NoError(t, err)
	u := rec.Upsert()
	testutil.SliceEqual(t, []string{"blog_id", "tag_id"}, u.Conflict)
	testutil.SliceLen(t, u.Update, 0)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
