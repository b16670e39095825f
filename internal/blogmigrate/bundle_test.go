package blogmigrate

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mdddj/blog-new/internal/testutil"
)

func TestDecodeBundleAbsentSections(t *testing.T) {
	t.Parallel()
	b, err := DecodeBundle(strings.NewReader(`{
		"categories": [{"id": 1, "name": "Go", "intro": null, "logo": null}],
		"tags": [],
		"blogs": null,
		"directories": [{"id": 2, "name": "docs", "parent_id": null, "created_at": "2024-02-03T04:05:06Z"}]
	}`))
	testutil.NoError(t, err)
	testutil.SliceEqual(t, []Entity{Categories, Tags, Directories}, b.Sections())

	src := NewBundleSource(b)
	testutil.True(t, src.Provides(Tags))
	testutil.False(t, src.Provides(Blogs))
	testutil.False(t, src.Provides(Users))

	dirs, err := src.Directories(context.Background())
	testutil.NoError(t, err)
	testutil.Equal(t, 2024, dirs[0].CreatedAt.Year())
}

func TestDecodeBundleMalformed(t *testing.T) {
	t.Parallel()
	_, err := DecodeBundle(strings.NewReader(`{"categories": {}`))
	testutil.ErrorContains(t, err, "decoding bundle")
}

func TestBundleNeverCarriesUsers(t *testing.T) {
	t.Parallel()
	out, err := json.Marshal(Bundle{Version: BundleVersion, Tags: []SourceTag{}})
	testutil.NoError(t, err)
	testutil.NotContains(t, string(out), "user")
	testutil.Contains(t, string(out), `"tags":[]`)
	testutil.Contains(t, string(out), `"blogs":null`)

	users, err := NewBundleSource(&Bundle{}).Users(context.Background())
	testutil.NoError(t, err)
	testutil.SliceLen(t, users, 0)
}

func TestBundleFileThumbnailField(t *testing.T) {
	t.Parallel()
	b, err := DecodeBundle(strings.NewReader(`{"files": [{"id": 1, "url": "https://cdn/a.png", "thumbnail_url": "https://cdn/a_t.png"}]}`))
	testutil.NoError(t, err)
	rec, err := TransformFile(b.Files[0], testNow)
	testutil.NoError(t, err)
	testutil.Equal(t, "https://cdn/a_t.png", *rec.(File).ThumbnailURL)
}

func TestBundleTextFlagForms(t *testing.T) {
	t.Parallel()
	b, err := DecodeBundle(strings.NewReader(`{"texts": [
		{"id": 1, "name": "a", "is_encrypted": true},
		{"id": 2, "name": "b", "is_encrypted": 0},
		{"id": 3, "name": "c", "is_encrypted": 2},
		{"id": 4, "name": "d", "is_encrypted": "false"},
		{"id": 5, "name": "e", "is_encrypted": null}
	]}`))
	testutil.NoError(t, err)
	testutil.SliceLen(t, b.Texts, 5)
	testutil.True(t, bool(*b.Texts[0].IsEncrypted))
	testutil.False(t, bool(*b.Texts[1].IsEncrypted))
	testutil.True(t, bool(*b.Texts[2].IsEncrypted))
	testutil.False(t, bool(*b.Texts[3].IsEncrypted))
	testutil.Nil(t, b.Texts[4].IsEncrypted)

	out, err := json.Marshal(b.Texts[2])
	testutil.NoError(t, err)
	testutil.Contains(t, string(out), `"is_encrypted":true`)
}

func TestFlagScan(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{true, true},
		{int64(0), false},
		{int64(2), true},
		{int64(-1), true},
		{[]byte("1"), true},
		{[]byte("0"), false},
		{"false", false},
		{"Y", true},
	}
	for _, tt := range tests {
		var f Flag
		testutil.NoError(t, f.Scan(tt.in))
		testutil.Equal(t, tt.want, bool(f))
	}

	var f Flag
	testutil.ErrorContains(t, f.Scan(struct{}{}), "cannot scan")
}
