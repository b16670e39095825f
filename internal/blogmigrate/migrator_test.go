package blogmigrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mdddj/blog-new/internal/migrate"
	"github.com/mdddj/blog-new/internal/testutil"
)

// memStore is an in-memory Store keyed by table and conflict key.
type memStore struct {
	mu        sync.Mutex
	rows      map[string]map[string][]any
	fail      map[string]error // keyed by "<table>/<conflict key>"
	resynced  []Entity
	resyncErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]map[string][]any{}, fail: map[string]error{}}
}

func conflictKey(u Upsert) string {
	var parts []string
	for _, c := range u.Conflict {
		for i, col := range u.Columns {
			if col == c {
				parts = append(parts, fmt.Sprint(u.Values[i]))
			}
		}
	}
	return strings.Join(parts, "-")
}

func (s *memStore) Upsert(_ context.Context, u Upsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := conflictKey(u)
	if err := s.fail[u.Table+"/"+key]; err != nil {
		return err
	}
	if s.rows[u.Table] == nil {
		s.rows[u.Table] = map[string][]any{}
	}
	s.rows[u.Table][key] = u.Values
	return nil
}

func (s *memStore) ResyncSequence(_ context.Context, table Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resynced = append(s.resynced, table)
	return s.resyncErr
}

func (s *memStore) count(table Entity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[string(table)])
}

// fakeSource serves fixed rows; errs fails single entity types.
type fakeSource struct {
	categories  []SourceCategory
	tags        []SourceTag
	blogs       []SourceBlog
	blogTags    []SourceBlogTag
	directories []SourceDirectory
	documents   []SourceDocument
	files       []SourceFile
	friendLinks []SourceFriendLink
	projects    []SourceProject
	texts       []SourceText
	users       []SourceUser
	errs        map[Entity]error
}

func (f *fakeSource) Categories(context.Context) ([]SourceCategory, error) {
	return f.categories, f.errs[Categories]
}
func (f *fakeSource) Tags(context.Context) ([]SourceTag, error) { return f.tags, f.errs[Tags] }
func (f *fakeSource) Blogs(context.Context) ([]SourceBlog, error) { return f.blogs, f.errs[Blogs] }
func (f *fakeSource) BlogTags(context.Context) ([]SourceBlogTag, error) {
	return f.blogTags, f.errs[BlogTags]
}
func (f *fakeSource) Directories(context.Context) ([]SourceDirectory, error) {
	return f.directories, f.errs[Directories]
}
func (f *fakeSource) Documents(context.Context) ([]SourceDocument, error) {
	return f.documents, f.errs[Documents]
}
func (f *fakeSource) Files(context.Context) ([]SourceFile, error) { return f.files, f.errs[Files] }
func (f *fakeSource) FriendLinks(context.Context) ([]SourceFriendLink, error) {
	return f.friendLinks, f.errs[FriendLinks]
}
func (f *fakeSource) Projects(context.Context) ([]SourceProject, error) {
	return f.projects, f.errs[Projects]
}
func (f *fakeSource) Texts(context.Context) ([]SourceText, error) { return f.texts, f.errs[Texts] }
func (f *fakeSource) Users(context.Context) ([]SourceUser, error) { return f.users, f.errs[Users] }

func sampleSource() *fakeSource {
	return &fakeSource{
		categories: []SourceCategory{{ID: 1, Name: ptr("Go")}, {ID: 2, Name: ptr("")}},
		tags:       []SourceTag{{ID: 1, Name: ptr("pgx")}, {ID: 2, Name: ptr("sql")}},
		blogs: []SourceBlog{
			{ID: 10, Title: ptr("A"), Content: ptr("a"), CategoryID: ptr(int64(1))},
			{ID: 11, Title: ptr("B"), Content: ptr("b"), CategoryID: ptr(int64(1))},
			{ID: 12, Title: ptr(""), Content: ptr("c")},
		},
		blogTags: []SourceBlogTag{{BlogID: 10, TagID: 1}, {BlogID: 11, TagID: 2}},
		directories: []SourceDirectory{
			{ID: 1, Name: ptr("root")},
			{ID: 2, Name: ptr("child"), ParentID: ptr(int64(1))},
			{ID: 3, Name: ptr("orphan"), ParentID: ptr(int64(99))},
		},
		documents:   []SourceDocument{{ID: 1, Name: ptr("readme"), DirectoryID: ptr(int64(1))}},
		files:       []SourceFile{{ID: 1, URL: ptr("https://cdn/a.png")}, {ID: 2}},
		friendLinks: []SourceFriendLink{{ID: 1, Name: ptr("x"), URL: ptr("https://x"), Status: ptr(int64(1))}},
		projects:    []SourceProject{{ID: 1, Name: ptr("blog")}},
		texts:       []SourceText{{ID: 1, Name: ptr("about"), Content: ptr("hi")}},
		users:       []SourceUser{{ID: 1, Nickname: ptr("admin"), Password: ptr("hash")}},
	}
}

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

func runMigration(t *testing.T, src Source, store Store, opts Options) *migrate.Report {
	t.Helper()
	opts.Logger = testutil.DiscardLogger()
	opts.Now = fixedClock()
	m, err := New(src, store, opts)
	testutil.NoError(t, err)
	report, err := m.Run(context.Background())
	testutil.NoError(t, err)
	return report
}

func assertBalanced(t *testing.T, r *migrate.Report) {
	t.Helper()
	var s, f, k int64
	for _, tr := range r.Tables {
		testutil.True(t, tr.Balanced(), "table %s is not balanced", tr.Table)
		ts, tf, tk := tr.Counts()
		s, f, k = s+ts, f+tf, k+tk
	}
	testutil.Equal(t, s, r.TotalSuccess)
	testutil.Equal(t, f, r.TotalFailed)
	testutil.Equal(t, k, r.TotalSkipped)
}

func TestRunMigratesEveryTable(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	report := runMigration(t, sampleSource(), store, Options{})

	testutil.SliceLen(t, report.Tables, len(AllEntities))
	testutil.SliceLen(t, report.Errors, 0)
	testutil.NotNil(t, report.CompletedAt)
	assertBalanced(t, report)

	cats := report.Table("categories")
	testutil.Equal(t, int64(1), cats.SuccessCount)
	testutil.Equal(t, int64(1), cats.SkippedCount)
	testutil.SliceEqual(t, []string{"Category 2 has empty name, skipped"}, cats.Errors)

	dirs := report.Table("directories")
	testutil.Equal(t, int64(2), dirs.SuccessCount)
	testutil.SliceEqual(t, []string{"Directory 3 has missing parent 99, skipped"}, dirs.Errors)

	files := report.Table("files")
	testutil.Equal(t, int64(1), files.SkippedCount)

	testutil.Equal(t, 2, store.count(Blogs))
	testutil.Equal(t, 2, store.count(BlogTags))
	testutil.Equal(t, 1, store.count(Users))

	// Every table but the junction table is resynced, in run order.
	var want []Entity
	for _, e := range AllEntities {
		if e.HasSequence() {
			want = append(want, e)
		}
	}
	testutil.SliceEqual(t, want, store.resynced)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	first := runMigration(t, sampleSource(), store, Options{})
	rows := store.count(Blogs)

	second := runMigration(t, sampleSource(), store, Options{})
	testutil.Equal(t, first.TotalSuccess, second.TotalSuccess)
	testutil.Equal(t, first.TotalFailed, second.TotalFailed)
	testutil.Equal(t, first.TotalSkipped, second.TotalSkipped)
	testutil.Equal(t, rows, store.count(Blogs))
	testutil.True(t, first.RunID != second.RunID)
}

func TestRunIsolatesRowFailures(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.fail["blogs/10"] = errors.New(`insert or update on table "blogs" violates foreign key constraint`)

	report := runMigration(t, sampleSource(), store, Options{})
	blogs := report.Table("blogs")
	testutil.Equal(t, int64(1), blogs.SuccessCount)
	testutil.Equal(t, int64(1), blogs.FailedCount)
	testutil.Equal(t, int64(1), blogs.SkippedCount)
	testutil.Contains(t, strings.Join(blogs.Errors, "\n"), "Blog 10: insert or update on table")

	// The next table still ran in full.
	testutil.Equal(t, int64(2), report.Table("blog_tags").SuccessCount)
	assertBalanced(t, report)
}

func TestRunChildOfFailedDirectoryIsSkipped(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.fail["directories/1"] = errors.New("boom")
	src := &fakeSource{directories: []SourceDirectory{
		{ID: 1, Name: ptr("root")},
		{ID: 2, Name: ptr("child"), ParentID: ptr(int64(1))},
	}}
	report := runMigration(t, src, store, Options{Entities: []Entity{Directories}})
	dirs := report.Table("directories")
	testutil.Equal(t, int64(1), dirs.FailedCount)
	testutil.Equal(t, int64(1), dirs.SkippedCount)
	testutil.SliceEqual(t, []string{"Directory 1: boom", "Directory 2 has missing parent 1, skipped"}, dirs.Errors)
}

func TestRunRecordsReadErrorAndContinues(t *testing.T) {
	t.Parallel()
	src := sampleSource()
	src.errs = map[Entity]error{Tags: errors.New("table tag doesn't exist")}
	report := runMigration(t, src, newMemStore(), Options{})

	testutil.Nil(t, report.Table("tags"))
	testutil.SliceEqual(t, []string{"tags migration failed: table tag doesn't exist"}, report.Errors)
	testutil.NotNil(t, report.Table("users"))
}

func TestRunRecordsResyncFailure(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.resyncErr = errors.New("permission denied for sequence")
	report := runMigration(t, sampleSource(), store, Options{Entities: []Entity{Tags, BlogTags}})

	testutil.SliceEqual(t, []string{"tags sequence resync failed: permission denied for sequence"}, report.Errors)
	testutil.Equal(t, int64(4), report.TotalSuccess)
}

func TestRunConcurrentCountsMatchSerial(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	for i := int64(1); i <= 200; i++ {
		name := fmt.Sprintf("tag %d", i)
		if i%10 == 0 {
			name = ""
		}
		src.tags = append(src.tags, SourceTag{ID: i, Name: &name})
	}
	store := newMemStore()
	store.fail["tags/7"] = errors.New("boom")

	report := runMigration(t, src, store, Options{Entities: []Entity{Tags}, Concurrency: 8})
	tags := report.Table("tags")
	testutil.Equal(t, int64(200), tags.SourceCount)
	testutil.Equal(t, int64(179), tags.SuccessCount)
	testutil.Equal(t, int64(1), tags.FailedCount)
	testutil.Equal(t, int64(20), tags.SkippedCount)
	assertBalanced(t, report)
}

func TestRunConcurrentErrorsKeepSourceOrder(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	for i := int64(1); i <= 100; i++ {
		name := fmt.Sprintf("tag %d", i)
		if i%3 == 0 {
			name = ""
		}
		src.tags = append(src.tags, SourceTag{ID: i, Name: &name})
	}
	failing := func() *memStore {
		store := newMemStore()
		store.fail["tags/4"] = errors.New("boom")
		store.fail["tags/50"] = errors.New("boom")
		return store
	}

	serial := runMigration(t, src, failing(), Options{Entities: []Entity{Tags}})
	parallel := runMigration(t, src, failing(), Options{Entities: []Entity{Tags}, Concurrency: 16})
	testutil.SliceLen(t, serial.Table("tags").Errors, 35)
	testutil.SliceEqual(t, serial.Table("tags").Errors, parallel.Table("tags").Errors)
}

func TestRunBundleSkipsAbsentSections(t *testing.T) {
	t.Parallel()
	b := &Bundle{
		Tags:  []SourceTag{{ID: 1, Name: ptr("go")}},
		Blogs: []SourceBlog{},
	}
	store := newMemStore()
	report := runMigration(t, NewBundleSource(b), store, Options{})

	testutil.SliceLen(t, report.Tables, 2)
	testutil.Equal(t, "tags", report.Tables[0].Table)
	testutil.Equal(t, "blogs", report.Tables[1].Table)
	testutil.Equal(t, int64(0), report.Tables[1].SourceCount)
	testutil.SliceEqual(t, []Entity{Tags, Blogs}, store.resynced)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := New(sampleSource(), newMemStore(), Options{Logger: testutil.DiscardLogger()})
	testutil.NoError(t, err)
	report, err := m.Run(ctx)
	testutil.True(t, errors.Is(err, context.Canceled))
	testutil.NotNil(t, report)
	testutil.SliceLen(t, report.Tables, 0)
	testutil.Contains(t, report.Errors[0], "migration cancelled before categories")
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	_, err := New(nil, newMemStore(), Options{})
	testutil.ErrorContains(t, err, "source is required")
	_, err = New(sampleSource(), nil, Options{})
	testutil.ErrorContains(t, err, "store is required")
	_, err = New(sampleSource(), newMemStore(), Options{Concurrency: -1})
	testutil.ErrorContains(t, err, "concurrency must be >= 0")
	_, err = New(sampleSource(), newMemStore(), Options{Entities: []Entity{"comments"}})
	testutil.ErrorContains(t, err, `unknown table "comments"`)
}

// recordingReporter captures progress callbacks.
type recordingReporter struct {
	mu       sync.Mutex
	started  []string
	finished []string
	warnings []string
}

func (r *recordingReporter) StartPhase(p migrate.Phase, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, p.Name)
}

func (r *recordingReporter) Progress(migrate.Phase, int, int) {}

func (r *recordingReporter) CompletePhase(p migrate.Phase, _ *migrate.TableResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, fmt.Sprintf("%d/%d %s", p.Index, p.Total, p.Name))
}

func (r *recordingReporter) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func TestRunReportsProgress(t *testing.T) {
	t.Parallel()
	rep := &recordingReporter{}
	src := sampleSource()
	src.errs = map[Entity]error{Blogs: errors.New("gone")}
	runMigration(t, src, newMemStore(), Options{Entities: []Entity{Blogs, Categories}, Progress: rep})

	testutil.SliceEqual(t, []string{"categories"}, rep.started)
	testutil.SliceEqual(t, []string{"1/2 categories"}, rep.finished)
	testutil.SliceEqual(t, []string{"blogs migration failed: gone"}, rep.warnings)
}
