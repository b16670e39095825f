package blogmigrate

import (
	"testing"

	"github.com/mdddj/blog-new/internal/testutil"
)

func TestPlanAll(t *testing.T) {
	t.Parallel()
	got, err := Plan(AllEntities)
	testutil.NoError(t, err)
	testutil.SliceEqual(t, AllEntities, got)
}

func TestPlanReordersSubset(t *testing.T) {
	t.Parallel()
	got, err := Plan([]Entity{BlogTags, Documents, Blogs, Tags, Directories, Categories})
	testutil.NoError(t, err)
	testutil.SliceEqual(t, []Entity{Categories, Tags, Blogs, BlogTags, Directories, Documents}, got)
}

func TestPlanIgnoresDependenciesOutsideRun(t *testing.T) {
	t.Parallel()
	got, err := Plan([]Entity{Documents, Blogs})
	testutil.NoError(t, err)
	testutil.SliceEqual(t, []Entity{Blogs, Documents}, got)
}

func TestOrderDetectsCycle(t *testing.T) {
	t.Parallel()
	deps := map[Entity][]Entity{
		Tags:  {Blogs},
		Blogs: {Tags},
	}
	_, err := order([]Entity{Categories, Blogs, Tags}, deps)
	testutil.ErrorContains(t, err, "dependency cycle between tags, blogs")
}

func TestParseEntities(t *testing.T) {
	t.Parallel()

	all, err := ParseEntities(nil)
	testutil.NoError(t, err)
	testutil.SliceEqual(t, AllEntities, all)

	got, err := ParseEntities([]string{"Friend-Links", "tags", " tags ", ""})
	testutil.NoError(t, err)
	testutil.SliceEqual(t, []Entity{FriendLinks, Tags}, got)

	_, err = ParseEntities([]string{"comments"})
	testutil.ErrorContains(t, err, `unknown table "comments"`)
}

type node struct {
	id     int64
	parent *int64
}

func resolve(rows []node, fail map[int64]bool) (attempted []int64, leftover []int64) {
	rest := resolveHierarchy(rows,
		func(n node) int64 { return n.id },
		func(n node) *int64 { return n.parent },
		func(n node) bool {
			attempted = append(attempted, n.id)
			return !fail[n.id]
		})
	for _, n := range rest {
		leftover = append(leftover, n.id)
	}
	return attempted, leftover
}

func TestResolveHierarchyMissingParent(t *testing.T) {
	t.Parallel()
	attempted, leftover := resolve([]node{
		{id: 1},
		{id: 2, parent: ptr(int64(1))},
		{id: 3, parent: ptr(int64(99))},
	}, nil)
	testutil.SliceEqual(t, []int64{1, 2}, attempted)
	testutil.SliceEqual(t, []int64{3}, leftover)
}

func TestResolveHierarchyDeepChainOutOfOrder(t *testing.T) {
	t.Parallel()
	// 4 -> 3 -> 2 -> 1, listed leaf first.
	attempted, leftover := resolve([]node{
		{id: 4, parent: ptr(int64(3))},
		{id: 3, parent: ptr(int64(2))},
		{id: 2, parent: ptr(int64(1))},
		{id: 1},
	}, nil)
	testutil.SliceEqual(t, []int64{1, 2, 3, 4}, attempted)
	testutil.SliceLen(t, leftover, 0)
}

func TestResolveHierarchyFailedParent(t *testing.T) {
	t.Parallel()
	attempted, leftover := resolve([]node{
		{id: 1},
		{id: 2, parent: ptr(int64(1))},
		{id: 3, parent: ptr(int64(2))},
		{id: 4},
	}, map[int64]bool{2: true})
	// 2 is attempted once and never retried; its child is left over.
	testutil.SliceEqual(t, []int64{1, 4, 2}, attempted)
	testutil.SliceEqual(t, []int64{3}, leftover)
}

func TestResolveHierarchyCycles(t *testing.T) {
	t.Parallel()
	attempted, leftover := resolve([]node{
		{id: 1, parent: ptr(int64(1))},
		{id: 2, parent: ptr(int64(3))},
		{id: 3, parent: ptr(int64(2))},
		{id: 4},
	}, nil)
	testutil.SliceEqual(t, []int64{4}, attempted)
	testutil.SliceEqual(t, []int64{1, 2, 3}, leftover)
}
