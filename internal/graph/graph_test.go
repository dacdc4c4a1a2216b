package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/testutil"
)

func engine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	store, _ := testutil.MemVault(t, files)
	return New(store, DefaultConfig())
}

func relatedIDs(res *RelatedResult) []string {
	out := make([]string, 0, len(res.Related))
	for _, r := range res.Related {
		out = append(out, r.Node.ID)
	}
	return out
}

func TestRelatedNodes_TieredRanking(t *testing.T) {
	e := engine(t, map[string]string{
		"p.md": testutil.Note("P", []string{"a", "b", "c"}, []string{"linked"}, "seed"),
		"linked.md": testutil.Note("Linked", nil, nil, "target of p"),
		"back.md":   testutil.Note("Back", nil, nil, "points at [[p]]"),
		"q.md":      testutil.Note("Q", []string{"b", "c", "d"}, nil, "similar"),
		"s.md":      testutil.Note("S", []string{"a"}, nil, "less similar"),
		"none.md":   testutil.Note("None", []string{"z"}, nil, "unrelated"),
	})

	res, err := e.RelatedNodes("", "p", DefaultRelatedOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"linked", "back", "q", "s"}, relatedIDs(res))

	assert.Equal(t, models.EdgeDeclaredLink, res.Related[0].Relationship)
	assert.Equal(t, 100, res.Related[0].Score)
	assert.Equal(t, models.EdgeBackLink, res.Related[1].Relationship)
	assert.Equal(t, 90, res.Related[1].Score)
	assert.Equal(t, models.EdgeTagSimilarity, res.Related[2].Relationship)
	assert.Equal(t, 2*DefaultConfig().TagWeight, res.Related[2].Score)
	assert.Equal(t, []string{"b", "c"}, res.Related[2].SharedTags)
}

func TestRelatedNodes_LinksOutrankManySharedTags(t *testing.T) {
	tags := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	e := engine(t, map[string]string{
		"p.md":    testutil.Note("P", tags, []string{"l"}, "seed"),
		"l.md":    testutil.Note("L", nil, nil, "linked"),
		"twin.md": testutil.Note("Twin", tags, nil, "shares everything"),
	})
	res, err := e.RelatedNodes("", "p", DefaultRelatedOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"l", "twin"}, relatedIDs(res))
	assert.Equal(t, 120, res.Related[1].Score)
}

func TestRelatedNodes_FirstRelationshipWins(t *testing.T) {
	e := engine(t, map[string]string{
		"p.md": testutil.Note("P", []string{"x"}, []string{"both"}, "seed"),
		"both.md": testutil.Note("Both", []string{"x"}, nil, "links back to [[p]]"),
	})
	res, err := e.RelatedNodes("", "p", DefaultRelatedOptions())
	require.NoError(t, err)
	require.Len(t, res.Related, 1)
	assert.Equal(t, models.EdgeDeclaredLink, res.Related[0].Relationship)
}

func TestRelatedNodes_OptionsAndLimit(t *testing.T) {
	e := engine(t, map[string]string{
		"p.md": testutil.Note("P", []string{"x"}, []string{"l", "nowhere"}, "seed [[p]] [[missing]]"),
		"l.md": testutil.Note("L", nil, nil, "linked"),
		"s.md": testutil.Note("S", []string{"x"}, nil, "similar"),
	})

	res, err := e.RelatedNodes("", "p", RelatedOptions{IncludeSimilar: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, relatedIDs(res))

	res, err = e.RelatedNodes("", "p", RelatedOptions{IncludeLinked: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"l"}, relatedIDs(res))

	opts := DefaultRelatedOptions()
	opts.MaxResults = 1
	res, err = e.RelatedNodes("", "p", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"l"}, relatedIDs(res))
	assert.Equal(t, 2, res.Total)

	opts.MaxResults = -1
	_, err = e.RelatedNodes("", "p", opts)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestRelatedNodes_SeedErrors(t *testing.T) {
	e := engine(t, map[string]string{
		"ok.md":     testutil.Note("OK", nil, nil, "fine"),
		"broken.md": "---\ntitle: [oops\n---\n",
	})
	_, err := e.RelatedNodes("", "absent", DefaultRelatedOptions())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.RelatedNodes("", "broken", DefaultRelatedOptions())
	assert.ErrorIs(t, err, apperr.ErrCorruptNode)

	res, err := e.RelatedNodes("", "ok", DefaultRelatedOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Related)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "broken", res.Warnings[0].ID)
}

func TestRelatedNodes_Deterministic(t *testing.T) {
	e := engine(t, map[string]string{
		"p.md": testutil.Note("P", []string{"x"}, nil, "seed"),
		"b.md": testutil.Note("B", []string{"x"}, nil, "one"),
		"a.md": testutil.Note("A", []string{"x"}, nil, "two"),
		"c.md": testutil.Note("C", []string{"x"}, nil, "three"),
	})
	first, err := e.RelatedNodes("", "p", DefaultRelatedOptions())
	require.NoError(t, err)
	second, err := e.RelatedNodes("", "p", DefaultRelatedOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b", "c"}, relatedIDs(first))
}

func cycleVault() map[string]string {
	return map[string]string{
		"a.md": testutil.Note("A", nil, nil, "to [[b]] and [[ghost]]"),
		"b.md": testutil.Note("B", nil, nil, "to [[c]]"),
		"c.md": testutil.Note("C", nil, nil, "back to [[a]]"),
		"d.md": testutil.Note("D", nil, nil, "also points at [[a]]"),
	}
}

func nodeIDs(g *LinkGraph) []string {
	out := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n.ID)
	}
	return out
}

func edgePairs(g *LinkGraph) [][2]string {
	out := make([][2]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		out = append(out, [2]string{e.Source, e.Target})
	}
	return out
}

func TestLinkGraph_CycleTerminates(t *testing.T) {
	e := engine(t, cycleVault())
	g, err := e.LinkGraph("", "a", 5, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, nodeIDs(g))
	assert.Equal(t, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}, edgePairs(g))
	assert.Equal(t, []string{"ghost"}, g.Missing)
	assert.Equal(t, GraphStats{TotalNodes: 3, TotalEdges: 3, MaxDepth: 2}, g.Stats)
	assert.True(t, g.Nodes[0].Central)
}

func TestLinkGraph_DepthBound(t *testing.T) {
	e := engine(t, cycleVault())

	g, err := e.LinkGraph("", "a", 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, nodeIDs(g))
	assert.Empty(t, g.Edges)

	g, err = e.LinkGraph("", "a", 1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, nodeIDs(g))
	assert.Equal(t, [][2]string{{"a", "b"}}, edgePairs(g))
	assert.Equal(t, 1, g.Stats.MaxDepth)
}

func TestLinkGraph_Backlinks(t *testing.T) {
	e := engine(t, cycleVault())
	g, err := e.LinkGraph("", "a", 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, nodeIDs(g))
	for _, n := range g.Nodes[2:] {
		assert.Equal(t, 1, n.Depth)
		assert.True(t, n.Backlink)
	}
	assert.Contains(t, edgePairs(g), [2]string{"d", "a"})
	assert.Contains(t, edgePairs(g), [2]string{"c", "a"})
}

func TestLinkGraph_InvalidDepth(t *testing.T) {
	e := engine(t, cycleVault())
	_, err := e.LinkGraph("", "a", -1, false)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	_, err = e.LinkGraph("", "a", DefaultConfig().MaxDepth+1, false)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	_, err = e.LinkGraph("", "nope", 1, false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOrphanedNodes(t *testing.T) {
	e := engine(t, map[string]string{
		"z.md":      testutil.Note("Z", nil, []string{"gone"}, "and [[also-gone]] and [[gone]]"),
		"a.md":      testutil.Note("A", nil, nil, "links [[z]] and [[broken]]"),
		"m.md":      testutil.Note("M", nil, nil, "dangling [[nowhere]]"),
		"broken.md": "---\ntitle: [oops\n---\n",
	})
	res, err := e.OrphanedNodes("")
	require.NoError(t, err)
	require.Len(t, res.Orphans, 2)
	assert.Equal(t, "m", res.Orphans[0].NodeID)
	assert.Equal(t, []string{"nowhere"}, res.Orphans[0].Dangling)
	assert.Equal(t, "z", res.Orphans[1].NodeID)
	assert.Equal(t, []string{"gone", "also-gone"}, res.Orphans[1].Dangling)
	assert.Len(t, res.Warnings, 1)
}

func TestOrphanedNodes_EmptyAndMissingScope(t *testing.T) {
	e := engine(t, nil)
	res, err := e.OrphanedNodes("")
	require.NoError(t, err)
	assert.Empty(t, res.Orphans)

	_, err = e.OrphanedNodes("missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStats(t *testing.T) {
	e := engine(t, map[string]string{
		"a.md":               testutil.Note("A", []string{"go", "cli"}, nil, "see [[p1]] and [[ghost]]"),
		"projects/p1.md":     testutil.Note("P1", []string{"go"}, nil, "plain"),
		"projects/web/w1.md": testutil.Note("W1", nil, nil, "plain"),
		"areas/x.md":         testutil.Note("X", []string{"go"}, nil, "plain"),
	})
	st, err := e.Stats("")
	require.NoError(t, err)

	assert.Equal(t, NodeStats{Total: 4, WithTags: 3, WithLinks: 1, Orphaned: 1, Isolated: 2}, st.Nodes)
	assert.Equal(t, LinkStats{Total: 2, UniqueTargets: 2, Dangling: 1}, st.Links)
	assert.Equal(t, 2, st.Tags.Unique)
	assert.Equal(t, "go", st.Tags.Top[0].Tag)
	assert.Equal(t, 3, st.Tags.Top[0].Count)

	assert.Equal(t, 3, st.Containment.Categories)
	assert.Equal(t, 2, st.Containment.MaxDepth)
	assert.Equal(t, []LevelCount{{Level: 1, Count: 2}, {Level: 2, Count: 1}}, st.Containment.ByLevel)
	assert.Equal(t, 7, st.Containment.Edges)

	sub, err := e.Stats("projects")
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Nodes.Total)
	assert.Equal(t, 1, sub.Containment.Categories)
	assert.Equal(t, "projects", sub.Scope)
}

func TestTagCloud(t *testing.T) {
	e := engine(t, map[string]string{
		"a.md": testutil.Note("A", []string{"go", "db"}, nil, ""),
		"b.md": testutil.Note("B", []string{"go"}, nil, ""),
		"c.md": testutil.Note("C", []string{"go", "db", "web"}, nil, ""),
	})
	cloud, err := e.TagCloud("", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, cloud.TotalTags)
	assert.Equal(t, []TagCount{
		{Tag: "go", Count: 3, Examples: []string{"a", "b", "c"}},
		{Tag: "db", Count: 2, Examples: []string{"a", "c"}},
	}, cloud.Tags)

	_, err = e.TagCloud("", -1)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestScannedCountsDecodedNodes(t *testing.T) {
	e := engine(t, map[string]string{
		"a.md":      testutil.Note("A", []string{"x"}, []string{"b"}, "to b"),
		"b.md":      testutil.Note("B", []string{"x"}, nil, "leaf"),
		"c.md":      testutil.Note("C", nil, nil, "alone"),
		"broken.md": "---\ntitle: [oops\n---\n",
	})

	rel, err := e.RelatedNodes("", "a", DefaultRelatedOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, rel.Scanned)

	g, err := e.LinkGraph("", "a", 1, false)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Scanned)
	assert.Len(t, g.Nodes, 2)

	orphans, err := e.OrphanedNodes("")
	require.NoError(t, err)
	assert.Equal(t, 3, orphans.Scanned)
	assert.Zero(t, orphans.Total)

	st, err := e.Stats("")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Scanned)

	cloud, err := e.TagCloud("", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, cloud.Scanned)
	assert.Equal(t, 1, cloud.TotalTags)
}
