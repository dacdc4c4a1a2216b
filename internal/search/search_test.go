package search

import (
	"strings"
	"testing"
	"time"

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

func TestSearch_TitleOutranksBody(t *testing.T) {
	e := engine(t, map[string]string{
		"x.md": testutil.Note("Hooks Guide", nil, nil, "Introduction to the event system."),
		"y.md": testutil.Note("Other", nil, nil, "Using hooks here and hooks there."),
		"z.md": testutil.Note("Unrelated", nil, nil, "Nothing to see."),
	})
	res, err := e.Search("", "hooks", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "x", res.Hits[0].NodeID)
	assert.Equal(t, 10, res.Hits[0].Score)
	assert.Equal(t, "y", res.Hits[1].NodeID)
	assert.Equal(t, 2, res.Hits[1].Score)
	assert.Equal(t, 3, res.Scanned)

	assert.Equal(t, []models.Fragment{{Source: models.FragmentTitle, Text: "Hooks"}}, res.Hits[0].Fragments)
	require.Len(t, res.Hits[1].Fragments, 2)
	assert.Equal(t, models.FragmentBody, res.Hits[1].Fragments[0].Source)
}

func TestSearch_CaseSensitive(t *testing.T) {
	e := engine(t, map[string]string{
		"x.md": testutil.Note("Hooks Guide", nil, nil, "about hooks"),
	})
	opts := DefaultOptions()
	opts.CaseSensitive = true
	res, err := e.Search("", "Hooks", opts)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 10, res.Hits[0].Score)
}

func TestSearch_LiteralQueryIsEscaped(t *testing.T) {
	e := engine(t, map[string]string{
		"a.md": testutil.Note("A", nil, nil, "costs $5.00 (approx)"),
		"b.md": testutil.Note("B", nil, nil, "costs $5x00 approx"),
	})
	res, err := e.Search("", "$5.00 (approx)", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "a", res.Hits[0].NodeID)
}

func TestSearch_Pattern(t *testing.T) {
	e := engine(t, map[string]string{
		"a.md": testutil.Note("A", nil, nil, "error 404 and error 500"),
	})
	opts := DefaultOptions()
	opts.Pattern = true
	res, err := e.Search("", `error \d+`, opts)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 2, res.Hits[0].Score)
}

func TestSearch_TagFilterAnyMatch(t *testing.T) {
	e := engine(t, map[string]string{
		"a.md": testutil.Note("A", []string{"go"}, nil, "topic"),
		"b.md": testutil.Note("B", []string{"rust"}, nil, "topic"),
		"c.md": testutil.Note("C", nil, nil, "topic"),
	})
	opts := DefaultOptions()
	opts.Tags = []string{"go", "rust"}
	res, err := e.Search("", "topic", opts)
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "a", res.Hits[0].NodeID)
	assert.Equal(t, "b", res.Hits[1].NodeID)
}

func TestSearch_Errors(t *testing.T) {
	e := engine(t, map[string]string{"a.md": "body"})

	_, err := e.Search("", "   ", DefaultOptions())
	assert.ErrorIs(t, err, apperr.ErrInvalidQuery)

	opts := DefaultOptions()
	opts.Pattern = true
	_, err = e.Search("", "([", opts)
	assert.ErrorIs(t, err, apperr.ErrInvalidQuery)

	opts = DefaultOptions()
	opts.MaxResults = -1
	_, err = e.Search("", "body", opts)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = e.Search("", "body", Options{})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = e.Search("missing", "body", DefaultOptions())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearch_SkipsEmptyMatches(t *testing.T) {
	e := engine(t, map[string]string{
		"a.md": testutil.Note("Note", nil, nil, "aa b a"),
		"b.md": testutil.Note("Other", nil, nil, "nothing here"),
	})
	opts := DefaultOptions()
	opts.Pattern = true
	opts.CaseSensitive = true

	res, err := e.Search("", "a*", opts)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	hit := res.Hits[0]
	assert.Equal(t, "a", hit.NodeID)
	assert.Equal(t, 2*e.cfg.BodyWeight, hit.Score)
	for _, f := range hit.Fragments {
		assert.NotEmpty(t, f.Text)
	}

	res, err = e.Search("", `\b`, opts)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSearch_EmptyScope(t *testing.T) {
	e := engine(t, nil)
	res, err := e.Search("", "anything", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.NotNil(t, res.Hits)
}

func TestSearch_FragmentsAreBounded(t *testing.T) {
	body := strings.Repeat("x", 100) + " needle " + strings.Repeat("y", 100)
	e := engine(t, map[string]string{"a.md": testutil.Note("A", nil, nil, body)})
	res, err := e.Search("", "needle", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	frag := res.Hits[0].Fragments[0].Text
	assert.True(t, strings.HasPrefix(frag, "..."))
	assert.True(t, strings.HasSuffix(frag, "..."))
	assert.Equal(t, 3+50+len("needle")+50+3, len(frag))

	many := strings.Repeat("hit ", 5)
	e = engine(t, map[string]string{"b.md": testutil.Note("B", nil, nil, many)})
	res, err = e.Search("", "hit", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Hits[0].Score)
	assert.Len(t, res.Hits[0].Fragments, 3)
	assert.False(t, strings.HasPrefix(res.Hits[0].Fragments[0].Text, "..."))
}

func TestSearch_DeterministicTieBreakAndLimit(t *testing.T) {
	files := map[string]string{}
	for _, id := range []string{"d", "b", "a", "c"} {
		files[id+".md"] = testutil.Note(strings.ToUpper(id), nil, nil, "same term")
	}
	e := engine(t, files)
	opts := DefaultOptions()
	opts.MaxResults = 3

	first, err := e.Search("", "term", opts)
	require.NoError(t, err)
	second, err := e.Search("", "term", opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ids := make([]string, 0, len(first.Hits))
	for _, h := range first.Hits {
		ids = append(ids, h.NodeID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 4, first.TotalMatches)
}

func TestSearch_CorruptNodeIsWarning(t *testing.T) {
	e := engine(t, map[string]string{
		"good.md": testutil.Note("Good", nil, nil, "term"),
		"bad.md":  "---\ntitle: [broken\n---\nterm\n",
	})
	res, err := e.Search("", "term", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "bad", res.Warnings[0].ID)
}

func dated(title, created, modified string) string {
	return "---\ntitle: " + title + "\ncreated_at: \"" + created + "\"\nupdated_at: \"" + modified + "\"\n---\nbody\n"
}

func TestByDate(t *testing.T) {
	e := engine(t, map[string]string{
		"old.md":   dated("Old", "2023-01-01T00:00:00Z", "2023-02-01T00:00:00Z"),
		"mid.md":   dated("Mid", "2023-06-01T00:00:00Z", "2024-01-15T00:00:00Z"),
		"fresh.md": dated("Fresh", "2024-03-01T00:00:00Z", "2024-03-02T00:00:00Z"),
	})

	res, err := e.ByDate("", DateRange{
		Field: FieldModified,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "fresh", res.Nodes[0].ID)
	assert.Equal(t, "mid", res.Nodes[1].ID)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 3, res.Scanned)

	res, err = e.ByDate("", DateRange{
		Field: FieldCreated,
		End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "mid", res.Nodes[0].ID)
	assert.Equal(t, "old", res.Nodes[1].ID)

	_, err = e.ByDate("", DateRange{Field: "sometime"})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = e.ByDate("", DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestParseDate(t *testing.T) {
	zero, err := ParseDate("", false)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	start, err := ParseDate("2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)

	end, err := ParseDate("2024-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 999999999, time.UTC), end)

	exact, err := ParseDate("2024-03-01T10:00:00+02:00", true)
	require.NoError(t, err)
	assert.Equal(t, 8, exact.UTC().Hour())

	_, err = ParseDate("March 1st", false)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}
