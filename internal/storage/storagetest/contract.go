// Package storagetest checks that a storage.Store implementation honours
// the Accessor contract.
package storagetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// Factory returns an empty store whose root scope exists.
type Factory func(t *testing.T) storage.Store

func node(id, scope, title string, tags, refs []string, body string) *models.Node {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &models.Node{
		ID:           id,
		Title:        title,
		Body:         body,
		Tags:         tags,
		OutboundRefs: refs,
		CreatedAt:    ts,
		ModifiedAt:   ts,
		ScopePath:    scope,
	}
}

// Run exercises Save, CreateScope, Enumerate and Load against the store built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyScope", func(t *testing.T) {
		s := newStore(t)
		snap, err := s.Enumerate("")
		require.NoError(t, err)
		assert.Empty(t, snap.Nodes)
		assert.Empty(t, snap.Warnings)
	})

	t.Run("MissingScope", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Enumerate("does/not/exist")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = s.Load("does/not/exist", "x")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("EmptyFolderScope", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateScope("archive/2023"))

		for _, scope := range []string{"archive", "archive/2023"} {
			snap, err := s.Enumerate(scope)
			require.NoError(t, err, scope)
			assert.Empty(t, snap.Nodes, scope)
			assert.Empty(t, snap.Warnings, scope)
		}
		_, err := s.Load("archive", "x")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = s.Enumerate("archive/2024")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		require.NoError(t, s.Save(node("n", "archive/2023", "Note", nil, nil, "kept")))
		snap, err := s.Enumerate("archive")
		require.NoError(t, err)
		require.Len(t, snap.Nodes, 1)
		assert.Equal(t, "n", snap.Nodes[0].ID)
	})

	t.Run("SaveEnumerateLoad", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(node("b", "", "Bee", []string{"x"}, []string{"a"}, "see [[c]]")))
		require.NoError(t, s.Save(node("a", "", "Ay", nil, nil, "alpha")))
		require.NoError(t, s.Save(node("c", "projects", "Sea", []string{"x", "y"}, nil, "nested")))

		snap, err := s.Enumerate("")
		require.NoError(t, err)
		require.Len(t, snap.Nodes, 3)
		assert.Equal(t, "a", snap.Nodes[0].ID)
		assert.Equal(t, "b", snap.Nodes[1].ID)
		assert.Equal(t, "c", snap.Nodes[2].ID)
		assert.Equal(t, "projects", snap.Nodes[2].ScopePath)

		n, err := s.Load("", "b")
		require.NoError(t, err)
		assert.Equal(t, "Bee", n.Title)
		assert.Equal(t, []string{"x"}, n.Tags)
		assert.Equal(t, []string{"a"}, n.OutboundRefs)
		assert.Contains(t, n.Body, "[[c]]")
		assert.NotEmpty(t, n.Checksum)

		sub, err := s.Enumerate("projects")
		require.NoError(t, err)
		require.Len(t, sub.Nodes, 1)
		assert.Equal(t, "c", sub.Nodes[0].ID)

		_, err = s.Load("projects", "a")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("DuplicateIDFirstWins", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(node("dup", "a", "First", nil, nil, "one")))
		require.NoError(t, s.Save(node("dup", "b", "Second", nil, nil, "two")))

		snap, err := s.Enumerate("")
		require.NoError(t, err)
		require.Len(t, snap.Nodes, 1)
		assert.Equal(t, "First", snap.Nodes[0].Title)
		require.Len(t, snap.Warnings, 1)
		assert.Equal(t, "dup", snap.Warnings[0].ID)

		n, err := s.Load("", "dup")
		require.NoError(t, err)
		assert.Equal(t, "First", n.Title)
	})

	t.Run("EscapingScopeRejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Enumerate("../outside")
		assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	})
}
