//go:build cgo

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/postlens/postlens/internal/config"
	"github.com/postlens/postlens/internal/core"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestOpenMemoryStore(t *testing.T) {
	store := newMemoryStore(t)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.CheckHealth(context.Background()))
}

func TestPostLifecycle(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	rating := 4
	published := false
	created, err := store.CreatePost(ctx, core.PostInput{
		Title:     "first",
		Content:   "hello",
		Published: &published,
		Rating:    &rating,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, int64(1), created.ID)
	require.Equal(t, "first", created.Title)
	require.False(t, created.Published)
	require.NotNil(t, created.Rating)
	require.Equal(t, 4, *created.Rating)

	fetched, err := store.GetPost(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, created, fetched)

	posts, err := store.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	updated, err := store.UpdatePost(ctx, created.ID, core.PostInput{
		Title:   "second",
		Content: "changed",
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, "second", updated.Title)
	require.True(t, updated.Published, "published defaults true when omitted")
	require.Nil(t, updated.Rating)

	deleted, err := store.DeletePost(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	gone, err := store.GetPost(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestMissingPostIsNilNotError(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	post, err := store.GetPost(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, post)

	post, err = store.UpdatePost(ctx, 42, core.PostInput{Title: "x", Content: "y"})
	require.NoError(t, err)
	require.Nil(t, post)

	deleted, err := store.DeletePost(ctx, 42)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestListPostsOrderedByID(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := store.CreatePost(ctx, core.PostInput{Title: title, Content: title})
		require.NoError(t, err)
	}

	posts, err := store.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	require.Equal(t, "a", posts[0].Title)
	require.Equal(t, "c", posts[2].Title)
}
