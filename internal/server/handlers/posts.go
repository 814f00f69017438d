package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/postlens/postlens/internal/core"
	apperrors "github.com/postlens/postlens/internal/errors"
	"github.com/postlens/postlens/internal/metrics"
)

// PostStore is the storage surface the post handlers depend on. A nil post
// with a nil error means the id does not exist.
type PostStore interface {
	CreatePost(ctx context.Context, in core.PostInput) (*core.Post, error)
	ListPosts(ctx context.Context) ([]core.Post, error)
	GetPost(ctx context.Context, id int64) (*core.Post, error)
	UpdatePost(ctx context.Context, id int64, in core.PostInput) (*core.Post, error)
	DeletePost(ctx context.Context, id int64) (bool, error)
}

// Posts bundles the CRUD handlers for the post resource.
type Posts struct {
	store PostStore
}

// NewPosts creates the post handlers backed by the given store.
func NewPosts(store PostStore) *Posts {
	return &Posts{store: store}
}

// Root serves the API banner at /.
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World!!!"})
}

// List handles GET /posts.
func (h *Posts) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.ListPosts(r.Context())
	metrics.RecordOperation("list_posts", err == nil)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to list posts"))
		return
	}

	if posts == nil {
		posts = []core.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": posts})
}

// Create handles POST /posts.
func (h *Posts) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePostInput(w, r)
	if !ok {
		return
	}

	post, err := h.store.CreatePost(r.Context(), in)
	metrics.RecordOperation("create_post", err == nil)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to create post"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"data": post})
}

// Get handles GET /posts/{id}.
func (h *Posts) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := h.store.GetPost(r.Context(), id)
	metrics.RecordOperation("get_post", err == nil)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to fetch post"))
		return
	}
	if post == nil {
		respondWithError(w, r, apperrors.NewNotFoundError(
			fmt.Sprintf("post with id: %d was not found", id)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"post_detail": post})
}

// Update handles PUT /posts/{id}.
func (h *Posts) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	in, ok := decodePostInput(w, r)
	if !ok {
		return
	}

	post, err := h.store.UpdatePost(r.Context(), id, in)
	metrics.RecordOperation("update_post", err == nil)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to update post"))
		return
	}
	if post == nil {
		respondWithError(w, r, apperrors.NewNotFoundError(
			fmt.Sprintf("post with id: %d does not exist", id)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": post})
}

// Delete handles DELETE /posts/{id}.
func (h *Posts) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	found, err := h.store.DeletePost(r.Context(), id)
	metrics.RecordOperation("delete_post", err == nil)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "failed to delete post"))
		return
	}
	if !found {
		respondWithError(w, r, apperrors.NewNotFoundError(
			fmt.Sprintf("post with id: %d does not exist", id)))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError(
			fmt.Sprintf("invalid post id: %q", raw)))
		return 0, false
	}
	return id, true
}

func decodePostInput(w http.ResponseWriter, r *http.Request) (core.PostInput, bool) {
	var in core.PostInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid request body"))
		return core.PostInput{}, false
	}

	if problems := in.Validate(); len(problems) > 0 {
		envelope := apperrors.NewValidationError("post validation failed")
		envelope = envelope.WithDetails(map[string]interface{}{
			"problems": problems,
		})
		respondWithError(w, r, envelope)
		return core.PostInput{}, false
	}

	return in, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
