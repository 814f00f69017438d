package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/postlens/postlens/internal/core"
)

// CreatePost inserts a new post and returns the stored record.
func (s *Store) CreatePost(ctx context.Context, in core.PostInput) (*core.Post, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO posts (title, content, published, rating)
		VALUES (?, ?, ?, ?)
	`, in.Title, in.Content, boolToInt(in.IsPublished()), ratingValue(in.Rating))
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create post id: %w", err)
	}

	return s.GetPost(ctx, id)
}

// ListPosts returns all posts ordered by id.
func (s *Store) ListPosts(ctx context.Context) ([]core.Post, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, title, content, published, rating
		FROM posts
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var posts []core.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return posts, nil
}

// GetPost returns a post by id, or nil when it does not exist.
func (s *Store) GetPost(ctx context.Context, id int64) (*core.Post, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, title, content, published, rating
		FROM posts
		WHERE id = ?
	`, id)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch post: %w", err)
	}

	return post, nil
}

// UpdatePost replaces a post's fields and returns the updated record, or nil
// when the id does not exist.
func (s *Store) UpdatePost(ctx context.Context, id int64, in core.PostInput) (*core.Post, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE posts
		SET title = ?, content = ?, published = ?, rating = ?
		WHERE id = ?
	`, in.Title, in.Content, boolToInt(in.IsPublished()), ratingValue(in.Rating), id)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return s.GetPost(ctx, id)
}

// DeletePost removes a post by id, reporting whether a row existed.
func (s *Store) DeletePost(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}

	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*core.Post, error) {
	var (
		post      core.Post
		published int
		rating    sql.NullInt64
	)
	if err := row.Scan(&post.ID, &post.Title, &post.Content, &published, &rating); err != nil {
		return nil, err
	}

	post.Published = published != 0
	if rating.Valid {
		value := int(rating.Int64)
		post.Rating = &value
	}

	return &post, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func ratingValue(rating *int) any {
	if rating == nil {
		return nil
	}
	return *rating
}
