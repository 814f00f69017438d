package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostInputValidate(t *testing.T) {
	require.Empty(t, PostInput{Title: "a", Content: "b"}.Validate())

	problems := PostInput{}.Validate()
	require.Equal(t, []string{"title is required", "content is required"}, problems)

	problems = PostInput{Title: "   ", Content: "b"}.Validate()
	require.Equal(t, []string{"title is required"}, problems)
}

func TestPostInputIsPublished(t *testing.T) {
	require.True(t, PostInput{}.IsPublished(), "omitted published defaults true")

	published := false
	require.False(t, PostInput{Published: &published}.IsPublished())

	published = true
	require.True(t, PostInput{Published: &published}.IsPublished())
}
