package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	SetVersionInfo("9.9.9", "abc123", "2026-08-31")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	VersionHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "postlens", body.App.Name)
	require.Equal(t, "9.9.9", body.App.Version)
	require.Equal(t, "abc123", body.App.Commit)
	require.NotEmpty(t, body.App.GoVersion)
	require.NotEmpty(t, body.Runtime.Platform)
	require.Greater(t, body.Runtime.NumCPU, 0)
}
