package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openworld/physync/pkg/core"
)

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret", c.apiKey)
	assert.NotNil(t, c.httpClient)
}

func TestHealthcheck(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthcheck", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := New(server.URL, "")
	assert.NoError(t, c.Healthcheck(context.Background()))

	status = http.StatusInternalServerError
	assert.Error(t, c.Healthcheck(context.Background()))
}

func TestHealthcheck_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	assert.Error(t, New(url, "").Healthcheck(context.Background()))
}

func TestUpload_Success(t *testing.T) {
	var fields map[string]string
	var content []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/journals", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(10<<20))

		fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ = io.ReadAll(f)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "alice_20260301_120000.json.zst")
	require.NoError(t, os.WriteFile(path, []byte("journal"), 0644))

	id := core.NewSessionID()
	err := New(server.URL, "s3cret").Upload(context.Background(), path, core.ExportMetadata{
		SessionID:   id,
		SessionName: "alice",
		Duration:    12.5,
		Entities:    3,
		Edits:       140,
		Ownership:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", fields["secret"])
	assert.Equal(t, "alice_20260301_120000.json.zst", fields["filename"])
	assert.Equal(t, id.String(), fields["sessionId"])
	assert.Equal(t, "12.500", fields["duration"])
	assert.Equal(t, "140", fields["edits"])
	assert.Equal(t, "2", fields["ownershipChanges"])
	assert.Equal(t, "journal", string(content))
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "j.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	assert.Error(t, New(server.URL, "").Upload(context.Background(), path, core.ExportMetadata{}))
}

func TestUpload_MissingFile(t *testing.T) {
	c := New("http://localhost:1", "")
	assert.Error(t, c.Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), core.ExportMetadata{}))
}
