package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUploadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "pic.png", r.FormValue("fileName"))
		w.Write([]byte(`{"filePath":"/msgs/pic.png"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "https://cdn.example.com", "key", zap.NewNop())
	filePath, err := client.Upload(context.Background(), []byte("png-bytes"), "pic.png")
	require.NoError(t, err)
	assert.Equal(t, "/msgs/pic.png", filePath)
}

func TestUploadPipelineFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "https://cdn.example.com", "key", zap.NewNop())
	_, err := client.Upload(context.Background(), []byte("png-bytes"), "pic.png")
	assert.ErrorIs(t, err, ErrUpload)
}

func TestUploadEmptyFilePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "https://cdn.example.com", "key", zap.NewNop())
	_, err := client.Upload(context.Background(), []byte("x"), "pic.png")
	assert.ErrorIs(t, err, ErrUpload)
}

func TestURLWithTransformations(t *testing.T) {
	client := NewClient("", "https://cdn.example.com/", "key", zap.NewNop())

	assert.Equal(t, "https://cdn.example.com/msgs/pic.png", client.URL("msgs/pic.png"))
	assert.Equal(t,
		"https://cdn.example.com/msgs/pic.png?tr=q-auto,f-webp,w-1280",
		client.URL("/msgs/pic.png", "q-auto", "f-webp", "w-1280"))
}
