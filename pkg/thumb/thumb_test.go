package thumb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYouTube_Deterministic(t *testing.T) {
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", YouTube("dQw4w9WgXcQ"))
	assert.Empty(t, YouTube(""))
}

func TestTikTok_OEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("url"), "tiktok.com")
		_, _ = w.Write([]byte(`{"thumbnail_url": "https://p19-sign.tiktokcdn.com/cover.jpeg", "title": "pasta"}`))
	}))
	defer srv.Close()

	f := NewFetcher(WithOEmbedURL(srv.URL))
	got, err := f.TikTok(context.Background(), "https://www.tiktok.com/@cook/video/712345")
	require.NoError(t, err)
	assert.Equal(t, "https://p19-sign.tiktokcdn.com/cover.jpeg", got)
}

func TestTikTok_OEmbedMissingThumbnail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title": "pasta"}`))
	}))
	defer srv.Close()

	f := NewFetcher(WithOEmbedURL(srv.URL))
	_, err := f.TikTok(context.Background(), "https://www.tiktok.com/@cook/video/712345")
	require.Error(t, err)
}

func TestInstagram_OGImage(t *testing.T) {
	page := `<html><head>
<meta property="og:image" content="https://scontent.cdninstagram.com/v/pic.jpg?stp=a&amp;ccb=7"/>
</head><body></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewFetcher()
	got, err := f.Instagram(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://scontent.cdninstagram.com/v/pic.jpg?stp=a&ccb=7", got)
}

func TestInstagram_ContentBeforeProperty(t *testing.T) {
	page := `<meta content="https://cdn.example.com/img.jpg" property="og:image">`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewFetcher()
	got, err := f.Instagram(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/img.jpg", got)
}

func TestInstagram_NoOGImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>login</title></head></html>`))
	}))
	defer srv.Close()

	f := NewFetcher()
	_, err := f.Instagram(context.Background(), srv.URL)
	require.Error(t, err)
}
