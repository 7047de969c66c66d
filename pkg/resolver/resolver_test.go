package resolver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlsrelay/hlsrelay/pkg/upstream"
	"github.com/hlsrelay/hlsrelay/pkg/upstream/upstreamtest"
)

func newTestResolver(t *testing.T, handler http.Handler) *ResolverCtx {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := upstream.New(&upstream.Config{
		BaseURL:   "https://upstream",
		Transport: upstreamtest.Transport(srv),
	})
	require.NoError(t, err)

	return New(client, nil)
}

func TestIsVideoID(t *testing.T) {
	tests := []struct {
		identifier string
		want       bool
	}{
		{"dQw4w9WgXcQ", true},
		{"ABCDEFGHIJK", true},
		{"@abcdefghij", false},
		{"@somechannel", false},
		{"mychannel", false},
		{"UCuAXFkgsw1L7xaCfnd5JJOw", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVideoID(tt.identifier))
		})
	}
}

func TestIsIdentifier(t *testing.T) {
	for _, id := range []string{"dQw4w9WgXcQ", "@some.channel", "UCuAXFkgsw1L7xaCfnd5JJOw", "my_channel-1"} {
		assert.True(t, IsIdentifier(id), id)
	}
	for _, id := range []string{"", "@", "a/b", "a b", "@@x", "<script>"} {
		assert.False(t, IsIdentifier(id), id)
	}
}

func TestLivePageURL(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"handle", "@somechannel", "https://upstream/@somechannel/live"},
		{"bare name", "somechannel", "https://upstream/@somechannel/live"},
		{"channel id", "UCuAXFkgsw1L7xaCfnd5JJOw", "https://upstream/channel/UCuAXFkgsw1L7xaCfnd5JJOw/live"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LivePageURL("https://upstream", tt.ref))
		})
	}
}

func TestResolveRedirect(t *testing.T) {
	r := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/@somechannel/live":
			http.Redirect(w, req, "https://upstream/watch?v=ABCDEFGHIJK", http.StatusFound)
		case "/watch":
			// a different id in the body proves the redirect wins
			_, _ = io.WriteString(w, `{"videoId":"ZZZZZZZZZZZ"}`)
		default:
			http.NotFound(w, req)
		}
	}))

	id, err := r.Resolve(context.Background(), "@somechannel")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJK", id)
}

func TestResolveBodyFallback(t *testing.T) {
	r := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/@somechannel/live", req.URL.Path)
		_, _ = io.WriteString(w, `<script>var ytInitialData = {"currentVideoEndpoint":{"watchEndpoint":{"videoId":"dQw4w9WgXcQ"}}};</script>`)
	}))

	id, err := r.Resolve(context.Background(), "@somechannel")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestResolveNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "no live broadcast",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "<html>offline</html>")
			},
		},
		{
			name: "fetch error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, tt.handler)

			_, err := r.Resolve(context.Background(), "@somechannel")
			require.Error(t, err)
			assert.True(t, errors.Is(err, upstream.ErrNotFound))
		})
	}
}
