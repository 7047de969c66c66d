package hlsproxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlsrelay/hlsrelay/internal/metrics"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
	"github.com/hlsrelay/hlsrelay/pkg/upstream/upstreamtest"
)

const (
	liveVideo = "dQw4w9WgXcQ"
	segment   = "0123456789abcdef"
)

func fakeUpstream(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VideoID string `json:"videoId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.VideoID != liveVideo {
			_, _ = io.WriteString(w, `{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`)
			return
		}

		_, _ = io.WriteString(w, `{"playabilityStatus":{"status":"OK"},"streamingData":{`+
			`"hlsManifestUrl":"https://cdn.example/master.m3u8",`+
			`"formats":[{"itag":18,"mimeType":"video/mp4; codecs=\"avc1.42001E\"","url":"https://cdn.example/video.mp4"}]}}`)
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body>nothing here</body></html>`)
	})
	mux.HandleFunc("/@somechannel/live", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://upstream/watch?v="+liveVideo, http.StatusFound)
	})
	mux.HandleFunc("/@quietchannel/live", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body>no stream</body></html>`)
	})
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720\nhttps://cdn.example/v1/playlist.m3u8\n")
	})
	mux.HandleFunc("/v1/playlist.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-TARGETDURATION:2\n#EXT-X-MEDIA-SEQUENCE:1\n#EXTINF:2.0,\nhttps://cdn.example/seg/1.ts\n")
	})
	mux.HandleFunc("/seg/1.ts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		http.ServeContent(w, r, "1.ts", time.Time{}, strings.NewReader(segment))
	})
	mux.HandleFunc("/broken.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	return mux
}

func newTestModule(t *testing.T) *ModuleCtx {
	t.Helper()
	return newTestModuleAt(t, "/")
}

func newTestModuleAt(t *testing.T, pathPrefix string) *ModuleCtx {
	t.Helper()

	srv := httptest.NewServer(fakeUpstream(t))
	t.Cleanup(srv.Close)

	module, err := New(pathPrefix, &Config{
		Upstream: upstream.Config{
			BaseURL:   "https://upstream",
			Transport: upstreamtest.Transport(srv),
		},
	}, metrics.New())
	require.NoError(t, err)

	return module
}

func serve(handler http.HandlerFunc, method string, target string, header http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	for key, values := range header {
		r.Header[key] = values
	}

	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestRelayPlayback(t *testing.T) {
	module := newTestModule(t)

	// master
	w := serve(module.ServeHTTP, http.MethodGet, "/"+liveVideo, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/vnd.apple.mpegurl", w.Header().Get("Content-Type"))

	variantLine := "/" + liveVideo + "?variant=https%3A%2F%2Fcdn.example%2Fv1%2Fplaylist.m3u8"
	assert.Contains(t, strings.Split(w.Body.String(), "\n"), variantLine)

	// variant
	w = serve(module.ServeHTTP, http.MethodGet, variantLine, nil)
	require.Equal(t, http.StatusOK, w.Code)

	segmentLine := "/" + liveVideo + "?url=https%3A%2F%2Fcdn.example%2Fseg%2F1.ts"
	assert.Contains(t, strings.Split(w.Body.String(), "\n"), segmentLine)
	assert.Empty(t, w.Header().Get("Cache-Control"))

	// segment, with range
	w = serve(module.ServeHTTP, http.MethodGet, segmentLine, http.Header{"Range": {"bytes=0-3"}})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "0123", w.Body.String())
	assert.Equal(t, "bytes 0-3/16", w.Header().Get("Content-Range"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRelayMountedUnderPrefix(t *testing.T) {
	module := newTestModuleAt(t, "/live/")

	// the mount point is not a stream identifier
	w := serve(module.ServeHTTP, http.MethodGet, "/live/"+liveVideo, nil)
	require.Equal(t, http.StatusOK, w.Code)

	variantLine := "/live/" + liveVideo + "?variant=https%3A%2F%2Fcdn.example%2Fv1%2Fplaylist.m3u8"
	assert.Contains(t, strings.Split(w.Body.String(), "\n"), variantLine)

	w = serve(module.ServeHTTP, http.MethodGet, variantLine, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/live/"+liveVideo+"?url=https%3A%2F%2Fcdn.example%2Fseg%2F1.ts")

	w = serve(module.ServeHTTP, http.MethodGet, "/live/", nil)
	assert.Equal(t, http.StatusOK, w.Code, "usage page at the mount point")

	w = serve(module.ServeHTTP, http.MethodGet, "/live/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRelayChannel(t *testing.T) {
	module := newTestModule(t)

	w := serve(module.ServeHTTP, http.MethodGet, "/@somechannel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/@somechannel?variant=https%3A%2F%2Fcdn.example%2Fv1%2Fplaylist.m3u8")

	w = serve(module.ServeHTTP, http.MethodGet, "/@quietchannel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRelayErrors(t *testing.T) {
	module := newTestModule(t)

	tests := []struct {
		name   string
		method string
		target string
		code   int
	}{
		{"usage", http.MethodGet, "/", http.StatusOK},
		{"preflight", http.MethodOptions, "/" + liveVideo, http.StatusNoContent},
		{"method not allowed", http.MethodPost, "/" + liveVideo, http.StatusMethodNotAllowed},
		{"offline video", http.MethodGet, "/offline0000", http.StatusNotFound},
		{"empty url", http.MethodGet, "/x?url=", http.StatusBadRequest},
		{"non http variant", http.MethodGet, "/x?variant=ftp%3A%2F%2Fcdn.example%2Fv.m3u8", http.StatusBadRequest},
		{"invalid identifier", http.MethodGet, "/a%20b", http.StatusBadRequest},
		{"upstream failure", http.MethodGet, "/x?variant=https%3A%2F%2Fcdn.example%2Fbroken.m3u8", http.StatusBadGateway},
		{"missing segment", http.MethodGet, "/x?url=https%3A%2F%2Fcdn.example%2Fseg%2F2.ts", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(module.ServeHTTP, tt.method, tt.target, nil)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, HEAD, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestServeAPI(t *testing.T) {
	module := newTestModule(t)

	w := serve(module.ServeAPI, http.MethodGet, "/api?v="+liveVideo, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://cdn.example/video.mp4", w.Header().Get("Location"))

	w = serve(module.ServeAPI, http.MethodGet, "/api", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apiUsage)

	w = serve(module.ServeAPI, http.MethodGet, "/api?v="+liveVideo+"&type=avi", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(module.ServeAPI, http.MethodGet, "/api?v=offline0000&type=mp4", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(module.ServeAPI, http.MethodGet, "/api?v="+liveVideo+"&type=m3u8", nil)
	require.Equal(t, http.StatusOK, w.Code)

	variantLine := "/api?variant=" + url.QueryEscape("https://cdn.example/v1/playlist.m3u8")
	assert.Contains(t, strings.Split(w.Body.String(), "\n"), variantLine)

	w = serve(module.ServeAPI, http.MethodGet, variantLine, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api?url=https%3A%2F%2Fcdn.example%2Fseg%2F1.ts")
}

func TestConfigReload(t *testing.T) {
	module := newTestModule(t)

	before := module.relay.Load()
	require.NoError(t, module.ConfigReload(&Config{PublicURL: "https://relay.example"}))
	assert.NotSame(t, before, module.relay.Load())

	err := module.ConfigReload(&Config{Strategies: []string{"scrape"}})
	assert.Error(t, err)

	err = module.ConfigReload(&Config{Upstream: upstream.Config{Proxy: "ftp://proxy"}})
	assert.Error(t, err)
}
