package hlsproxy

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hlsrelay/hlsrelay/pkg/locator"
	"github.com/hlsrelay/hlsrelay/pkg/resolver"
)

const apiUsage = "Usage: /api?v=VIDEO_ID&type=m3u8 (or type=mp4)"

// ServeAPI delivers a video directly: type=mp4 (default) redirects to a
// progressive MP4 stream, type=m3u8 serves the rewritten master playlist.
func (m *ModuleCtx) ServeAPI(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// entries of a master served from here point back at /api
	if query.Has("url") || query.Has("variant") {
		m.ServeHTTP(w, r)
		return
	}

	if !preflight(w, r) {
		return
	}

	id := query.Get("v")
	if id == "" || !resolver.IsIdentifier(id) {
		m.metrics.IncResponses("api", http.StatusBadRequest)
		http.Error(w, apiUsage, http.StatusBadRequest)
		return
	}

	m.metrics.IncRequests("api")

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	rl := m.relay.Load()

	var err error
	switch query.Get("type") {
	case "", "mp4":
		var target string
		target, err = m.locate(r.Context(), rl, id, locator.MP4)
		if err == nil {
			http.Redirect(ww, r, target, http.StatusTemporaryRedirect)
		}
	case "m3u8":
		err = m.serveMaster(ww, r, rl, id)
	default:
		http.Error(ww, apiUsage, http.StatusBadRequest)
	}

	if err != nil {
		m.httpError(ww, r, "api", err)
	}

	m.metrics.IncResponses("api", ww.Status())
}
