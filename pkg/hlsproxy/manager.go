package hlsproxy

import (
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hlsrelay/hlsrelay/internal/utils"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

// not forwarded from upstream segment responses
var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// forwarded to upstream only when the player sent them
var rangeHeaders = []string{"Range", "If-Range"}

type ManagerCtx struct {
	logger zerolog.Logger
	config Config
}

func New(config *Config) *ManagerCtx {
	return &ManagerCtx{
		logger: log.With().Str("module", "hlsproxy").Str("submodule", "manager").Logger(),
		config: config.withDefaultValues(),
	}
}

func (m *ManagerCtx) ServePlaylist(w http.ResponseWriter, r *http.Request, level Level, source string) error {
	doc, err := m.config.Client.Playlist(r.Context(), source)
	if err != nil {
		return err
	}

	if e := m.logger.Debug(); e.Enabled() {
		summary, err := Describe(doc)
		if err != nil {
			summary = "unparsable: " + err.Error()
		}
		e.Str("level", level.String()).Str("url", source).Str("playlist", summary).Msg("playlist fetched")
	}

	text := Rewrite(doc, ProxyBase(m.config.PublicURL, r), level.Param())

	h := w.Header()
	h.Set("Content-Type", "application/vnd.apple.mpegurl")
	if level == Master {
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}

	_, err = io.WriteString(w, text)
	if err != nil {
		m.logger.Debug().Err(err).Msg("unable to write playlist")
	}
	return nil
}

func (m *ManagerCtx) ServeSegment(w http.ResponseWriter, r *http.Request, target string) error {
	header := http.Header{}
	for _, key := range rangeHeaders {
		if value := r.Header.Get(key); value != "" {
			header.Set(key, value)
		}
	}

	resp, err := m.config.Client.Stream(r.Context(), r.Method, target, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 416 is relayed as is, players read Content-Range from it to recover
	// after asking for bytes past the end of a segment
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		m.logger.Warn().Int("code", resp.StatusCode).Str("url", target).Msg("invalid HTTP response")
		return &upstream.Error{URL: target, StatusCode: resp.StatusCode}
	}

	h := w.Header()
	for key, values := range resp.Header {
		if _, ok := hopHeaders[key]; ok || strings.HasPrefix(key, "Access-Control-") {
			continue
		}
		h[key] = values
	}
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return nil
	}

	n, err := utils.CopyFlush(w, resp.Body, m.config.BufferSize)
	m.config.Metrics.AddProxiedBytes(n)
	if err != nil {
		// headers are out, nothing left to report to the player
		m.logger.Debug().Err(err).Str("url", target).Int64("bytes", n).Msg("segment copy interrupted")
	}

	return nil
}
