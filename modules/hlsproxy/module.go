package hlsproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hlsrelay/hlsrelay/internal/metrics"
	"github.com/hlsrelay/hlsrelay/pkg/hlsproxy"
	"github.com/hlsrelay/hlsrelay/pkg/locator"
	"github.com/hlsrelay/hlsrelay/pkg/resolver"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

const usage = `hlsrelay - live stream relay

  /{videoId}                 rewritten master playlist of a live video
  /@{handle}                 current live broadcast of a channel handle
  /{channelId}               current live broadcast of a channel (UC...)
  /api?v={videoId}&type=mp4  redirect to a direct MP4 stream (type=m3u8 for HLS)
  /player/{identifier}       web player
`

// relay is everything built from configuration, swapped as a whole on reload.
type relay struct {
	client   *upstream.ClientCtx
	resolver *resolver.ResolverCtx
	locator  locator.Locator
	manager  hlsproxy.Manager
}

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	metrics    *metrics.Metrics

	relay atomic.Pointer[relay]
}

func New(pathPrefix string, config *Config, m *metrics.Metrics) (*ModuleCtx, error) {
	module := &ModuleCtx{
		logger:     log.With().Str("module", "hlsproxy").Logger(),
		pathPrefix: pathPrefix,
		metrics:    m,
	}

	if err := module.ConfigReload(config); err != nil {
		return nil, err
	}

	return module, nil
}

func (m *ModuleCtx) newRelay(config Config) (*relay, error) {
	client, err := upstream.New(&config.Upstream)
	if err != nil {
		return nil, err
	}

	loc, err := locator.New(client, m.metrics, config.Strategies)
	if err != nil {
		return nil, err
	}

	return &relay{
		client:   client,
		resolver: resolver.New(client, m.metrics),
		locator:  loc,
		manager: hlsproxy.New(&hlsproxy.Config{
			PublicURL: config.PublicURL,
			Client:    client,
			Metrics:   m.metrics,
		}),
	}, nil
}

// ConfigReload rebuilds the upstream client with its identity and swaps it
// in. Requests in flight finish with the previous one.
func (m *ModuleCtx) ConfigReload(config *Config) error {
	rl, err := m.newRelay(config.withDefaultValues())
	if err != nil {
		return fmt.Errorf("unable to configure relay: %w", err)
	}

	if old := m.relay.Swap(rl); old != nil {
		old.client.CloseIdleConnections()
		m.logger.Info().Msg("relay reconfigured")
	}

	return nil
}

func (m *ModuleCtx) Shutdown() {
	if rl := m.relay.Load(); rl != nil {
		rl.client.CloseIdleConnections()
	}
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Range, Content-Type")
	h.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
}

// preflight answers CORS and method checks, it returns false when the
// request has been handled.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	setCORS(w.Header())

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return true
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(w, "405 method not allowed", http.StatusMethodNotAllowed)
	}

	return false
}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}

	req, err := classify(strings.TrimPrefix(r.URL.Path, m.pathPrefix), r)
	if errors.Is(err, ErrReserved) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		m.metrics.IncResponses("invalid", http.StatusBadRequest)
		http.Error(w, "400 "+err.Error(), http.StatusBadRequest)
		return
	}

	kind := req.Kind.String()
	m.metrics.IncRequests(kind)

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	rl := m.relay.Load()

	switch req.Kind {
	case KindUsage:
		ww.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = ww.Write([]byte(usage))
	case KindMaster:
		err = m.serveMaster(ww, r, rl, req.Identifier)
	case KindVariant:
		err = rl.manager.ServePlaylist(ww, r, hlsproxy.Variant, req.Target)
	case KindSegment:
		err = rl.manager.ServeSegment(ww, r, req.Target)
	}

	if err != nil {
		m.httpError(ww, r, kind, err)
	}

	m.metrics.IncResponses(kind, ww.Status())
}

func (m *ModuleCtx) serveMaster(w http.ResponseWriter, r *http.Request, rl *relay, identifier string) error {
	manifest, err := m.locate(r.Context(), rl, identifier, locator.HLSManifest)
	if err != nil {
		return err
	}

	return rl.manager.ServePlaylist(w, r, hlsproxy.Master, manifest)
}

// locate resolves a channel reference when needed and finds field for the
// resulting video.
func (m *ModuleCtx) locate(ctx context.Context, rl *relay, identifier string, field locator.Field) (string, error) {
	videoID := identifier
	if !resolver.IsVideoID(identifier) {
		var err error
		videoID, err = rl.resolver.Resolve(ctx, identifier)
		if err != nil {
			return "", err
		}
	}

	return rl.locator.Locate(ctx, videoID, field)
}

func (m *ModuleCtx) httpError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	code := upstream.StatusCode(err)
	logger := m.logger.With().Str("kind", kind).Str("path", r.URL.Path).Int("code", code).Logger()

	var message string
	switch code {
	case http.StatusNotFound:
		logger.Info().Err(err).Msg("not found")
		message = err.Error()
	case http.StatusBadGateway:
		logger.Warn().Err(err).Msg("upstream error")
		message = "upstream error"
		var upstreamErr *upstream.Error
		if errors.As(err, &upstreamErr) && upstreamErr.StatusCode != 0 {
			message = fmt.Sprintf("upstream error: status %d", upstreamErr.StatusCode)
		}
	default:
		logger.Error().Err(err).Msg("request failed")
		message = err.Error()
	}

	// segment headers may be out already
	if ww, ok := w.(middleware.WrapResponseWriter); ok && ww.Status() != 0 {
		return
	}

	http.Error(w, fmt.Sprintf("%d %s", code, message), code)
}
