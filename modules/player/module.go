package player

import (
	_ "embed"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hlsrelay/hlsrelay/pkg/resolver"
)

//go:embed player.html
var playHTML string

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	config     atomic.Pointer[Config]
}

func New(pathPrefix string, config *Config) *ModuleCtx {
	module := &ModuleCtx{
		logger:     log.With().Str("module", "player").Logger(),
		pathPrefix: pathPrefix,
	}

	module.ConfigReload(config)
	return module
}

func (m *ModuleCtx) Shutdown() {
}

func (m *ModuleCtx) ConfigReload(config *Config) {
	c := config.withDefaultValues()
	m.config.Store(&c)
}

// Source is the relay URL the player loads for identifier.
func (m *ModuleCtx) Source(identifier string) string {
	return m.config.Load().PublicURL + "/" + identifier
}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identifier := strings.Trim(strings.TrimPrefix(r.URL.Path, m.pathPrefix), "/")

	if !resolver.IsIdentifier(identifier) {
		http.Error(w, "400 invalid stream identifier", http.StatusBadRequest)
		return
	}

	m.logger.Debug().Str("identifier", identifier).Msg("serving player")

	// identifiers never need escaping, quoting keeps the script well formed anyway
	html := strings.Replace(playHTML, `"index.m3u8"`, strconv.Quote(m.Source(identifier)), 1)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}
