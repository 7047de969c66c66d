package locator

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hlsrelay/hlsrelay/internal/metrics"
	"github.com/hlsrelay/hlsrelay/pkg/extract"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

var (
	playerResponseRegex = regexp.MustCompile(`ytInitialPlayerResponse\s*=\s*\{`)
	manifestFieldRegex  = regexp.MustCompile(`"hlsManifestUrl"\s*:\s*"([^"]+)"`)
)

// page markers, none of them present means the page format has changed
var pageMarkers = []string{"ytInitialPlayerResponse", "hlsManifestUrl", "playabilityStatus"}

func WatchURL(baseURL string, videoID string) string {
	return baseURL + "/watch?v=" + url.QueryEscape(videoID)
}

// ParsePlayerResponse decodes the player response assigned in the watch
// page. Only the first JSON value after the assignment is read.
func ParsePlayerResponse(body string) (*PlayerResponse, bool) {
	loc := playerResponseRegex.FindStringIndex(body)
	if loc == nil {
		return nil, false
	}

	var p PlayerResponse
	// start at the opening brace
	if err := json.NewDecoder(strings.NewReader(body[loc[1]-1:])).Decode(&p); err != nil {
		return nil, false
	}

	return &p, true
}

// ManifestField extracts hlsManifestUrl straight from the page text.
func ManifestField(body string) (string, bool) {
	match := manifestFieldRegex.FindStringSubmatch(body)
	if match == nil {
		return "", false
	}

	// the value is a JSON string, e.g. with \/ and \u0026 escapes
	var u string
	if err := json.Unmarshal([]byte(`"`+match[1]+`"`), &u); err != nil {
		u = strings.NewReplacer(`\/`, `/`, `\u0026`, `&`).Replace(match[1])
	}

	return u, u != ""
}

type PageStrategy struct {
	logger  zerolog.Logger
	client  *upstream.ClientCtx
	metrics *metrics.Metrics
}

func NewPageStrategy(client *upstream.ClientCtx, m *metrics.Metrics) *PageStrategy {
	return &PageStrategy{
		logger:  log.With().Str("module", "locator").Str("strategy", "page").Logger(),
		client:  client,
		metrics: m,
	}
}

func (s *PageStrategy) Name() string {
	return "page"
}

func (s *PageStrategy) Locate(ctx context.Context, videoID string, field Field) (string, error) {
	page, err := s.client.Page(ctx, WatchURL(s.client.BaseURL(), videoID))
	if err != nil {
		return "", err
	}

	var status, reason string
	res := extract.First(page.Body, func(step string, ok bool) {
		result := metrics.ResultMiss
		if ok {
			result = metrics.ResultHit
		} else if step == "player-response" && status != "" && status != "OK" {
			result = metrics.ResultOffline
		}
		s.metrics.IncExtractions("page/"+step, result)
	},
		extract.Step[string, string]{
			Name: "player-response",
			Fn: func(body string) (string, bool) {
				p, ok := ParsePlayerResponse(body)
				if !ok {
					return "", false
				}
				status, reason, _ = p.Playability()
				return field.Get(p)
			},
		},
		extract.Step[string, string]{
			Name: "manifest-field",
			Fn: func(body string) (string, bool) {
				u, ok := ManifestField(body)
				if !ok {
					return "", false
				}
				return field.Get(&PlayerResponse{
					StreamingData: &StreamingData{HLSManifestURL: &u},
				})
			},
		},
	)

	if res.OK {
		s.logger.Debug().Str("video", videoID).Str("step", res.Step).Msg("located")
		return res.Value, nil
	}

	if !containsAny(page.Body, pageMarkers) {
		s.logger.Warn().Str("video", videoID).Msg("watch page has no player data, possible upstream format change")
	}

	if status != "" && status != "OK" {
		return "", upstream.NotFound("video %s is not playable (%s): %s", videoID, status, reason)
	}

	return "", upstream.NotFound("no %s for video %s, stream offline or ended", field.Name, videoID)
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
