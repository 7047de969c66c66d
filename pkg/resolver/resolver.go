package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hlsrelay/hlsrelay/internal/metrics"
	"github.com/hlsrelay/hlsrelay/pkg/extract"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

const videoIDLength = 11

var (
	videoIDRegex      = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	videoIDFieldRegex = regexp.MustCompile(`"videoId":"([0-9A-Za-z_-]{11})"`)
	channelIDRegex    = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)
	identifierRegex   = regexp.MustCompile(`^@?[0-9A-Za-z._-]+$`)
)

// IsIdentifier reports whether s is a well formed video id, channel id or
// handle.
func IsIdentifier(s string) bool {
	return identifierRegex.MatchString(s)
}

// IsVideoID reports whether identifier is used as a video id as is: exactly
// 11 characters without a leading @. Everything else is a channel reference.
func IsVideoID(identifier string) bool {
	return len(identifier) == videoIDLength && !strings.HasPrefix(identifier, "@")
}

// LivePageURL returns the channel live page for a handle, a channel id or a
// bare channel name, which is treated as a handle.
func LivePageURL(baseURL string, ref string) string {
	if channelIDRegex.MatchString(ref) {
		return baseURL + "/channel/" + url.PathEscape(ref) + "/live"
	}
	return baseURL + "/@" + url.PathEscape(strings.TrimPrefix(ref, "@")) + "/live"
}

// Redirect takes the video id from the final URL when upstream redirected
// the live page to a watch page.
func Redirect(page *upstream.Page) (string, bool) {
	u, err := url.Parse(page.URL)
	if err != nil || u.Path != "/watch" {
		return "", false
	}

	v := u.Query().Get("v")
	if !videoIDRegex.MatchString(v) {
		return "", false
	}

	return v, true
}

// VideoIDField scans the page body for an embedded video id.
func VideoIDField(page *upstream.Page) (string, bool) {
	match := videoIDFieldRegex.FindStringSubmatch(page.Body)
	if match == nil {
		return "", false
	}
	return match[1], true
}

type ResolverCtx struct {
	logger  zerolog.Logger
	client  *upstream.ClientCtx
	metrics *metrics.Metrics
	steps   []extract.Step[*upstream.Page, string]
}

func New(client *upstream.ClientCtx, m *metrics.Metrics) *ResolverCtx {
	return &ResolverCtx{
		logger:  log.With().Str("module", "resolver").Logger(),
		client:  client,
		metrics: m,
		steps: []extract.Step[*upstream.Page, string]{
			{Name: "redirect", Fn: Redirect},
			{Name: "video-id-field", Fn: VideoIDField},
		},
	}
}

// Resolve turns a channel reference into the id of its current live video.
// A failed fetch is reported as not found, like an exhausted extraction.
func (r *ResolverCtx) Resolve(ctx context.Context, ref string) (string, error) {
	logger := r.logger.With().Str("ref", ref).Logger()

	page, err := r.client.Page(ctx, LivePageURL(r.client.BaseURL(), ref))
	if err != nil {
		logger.Warn().Err(err).Msg("unable to fetch live page")
		return "", upstream.NotFound("channel %s could not be fetched", ref)
	}

	res := extract.First(page, func(step string, ok bool) {
		result := metrics.ResultMiss
		if ok {
			result = metrics.ResultHit
		}
		r.metrics.IncExtractions("resolver/"+step, result)
	}, r.steps...)

	if !res.OK {
		logger.Info().Str("url", page.URL).Msg("channel has no live broadcast")
		return "", upstream.NotFound("channel %s has no live broadcast", ref)
	}

	logger.Debug().Str("step", res.Step).Str("video", res.Value).Msg("channel resolved")
	return res.Value, nil
}
