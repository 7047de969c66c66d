package locator

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hlsrelay/hlsrelay/internal/metrics"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

const playerPath = "/youtubei/v1/player?prettyPrint=false"

type playerClient struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	DeviceMake    string `json:"deviceMake"`
	DeviceModel   string `json:"deviceModel"`
	OSName        string `json:"osName"`
	OSVersion     string `json:"osVersion"`
	HL            string `json:"hl"`
	GL            string `json:"gl"`
}

type playerRequest struct {
	VideoID string `json:"videoId"`
	Context struct {
		Client playerClient `json:"client"`
	} `json:"context"`
	ContentCheckOK bool `json:"contentCheckOk"`
	RacyCheckOK    bool `json:"racyCheckOk"`
}

func newPlayerRequest(videoID string, id upstream.Identity) playerRequest {
	req := playerRequest{
		VideoID:        videoID,
		ContentCheckOK: true,
		RacyCheckOK:    true,
	}
	req.Context.Client = playerClient{
		ClientName:    id.ClientName,
		ClientVersion: id.ClientVersion,
		DeviceMake:    id.DeviceMake,
		DeviceModel:   id.DeviceModel,
		OSName:        id.OSName,
		OSVersion:     id.OSVersion,
		HL:            "en",
		GL:            "US",
	}
	return req
}

type APIStrategy struct {
	logger  zerolog.Logger
	client  *upstream.ClientCtx
	metrics *metrics.Metrics
}

func NewAPIStrategy(client *upstream.ClientCtx, m *metrics.Metrics) *APIStrategy {
	return &APIStrategy{
		logger:  log.With().Str("module", "locator").Str("strategy", "api").Logger(),
		client:  client,
		metrics: m,
	}
}

func (s *APIStrategy) Name() string {
	return "api"
}

func (s *APIStrategy) Locate(ctx context.Context, videoID string, field Field) (string, error) {
	var p PlayerResponse
	err := s.client.PostJSON(ctx, s.client.BaseURL()+playerPath, newPlayerRequest(videoID, s.client.Identity()), &p)
	if err != nil {
		return "", err
	}

	if status, reason, ok := p.Playability(); ok && status != "OK" {
		s.metrics.IncExtractions("api", metrics.ResultOffline)
		s.logger.Debug().Str("video", videoID).Str("status", status).Str("reason", reason).Msg("not playable")
		return "", upstream.NotFound("video %s is not playable (%s): %s", videoID, status, reason)
	}

	u, ok := field.Get(&p)
	if !ok {
		s.metrics.IncExtractions("api", metrics.ResultMiss)
		if p.StreamingData == nil && p.PlayabilityStatus == nil {
			s.logger.Warn().Str("video", videoID).Msg("player response has no known fields, possible upstream format change")
		}
		return "", upstream.NotFound("no %s for video %s, stream offline or ended", field.Name, videoID)
	}

	s.metrics.IncExtractions("api", metrics.ResultHit)
	return u, nil
}
