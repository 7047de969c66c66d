package locator

import (
	"context"
	"strings"
)

// PlayerResponse is the subset of the upstream player response the relay
// reads. Every level is optional; use the accessors.
type PlayerResponse struct {
	PlayabilityStatus *PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     *StreamingData     `json:"streamingData"`
}

type PlayabilityStatus struct {
	Status *string `json:"status"`
	Reason string  `json:"reason"`
}

type StreamingData struct {
	HLSManifestURL *string  `json:"hlsManifestUrl"`
	Formats        []Format `json:"formats"`
}

type Format struct {
	Itag     int    `json:"itag"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

// Playability returns the playability status and whether it was present.
func (p *PlayerResponse) Playability() (status string, reason string, ok bool) {
	if p == nil || p.PlayabilityStatus == nil || p.PlayabilityStatus.Status == nil {
		return "", "", false
	}
	return *p.PlayabilityStatus.Status, p.PlayabilityStatus.Reason, true
}

// Field selects the value a caller needs from a player response.
type Field struct {
	Name string
	Get  func(p *PlayerResponse) (string, bool)
}

// HLSManifest reads streamingData.hlsManifestUrl.
var HLSManifest = Field{
	Name: "hls manifest",
	Get: func(p *PlayerResponse) (string, bool) {
		if p == nil || p.StreamingData == nil || p.StreamingData.HLSManifestURL == nil {
			return "", false
		}
		u := *p.StreamingData.HLSManifestURL
		return u, u != ""
	},
}

// MP4 reads the first progressive MP4 format that carries a direct URL.
var MP4 = Field{
	Name: "mp4 format",
	Get: func(p *PlayerResponse) (string, bool) {
		if p == nil || p.StreamingData == nil {
			return "", false
		}
		for _, f := range p.StreamingData.Formats {
			if f.URL != "" && strings.Contains(f.MimeType, "video/mp4") {
				return f.URL, true
			}
		}
		return "", false
	},
}

// Strategy obtains a field of the player response for a video id. It
// returns upstream.ErrNotFound when the field is absent or the video is not
// playable and *upstream.Error when upstream could not be reached.
type Strategy interface {
	Name() string
	Locate(ctx context.Context, videoID string, field Field) (string, error)
}

type Locator interface {
	Locate(ctx context.Context, videoID string, field Field) (string, error)
}
