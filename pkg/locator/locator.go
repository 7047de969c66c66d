package locator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hlsrelay/hlsrelay/internal/metrics"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

var DefaultStrategies = []string{"api", "page"}

type LocatorCtx struct {
	logger     zerolog.Logger
	strategies []Strategy
}

// New builds a locator trying the named strategies in the given order.
func New(client *upstream.ClientCtx, m *metrics.Metrics, names []string) (*LocatorCtx, error) {
	if len(names) == 0 {
		names = DefaultStrategies
	}

	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		switch name {
		case "api":
			strategies = append(strategies, NewAPIStrategy(client, m))
		case "page":
			strategies = append(strategies, NewPageStrategy(client, m))
		default:
			return nil, fmt.Errorf("unknown locator strategy %q", name)
		}
	}

	return NewWithStrategies(strategies...), nil
}

func NewWithStrategies(strategies ...Strategy) *LocatorCtx {
	return &LocatorCtx{
		logger:     log.With().Str("module", "locator").Logger(),
		strategies: strategies,
	}
}

// Locate returns the first value any strategy finds. When all of them fail,
// not found wins over upstream errors: at least one strategy has seen the
// video and found nothing to play.
func (l *LocatorCtx) Locate(ctx context.Context, videoID string, field Field) (string, error) {
	var notFound, lastErr error

	for _, s := range l.strategies {
		u, err := s.Locate(ctx, videoID, field)
		if err == nil {
			return u, nil
		}

		l.logger.Debug().Err(err).Str("video", videoID).Str("strategy", s.Name()).Msg("strategy failed")

		if errors.Is(err, upstream.ErrNotFound) {
			if notFound == nil {
				notFound = err
			}
		} else {
			lastErr = err
		}
	}

	if notFound != nil {
		return "", notFound
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", upstream.NotFound("no locator strategy configured")
}
