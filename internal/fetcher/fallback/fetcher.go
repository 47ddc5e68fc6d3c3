package fallback

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/metrics"
)

// Detector decides whether a response needs rendering.
type Detector interface {
	ShouldRender(resp catalog.FetchResponse) bool
}

// Fetcher tries the primary fetcher first and promotes to the renderer when
// the detector asks for it.
type Fetcher struct {
	primary  catalog.Fetcher
	renderer catalog.Fetcher
	detector Detector
	logger   *zap.Logger
}

var _ catalog.Fetcher = (*Fetcher)(nil)

// New builds a promoting fetcher.
func New(primary, renderer catalog.Fetcher, detector Detector, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{primary: primary, renderer: renderer, detector: detector, logger: logger}
}

// Fetch implements catalog.Fetcher. A failed render keeps the plain response.
func (f *Fetcher) Fetch(ctx context.Context, url string) (catalog.FetchResponse, error) {
	resp, err := f.primary.Fetch(ctx, url)
	if err != nil || !f.detector.ShouldRender(resp) {
		return resp, err
	}

	metrics.ObserveHeadlessPromotion()
	f.logger.Debug("promoting fetch to headless renderer", zap.String("url", url))
	rendered, rerr := f.renderer.Fetch(ctx, url)
	if rerr != nil {
		if ctx.Err() != nil {
			return catalog.FetchResponse{}, ctx.Err()
		}
		f.logger.Warn("headless render failed, keeping plain response", zap.String("url", url), zap.Error(rerr))
		return resp, nil
	}
	return rendered, nil
}
