// Package webtech inspects a lead's website for marketing technology. Pages
// are rendered in a shared headless browser so trackers injected by tag
// managers are visible, then matched against an embedded fingerprint
// catalog.
package webtech

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
)

// Renderer produces the rendered HTML for a URL.
type Renderer interface {
	RenderHTML(ctx context.Context, url string) (string, error)
}

// Detector inspects websites for tracking pixels and marketing tools.
type Detector struct {
	renderer Renderer
	trackers []trackerDef
}

// NewDetector creates a detector backed by the given renderer.
func NewDetector(renderer Renderer) (*Detector, error) {
	trackers, err := loadTrackers()
	if err != nil {
		return nil, err
	}
	return &Detector{renderer: renderer, trackers: trackers}, nil
}

// Inspect renders the site and reports which trackers are present. A page
// that cannot be rendered reports the all-false default; only
// browser-infrastructure faults surface as errors.
func (d *Detector) Inspect(ctx context.Context, url string) (*model.WebTechFacts, error) {
	html, err := d.renderer.RenderHTML(ctx, url)
	if err != nil {
		var renderErr *RenderError
		if errors.As(err, &renderErr) {
			zap.L().Warn("website render failed, assuming no trackers",
				zap.String("url", url), zap.Error(err))
			return d.detectContent(""), nil
		}
		return nil, err
	}
	facts := d.detectContent(html)
	return facts, nil
}

func (d *Detector) detectContent(content string) *model.WebTechFacts {
	found := detect(d.trackers, content)

	facts := &model.WebTechFacts{
		HasMetaPixel:           found[TrackerMetaPixel],
		HasGA4:                 found[TrackerGA4],
		HasGoogleAdsTag:        found[TrackerGoogleAds],
		HasTikTokPixel:         found[TrackerTikTok],
		HasMarketingAutomation: found[TrackerMarketing],
	}
	// Catalog order keeps the tool list stable.
	for _, t := range d.trackers {
		if found[t.Name] {
			facts.Tools = append(facts.Tools, t.Name)
		}
	}
	facts.PixelCount = facts.CountPixels()
	return facts
}
