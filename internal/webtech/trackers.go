package webtech

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed trackers.yaml
var trackersYAML []byte

// Tracker names. These match the entries in trackers.yaml.
const (
	TrackerMetaPixel = "meta_pixel"
	TrackerGA4       = "ga4"
	TrackerGoogleAds = "google_ads"
	TrackerTikTok    = "tiktok_pixel"
	TrackerMarketing = "marketing_automation"
)

type trackerDef struct {
	Name         string   `yaml:"name"`
	Fingerprints []string `yaml:"fingerprints"`
}

type trackerFile struct {
	Trackers []trackerDef `yaml:"trackers"`
}

// loadTrackers parses the embedded fingerprint catalog.
func loadTrackers() ([]trackerDef, error) {
	var f trackerFile
	if err := yaml.Unmarshal(trackersYAML, &f); err != nil {
		return nil, eris.Wrap(err, "webtech: parse trackers.yaml")
	}
	if len(f.Trackers) == 0 {
		return nil, eris.New("webtech: trackers.yaml has no entries")
	}
	return f.Trackers, nil
}

// detect returns the set of tracker names whose fingerprints appear in the
// rendered page content. Matching is case-insensitive.
func detect(trackers []trackerDef, content string) map[string]bool {
	found := make(map[string]bool)
	lowered := strings.ToLower(content)
	for _, t := range trackers {
		for _, fp := range t.Fingerprints {
			if strings.Contains(lowered, strings.ToLower(fp)) {
				found[t.Name] = true
				break
			}
		}
	}
	return found
}
