package fetch

import (
	"path/filepath"

	"github.com/abelbrown/mentions/internal/model"
)

// Source is one configured export.
type Source struct {
	Name     string     // display name, also the payload's source label
	Location string     // file path, file:// URL or http(s) URL
	Tier     model.Tier // tier implied by which export this is; may be empty
}

// DefaultScrapeDir is where the scraper writes its exports by default.
const DefaultScrapeDir = "frontend/public/scrapes"

// DefaultSources returns the paired high/low confidence exports under dir.
func DefaultSources(dir string) []Source {
	return []Source{
		{Name: "high", Location: filepath.Join(dir, "combined_data_high_confidence.json"), Tier: model.TierHigh},
		{Name: "low", Location: filepath.Join(dir, "combined_data_low_confidence.json"), Tier: model.TierLow},
	}
}

// LocalPaths returns the filesystem paths of local sources in order. The
// watcher uses it.
func LocalPaths(sources []Source) []string {
	var paths []string
	for _, s := range sources {
		if !s.IsRemote() {
			paths = append(paths, s.Path())
		}
	}
	return paths
}
