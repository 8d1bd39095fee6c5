package audit

import (
	"time"

	"github.com/sells-group/site-audit/internal/config"
)

// Policy holds the thresholds the checkers apply.
type Policy struct {
	TitleMin         int
	TitleMax         int
	ThinContentWords int
	// ContentPageLimit bounds how many pages (from the front of the crawl)
	// get content checks.
	ContentPageLimit int
	ContentMaxChars  int
	// SpeedMedium and SpeedHigh are performance scores in [0,1]; a score
	// below SpeedHigh is high severity, below SpeedMedium medium.
	SpeedMedium     float64
	SpeedHigh       float64
	ImageBytesLimit int64
	// CheckerTimeout bounds each call to an external capability.
	CheckerTimeout time.Duration
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		TitleMin:         30,
		TitleMax:         60,
		ThinContentWords: 300,
		ContentPageLimit: 5,
		ContentMaxChars:  10000,
		SpeedMedium:      0.70,
		SpeedHigh:        0.40,
		ImageBytesLimit:  2_000_000,
		CheckerTimeout:   90 * time.Second,
	}
}

// PolicyFromConfig overlays non-zero config values on DefaultPolicy.
func PolicyFromConfig(cfg config.AuditConfig) Policy {
	p := DefaultPolicy()
	if cfg.TitleMin > 0 {
		p.TitleMin = cfg.TitleMin
	}
	if cfg.TitleMax > 0 {
		p.TitleMax = cfg.TitleMax
	}
	if cfg.ThinContentWords > 0 {
		p.ThinContentWords = cfg.ThinContentWords
	}
	if cfg.ContentPageLimit > 0 {
		p.ContentPageLimit = cfg.ContentPageLimit
	}
	if cfg.ContentMaxChars > 0 {
		p.ContentMaxChars = cfg.ContentMaxChars
	}
	if cfg.SpeedMedium > 0 {
		p.SpeedMedium = cfg.SpeedMedium
	}
	if cfg.SpeedHigh > 0 {
		p.SpeedHigh = cfg.SpeedHigh
	}
	if cfg.ImageBytesLimit > 0 {
		p.ImageBytesLimit = cfg.ImageBytesLimit
	}
	if cfg.CheckerTimeoutSecs > 0 {
		p.CheckerTimeout = time.Duration(cfg.CheckerTimeoutSecs) * time.Second
	}
	return p
}
