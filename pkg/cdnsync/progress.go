package cdnsync

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// progress estimates completion percentage and time remaining from
// elapsed time and bundle-count velocity.
type progress struct {
	started       time.Time
	cdnStart      uint64
	cdnEnd        uint64 // inclusive
	blocksPerFile uint64
}

func newProgress(rng SyncRange, blocksPerFile uint64) *progress {
	return &progress{
		started:       time.Now(),
		cdnStart:      rng.CDNStart,
		cdnEnd:        rng.CDNEnd - 1,
		blocksPerFile: blocksPerFile,
	}
}

// estimate returns the completion percentage and remaining-time
// estimate for the given applied height. filesDone is at least 1, so
// the velocity division is always defined.
func (p *progress) estimate(current uint64) (uint64, time.Duration) {
	percentage := current * 100 / p.cdnEnd

	filesDone := 1 + (current-p.cdnStart)/p.blocksPerFile
	var left uint64
	if p.cdnEnd > current {
		left = p.cdnEnd - current
	}
	filesRemaining := 1 + left/p.blocksPerFile

	msPerFile := uint64(time.Since(p.started).Milliseconds()) / filesDone
	// 100ms per remaining file as a heuristic slowdown margin.
	etaMs := filesRemaining*msPerFile + 100*filesRemaining

	return percentage, time.Duration(etaMs) * time.Millisecond
}

func (p *progress) log(log *zap.SugaredLogger, current uint64) {
	percentage, eta := p.estimate(current)
	log.Infow("synced block",
		"height", current,
		"of", p.cdnEnd,
		"percent", percentage,
		"remaining", fmt.Sprintf("est. %d minutes", eta/time.Minute),
	)
}
