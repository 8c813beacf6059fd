package cdnsync

import "context"

// planRange negotiates the available remote range and computes the
// effective sync window.
//
// The CDN end is the smallest multiple of BlocksPerFile strictly
// greater than the advertised exclusive height minus the safety
// margin. The requested end, when given, is clamped to the CDN end.
// The CDN start is the requested start rounded down to a bundle
// boundary, since bundles are only offered at aligned offsets.
func planRange(ctx context.Context, c *client, cfg Config, start uint64, end *uint64) (SyncRange, error) {
	tip, err := c.latestHeight(ctx)
	if err != nil {
		return SyncRange{}, err
	}

	// Back off the tip; the newest heights may be advertised before
	// their bundle is fully materialized.
	if tip > cfg.SafetyMargin {
		tip -= cfg.SafetyMargin
	} else {
		tip = 0
	}
	cdnHeight := tip - tip%cfg.BlocksPerFile + cfg.BlocksPerFile

	effectiveEnd := cdnHeight
	if end != nil && *end < cdnHeight {
		effectiveEnd = *end
	}

	return SyncRange{
		Start:    start,
		End:      effectiveEnd,
		CDNStart: start - start%cfg.BlocksPerFile,
		CDNEnd:   effectiveEnd,
	}, nil
}

// isEmpty reports whether there is nothing to download or apply.
func (r SyncRange) isEmpty() bool {
	return r.End <= r.Start || r.CDNStart >= r.CDNEnd
}
