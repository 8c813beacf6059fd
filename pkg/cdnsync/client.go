package cdnsync

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ledgersync/cdnsync/pkg/metrics"
)

// client performs all HTTP requests against the CDN. It is shared by
// the planner and every fetch goroutine; http.Client is safe for
// concurrent use and pools connections across the sync.
type client struct {
	http    *http.Client
	baseURL string
	decode  DecodeFunc
	retry   RetryPolicy
	log     *zap.SugaredLogger
	m       *metrics.Metrics
}

func newClient(cfg Config, baseURL string, log *zap.SugaredLogger) *client {
	return &client{
		http:    cfg.HTTPClient,
		baseURL: baseURL,
		decode:  cfg.Decode,
		retry:   cfg.Retry,
		log:     log,
		m:       cfg.Metrics,
	}
}

func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close errors are not actionable

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return body, nil
}

// latestState mirrors the latest.json metadata object. Only the
// exclusive height is consumed.
type latestState struct {
	ExclusiveHeight uint32 `json:"exclusive_height"`
	InclusiveHeight uint32 `json:"inclusive_height"`
	Hash            string `json:"hash"`
}

// latestHeight fetches and decodes latest.json, returning the
// advertised exclusive height.
func (c *client) latestHeight(ctx context.Context) (uint64, error) {
	body, err := c.get(ctx, c.baseURL+"/latest.json")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch the CDN height: %w", err)
	}
	s, err := decodeEnvelope(body)
	if err != nil {
		return 0, fmt.Errorf("failed to deserialize the CDN height response: %w", err)
	}
	var latest latestState
	if err := json.Unmarshal([]byte(s), &latest); err != nil {
		return 0, fmt.Errorf("failed to extract the CDN height response: %w", err)
	}
	return uint64(latest.ExclusiveHeight), nil
}

// fetchBundle downloads and decodes one bundle. Single attempt.
func (c *client) fetchBundle(ctx context.Context, start, end uint64) ([]Block, error) {
	url := fmt.Sprintf("%s/%d.%d.blocks", c.baseURL, start, end)
	t := time.Now()
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	blocks, err := c.decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize blocks %d to %d: %w", start, end, err)
	}
	c.m.ObserveBundleFetch(time.Since(t))
	return blocks, nil
}

// fetchChunk downloads one bundle, retrying per the configured policy.
// Under the default policy it never returns a download error: it keeps
// retrying with linear backoff until it succeeds or ctx is cancelled.
func (c *client) fetchChunk(ctx context.Context, start, end uint64) ([]Block, error) {
	attempts := 0
	for {
		blocks, err := c.fetchBundle(ctx, start, end)
		if err == nil {
			return blocks, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		attempts++
		c.m.IncFetchRetries()
		if c.retry.exhausted(attempts) {
			return nil, fmt.Errorf("giving up on blocks %d to %d after %d attempts: %w", start, end, attempts, err)
		}
		c.log.Warnw("failed to request blocks; retrying",
			"start", start, "end", end, "attempts", attempts, "error", err)
		if !sleepCtx(ctx, c.retry.backoff(attempts)) {
			return nil, ctx.Err()
		}
	}
}

// decodeEnvelope unpacks the length-prefixed string envelope wrapping
// latest.json: an 8-byte little-endian length followed by that many
// bytes of UTF-8.
func decodeEnvelope(b []byte) (string, error) {
	if len(b) < 8 {
		return "", errors.New("envelope too short")
	}
	n := binary.LittleEndian.Uint64(b)
	if n > uint64(len(b)-8) {
		return "", errors.New("envelope length exceeds payload")
	}
	return string(b[8 : 8+n]), nil
}
