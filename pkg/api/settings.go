package api

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
)

// Settings is the SDK-level enablement payload.
type Settings struct {
	AccountEnabled bool
	SkipSDK        bool
}

// Enabled reports whether the SDK should serve live config values.
func (s Settings) Enabled() bool { return s.AccountEnabled && !s.SkipSDK }

// ProbeResult is the outcome of a lightweight settings probe.
type ProbeResult struct {
	Modified bool
	Headers  CacheHeaders
}

// ProbeSettings issues a header-only HEAD against the settings endpoint
// carrying the conditional markers. Servers that reject HEAD fall back to
// a full GET whose body is discarded here; FetchSettings reads it.
func (c *Client) ProbeSettings(ctx context.Context, since CacheHeaders) (ProbeResult, error) {
	req, err := http.NewRequest(http.MethodHead, c.endpoint("/sdk-settings/"+c.cfg.DimensionID), nil)
	if err != nil {
		return ProbeResult{}, &Error{Kind: KindValidation, Op: "probe settings", Err: err}
	}
	setConditionalHeaders(req, since)

	resp, body, err := c.do(ctx, req, c.cfg.Timeouts.Probe)
	if err != nil {
		return ProbeResult{}, err
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return ProbeResult{Modified: false, Headers: since}, nil
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		// Lightweight form unsupported; fall back to a full request.
		return c.probeViaGet(ctx, since)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		headers := headersFromResponse(resp)
		return ProbeResult{Modified: modified(since, headers), Headers: headers}, nil
	default:
		return ProbeResult{}, statusError("probe settings", resp, body)
	}
}

func (c *Client) probeViaGet(ctx context.Context, since CacheHeaders) (ProbeResult, error) {
	_, headers, err := c.FetchSettings(ctx, since)
	if err == ErrNotModified {
		return ProbeResult{Modified: false, Headers: since}, nil
	}
	if err != nil {
		return ProbeResult{}, err
	}
	return ProbeResult{Modified: modified(since, headers), Headers: headers}, nil
}

// modified compares conditional markers; when the server supplies
// neither, the payload is treated as changed.
func modified(since, got CacheHeaders) bool {
	if got.ETag != "" && since.ETag != "" {
		return got.ETag != since.ETag
	}
	if got.LastModified != "" && since.LastModified != "" {
		return got.LastModified != since.LastModified
	}
	return true
}

// FetchSettings GETs the settings payload and extracts the enablement
// flags.
func (c *Client) FetchSettings(ctx context.Context, since CacheHeaders) (Settings, CacheHeaders, error) {
	req, err := http.NewRequest(http.MethodGet, c.endpoint("/sdk-settings/"+c.cfg.DimensionID), nil)
	if err != nil {
		return Settings{}, CacheHeaders{}, &Error{Kind: KindValidation, Op: "fetch settings", Err: err}
	}
	setConditionalHeaders(req, since)

	resp, body, err := c.do(ctx, req, c.cfg.Timeouts.Probe)
	if err != nil {
		return Settings{}, CacheHeaders{}, err
	}
	if resp.StatusCode == http.StatusNotModified {
		return Settings{}, since, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Settings{}, CacheHeaders{}, statusError("fetch settings", resp, body)
	}

	parsed := gjson.ParseBytes(body)
	settings := Settings{
		AccountEnabled: parsed.Get("cf_account_enabled").Bool(),
		SkipSDK:        parsed.Get("cf_skip_sdk").Bool(),
	}
	return settings, headersFromResponse(resp), nil
}
