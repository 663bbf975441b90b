package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// FetchConfigs POSTs the user payload with conditional headers and
// returns the raw configs body. A 304 response comes back as
// ErrNotModified with the prior headers intact.
func (c *Client) FetchConfigs(ctx context.Context, user map[string]interface{}, since CacheHeaders) ([]byte, CacheHeaders, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"user":                        user,
		"include_only_features_flags": true,
	})
	if err != nil {
		return nil, CacheHeaders{}, &Error{Kind: KindSerialization, Op: "fetch configs", Err: err}
	}

	resp, body, err := c.postJSON(ctx, "/users/configs", payload, &since, c.cfg.Timeouts.Fetch)
	if err != nil {
		return nil, CacheHeaders{}, err
	}
	if resp.StatusCode == http.StatusNotModified {
		return nil, since, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, CacheHeaders{}, statusError("fetch configs", resp, body)
	}
	return body, headersFromResponse(resp), nil
}
