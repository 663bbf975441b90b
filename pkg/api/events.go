package api

import (
	"context"
	"encoding/json"

	"flagsync/pkg/telemetry"
)

// UserProvider supplies the identity snapshot attached to submissions.
type UserProvider interface {
	UserSnapshot() map[string]interface{}
}

func (c *Client) submit(ctx context.Context, path string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Kind: KindSerialization, Op: "POST " + path, Err: err}
	}
	resp, respBody, err := c.postJSON(ctx, path, body, nil, c.cfg.Timeouts.Submit)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("POST "+path, resp, respBody)
	}
	return nil
}

func eventWire(e telemetry.Event) map[string]interface{} {
	w := map[string]interface{}{
		"id":         e.ID,
		"name":       e.Name,
		"timestamp":  e.Timestamp.UnixMilli(),
		"session_id": e.SessionID,
		"user_id":    e.UserID,
	}
	if len(e.Device) > 0 {
		w["device"] = e.Device
	}
	if len(e.App) > 0 {
		w["app"] = e.App
	}
	if len(e.Properties) > 0 {
		w["properties"] = e.Properties
	}
	return w
}

func summaryWire(s telemetry.Summary) map[string]interface{} {
	w := map[string]interface{}{
		"name":          s.Name,
		"count":         s.Count,
		"experience_id": s.ExperienceID,
		"config_id":     s.ConfigID,
		"variation_id":  s.VariationID,
		"version":       s.Version,
		"timestamp":     s.Timestamp.UnixMilli(),
	}
	if len(s.Properties) > 0 {
		w["properties"] = s.Properties
	}
	return w
}

// Submitter adapts the client to telemetry.Sender using a user snapshot
// provider for the submission envelope.
type Submitter struct {
	Client *Client
	User   UserProvider
}

// SendEvents posts an event batch; any non-2xx is an error.
func (s *Submitter) SendEvents(ctx context.Context, events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}
	wire := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		wire = append(wire, eventWire(e))
	}
	return s.Client.submit(ctx, "/events", map[string]interface{}{
		"user":        s.User.UserSnapshot(),
		"events":      wire,
		"sdk_version": s.Client.cfg.SDKVersion,
	})
}

// SendSummaries posts a summary batch.
func (s *Submitter) SendSummaries(ctx context.Context, summaries []telemetry.Summary) error {
	if len(summaries) == 0 {
		return nil
	}
	wire := make([]map[string]interface{}, 0, len(summaries))
	for _, sm := range summaries {
		wire = append(wire, summaryWire(sm))
	}
	return s.Client.submit(ctx, "/summaries", map[string]interface{}{
		"user":        s.User.UserSnapshot(),
		"summaries":   wire,
		"sdk_version": s.Client.cfg.SDKVersion,
	})
}

var _ telemetry.Sender = (*Submitter)(nil)
