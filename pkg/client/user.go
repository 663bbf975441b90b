package client

// User identifies the end user configuration is evaluated for. Device
// and App carry context attached to every outbound event.
type User struct {
	ID         string
	Properties map[string]interface{}
	Device     map[string]string
	App        map[string]string
}

// snapshot flattens the user into the wire form sent with config
// fetches and telemetry submissions. The id wins over a colliding
// property key.
func (u User) snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(u.Properties)+1)
	for k, v := range u.Properties {
		out[k] = v
	}
	out["user_id"] = u.ID
	if len(u.Device) > 0 {
		out["device"] = u.Device
	}
	if len(u.App) > 0 {
		out["app"] = u.App
	}
	return out
}
