package dispatcher

import "context"

// NetworkClient talks to the browser automation sidecar that drives the
// professional network session.
type NetworkClient struct {
	*HTTPProvider
}

func NewNetworkClient(cfg HTTPConfig) *NetworkClient {
	if cfg.Name == "" {
		cfg.Name = "network"
	}
	return &NetworkClient{HTTPProvider: NewHTTPProvider(cfg)}
}

var _ NetworkAutomation = (*NetworkClient)(nil)

type networkActionBody struct {
	ProfileURL string `json:"profile_url"`
	Message    string `json:"message,omitempty"`
}

type networkActionResult struct {
	Success bool `json:"success"`
}

func (c *NetworkClient) Connect(ctx context.Context, profileURL, note string) (bool, error) {
	var res networkActionResult
	err := c.post(ctx, "connect", "/v1/connect", networkActionBody{ProfileURL: profileURL, Message: note}, &res)
	return res.Success, err
}

func (c *NetworkClient) Message(ctx context.Context, profileURL, text string) (bool, error) {
	var res networkActionResult
	err := c.post(ctx, "message", "/v1/message", networkActionBody{ProfileURL: profileURL, Message: text}, &res)
	return res.Success, err
}
