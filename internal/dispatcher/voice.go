package dispatcher

import (
	"context"
	"errors"
)

// VoiceClient schedules AI voice calls over the provider's calls API.
type VoiceClient struct {
	*HTTPProvider
	voice       string
	maxDuration int
}

func NewVoiceClient(cfg HTTPConfig, voice string, maxDurationMin int) *VoiceClient {
	if cfg.Name == "" {
		cfg.Name = "voice"
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "Authorization"
	}
	if maxDurationMin <= 0 {
		maxDurationMin = 5
	}
	return &VoiceClient{HTTPProvider: NewHTTPProvider(cfg), voice: voice, maxDuration: maxDurationMin}
}

var _ VoiceProvider = (*VoiceClient)(nil)

type scheduleCallBody struct {
	PhoneNumber     string            `json:"phone_number"`
	Task            string            `json:"task"`
	Voice           string            `json:"voice,omitempty"`
	WaitForGreeting bool              `json:"wait_for_greeting"`
	Record          bool              `json:"record"`
	Webhook         string            `json:"webhook,omitempty"`
	MaxDuration     int               `json:"max_duration"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func (c *VoiceClient) ScheduleCall(ctx context.Context, req CallRequest) (string, error) {
	var resp struct {
		CallID string `json:"call_id"`
		Status string `json:"status"`
	}
	err := c.post(ctx, "schedule_call", "/v1/calls", scheduleCallBody{
		PhoneNumber:     req.Phone,
		Task:            req.Script,
		Voice:           c.voice,
		WaitForGreeting: true,
		Record:          true,
		Webhook:         req.WebhookURL,
		MaxDuration:     c.maxDuration,
		Metadata:        req.Metadata,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.CallID == "" {
		return "", errors.New("voice provider returned no call id")
	}
	return resp.CallID, nil
}
