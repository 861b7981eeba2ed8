// Package dispatcher holds the channel collaborators the orchestrator and the
// enrichment queue call out to, and their HTTP and SES implementations.
package dispatcher

import (
	"context"
	"errors"
)

var (
	ErrNoHealthy   = errors.New("no healthy providers")
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// PersonDetails is one entry of a bulk match request. ID is the provider's
// own person id when one is already known.
type PersonDetails struct {
	ID               string `json:"id,omitempty"`
	Email            string `json:"email,omitempty"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Domain           string `json:"domain,omitempty"`
	NetworkURL       string `json:"linkedin_url,omitempty"`
}

// MatchRequest shares one set of reveal flags across every entry.
type MatchRequest struct {
	Details              []PersonDetails
	RevealPersonalEmails bool
	RevealPhoneNumber    bool
}

type MatchedOrganization struct {
	ID                 string
	Name               string
	PrimaryDomain      string
	Industry           string
	EstimatedEmployees int
	City               string
	State              string
}

type MatchedPerson struct {
	ProviderID   string
	Email        string
	EmailStatus  string
	FirstName    string
	LastName     string
	Title        string
	Seniority    string
	Departments  []string
	NetworkURL   string
	Phone        string
	JobStartDate string
	Organization *MatchedOrganization
}

// CompanyProfile is an organization enrichment response.
type CompanyProfile struct {
	ProviderOrgID    string
	Domain           string
	Name             string
	Industry         string
	EmployeeCount    int
	EstimatedRevenue string
	Technologies     []string
	Description      string
	JobOpenings      int
	City             string
	State            string
	Locations        []string
}

// EnrichmentProvider is credit metered. Bulk calls take at most
// MaxBulkMatch entries.
type EnrichmentProvider interface {
	BulkMatchPeople(ctx context.Context, req MatchRequest) ([]MatchedPerson, error)
	EnrichCompany(ctx context.Context, domain string) (*CompanyProfile, error)
}

type Email struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
	Text     string
	Tags     map[string]string
}

// EmailDelivery sends synchronously. A nil error means the provider accepted
// the message.
type EmailDelivery interface {
	Send(ctx context.Context, msg Email) error
}

type CallRequest struct {
	Phone      string // E.164
	Script     string
	WebhookURL string
	Metadata   map[string]string
}

// VoiceProvider schedules an outbound call and returns the provider call id.
// Completion arrives later through the webhook or callbacks topic.
type VoiceProvider interface {
	ScheduleCall(ctx context.Context, req CallRequest) (string, error)
}

// NetworkAutomation drives the professional network. Results are best effort.
type NetworkAutomation interface {
	Connect(ctx context.Context, profileURL, note string) (bool, error)
	Message(ctx context.Context, profileURL, text string) (bool, error)
}
