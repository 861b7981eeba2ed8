package dispatcher

import (
	"context"
	"fmt"
	"strconv"
)

// MaxBulkMatch is the provider's per-request cap for bulk person matching.
const MaxBulkMatch = 10

// EnrichmentClient speaks the people/bulk_match and organizations/enrich
// JSON API.
type EnrichmentClient struct {
	*HTTPProvider
}

func NewEnrichmentClient(cfg HTTPConfig) *EnrichmentClient {
	if cfg.Name == "" {
		cfg.Name = "enrichment"
	}
	return &EnrichmentClient{HTTPProvider: NewHTTPProvider(cfg)}
}

var _ EnrichmentProvider = (*EnrichmentClient)(nil)

type bulkMatchBody struct {
	RevealPersonalEmails bool            `json:"reveal_personal_emails"`
	RevealPhoneNumber    bool            `json:"reveal_phone_number"`
	Details              []PersonDetails `json:"details"`
}

type wireOrganization struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	PrimaryDomain           string `json:"primary_domain"`
	Industry                string `json:"industry"`
	EstimatedNumEmployees   int    `json:"estimated_num_employees"`
	EstimatedAnnualRevenue  any    `json:"estimated_annual_revenue"` // number or string
	SEODescription          string `json:"seo_description"`
	CurrentJobOpeningsCount int    `json:"current_job_openings_count"`
	City                    string `json:"city"`
	State                   string `json:"state"`
	Technologies            []struct {
		Name string `json:"name"`
	} `json:"technologies"`
}

type wirePerson struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Title        string   `json:"title"`
	Seniority    string   `json:"seniority"`
	Departments  []string `json:"departments"`
	Email        string   `json:"email"`
	EmailStatus  string   `json:"email_status"`
	LinkedinURL  string   `json:"linkedin_url"`
	JobStartDate string   `json:"job_start_date"`
	PhoneNumbers []struct {
		RawNumber string `json:"raw_number"`
	} `json:"phone_numbers"`
	Organization *wireOrganization `json:"organization"`
}

func (w wirePerson) toMatched() MatchedPerson {
	m := MatchedPerson{
		ProviderID:   w.ID,
		Email:        w.Email,
		EmailStatus:  w.EmailStatus,
		FirstName:    w.FirstName,
		LastName:     w.LastName,
		Title:        w.Title,
		Seniority:    w.Seniority,
		Departments:  w.Departments,
		NetworkURL:   w.LinkedinURL,
		JobStartDate: w.JobStartDate,
	}
	if len(w.PhoneNumbers) > 0 {
		m.Phone = w.PhoneNumbers[0].RawNumber
	}
	if o := w.Organization; o != nil {
		m.Organization = &MatchedOrganization{
			ID:                 o.ID,
			Name:               o.Name,
			PrimaryDomain:      o.PrimaryDomain,
			Industry:           o.Industry,
			EstimatedEmployees: o.EstimatedNumEmployees,
			City:               o.City,
			State:              o.State,
		}
	}
	return m
}

// BulkMatchPeople returns the matched records; entries the provider could not
// match come back as null and are dropped.
func (c *EnrichmentClient) BulkMatchPeople(ctx context.Context, req MatchRequest) ([]MatchedPerson, error) {
	if len(req.Details) == 0 {
		return nil, nil
	}
	if len(req.Details) > MaxBulkMatch {
		return nil, fmt.Errorf("bulk match: %d details exceeds max %d", len(req.Details), MaxBulkMatch)
	}
	var resp struct {
		People  []*wirePerson `json:"people"`
		Matches []*wirePerson `json:"matches"`
	}
	err := c.post(ctx, "bulk_match", "/v1/people/bulk_match", bulkMatchBody{
		RevealPersonalEmails: req.RevealPersonalEmails,
		RevealPhoneNumber:    req.RevealPhoneNumber,
		Details:              req.Details,
	}, &resp)
	if err != nil {
		return nil, err
	}
	people := resp.People
	if len(people) == 0 {
		people = resp.Matches
	}
	out := make([]MatchedPerson, 0, len(people))
	for _, p := range people {
		if p != nil {
			out = append(out, p.toMatched())
		}
	}
	return out, nil
}

// EnrichCompany returns nil without error when the provider knows no
// organization for domain.
func (c *EnrichmentClient) EnrichCompany(ctx context.Context, domain string) (*CompanyProfile, error) {
	var resp struct {
		Organization *wireOrganization `json:"organization"`
	}
	if err := c.post(ctx, "enrich_company", "/v1/organizations/enrich", map[string]string{"domain": domain}, &resp); err != nil {
		return nil, err
	}
	o := resp.Organization
	if o == nil {
		return nil, nil
	}
	techs := make([]string, 0, len(o.Technologies))
	for _, t := range o.Technologies {
		if t.Name != "" {
			techs = append(techs, t.Name)
		}
	}
	var locations []string
	if o.City != "" {
		locations = append(locations, o.City)
	}
	return &CompanyProfile{
		ProviderOrgID:    o.ID,
		Domain:           o.PrimaryDomain,
		Name:             o.Name,
		Industry:         o.Industry,
		EmployeeCount:    o.EstimatedNumEmployees,
		EstimatedRevenue: formatRevenue(o.EstimatedAnnualRevenue),
		Technologies:     techs,
		Description:      o.SEODescription,
		JobOpenings:      o.CurrentJobOpeningsCount,
		City:             o.City,
		State:            o.State,
		Locations:        locations,
	}, nil
}

func formatRevenue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
