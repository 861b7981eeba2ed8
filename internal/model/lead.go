package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// StringList is stored as a comma separated TEXT column.
type StringList []string

// ParseStringList splits a comma list, dropping blanks.
func ParseStringList(s string) StringList {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(StringList, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l StringList) String() string { return strings.Join(l, ",") }

func (l StringList) Value() (driver.Value, error) {
	return l.String(), nil
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
	case string:
		*l = ParseStringList(v)
	case []byte:
		*l = ParseStringList(string(v))
	default:
		return fmt.Errorf("string list: unsupported type %T", src)
	}
	return nil
}

// Person is a row in leads_people. Identifier columns are nullable in the
// database and surface here as empty strings.
type Person struct {
	Key                     string     `db:"person_key"`
	ProviderID              string     `db:"provider_id"`
	NetworkURL              string     `db:"network_url_norm"`
	Email                   string     `db:"email_norm"`
	CompanyKey              string     `db:"company_key"`
	FirstName               string     `db:"first_name"`
	LastName                string     `db:"last_name"`
	Title                   string     `db:"title"`
	Seniority               string     `db:"seniority"`
	Department              string     `db:"department"`
	EmailStatus             string     `db:"email_status"`
	Phone                   string     `db:"phone"`
	JobStartDate            string     `db:"job_start_date"` // YYYY-MM-DD
	ICPMatch                string     `db:"icp_match"`
	ICPScore                int        `db:"icp_score"`
	Strategy                string     `db:"strategy_assignment"`
	ReadinessScore          int        `db:"readiness_score"`
	Source                  string     `db:"source"`
	EnrichedAt              *time.Time `db:"enriched_at"`
	RequestHash             string     `db:"enrichment_request_hash"`
	NetworkConnectionStatus string     `db:"network_connection_status"`
	NetworkConnectedAt      *time.Time `db:"network_connected_at"`
	LastCallAttemptAt       *time.Time `db:"last_call_attempt_at"`
	LastCallStatus          string     `db:"last_call_status"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
}

// Company is a row in leads_company.
type Company struct {
	Key                 string     `db:"company_key"`
	ProviderOrgID       string     `db:"provider_org_id"`
	Domain              string     `db:"domain_norm"`
	Name                string     `db:"name"`
	City                string     `db:"hq_city"`
	State               string     `db:"hq_state"`
	Industry            string     `db:"industry"`
	EmployeeCount       int        `db:"employee_count"`
	EstimatedRevenue    string     `db:"estimated_revenue"`
	Technologies        StringList `db:"technologies"`
	WMSSystem           string     `db:"wms_system"`
	EquipmentSignals    StringList `db:"equipment_signals"`
	ControlsRolesHiring bool       `db:"controls_roles_hiring"`
	JobPostingsCount    int        `db:"job_postings_count"`
	JobPostingsRelevant int        `db:"job_postings_relevant"`
	Locations           StringList `db:"locations"`
	EnrichedAt          *time.Time `db:"enriched_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// Enriched reports whether the record was enriched within ttl of now.
func (p *Person) Enriched(now time.Time, ttl time.Duration) bool {
	return p.EnrichedAt != nil && now.Sub(*p.EnrichedAt) < ttl
}

// HasIdentifier reports whether the person already carries a reachable
// identifier worth skipping enrichment for.
func (p *Person) HasIdentifier() bool {
	return p.Email != "" || p.ProviderID != ""
}

// Enriched reports whether the record was enriched within ttl of now.
func (c *Company) Enriched(now time.Time, ttl time.Duration) bool {
	return c.EnrichedAt != nil && now.Sub(*c.EnrichedAt) < ttl
}
