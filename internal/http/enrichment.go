package http

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/service/enrichment"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type personReq struct {
	ProviderID   string `json:"provider_id"`
	NetworkURL   string `json:"linkedin_url"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Title        string `json:"title"`
	Seniority    string `json:"seniority"`
	Department   string `json:"department"`
	Phone        string `json:"phone"`
	JobStartDate string `json:"job_start_date"`
	Source       string `json:"source"`
}

type companyReq struct {
	ProviderOrgID       string   `json:"provider_org_id"`
	Domain              string   `json:"domain"`
	Name                string   `json:"name"`
	City                string   `json:"city"`
	State               string   `json:"state"`
	Industry            string   `json:"industry"`
	EmployeeCount       int      `json:"employee_count"`
	EstimatedRevenue    string   `json:"estimated_revenue"`
	Technologies        []string `json:"technologies"`
	ControlsRolesHiring bool     `json:"controls_roles_hiring"`
	JobPostingsCount    int      `json:"job_postings_count"`
	JobPostingsRelevant int      `json:"job_postings_relevant"`
	Locations           []string `json:"locations"`
}

type candidateReq struct {
	Person               personReq  `json:"person"`
	Company              companyReq `json:"company"`
	CampaignID           string     `json:"campaign_id"`
	RevealPersonalEmails bool       `json:"reveal_personal_emails"`
	RevealPhoneNumber    bool       `json:"reveal_phone_number"`
}

// identified reports whether the person carries anything the resolver can key on
// besides the empty-input fallback.
func (p personReq) identified() bool {
	for _, v := range []string{p.ProviderID, p.NetworkURL, p.Email, p.FirstName, p.LastName} {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func (r candidateReq) toCandidate() enrichment.Candidate {
	p, c := r.Person, r.Company
	return enrichment.Candidate{
		Person: model.Person{
			ProviderID:   strings.TrimSpace(p.ProviderID),
			NetworkURL:   p.NetworkURL,
			Email:        p.Email,
			FirstName:    strings.TrimSpace(p.FirstName),
			LastName:     strings.TrimSpace(p.LastName),
			Title:        strings.TrimSpace(p.Title),
			Seniority:    p.Seniority,
			Department:   p.Department,
			Phone:        p.Phone,
			JobStartDate: p.JobStartDate,
			Source:       p.Source,
		},
		Company: model.Company{
			ProviderOrgID:       strings.TrimSpace(c.ProviderOrgID),
			Domain:              c.Domain,
			Name:                strings.TrimSpace(c.Name),
			City:                c.City,
			State:               c.State,
			Industry:            c.Industry,
			EmployeeCount:       c.EmployeeCount,
			EstimatedRevenue:    c.EstimatedRevenue,
			Technologies:        c.Technologies,
			ControlsRolesHiring: c.ControlsRolesHiring,
			JobPostingsCount:    c.JobPostingsCount,
			JobPostingsRelevant: c.JobPostingsRelevant,
			Locations:           c.Locations,
		},
		CampaignID:           strings.TrimSpace(r.CampaignID),
		RevealPersonalEmails: r.RevealPersonalEmails,
		RevealPhoneNumber:    r.RevealPhoneNumber,
	}
}

func enqueueCandidateHandler(svc Enrichment, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req candidateReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "bad request")
		}
		if !req.Person.identified() {
			return badRequest(c, "person identifier required")
		}
		item, err := svc.Enqueue(c.Request().Context(), req.toCandidate())
		if err != nil {
			return fail(c, log, "enqueue candidate", err)
		}
		code := http.StatusOK
		if item.Status == model.QueueQueued {
			code = http.StatusAccepted
		}
		return c.JSON(code, map[string]any{
			"id":         item.ID,
			"person_key": item.PersonKey,
			"status":     item.Status,
			"note":       item.Note,
		})
	}
}

func enrichmentSummaryHandler(svc Enrichment, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		campaign := strings.TrimSpace(c.QueryParam("campaign_id"))
		counts, err := svc.Summary(c.Request().Context(), campaign)
		if err != nil {
			return fail(c, log, "enrichment summary", err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"campaign_id": campaign,
			"counts":      counts,
		})
	}
}
