package repository

import (
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
)

// MergePerson folds incoming into existing. Descriptive fields only fill
// blanks, scores never regress and a nil enrichment timestamp never erases
// an earlier one. Derived assessment fields follow the latest scoring run.
func MergePerson(existing, incoming model.Person) model.Person {
	out := existing

	out.ProviderID = coalesce(existing.ProviderID, incoming.ProviderID)
	out.NetworkURL = coalesce(existing.NetworkURL, incoming.NetworkURL)
	out.Email = coalesce(existing.Email, incoming.Email)
	out.CompanyKey = coalesce(existing.CompanyKey, incoming.CompanyKey)
	out.FirstName = coalesce(existing.FirstName, incoming.FirstName)
	out.LastName = coalesce(existing.LastName, incoming.LastName)
	out.Title = coalesce(existing.Title, incoming.Title)
	out.Seniority = coalesce(existing.Seniority, incoming.Seniority)
	out.Department = coalesce(existing.Department, incoming.Department)
	out.EmailStatus = coalesce(existing.EmailStatus, incoming.EmailStatus)
	out.Phone = coalesce(existing.Phone, incoming.Phone)
	out.JobStartDate = coalesce(existing.JobStartDate, incoming.JobStartDate)
	out.Source = coalesce(existing.Source, incoming.Source)

	out.ICPScore = max(existing.ICPScore, incoming.ICPScore)
	out.ReadinessScore = max(existing.ReadinessScore, incoming.ReadinessScore)
	out.EnrichedAt = coalesceTime(incoming.EnrichedAt, existing.EnrichedAt)

	out.ICPMatch = latest(existing.ICPMatch, incoming.ICPMatch)
	out.Strategy = latest(existing.Strategy, incoming.Strategy)
	out.RequestHash = latest(existing.RequestHash, incoming.RequestHash)
	out.NetworkConnectionStatus = latest(existing.NetworkConnectionStatus, incoming.NetworkConnectionStatus)
	out.NetworkConnectedAt = coalesceTime(incoming.NetworkConnectedAt, existing.NetworkConnectedAt)
	out.LastCallAttemptAt = coalesceTime(incoming.LastCallAttemptAt, existing.LastCallAttemptAt)
	out.LastCallStatus = latest(existing.LastCallStatus, incoming.LastCallStatus)

	return out
}

// MergeCompany overwrites with incoming values; enrichment timestamps coalesce.
func MergeCompany(existing, incoming model.Company) model.Company {
	out := incoming
	out.Key = existing.Key
	out.ProviderOrgID = coalesce(existing.ProviderOrgID, incoming.ProviderOrgID)
	out.Domain = coalesce(existing.Domain, incoming.Domain)
	out.EnrichedAt = coalesceTime(incoming.EnrichedAt, existing.EnrichedAt)
	out.CreatedAt = existing.CreatedAt
	return out
}

func coalesce(existing, incoming string) string {
	if existing != "" {
		return existing
	}
	return incoming
}

func latest(existing, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

// coalesceTime returns the first non-nil timestamp.
func coalesceTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}
