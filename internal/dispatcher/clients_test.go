package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichmentClient_BulkMatch(t *testing.T) {
	var got bulkMatchBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/people/bulk_match", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"people":[
			{"id":"p-1","email":"jane@acme.com","title":"VP Operations",
			 "linkedin_url":"https://www.linkedin.com/in/jane",
			 "phone_numbers":[{"raw_number":"+18015550100"}],
			 "organization":{"id":"o-1","primary_domain":"acme.com","industry":"logistics","estimated_num_employees":350}},
			null
		]}`))
	}))
	defer srv.Close()

	c := NewEnrichmentClient(HTTPConfig{BaseURL: srv.URL, APIKey: "secret"})
	people, err := c.BulkMatchPeople(context.Background(), MatchRequest{
		Details:           []PersonDetails{{ID: "email:jane@acme.com", Email: "jane@acme.com"}, {Email: "x@y.io"}},
		RevealPhoneNumber: true,
	})
	require.NoError(t, err)

	assert.True(t, got.RevealPhoneNumber)
	assert.False(t, got.RevealPersonalEmails)
	assert.Len(t, got.Details, 2)

	require.Len(t, people, 1)
	p := people[0]
	assert.Equal(t, "p-1", p.ProviderID)
	assert.Equal(t, "+18015550100", p.Phone)
	require.NotNil(t, p.Organization)
	assert.Equal(t, 350, p.Organization.EstimatedEmployees)
	assert.Equal(t, "acme.com", p.Organization.PrimaryDomain)
}

func TestEnrichmentClient_RejectsOversizedBatch(t *testing.T) {
	c := NewEnrichmentClient(HTTPConfig{BaseURL: "http://unused"})
	_, err := c.BulkMatchPeople(context.Background(), MatchRequest{Details: make([]PersonDetails, MaxBulkMatch+1)})
	assert.Error(t, err)
}

func TestEnrichmentClient_EnrichCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"organization":{"id":"o-1","name":"Acme","primary_domain":"acme.com",
			"estimated_annual_revenue":12500000,"technologies":[{"name":"Manhattan WMS"},{"name":""}],
			"seo_description":"conveyor systems","current_job_openings_count":4,"city":"Salt Lake City","state":"UT"}}`))
	}))
	defer srv.Close()

	c := NewEnrichmentClient(HTTPConfig{BaseURL: srv.URL})
	prof, err := c.EnrichCompany(context.Background(), "acme.com")
	require.NoError(t, err)
	require.NotNil(t, prof)
	assert.Equal(t, "12500000", prof.EstimatedRevenue)
	assert.Equal(t, []string{"Manhattan WMS"}, prof.Technologies)
	assert.Equal(t, 4, prof.JobOpenings)
	assert.Equal(t, []string{"Salt Lake City"}, prof.Locations)
}

func TestHTTPProvider_ErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewVoiceClient(HTTPConfig{BaseURL: srv.URL}, "", 0)
	_, err := c.ScheduleCall(context.Background(), CallRequest{Phone: "+18015550100"})
	require.Error(t, err)
	assert.True(t, apperr.IsProvider(err))
}

func TestVoiceClient_ScheduleCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body scheduleCallBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+18015550100", body.PhoneNumber)
		assert.Equal(t, "hello Jane", body.Task)
		assert.Equal(t, "https://hooks.example.com/voice", body.Webhook)
		assert.Equal(t, "key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"success","call_id":"call-9"}`))
	}))
	defer srv.Close()

	c := NewVoiceClient(HTTPConfig{BaseURL: srv.URL, APIKey: "key"}, "nat", 5)
	id, err := c.ScheduleCall(context.Background(), CallRequest{
		Phone: "+18015550100", Script: "hello Jane", WebhookURL: "https://hooks.example.com/voice",
	})
	require.NoError(t, err)
	assert.Equal(t, "call-9", id)
}

func TestNetworkClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok := r.URL.Path == "/v1/connect"
		_ = json.NewEncoder(w).Encode(networkActionResult{Success: ok})
	}))
	defer srv.Close()

	c := NewNetworkClient(HTTPConfig{BaseURL: srv.URL})
	ok, err := c.Connect(context.Background(), "linkedin.com/in/jane", "hi")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Message(context.Background(), "linkedin.com/in/jane", "hi")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetryClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"people":[]}`))
	}))
	defer srv.Close()

	c := NewEnrichmentClient(HTTPConfig{BaseURL: srv.URL, MaxRetries: 3})
	_, err := c.BulkMatchPeople(context.Background(), MatchRequest{Details: []PersonDetails{{Email: "a@b.io"}}})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewEnrichmentClient(HTTPConfig{BaseURL: srv.URL, MaxRetries: 3})
	_, err := c.BulkMatchPeople(context.Background(), MatchRequest{Details: []PersonDetails{{Email: "a@b.io"}}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
