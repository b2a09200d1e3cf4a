package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrisk/internal/enrich"
	"finrisk/internal/entity"
)

func testEntity(name string) entity.Entity {
	return entity.Entity{Name: name, Kind: entity.KindOrganization, Confidence: 1.0}
}

func TestSanctions_Hit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Shell Corp", r.URL.Query().Get("name"))
		w.Write([]byte(`{"results":[{"name":"SHELL CORP","list":"SDN","programs":["CYBER2"]}]}`))
	}))
	defer srv.Close()

	s, err := NewSanctions(srv.URL, time.Second)
	require.NoError(t, err)

	rec, err := s.Lookup(context.Background(), testEntity("Shell Corp"))
	require.NoError(t, err)

	require.True(t, rec.Found)
	payload := rec.Payload.(enrich.SanctionsPayload)
	assert.True(t, payload.Listed)
	assert.Equal(t, "SDN", payload.ListName)
	assert.Equal(t, []string{"CYBER2"}, payload.Programs)
}

func TestSanctions_NoMatchIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	s, err := NewSanctions(srv.URL, time.Second)
	require.NoError(t, err)

	rec, err := s.Lookup(context.Background(), testEntity("Clean Co"))
	require.NoError(t, err)
	assert.False(t, rec.Found)
	assert.Empty(t, rec.Error)
}

func TestSanctions_PartialNameMatchRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"name":"Shell Corp Holdings","list":"SDN"}]}`))
	}))
	defer srv.Close()

	s, err := NewSanctions(srv.URL, time.Second)
	require.NoError(t, err)

	rec, err := s.Lookup(context.Background(), testEntity("Shell Corp"))
	require.NoError(t, err)
	assert.False(t, rec.Found)
}

func TestSanctions_ServerErrorIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := NewSanctions(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = s.Lookup(context.Background(), testEntity("Anyone"))
	require.Error(t, err)
}

func TestRegistry_BestMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies", r.URL.Path)
		w.Write([]byte(`{"results":[
			{"name":"Acme Corp","company_number":"001","status":"dissolved","jurisdiction":"ky"},
			{"name":"Acme Corp Intl","company_number":"002","status":"active","jurisdiction":"us"}
		]}`))
	}))
	defer srv.Close()

	c, err := NewRegistry(srv.URL, time.Second)
	require.NoError(t, err)

	rec, err := c.Lookup(context.Background(), testEntity("Acme Corp"))
	require.NoError(t, err)

	require.True(t, rec.Found)
	payload := rec.Payload.(enrich.RegistryPayload)
	assert.Equal(t, "dissolved", payload.Status)
	assert.Equal(t, "ky", payload.Jurisdiction)
}

func TestRegistry_NotFoundStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewRegistry(srv.URL, time.Second)
	require.NoError(t, err)

	rec, err := c.Lookup(context.Background(), testEntity("Ghost Ltd"))
	require.NoError(t, err)
	assert.False(t, rec.Found)
}

func TestFilings_KeepsOwnershipFormsOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submissions", r.URL.Path)
		w.Write([]byte(`{
			"cik":"0000320193",
			"name":"Acme Corp",
			"stateOfIncorporation":"DE",
			"filings":{"recent":{"form":["10-K","4","8-K","13D"]}},
			"ongoingCases":2
		}`))
	}))
	defer srv.Close()

	f, err := NewFilings(srv.URL, time.Second)
	require.NoError(t, err)

	rec, err := f.Lookup(context.Background(), testEntity("Acme Corp"))
	require.NoError(t, err)

	require.True(t, rec.Found)
	payload := rec.Payload.(enrich.FilingsPayload)
	assert.Equal(t, "0000320193", payload.CIK)
	assert.Equal(t, "DE", payload.StateOfIncorporation)
	assert.Equal(t, []string{"4", "13D"}, payload.RecentForms)
	assert.Equal(t, 2, payload.OngoingCases)
}

func TestKnowledgeBase_Description(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entities", r.URL.Path)
		assert.Equal(t, "Acme Corp", r.URL.Query().Get("search"))
		w.Write([]byte(`{"entities":[{"label":"Acme Corp","description":"multinational conglomerate"}]}`))
	}))
	defer srv.Close()

	k, err := NewKnowledgeBase(srv.URL, time.Second)
	require.NoError(t, err)

	rec, err := k.Lookup(context.Background(), testEntity("Acme Corp"))
	require.NoError(t, err)

	require.True(t, rec.Found)
	assert.Equal(t, "multinational conglomerate", rec.Payload.(enrich.KnowledgePayload).Description)
}

func TestClients_RejectBadBaseURL(t *testing.T) {
	_, err := NewSanctions("://not-a-url", time.Second)
	require.Error(t, err)
}
