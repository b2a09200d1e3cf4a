package sources

import (
	"context"
	"strings"
	"time"

	"finrisk/internal/enrich"
	"finrisk/internal/entity"
)

// Sanctions screens entities against an OFAC-style sanctions list service.
type Sanctions struct {
	http *httpClient
}

// NewSanctions builds a sanctions screening client.
func NewSanctions(baseURL string, timeout time.Duration) (*Sanctions, error) {
	c, err := newHTTPClient(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &Sanctions{http: c}, nil
}

func (s *Sanctions) Kind() enrich.SourceKind { return enrich.SourceSanctions }

type sanctionsResponse struct {
	Results []struct {
		Name     string   `json:"name"`
		List     string   `json:"list"`
		Programs []string `json:"programs"`
	} `json:"results"`
}

// Lookup reports whether the entity appears on the sanctions list. A match is
// a case-insensitive name hit; no match is Found=false, not an error.
func (s *Sanctions) Lookup(ctx context.Context, e entity.Entity) (enrich.Record, error) {
	var body sanctionsResponse
	ok, err := s.http.getJSON(ctx, "/search", queryParam("name", e.Name), &body)
	if err != nil {
		return enrich.Record{}, err
	}
	if !ok || len(body.Results) == 0 {
		return enrich.Record{Found: false}, nil
	}

	for _, r := range body.Results {
		if strings.EqualFold(strings.TrimSpace(r.Name), strings.TrimSpace(e.Name)) {
			return enrich.Record{
				Found: true,
				Payload: enrich.SanctionsPayload{
					Listed:   true,
					ListName: r.List,
					Programs: r.Programs,
				},
			}, nil
		}
	}
	return enrich.Record{Found: false}, nil
}
