package sources

import (
	"context"
	"net/url"
	"time"

	"finrisk/internal/enrich"
	"finrisk/internal/entity"
)

// Registry queries a corporate registry for incorporation status.
type Registry struct {
	http *httpClient
}

// NewRegistry builds a corporate registry client.
func NewRegistry(baseURL string, timeout time.Duration) (*Registry, error) {
	c, err := newHTTPClient(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &Registry{http: c}, nil
}

func (r *Registry) Kind() enrich.SourceKind { return enrich.SourceRegistry }

type registryResponse struct {
	Results []struct {
		Name          string `json:"name"`
		CompanyNumber string `json:"company_number"`
		Status        string `json:"status"`
		Jurisdiction  string `json:"jurisdiction"`
	} `json:"results"`
}

// Lookup returns the registry's best match for the entity name.
func (r *Registry) Lookup(ctx context.Context, e entity.Entity) (enrich.Record, error) {
	var body registryResponse
	ok, err := r.http.getJSON(ctx, "/companies", queryParam("q", e.Name), &body)
	if err != nil {
		return enrich.Record{}, err
	}
	if !ok || len(body.Results) == 0 {
		return enrich.Record{Found: false}, nil
	}

	best := body.Results[0]
	return enrich.Record{
		Found: true,
		Payload: enrich.RegistryPayload{
			CompanyNumber: best.CompanyNumber,
			Status:        best.Status,
			Jurisdiction:  best.Jurisdiction,
		},
	}, nil
}

func queryParam(key, value string) url.Values {
	q := url.Values{}
	q.Set(key, value)
	return q
}
