package sources

import (
	"context"
	"time"

	"finrisk/internal/enrich"
	"finrisk/internal/entity"
)

// ownershipForms are the filing types that disclose beneficial ownership.
var ownershipForms = map[string]bool{"4": true, "13D": true, "13G": true}

// Filings queries an EDGAR-style filings service for corporate disclosures.
type Filings struct {
	http *httpClient
}

// NewFilings builds a filings client.
func NewFilings(baseURL string, timeout time.Duration) (*Filings, error) {
	c, err := newHTTPClient(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &Filings{http: c}, nil
}

func (f *Filings) Kind() enrich.SourceKind { return enrich.SourceFilings }

type filingsResponse struct {
	CIK                  string `json:"cik"`
	Name                 string `json:"name"`
	StateOfIncorporation string `json:"stateOfIncorporation"`
	Filings              struct {
		Recent struct {
			Form []string `json:"form"`
		} `json:"recent"`
	} `json:"filings"`
	OngoingCases int `json:"ongoingCases"`
}

// Lookup fetches recent filings for the entity, keeping only the ownership
// disclosure forms relevant to risk review.
func (f *Filings) Lookup(ctx context.Context, e entity.Entity) (enrich.Record, error) {
	var body filingsResponse
	ok, err := f.http.getJSON(ctx, "/submissions", queryParam("name", e.Name), &body)
	if err != nil {
		return enrich.Record{}, err
	}
	if !ok || body.CIK == "" {
		return enrich.Record{Found: false}, nil
	}

	var forms []string
	for _, form := range body.Filings.Recent.Form {
		if ownershipForms[form] {
			forms = append(forms, form)
		}
	}

	return enrich.Record{
		Found: true,
		Payload: enrich.FilingsPayload{
			CIK:                  body.CIK,
			StateOfIncorporation: body.StateOfIncorporation,
			RecentForms:          forms,
			OngoingCases:         body.OngoingCases,
		},
	}, nil
}
