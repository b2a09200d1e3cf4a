package sources

import (
	"context"
	"time"

	"finrisk/internal/enrich"
	"finrisk/internal/entity"
)

// KnowledgeBase queries a Wikidata-style knowledge base for a short entity
// description. Purely additive context; carries no scoring weight on its own.
type KnowledgeBase struct {
	http *httpClient
}

// NewKnowledgeBase builds a knowledge base client.
func NewKnowledgeBase(baseURL string, timeout time.Duration) (*KnowledgeBase, error) {
	c, err := newHTTPClient(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &KnowledgeBase{http: c}, nil
}

func (k *KnowledgeBase) Kind() enrich.SourceKind { return enrich.SourceKnowledgeBase }

type knowledgeResponse struct {
	Entities []struct {
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"entities"`
}

// Lookup returns the first description the knowledge base has for the name.
func (k *KnowledgeBase) Lookup(ctx context.Context, e entity.Entity) (enrich.Record, error) {
	var body knowledgeResponse
	ok, err := k.http.getJSON(ctx, "/entities", queryParam("search", e.Name), &body)
	if err != nil {
		return enrich.Record{}, err
	}
	if !ok || len(body.Entities) == 0 {
		return enrich.Record{Found: false}, nil
	}

	return enrich.Record{
		Found:   true,
		Payload: enrich.KnowledgePayload{Description: body.Entities[0].Description},
	}, nil
}
