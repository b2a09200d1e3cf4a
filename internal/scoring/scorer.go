package scoring

import (
	"fmt"
	"log/slog"
	"strings"

	"finrisk/internal/enrich"
	"finrisk/internal/entity"
)

// Weights are the fixed component weights. They must sum to 1.0.
type Weights struct {
	Sanctions       float64
	Jurisdiction    float64
	CorporateStatus float64
	Historical      float64
}

// DefaultWeights matches the production model.
func DefaultWeights() Weights {
	return Weights{Sanctions: 0.4, Jurisdiction: 0.3, CorporateStatus: 0.2, Historical: 0.1}
}

// Valid reports whether the weights sum to 1.0 within rounding tolerance.
func (w Weights) Valid() bool {
	sum := w.Sanctions + w.Jurisdiction + w.CorporateStatus + w.Historical
	return sum > 0.999 && sum < 1.001
}

// DefaultHighRiskJurisdictions are the markers scanned for in entity
// addresses, case-insensitively.
func DefaultHighRiskJurisdictions() []string {
	return []string{"bvi", "british virgin", "cayman", "panama", "uae", "dubai"}
}

// Signals carries the transaction-level behavioral context for the entity
// being scored; the orchestrator derives it once per transaction.
type Signals struct {
	HighValue       bool
	ModerateValue   bool
	SuspiciousTerms []string
}

// Scorer computes risk profiles. All tunables are injected; nothing is baked
// into the algorithm body.
type Scorer struct {
	weights            Weights
	thresholds         Thresholds
	jurisdictions      []string
	relationshipWeight float64
	logger             *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the component weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		if w.Valid() {
			s.weights = w
		}
	}
}

// WithThresholds overrides the tier thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *Scorer) {
		s.thresholds = t
	}
}

// WithHighRiskJurisdictions overrides the jurisdiction marker list.
func WithHighRiskJurisdictions(markers []string) Option {
	return func(s *Scorer) {
		if len(markers) > 0 {
			lowered := make([]string, len(markers))
			for i, m := range markers {
				lowered[i] = strings.ToLower(m)
			}
			s.jurisdictions = lowered
		}
	}
}

// WithRelationshipWeight sets the fraction of relationship risk blended into
// the final score.
func WithRelationshipWeight(w float64) Option {
	return func(s *Scorer) {
		if w >= 0 && w <= 1 {
			s.relationshipWeight = w
		}
	}
}

// WithLogger sets the logger for degraded-profile reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logger
	}
}

// New builds a Scorer with production defaults.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		weights:            DefaultWeights(),
		thresholds:         DefaultThresholds(),
		jurisdictions:      DefaultHighRiskJurisdictions(),
		relationshipWeight: 0.5,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Thresholds exposes the configured tier thresholds for transaction-level
// classification.
func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// Score builds the entity's risk profile from its enrichment records, the
// graph-derived relationship risk, and transaction behavioral signals.
//
// If a component computation panics, the scorer returns a degraded profile
// (score 0, tier LOW, explanatory justification) instead of propagating: one
// broken entity must never abort scoring of its siblings.
func (s *Scorer) Score(e entity.Entity, enrichment enrich.Result, relationshipRisk float64, sig Signals) (profile Profile) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("risk computation failed, returning degraded profile",
				"entity", e.Key(),
				"panic", r,
			)
			profile = Profile{
				Entity:        e,
				Score:         0,
				Tier:          TierLow,
				Enrichment:    enrichment,
				Justification: fmt.Sprintf("risk computation failed: %v", r),
			}
		}
	}()

	components := []component{
		s.sanctionsComponent(enrichment),
		s.jurisdictionComponent(e, enrichment),
		s.corporateComponent(e, enrichment),
		s.historicalComponent(enrichment, sig),
	}

	base := 0.0
	var factors []Factor
	for _, c := range components {
		base += c.value * c.weight
		if c.value > 0 {
			factors = append(factors, Factor{
				Kind:        c.kind,
				Severity:    severityFor(c.value),
				Weight:      c.weight,
				Description: c.description,
			})
		}
	}

	score := base * 100
	if relationshipRisk > 0 {
		adjustment := relationshipRisk * s.relationshipWeight
		score += adjustment
		factors = append(factors, Factor{
			Kind:        FactorRelationship,
			Severity:    severityFor(relationshipRisk / 100),
			Weight:      s.relationshipWeight,
			Description: fmt.Sprintf("connected to scored high-risk parties (weighted relationship risk %.1f)", relationshipRisk),
		})
	}
	score = clamp(score, 0, 100)

	return Profile{
		Entity:        e,
		Score:         score,
		Tier:          s.thresholds.Classify(score),
		Factors:       factors,
		Enrichment:    enrichment,
		Justification: justification(e, factors),
	}
}

// TransactionIndicators counts the contextual escalation markers for a whole
// transaction: each party with a high-risk address counts 2, a high-value
// amount counts 2 (moderate value 1), and suspicious note terms count 1
// together.
func (s *Scorer) TransactionIndicators(entities []entity.Entity, sig Signals) int {
	n := 0
	for _, e := range entities {
		if e.Address == nil {
			continue
		}
		address := strings.ToLower(e.Address.String())
		for _, marker := range s.jurisdictions {
			if strings.Contains(address, marker) {
				n += 2
				break
			}
		}
	}
	switch {
	case sig.HighValue:
		n += 2
	case sig.ModerateValue:
		n++
	}
	if len(sig.SuspiciousTerms) > 0 {
		n++
	}
	return n
}

// EscalationFloor maps an indicator count to the minimum transaction score it
// implies: three or more indicators floor the score at the high threshold,
// one or more at the medium threshold. An offshore-to-offshore high-value
// transfer routes high even when no source returns adverse data.
func (s *Scorer) EscalationFloor(indicators int) float64 {
	switch {
	case indicators >= 3:
		return s.thresholds.High
	case indicators >= 1:
		return s.thresholds.Medium
	default:
		return 0
	}
}

// component is one weighted contribution to the base score.
type component struct {
	kind        FactorKind
	weight      float64
	value       float64
	description string
}

func (s *Scorer) sanctionsComponent(enrichment enrich.Result) (c component) {
	c.kind = FactorSanctions
	c.weight = s.weights.Sanctions

	rec, ok := enrichment[enrich.SourceSanctions]
	if !ok || !rec.Found {
		return c
	}
	// Payloads are produced by our own source clients; a foreign type here is
	// a programming error and trips the recover in Score.
	payload := rec.Payload.(enrich.SanctionsPayload)
	if !payload.Listed {
		return c
	}
	c.value = 1.0
	c.description = fmt.Sprintf("entity matched on sanctions list %s", payload.ListName)
	if payload.ListName == "" {
		c.description = "entity matched on a sanctions list"
	}
	return c
}

func (s *Scorer) jurisdictionComponent(e entity.Entity, enrichment enrich.Result) (c component) {
	c.kind = FactorJurisdiction
	c.weight = s.weights.Jurisdiction

	if e.Address != nil {
		address := strings.ToLower(e.Address.String())
		for _, marker := range s.jurisdictions {
			if strings.Contains(address, marker) {
				c.value = 1.0
				c.description = fmt.Sprintf("registered address in high-risk jurisdiction (%q)", marker)
				return c
			}
		}
	}

	if rec, ok := enrichment[enrich.SourceRegistry]; ok && rec.Found {
		if payload, ok := rec.Payload.(enrich.RegistryPayload); ok {
			jurisdiction := strings.ToLower(payload.Jurisdiction)
			for _, code := range []string{"ky", "vg", "pa", "ae"} {
				if jurisdiction == code {
					c.value = 0.8
					c.description = fmt.Sprintf("incorporated in high-risk jurisdiction %q per registry", payload.Jurisdiction)
					return c
				}
			}
		}
	}
	return c
}

func (s *Scorer) corporateComponent(e entity.Entity, enrichment enrich.Result) (c component) {
	c.kind = FactorCorporateStatus
	c.weight = s.weights.CorporateStatus

	rec, ok := enrichment[enrich.SourceRegistry]
	if !ok || !rec.Found {
		if e.Kind == entity.KindOrganization {
			c.value = 0.4
			c.description = "organization has no corporate registry record"
		}
		return c
	}
	payload, ok := rec.Payload.(enrich.RegistryPayload)
	if !ok {
		return c
	}
	switch strings.ToLower(payload.Status) {
	case "dissolved", "inactive", "struck off":
		c.value = 1.0
		c.description = fmt.Sprintf("registry status is %q", payload.Status)
	case "":
		c.value = 0.3
		c.description = "registry record carries no status"
	}
	return c
}

func (s *Scorer) historicalComponent(enrichment enrich.Result, sig Signals) (c component) {
	c.kind = FactorHistoricalBehavior
	c.weight = s.weights.Historical

	var parts []string
	value := 0.0

	if rec, ok := enrichment[enrich.SourceFilings]; ok && rec.Found {
		if payload, ok := rec.Payload.(enrich.FilingsPayload); ok && payload.OngoingCases > 0 {
			value += min(0.2*float64(payload.OngoingCases), 0.5)
			parts = append(parts, fmt.Sprintf("%d ongoing legal cases", payload.OngoingCases))
		}
	}

	switch {
	case sig.HighValue:
		value += 0.5
		parts = append(parts, "high-value transaction")
	case sig.ModerateValue:
		value += 0.25
		parts = append(parts, "elevated transaction value")
	}

	if len(sig.SuspiciousTerms) > 0 {
		value += min(0.25*float64(len(sig.SuspiciousTerms)), 0.5)
		parts = append(parts, fmt.Sprintf("suspicious transaction notes (%s)", strings.Join(sig.SuspiciousTerms, ", ")))
	}

	c.value = clamp(value, 0, 1)
	c.description = strings.Join(parts, "; ")
	return c
}

func severityFor(value float64) Severity {
	switch {
	case value >= 0.75:
		return SeverityHigh
	case value >= 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func justification(e entity.Entity, factors []Factor) string {
	if len(factors) == 0 {
		return fmt.Sprintf("no material risk factors identified for %s", e.Name)
	}
	descriptions := make([]string, len(factors))
	for i, f := range factors {
		descriptions[i] = f.Description
	}
	return fmt.Sprintf("%s: %s", e.Name, strings.Join(descriptions, "; "))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
