package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"finrisk/internal/audit"
	"finrisk/internal/enrich"
	"finrisk/internal/entity"
	"finrisk/internal/extract"
	"finrisk/internal/graph"
	"finrisk/internal/scoring"
)

// Aggregation selects how per-entity scores roll up to the transaction
// score.
type Aggregation string

const (
	// AggregationMax reports the riskiest entity. Default: one sanctioned
	// party makes the whole transaction high risk.
	AggregationMax Aggregation = "max"
	// AggregationMean averages across entities.
	AggregationMean Aggregation = "mean"
)

// Value thresholds for behavioral signals, in transaction currency units.
const (
	highValueThreshold     = 1_000_000
	moderateValueThreshold = 100_000
)

// suspiciousTerms are scanned for in transaction notes, case-insensitively.
var suspiciousTerms = []string{"urgent", "missing", "linked", "intermediary"}

// Enricher resolves one entity against the external sources.
type Enricher interface {
	Enrich(ctx context.Context, e entity.Entity) (enrich.Result, error)
}

// Propagator derives relationship risk from the entity graph.
type Propagator interface {
	RelationshipRisk(ctx context.Context, entityKey string) float64
}

// Store persists assessment snapshots at each state transition.
type Store interface {
	Save(ctx context.Context, a Assessment) error
}

// Publisher routes a completed assessment to its downstream topic.
type Publisher interface {
	Publish(ctx context.Context, a Assessment) error
}

// GraphWriter records scored entities and their transactional link.
type GraphWriter interface {
	UpsertEntity(ctx context.Context, node graph.Node) error
	CreateRelationship(ctx context.Context, fromID, toID string, rel graph.RelationshipType, props graph.EdgeProps) error
}

// Metrics receives pipeline outcome counters. Implemented by the platform
// metrics registry; a no-op default keeps tests quiet.
type Metrics interface {
	AssessmentStarted()
	AssessmentCompleted(tier string, duration time.Duration)
	AssessmentFailed(stage string)
}

type nopMetrics struct{}

func (nopMetrics) AssessmentStarted()                        {}
func (nopMetrics) AssessmentCompleted(string, time.Duration) {}
func (nopMetrics) AssessmentFailed(string)                   {}

// Orchestrator runs the assessment state machine for one transaction at a
// time and fans entity work out within each stage.
type Orchestrator struct {
	extractor   extract.Extractor
	enricher    Enricher
	propagator  Propagator
	scorer      *scoring.Scorer
	store       Store
	publisher   Publisher
	graphWriter GraphWriter
	auditor     *audit.Publisher
	metrics     Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	aggregation Aggregation
	parallelism int
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher attaches the downstream assessment publisher.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithGraphWriter attaches the graph sink for scored entities.
func WithGraphWriter(w GraphWriter) Option {
	return func(o *Orchestrator) {
		o.graphWriter = w
	}
}

// WithMetrics attaches outcome counters.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithAggregation selects the transaction-level score rollup.
func WithAggregation(a Aggregation) Option {
	return func(o *Orchestrator) {
		if a == AggregationMax || a == AggregationMean {
			o.aggregation = a
		}
	}
}

// WithParallelism bounds concurrent entity enrichment. Defaults to 4.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New wires the orchestrator. Extractor, enricher, propagator, scorer, store,
// and auditor are mandatory collaborators; publisher and graph writer are
// optional sinks.
func New(
	extractor extract.Extractor,
	enricher Enricher,
	propagator Propagator,
	scorer *scoring.Scorer,
	store Store,
	auditor *audit.Publisher,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		extractor:   extractor,
		enricher:    enricher,
		propagator:  propagator,
		scorer:      scorer,
		store:       store,
		auditor:     auditor,
		metrics:     nopMetrics{},
		logger:      slog.Default(),
		tracer:      otel.Tracer("finrisk/pipeline"),
		aggregation: AggregationMax,
		parallelism: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs one transaction through the full assessment flow. The
// returned assessment is terminal: COMPLETED with a score and tier, or
// FAILED with the stage error that stopped it. Partial enrichment never
// fails a run; only normalization producing zero entities or a persistence
// fault does.
func (o *Orchestrator) Process(ctx context.Context, tx Transaction) (Assessment, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.String("transaction.id", tx.ID)))
	defer span.End()

	started := o.now()
	o.metrics.AssessmentStarted()

	a := Assessment{
		ID:            uuid.NewString(),
		TransactionID: tx.ID,
		Status:        StatusReceived,
		StartedAt:     started,
	}
	o.auditor.Emit(ctx, audit.Event{
		TransactionID: tx.ID,
		AssessmentID:  a.ID,
		Action:        audit.ActionReceived,
	})
	if err := o.transition(ctx, &a, StatusReceived); err != nil {
		return o.fail(ctx, a, err)
	}

	entities, err := o.normalize(ctx, tx)
	if err != nil {
		return o.fail(ctx, a, err)
	}
	if err := o.transition(ctx, &a, StatusNormalized); err != nil {
		return o.fail(ctx, a, err)
	}

	results, err := o.enrichAll(ctx, tx, entities)
	if err != nil {
		return o.fail(ctx, a, err)
	}
	if err := o.transition(ctx, &a, StatusEnriched); err != nil {
		return o.fail(ctx, a, err)
	}

	relRisks := o.propagateAll(ctx, entities)
	if err := o.transition(ctx, &a, StatusAssessed); err != nil {
		return o.fail(ctx, a, err)
	}

	sig := signalsFor(tx)
	a.Profiles = o.scoreAll(ctx, tx, entities, results, relRisks, sig)
	a.Score = o.aggregate(a.Profiles)
	if floor := o.scorer.EscalationFloor(o.scorer.TransactionIndicators(entities, sig)); floor > a.Score {
		o.logger.Info("transaction score escalated by contextual indicators",
			"transaction_id", tx.ID,
			"aggregated", a.Score,
			"floor", floor,
		)
		a.Score = floor
	}
	a.Tier = o.scorer.Thresholds().Classify(a.Score)
	o.auditor.Emit(ctx, audit.Event{
		TransactionID: tx.ID,
		AssessmentID:  a.ID,
		Action:        audit.ActionClassified,
		Detail:        fmt.Sprintf("score %.1f tier %s", a.Score, a.Tier),
	})
	if err := o.transition(ctx, &a, StatusScored); err != nil {
		return o.fail(ctx, a, err)
	}

	o.recordGraph(ctx, tx, a.Profiles)

	a.CompletedAt = o.now()
	if err := o.transition(ctx, &a, StatusCompleted); err != nil {
		return o.fail(ctx, a, err)
	}

	o.publish(ctx, a)

	o.metrics.AssessmentCompleted(string(a.Tier), a.CompletedAt.Sub(started))
	o.logger.Info("assessment completed",
		"transaction_id", tx.ID,
		"assessment_id", a.ID,
		"score", a.Score,
		"tier", a.Tier,
		"entities", len(a.Profiles),
	)
	return a, nil
}

// transition advances the state machine and persists the snapshot. States
// only move forward; a persistence fault surfaces as a persist-stage error.
func (o *Orchestrator) transition(ctx context.Context, a *Assessment, next Status) error {
	prev := a.Status
	a.Status = next
	if err := o.store.Save(ctx, *a); err != nil {
		a.Status = prev
		return stageErr(StagePersist, err)
	}
	if prev != next {
		o.auditor.Emit(ctx, audit.Event{
			TransactionID: a.TransactionID,
			AssessmentID:  a.ID,
			Action:        audit.ActionStateChanged,
			Detail:        fmt.Sprintf("%s -> %s", prev, next),
		})
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, a Assessment, err error) (Assessment, error) {
	stage := Stage("unknown")
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	o.metrics.AssessmentFailed(string(stage))

	a.Status = StatusFailed
	a.Error = err.Error()
	a.CompletedAt = o.now()
	if saveErr := o.store.Save(ctx, a); saveErr != nil {
		o.logger.Error("persisting failed assessment", "assessment_id", a.ID, "error", saveErr)
	}
	o.auditor.Emit(ctx, audit.Event{
		TransactionID: a.TransactionID,
		AssessmentID:  a.ID,
		Action:        audit.ActionAssessmentError,
		Detail:        err.Error(),
	})
	o.logger.Error("assessment failed",
		"transaction_id", a.TransactionID,
		"assessment_id", a.ID,
		"stage", stage,
		"error", err,
	)
	return a, err
}

func (o *Orchestrator) normalize(ctx context.Context, tx Transaction) ([]entity.Entity, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.normalize")
	defer span.End()

	structured := make([]entity.Entity, 0, 2)
	if tx.Sender.Name != "" {
		structured = append(structured, tx.Sender.Entity())
	}
	if tx.Receiver.Name != "" {
		structured = append(structured, tx.Receiver.Entity())
	}

	var extracted []entity.Entity
	if tx.Notes != "" {
		var err error
		extracted, err = o.extractor.Extract(ctx, tx.Notes)
		if err != nil {
			// Extraction is best-effort; structured parties still flow.
			o.logger.Warn("entity extraction failed", "transaction_id", tx.ID, "error", err)
		}
	}

	entities := entity.Normalize(structured, extracted)
	if len(entities) == 0 {
		return nil, stageErr(StageNormalize, fmt.Errorf("transaction %q has no parties", tx.ID))
	}
	span.SetAttributes(attribute.Int("entities", len(entities)))
	return entities, nil
}

// enrichAll queries the sources for every entity with bounded parallelism.
// A failed entity yields a degraded result slot, not a run failure; only
// context cancellation stops the group.
func (o *Orchestrator) enrichAll(ctx context.Context, tx Transaction, entities []entity.Entity) ([]enrich.Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.enrich")
	defer span.End()

	results := make([]enrich.Result, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	for i, e := range entities {
		g.Go(func() error {
			res, err := o.enricher.Enrich(gctx, e)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				o.logger.Warn("enrichment unavailable for entity",
					"transaction_id", tx.ID,
					"entity", e.Key(),
					"error", err,
				)
				o.auditor.Emit(gctx, audit.Event{
					TransactionID: tx.ID,
					EntityKey:     e.Key(),
					Action:        audit.ActionEnrichDegraded,
					Detail:        err.Error(),
				})
				res = enrich.Result{}
			} else if res.Degraded() {
				o.auditor.Emit(gctx, audit.Event{
					TransactionID: tx.ID,
					EntityKey:     e.Key(),
					Action:        audit.ActionEnrichDegraded,
					Detail:        "partial source coverage",
				})
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stageErr(StageEnrich, err)
	}
	return results, nil
}

// propagateAll reads relationship risk for every entity. The propagator
// already degrades to zero on graph faults, so this stage never fails a run.
func (o *Orchestrator) propagateAll(ctx context.Context, entities []entity.Entity) []float64 {
	ctx, span := o.tracer.Start(ctx, "pipeline.propagate")
	defer span.End()

	risks := make([]float64, len(entities))
	for i, e := range entities {
		risks[i] = o.propagator.RelationshipRisk(ctx, e.Key())
	}
	return risks
}

func (o *Orchestrator) scoreAll(ctx context.Context, tx Transaction, entities []entity.Entity, results []enrich.Result, relRisks []float64, sig scoring.Signals) []scoring.Profile {
	ctx, span := o.tracer.Start(ctx, "pipeline.score")
	defer span.End()

	profiles := make([]scoring.Profile, len(entities))
	for i, e := range entities {
		profiles[i] = o.scorer.Score(e, results[i], relRisks[i], sig)
		o.auditor.Emit(ctx, audit.Event{
			TransactionID: tx.ID,
			EntityKey:     e.Key(),
			Action:        audit.ActionScored,
			Detail:        fmt.Sprintf("score %.1f tier %s", profiles[i].Score, profiles[i].Tier),
		})
	}
	return profiles
}

// recordGraph mirrors scored entities into the relationship graph and links
// sender to receiver. Graph faults degrade silently; the graph is advisory
// input for future assessments, not part of this one's result.
func (o *Orchestrator) recordGraph(ctx context.Context, tx Transaction, profiles []scoring.Profile) {
	if o.graphWriter == nil {
		return
	}
	ctx, span := o.tracer.Start(ctx, "pipeline.record_graph")
	defer span.End()

	for _, p := range profiles {
		node := graph.Node{
			ID:        p.Entity.Key(),
			Name:      p.Entity.Name,
			Kind:      string(p.Entity.Kind),
			RiskScore: p.Score,
		}
		if err := o.graphWriter.UpsertEntity(ctx, node); err != nil {
			o.logger.Warn("graph upsert failed", "entity", node.ID, "error", err)
			return
		}
	}
	if tx.Sender.Name != "" && tx.Receiver.Name != "" {
		from := entity.NormalizeKey(tx.Sender.Name)
		to := entity.NormalizeKey(tx.Receiver.Name)
		if err := o.graphWriter.CreateRelationship(ctx, from, to, graph.RelTransactsWith, graph.EdgeProps{}); err != nil {
			o.logger.Warn("graph relationship failed", "from", from, "to", to, "error", err)
		}
	}
}

// publish routes the completed assessment downstream. Fire and forget: a
// broken broker is logged and audited, never unwinds a completed
// assessment.
func (o *Orchestrator) publish(ctx context.Context, a Assessment) {
	if o.publisher == nil {
		return
	}
	ctx, span := o.tracer.Start(ctx, "pipeline.publish")
	defer span.End()

	if err := o.publisher.Publish(ctx, a); err != nil {
		o.logger.Error("publishing assessment", "assessment_id", a.ID, "error", err)
		o.auditor.Emit(ctx, audit.Event{
			TransactionID: a.TransactionID,
			AssessmentID:  a.ID,
			Action:        audit.ActionPublishFailed,
			Detail:        err.Error(),
		})
		return
	}
	o.auditor.Emit(ctx, audit.Event{
		TransactionID: a.TransactionID,
		AssessmentID:  a.ID,
		Action:        audit.ActionPublished,
		Detail:        string(a.Tier),
	})
}

func (o *Orchestrator) aggregate(profiles []scoring.Profile) float64 {
	if len(profiles) == 0 {
		return 0
	}
	switch o.aggregation {
	case AggregationMean:
		sum := 0.0
		for _, p := range profiles {
			sum += p.Score
		}
		return sum / float64(len(profiles))
	default:
		worst := 0.0
		for _, p := range profiles {
			if p.Score > worst {
				worst = p.Score
			}
		}
		return worst
	}
}

// signalsFor derives the behavioral context shared by every entity in the
// transaction.
func signalsFor(tx Transaction) scoring.Signals {
	sig := scoring.Signals{
		HighValue:     tx.Amount.Value >= highValueThreshold,
		ModerateValue: tx.Amount.Value >= moderateValueThreshold && tx.Amount.Value < highValueThreshold,
	}
	notes := strings.ToLower(tx.Notes)
	for _, term := range suspiciousTerms {
		if strings.Contains(notes, term) {
			sig.SuspiciousTerms = append(sig.SuspiciousTerms, term)
		}
	}
	return sig
}
