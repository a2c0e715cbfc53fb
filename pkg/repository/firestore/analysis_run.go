package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type convergenceDocument struct {
	Runs         int     `firestore:"runs"`
	Converged    bool    `firestore:"converged"`
	Delta        float64 `firestore:"delta"`
	MaxNodeDelta float64 `firestore:"max_node_delta"`
	Total        float64 `firestore:"total"`
}

func convergenceToDoc(s model.ConvergenceSummary) convergenceDocument {
	return convergenceDocument(s)
}

type analysisRunDocument struct {
	ID            string              `firestore:"id"`
	DampingFactor float64             `firestore:"damping_factor"`
	MaxRuns       int                 `firestore:"max_runs"`
	Tolerance     float64             `firestore:"tolerance"`
	Criterion     string              `firestore:"criterion"`
	Probability   convergenceDocument `firestore:"probability"`
	Impact        convergenceDocument `firestore:"impact"`
	RiskCount     int                 `firestore:"risk_count"`
	CascadeCount  int                 `firestore:"cascade_count"`
	StartedAt     time.Time           `firestore:"started_at"`
	FinishedAt    time.Time           `firestore:"finished_at"`
}

type riskCalculationDocument struct {
	RiskID int64  `firestore:"risk_id"`
	Title  string `firestore:"title"`

	DP   []float64 `firestore:"dp"`
	DP50 []float64 `firestore:"dp50"`
	IP   []float64 `firestore:"ip"`
	IP50 []float64 `firestore:"ip50"`
	TP   []float64 `firestore:"tp"`
	TP50 []float64 `firestore:"tp50"`
	RP   []float64 `firestore:"rp"`

	DI map[string][]float64 `firestore:"di"`
	II map[string][]float64 `firestore:"ii"`
	TI map[string][]float64 `firestore:"ti"`

	TR []float64 `firestore:"tr"`

	DirectProbability float64 `firestore:"direct_probability"`
	TotalProbability  float64 `firestore:"total_probability"`
	TotalRisk         float64 `firestore:"total_risk"`

	Metrics model.RiskMetrics `firestore:"metrics"`
}

type cascadeCalculationDocument struct {
	CascadeID int64                `firestore:"cascade_id"`
	CauseID   int64                `firestore:"cause_id"`
	EffectID  int64                `firestore:"effect_id"`
	IP        []float64            `firestore:"ip"`
	IP50      []float64            `firestore:"ip50"`
	II        map[string][]float64 `firestore:"ii"`
	IRCause   []float64            `firestore:"ir_cause"`
	IREffect  []float64            `firestore:"ir_effect"`
}

func riskCalculationToDoc(c *model.RiskCalculation) *riskCalculationDocument {
	return &riskCalculationDocument{
		RiskID:            c.RiskID,
		Title:             c.Title,
		DP:                scenarioToSlice(c.DP),
		DP50:              scenarioToSlice(c.DP50),
		IP:                scenarioToSlice(c.IP),
		IP50:              scenarioToSlice(c.IP50),
		TP:                scenarioToSlice(c.TP),
		TP50:              scenarioToSlice(c.TP50),
		RP:                scenarioToSlice(c.RP),
		DI:                impactToMap(c.DI),
		II:                impactToMap(c.II),
		TI:                impactToMap(c.TI),
		TR:                scenarioToSlice(c.TR),
		DirectProbability: c.DirectProbability,
		TotalProbability:  c.TotalProbability,
		TotalRisk:         c.TotalRisk,
		Metrics:           c.Metrics,
	}
}

func (d *riskCalculationDocument) toModel() *model.RiskCalculation {
	return &model.RiskCalculation{
		RiskID:            d.RiskID,
		Title:             d.Title,
		DP:                scenarioFromSlice(d.DP),
		DP50:              scenarioFromSlice(d.DP50),
		IP:                scenarioFromSlice(d.IP),
		IP50:              scenarioFromSlice(d.IP50),
		TP:                scenarioFromSlice(d.TP),
		TP50:              scenarioFromSlice(d.TP50),
		RP:                scenarioFromSlice(d.RP),
		DI:                impactFromMap(d.DI),
		II:                impactFromMap(d.II),
		TI:                impactFromMap(d.TI),
		TR:                scenarioFromSlice(d.TR),
		DirectProbability: d.DirectProbability,
		TotalProbability:  d.TotalProbability,
		TotalRisk:         d.TotalRisk,
		Metrics:           d.Metrics,
	}
}

func cascadeCalculationToDoc(c *model.CascadeCalculation) *cascadeCalculationDocument {
	return &cascadeCalculationDocument{
		CascadeID: c.CascadeID,
		CauseID:   c.CauseID,
		EffectID:  c.EffectID,
		IP:        scenarioToSlice(c.IP),
		IP50:      scenarioToSlice(c.IP50),
		II:        impactToMap(c.II),
		IRCause:   scenarioToSlice(c.IRCause),
		IREffect:  scenarioToSlice(c.IREffect),
	}
}

func (d *cascadeCalculationDocument) toModel() *model.CascadeCalculation {
	return &model.CascadeCalculation{
		CascadeID: d.CascadeID,
		CauseID:   d.CauseID,
		EffectID:  d.EffectID,
		IP:        scenarioFromSlice(d.IP),
		IP50:      scenarioFromSlice(d.IP50),
		II:        impactFromMap(d.II),
		IRCause:   scenarioFromSlice(d.IRCause),
		IREffect:  scenarioFromSlice(d.IREffect),
	}
}

type analysisRunRepository struct {
	client *firestore.Client
	cols   *collections
}

func (r *analysisRunRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.cols.name(collectionAnalysisRuns))
}

// Save writes the run summary and its calculations. Calculations live in
// subcollections so large graphs stay under the document size limit.
func (r *analysisRunRepository) Save(ctx context.Context, run *model.AnalysisRun) error {
	if run.ID == "" {
		return goerr.New("analysis run ID is required")
	}

	runRef := r.collection().Doc(run.ID.String())
	runDoc := &analysisRunDocument{
		ID:            run.ID.String(),
		DampingFactor: run.Parameters.DampingFactor,
		MaxRuns:       run.Parameters.MaxRuns,
		Tolerance:     run.Parameters.Tolerance,
		Criterion:     run.Parameters.Criterion,
		Probability:   convergenceToDoc(run.Probability),
		Impact:        convergenceToDoc(run.Impact),
		RiskCount:     len(run.Risks),
		CascadeCount:  len(run.Cascades),
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}

	// Use BulkWriter which automatically handles batching
	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	jobs := make([]*firestore.BulkWriterJob, 0, len(run.Risks)+len(run.Cascades))
	for _, calc := range run.Risks {
		ref := runRef.Collection(subcollectionRiskCalculations).Doc(fmt.Sprintf("%d", calc.RiskID))
		job, err := bulkWriter.Set(ref, riskCalculationToDoc(calc))
		if err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer",
				goerr.V("run_id", run.ID), goerr.V("risk_id", calc.RiskID))
		}
		jobs = append(jobs, job)
	}
	for _, calc := range run.Cascades {
		ref := runRef.Collection(subcollectionCascadeCalculations).Doc(fmt.Sprintf("%d", calc.CascadeID))
		job, err := bulkWriter.Set(ref, cascadeCalculationToDoc(calc))
		if err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer",
				goerr.V("run_id", run.ID), goerr.V("cascade_id", calc.CascadeID))
		}
		jobs = append(jobs, job)
	}

	// Flush and wait for all operations to complete
	bulkWriter.Flush()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to write calculation", goerr.V("run_id", run.ID))
		}
	}

	// The summary is written last so a listed run always has its calculations
	if _, err := runRef.Set(ctx, runDoc); err != nil {
		return goerr.Wrap(err, "failed to save analysis run", goerr.V("run_id", run.ID))
	}

	return nil
}

func (r *analysisRunRepository) Get(ctx context.Context, id model.AnalysisRunID) (*model.AnalysisRun, error) {
	doc, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "analysis run not found", goerr.V("run_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get analysis run", goerr.V("run_id", id))
	}

	return r.load(ctx, doc)
}

func (r *analysisRunRepository) List(ctx context.Context, limit int) ([]*model.AnalysisRun, error) {
	q := r.collection().OrderBy("finished_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	runs := make([]*model.AnalysisRun, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate analysis runs")
		}

		run, err := r.load(ctx, doc)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, nil
}

func (r *analysisRunRepository) Latest(ctx context.Context) (*model.AnalysisRun, error) {
	runs, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "no analysis run")
	}
	return runs[0], nil
}

func (r *analysisRunRepository) load(ctx context.Context, doc *firestore.DocumentSnapshot) (*model.AnalysisRun, error) {
	var runDoc analysisRunDocument
	if err := doc.DataTo(&runDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal analysis run", goerr.V("doc_id", doc.Ref.ID))
	}

	run := &model.AnalysisRun{
		ID: model.AnalysisRunID(runDoc.ID),
		Parameters: model.AnalysisParameters{
			DampingFactor: runDoc.DampingFactor,
			MaxRuns:       runDoc.MaxRuns,
			Tolerance:     runDoc.Tolerance,
			Criterion:     runDoc.Criterion,
		},
		Probability: model.ConvergenceSummary(runDoc.Probability),
		Impact:      model.ConvergenceSummary(runDoc.Impact),
		Risks:       make([]*model.RiskCalculation, 0, runDoc.RiskCount),
		Cascades:    make([]*model.CascadeCalculation, 0, runDoc.CascadeCount),
		StartedAt:   runDoc.StartedAt,
		FinishedAt:  runDoc.FinishedAt,
	}

	riskIter := doc.Ref.Collection(subcollectionRiskCalculations).OrderBy("risk_id", firestore.Asc).Documents(ctx)
	defer riskIter.Stop()
	for {
		d, err := riskIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate risk calculations", goerr.V("run_id", runDoc.ID))
		}
		var calc riskCalculationDocument
		if err := d.DataTo(&calc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal risk calculation", goerr.V("run_id", runDoc.ID), goerr.V("doc_id", d.Ref.ID))
		}
		run.Risks = append(run.Risks, calc.toModel())
	}

	cascadeIter := doc.Ref.Collection(subcollectionCascadeCalculations).OrderBy("cascade_id", firestore.Asc).Documents(ctx)
	defer cascadeIter.Stop()
	for {
		d, err := cascadeIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate cascade calculations", goerr.V("run_id", runDoc.ID))
		}
		var calc cascadeCalculationDocument
		if err := d.DataTo(&calc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal cascade calculation", goerr.V("run_id", runDoc.ID), goerr.V("doc_id", d.Ref.ID))
		}
		run.Cascades = append(run.Cascades, calc.toModel())
	}

	return run, nil
}
