package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
)

type Firestore struct {
	client        *firestore.Client
	collections   *collections
	risk          *riskRepository
	cascade       *cascadeRepository
	participation *participationRepository
	analysisRun   *analysisRunRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes every collection name, e.g. to isolate tests
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collections.prefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	cols := &collections{}
	f := &Firestore{
		client:        client,
		collections:   cols,
		risk:          &riskRepository{client: client, cols: cols},
		cascade:       &cascadeRepository{client: client, cols: cols},
		participation: &participationRepository{client: client, cols: cols},
		analysisRun:   &analysisRunRepository{client: client, cols: cols},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Risk() interfaces.RiskRepository {
	return f.risk
}

func (f *Firestore) Cascade() interfaces.CascadeRepository {
	return f.cascade
}

func (f *Firestore) Participation() interfaces.ParticipationRepository {
	return f.participation
}

func (f *Firestore) AnalysisRun() interfaces.AnalysisRunRepository {
	return f.analysisRun
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// collections resolves collection names, shared by all repositories so a
// prefix option applied after construction reaches every one of them
type collections struct {
	prefix string
}

func (c *collections) name(base string) string {
	if c.prefix != "" {
		return c.prefix + "_" + base
	}
	return base
}

const (
	collectionRisks          = "risks"
	collectionCascades       = "cascades"
	collectionParticipations = "participations"
	collectionAnalysisRuns   = "analysis_runs"
	collectionCounters       = "counters"

	subcollectionRiskCalculations    = "risk_calculations"
	subcollectionCascadeCalculations = "cascade_calculations"
)

// CollectionParticipations is the unprefixed collection name of
// participations, used for index migration
const CollectionParticipations = collectionParticipations

// CollectionName resolves a collection name the way WithCollectionPrefix does
func CollectionName(prefix, base string) string {
	return (&collections{prefix: prefix}).name(base)
}
