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

type participationDocument struct {
	ID                      int64     `firestore:"id"`
	RiskID                  int64     `firestore:"risk_id"`
	Contact                 string    `firestore:"contact"`
	Role                    string    `firestore:"role"`
	DirectAnalysisComplete  bool      `firestore:"direct_analysis_complete"`
	CascadeAnalysisComplete bool      `firestore:"cascade_analysis_complete"`
	CreatedAt               time.Time `firestore:"created_at"`
}

func (d *participationDocument) toModel() *model.Participation {
	return &model.Participation{
		ID:                      d.ID,
		RiskID:                  d.RiskID,
		Contact:                 d.Contact,
		Role:                    d.Role,
		DirectAnalysisComplete:  d.DirectAnalysisComplete,
		CascadeAnalysisComplete: d.CascadeAnalysisComplete,
		CreatedAt:               d.CreatedAt,
	}
}

type participationRepository struct {
	client *firestore.Client
	cols   *collections
}

func (r *participationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.cols.name(collectionParticipations))
}

func (r *participationRepository) Create(ctx context.Context, p *model.Participation) (*model.Participation, error) {
	id, err := nextID(ctx, r.client, r.cols, "participation_counter")
	if err != nil {
		return nil, err
	}

	created := p.Copy()
	created.ID = id
	created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	doc := &participationDocument{
		ID:                      created.ID,
		RiskID:                  created.RiskID,
		Contact:                 created.Contact,
		Role:                    created.Role,
		DirectAnalysisComplete:  created.DirectAnalysisComplete,
		CascadeAnalysisComplete: created.CascadeAnalysisComplete,
		CreatedAt:               created.CreatedAt,
	}
	if _, err := r.collection().Doc(fmt.Sprintf("%d", id)).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create participation", goerr.V("id", id))
	}

	return created, nil
}

func (r *participationRepository) List(ctx context.Context) ([]*model.Participation, error) {
	return r.query(ctx, r.collection().OrderBy("id", firestore.Asc))
}

// ListByRisk requires the (risk_id ASC, id ASC) composite index created by
// the migrate command
func (r *participationRepository) ListByRisk(ctx context.Context, riskID int64) ([]*model.Participation, error) {
	q := r.collection().Where("risk_id", "==", riskID).OrderBy("id", firestore.Asc)
	result, err := r.query(ctx, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list participations by risk", goerr.V("risk_id", riskID))
	}
	return result, nil
}

func (r *participationRepository) query(ctx context.Context, q firestore.Query) ([]*model.Participation, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	result := make([]*model.Participation, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate participations")
		}

		var pDoc participationDocument
		if err := doc.DataTo(&pDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal participation", goerr.V("doc_id", doc.Ref.ID))
		}
		result = append(result, pDoc.toModel())
	}
	return result, nil
}

func (r *participationRepository) Delete(ctx context.Context, id int64) error {
	docRef := r.collection().Doc(fmt.Sprintf("%d", id))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "participation not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get participation", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete participation", goerr.V("id", id))
	}

	return nil
}
