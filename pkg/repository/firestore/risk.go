package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type riskDocument struct {
	ID                    int64                `firestore:"id"`
	Title                 string               `firestore:"title"`
	Description           string               `firestore:"description"`
	Quality               string               `firestore:"quality"`
	Reliability           float64              `firestore:"reliability"`
	SubjectiveImportance  float64              `firestore:"subjective_importance"`
	DirectProbability     []float64            `firestore:"direct_probability"`
	DirectProbability2050 []float64            `firestore:"direct_probability_2050"`
	DirectImpact          map[string][]float64 `firestore:"direct_impact"`
	CreatedAt             time.Time            `firestore:"created_at"`
	UpdatedAt             time.Time            `firestore:"updated_at"`
}

func riskToDoc(r *model.Risk) *riskDocument {
	return &riskDocument{
		ID:                    r.ID,
		Title:                 r.Title,
		Description:           r.Description,
		Quality:               r.Quality.String(),
		Reliability:           r.Reliability,
		SubjectiveImportance:  r.SubjectiveImportance,
		DirectProbability:     scenarioToSlice(r.DirectProbability),
		DirectProbability2050: scenarioToSlice(r.DirectProbability2050),
		DirectImpact:          impactToMap(r.DirectImpact),
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func (d *riskDocument) toModel() *model.Risk {
	return &model.Risk{
		ID:                    d.ID,
		Title:                 d.Title,
		Description:           d.Description,
		Quality:               types.Quality(d.Quality),
		Reliability:           d.Reliability,
		SubjectiveImportance:  d.SubjectiveImportance,
		DirectProbability:     scenarioFromSlice(d.DirectProbability),
		DirectProbability2050: scenarioFromSlice(d.DirectProbability2050),
		DirectImpact:          impactFromMap(d.DirectImpact),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

type riskRepository struct {
	client *firestore.Client
	cols   *collections
}

func (r *riskRepository) doc(id int64) *firestore.DocumentRef {
	return r.client.Collection(r.cols.name(collectionRisks)).Doc(fmt.Sprintf("%d", id))
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	id, err := nextID(ctx, r.client, r.cols, "risk_counter")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	created := risk.Copy()
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.doc(id).Set(ctx, riskToDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create risk", goerr.V("id", id))
	}

	return created, nil
}

func (r *riskRepository) Get(ctx context.Context, id int64) (*model.Risk, error) {
	doc, err := r.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "risk not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V("id", id))
	}

	var riskDoc riskDocument
	if err := doc.DataTo(&riskDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal risk", goerr.V("id", id))
	}

	return riskDoc.toModel(), nil
}

func (r *riskRepository) List(ctx context.Context) ([]*model.Risk, error) {
	iter := r.client.Collection(r.cols.name(collectionRisks)).OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	risks := make([]*model.Risk, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate risks")
		}

		var riskDoc riskDocument
		if err := doc.DataTo(&riskDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal risk", goerr.V("doc_id", doc.Ref.ID))
		}
		risks = append(risks, riskDoc.toModel())
	}

	return risks, nil
}

func (r *riskRepository) Update(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	docRef := r.doc(risk.ID)

	var updated *model.Risk
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "risk not found", goerr.V("id", risk.ID))
			}
			return goerr.Wrap(err, "failed to get risk", goerr.V("id", risk.ID))
		}

		var existing riskDocument
		if err := doc.DataTo(&existing); err != nil {
			return goerr.Wrap(err, "failed to unmarshal risk", goerr.V("id", risk.ID))
		}

		updated = risk.Copy()
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		return tx.Set(docRef, riskToDoc(updated))
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update risk", goerr.V("id", risk.ID))
	}

	return updated, nil
}

func (r *riskRepository) Delete(ctx context.Context, id int64) error {
	docRef := r.doc(id)

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "risk not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get risk", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete risk", goerr.V("id", id))
	}

	return nil
}
