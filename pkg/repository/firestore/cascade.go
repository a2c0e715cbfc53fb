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

type cascadeDocument struct {
	ID        int64                `firestore:"id"`
	CauseID   int64                `firestore:"cause_id"`
	EffectID  int64                `firestore:"effect_id"`
	Quality   string               `firestore:"quality"`
	Damp      bool                 `firestore:"damp"`
	Matrix    map[string][]float64 `firestore:"matrix"`
	CreatedAt time.Time            `firestore:"created_at"`
	UpdatedAt time.Time            `firestore:"updated_at"`
}

func cascadeToDoc(c *model.Cascade) *cascadeDocument {
	return &cascadeDocument{
		ID:        c.ID,
		CauseID:   c.CauseID,
		EffectID:  c.EffectID,
		Quality:   c.Quality.String(),
		Damp:      c.Damp,
		Matrix:    matrixToMap(c.Matrix),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (d *cascadeDocument) toModel() *model.Cascade {
	return &model.Cascade{
		ID:        d.ID,
		CauseID:   d.CauseID,
		EffectID:  d.EffectID,
		Quality:   types.Quality(d.Quality),
		Damp:      d.Damp,
		Matrix:    matrixFromMap(d.Matrix),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type cascadeRepository struct {
	client *firestore.Client
	cols   *collections
}

func (r *cascadeRepository) doc(id int64) *firestore.DocumentRef {
	return r.client.Collection(r.cols.name(collectionCascades)).Doc(fmt.Sprintf("%d", id))
}

func (r *cascadeRepository) Create(ctx context.Context, cascade *model.Cascade) (*model.Cascade, error) {
	id, err := nextID(ctx, r.client, r.cols, "cascade_counter")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	created := cascade.Copy()
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.doc(id).Set(ctx, cascadeToDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create cascade", goerr.V("id", id))
	}

	return created, nil
}

func (r *cascadeRepository) Get(ctx context.Context, id int64) (*model.Cascade, error) {
	doc, err := r.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "cascade not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get cascade", goerr.V("id", id))
	}

	var cascadeDoc cascadeDocument
	if err := doc.DataTo(&cascadeDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal cascade", goerr.V("id", id))
	}

	return cascadeDoc.toModel(), nil
}

func (r *cascadeRepository) List(ctx context.Context) ([]*model.Cascade, error) {
	iter := r.client.Collection(r.cols.name(collectionCascades)).OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	cascades := make([]*model.Cascade, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate cascades")
		}

		var cascadeDoc cascadeDocument
		if err := doc.DataTo(&cascadeDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal cascade", goerr.V("doc_id", doc.Ref.ID))
		}
		cascades = append(cascades, cascadeDoc.toModel())
	}

	return cascades, nil
}

func (r *cascadeRepository) Delete(ctx context.Context, id int64) error {
	docRef := r.doc(id)

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "cascade not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get cascade", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete cascade", goerr.V("id", id))
	}

	return nil
}
