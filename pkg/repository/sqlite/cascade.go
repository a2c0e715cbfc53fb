package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

type cascadeRepository struct {
	db *sql.DB
}

const cascadeColumns = `id, cause_id, effect_id, quality, damp, matrix, created_at, updated_at`

func scanCascade(row rowScanner) (*model.Cascade, error) {
	var (
		c                    model.Cascade
		quality, matrix      string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.CauseID, &c.EffectID, &quality, &c.Damp, &matrix, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(matrix), &c.Matrix); err != nil {
		return nil, goerr.Wrap(err, "failed to decode matrix", goerr.V("id", c.ID))
	}
	c.Quality = types.Quality(quality)
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return &c, nil
}

func (r *cascadeRepository) Create(ctx context.Context, cascade *model.Cascade) (*model.Cascade, error) {
	matrix, err := json.Marshal(cascade.Matrix)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode matrix")
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cascades (cause_id, effect_id, quality, damp, matrix, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cascade.CauseID, cascade.EffectID, cascade.Quality.String(), cascade.Damp, string(matrix),
		toUnix(now), toUnix(now),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create cascade")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cascade ID")
	}

	created := cascade.Copy()
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return created, nil
}

func (r *cascadeRepository) Get(ctx context.Context, id int64) (*model.Cascade, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cascadeColumns+` FROM cascades WHERE id = ?`, id)
	c, err := scanCascade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "cascade not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cascade", goerr.V("id", id))
	}
	return c, nil
}

func (r *cascadeRepository) List(ctx context.Context) ([]*model.Cascade, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+cascadeColumns+` FROM cascades ORDER BY id`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list cascades")
	}
	defer func() { _ = rows.Close() }()

	cascades := make([]*model.Cascade, 0)
	for rows.Next() {
		c, err := scanCascade(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan cascade")
		}
		cascades = append(cascades, c)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate cascades")
	}
	return cascades, nil
}

func (r *cascadeRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, "cascades", id)
}
