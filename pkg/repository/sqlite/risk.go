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

type riskRepository struct {
	db *sql.DB
}

const riskColumns = `id, title, description, quality, reliability, subjective_importance,
	direct_probability, direct_probability_2050, direct_impact, created_at, updated_at`

type riskValues struct {
	dp, dp50, di []byte
}

func encodeRisk(r *model.Risk) (*riskValues, error) {
	dp, err := json.Marshal(r.DirectProbability)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode direct probability")
	}
	dp50, err := json.Marshal(r.DirectProbability2050)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode direct probability 2050")
	}
	di, err := json.Marshal(r.DirectImpact)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode direct impact")
	}
	return &riskValues{dp: dp, dp50: dp50, di: di}, nil
}

func scanRisk(row rowScanner) (*model.Risk, error) {
	var (
		risk                 model.Risk
		quality              string
		dp, dp50, di         string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&risk.ID, &risk.Title, &risk.Description, &quality, &risk.Reliability,
		&risk.SubjectiveImportance, &dp, &dp50, &di, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(dp), &risk.DirectProbability); err != nil {
		return nil, goerr.Wrap(err, "failed to decode direct probability", goerr.V("id", risk.ID))
	}
	if err := json.Unmarshal([]byte(dp50), &risk.DirectProbability2050); err != nil {
		return nil, goerr.Wrap(err, "failed to decode direct probability 2050", goerr.V("id", risk.ID))
	}
	if err := json.Unmarshal([]byte(di), &risk.DirectImpact); err != nil {
		return nil, goerr.Wrap(err, "failed to decode direct impact", goerr.V("id", risk.ID))
	}
	risk.Quality = types.Quality(quality)
	risk.CreatedAt = fromUnix(createdAt)
	risk.UpdatedAt = fromUnix(updatedAt)
	return &risk, nil
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	v, err := encodeRisk(risk)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO risks (title, description, quality, reliability, subjective_importance,
			direct_probability, direct_probability_2050, direct_impact, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		risk.Title, risk.Description, risk.Quality.String(), risk.Reliability, risk.SubjectiveImportance,
		string(v.dp), string(v.dp50), string(v.di), toUnix(now), toUnix(now),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create risk")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk ID")
	}

	created := risk.Copy()
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return created, nil
}

func (r *riskRepository) Get(ctx context.Context, id int64) (*model.Risk, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+riskColumns+` FROM risks WHERE id = ?`, id)
	risk, err := scanRisk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "risk not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V("id", id))
	}
	return risk, nil
}

func (r *riskRepository) List(ctx context.Context) ([]*model.Risk, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+riskColumns+` FROM risks ORDER BY id`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks")
	}
	defer func() { _ = rows.Close() }()

	risks := make([]*model.Risk, 0)
	for rows.Next() {
		risk, err := scanRisk(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan risk")
		}
		risks = append(risks, risk)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate risks")
	}
	return risks, nil
}

func (r *riskRepository) Update(ctx context.Context, risk *model.Risk) (*model.Risk, error) {
	existing, err := r.Get(ctx, risk.ID)
	if err != nil {
		return nil, err
	}

	v, err := encodeRisk(risk)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, `
		UPDATE risks SET title = ?, description = ?, quality = ?, reliability = ?, subjective_importance = ?,
			direct_probability = ?, direct_probability_2050 = ?, direct_impact = ?, updated_at = ?
		WHERE id = ?`,
		risk.Title, risk.Description, risk.Quality.String(), risk.Reliability, risk.SubjectiveImportance,
		string(v.dp), string(v.dp50), string(v.di), toUnix(now), risk.ID,
	); err != nil {
		return nil, goerr.Wrap(err, "failed to update risk", goerr.V("id", risk.ID))
	}

	updated := risk.Copy()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = now
	return updated, nil
}

func (r *riskRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, "risks", id)
}

// deleteByID removes one row of an integer-keyed table
func deleteByID(ctx context.Context, db *sql.DB, table string, id int64) error {
	// #nosec G202 - table is one of the package's constant table names
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete row", goerr.V("table", table), goerr.V("id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows", goerr.V("table", table))
	}
	if n == 0 {
		return goerr.Wrap(interfaces.ErrNotFound, "row not found", goerr.V("table", table), goerr.V("id", id))
	}
	return nil
}
