package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

type participationRepository struct {
	db *sql.DB
}

const participationColumns = `id, risk_id, contact, role, direct_analysis_complete, cascade_analysis_complete, created_at`

func (r *participationRepository) Create(ctx context.Context, p *model.Participation) (*model.Participation, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO participations (risk_id, contact, role, direct_analysis_complete, cascade_analysis_complete, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.RiskID, p.Contact, p.Role, p.DirectAnalysisComplete, p.CascadeAnalysisComplete, toUnix(now),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create participation", goerr.V("risk_id", p.RiskID))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get participation ID")
	}

	created := p.Copy()
	created.ID = id
	created.CreatedAt = now
	return created, nil
}

func (r *participationRepository) List(ctx context.Context) ([]*model.Participation, error) {
	return r.query(ctx, `SELECT `+participationColumns+` FROM participations ORDER BY id`)
}

func (r *participationRepository) ListByRisk(ctx context.Context, riskID int64) ([]*model.Participation, error) {
	return r.query(ctx, `SELECT `+participationColumns+` FROM participations WHERE risk_id = ? ORDER BY id`, riskID)
}

func (r *participationRepository) query(ctx context.Context, q string, args ...any) ([]*model.Participation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list participations")
	}
	defer func() { _ = rows.Close() }()

	result := make([]*model.Participation, 0)
	for rows.Next() {
		var (
			p         model.Participation
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.RiskID, &p.Contact, &p.Role,
			&p.DirectAnalysisComplete, &p.CascadeAnalysisComplete, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan participation")
		}
		p.CreatedAt = fromUnix(createdAt)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate participations")
	}
	return result, nil
}

func (r *participationRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, "participations", id)
}
