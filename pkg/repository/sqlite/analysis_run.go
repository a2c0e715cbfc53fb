package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

type analysisRunRepository struct {
	db *sql.DB
}

func (r *analysisRunRepository) Save(ctx context.Context, run *model.AnalysisRun) error {
	if run.ID == "" {
		return goerr.New("analysis run ID is required")
	}

	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return goerr.Wrap(err, "failed to encode parameters", goerr.V("run_id", run.ID))
	}
	prob, err := json.Marshal(run.Probability)
	if err != nil {
		return goerr.Wrap(err, "failed to encode probability summary", goerr.V("run_id", run.ID))
	}
	impact, err := json.Marshal(run.Impact)
	if err != nil {
		return goerr.Wrap(err, "failed to encode impact summary", goerr.V("run_id", run.ID))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// ON DELETE CASCADE clears the previous calculations of a replaced run
	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id = ?`, run.ID.String()); err != nil {
		return goerr.Wrap(err, "failed to replace analysis run", goerr.V("run_id", run.ID))
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, parameters, probability, impact, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), string(params), string(prob), string(impact),
		toUnix(run.StartedAt), toUnix(run.FinishedAt),
	); err != nil {
		return goerr.Wrap(err, "failed to save analysis run", goerr.V("run_id", run.ID))
	}

	riskStmt, err := tx.PrepareContext(ctx, `INSERT INTO risk_calculations (run_id, risk_id, data) VALUES (?, ?, ?)`)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare risk calculation insert")
	}
	defer func() { _ = riskStmt.Close() }()
	for _, calc := range run.Risks {
		data, err := json.Marshal(calc)
		if err != nil {
			return goerr.Wrap(err, "failed to encode risk calculation", goerr.V("run_id", run.ID), goerr.V("risk_id", calc.RiskID))
		}
		if _, err := riskStmt.ExecContext(ctx, run.ID.String(), calc.RiskID, string(data)); err != nil {
			return goerr.Wrap(err, "failed to save risk calculation", goerr.V("run_id", run.ID), goerr.V("risk_id", calc.RiskID))
		}
	}

	cascadeStmt, err := tx.PrepareContext(ctx, `INSERT INTO cascade_calculations (run_id, cascade_id, data) VALUES (?, ?, ?)`)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare cascade calculation insert")
	}
	defer func() { _ = cascadeStmt.Close() }()
	for _, calc := range run.Cascades {
		data, err := json.Marshal(calc)
		if err != nil {
			return goerr.Wrap(err, "failed to encode cascade calculation", goerr.V("run_id", run.ID), goerr.V("cascade_id", calc.CascadeID))
		}
		if _, err := cascadeStmt.ExecContext(ctx, run.ID.String(), calc.CascadeID, string(data)); err != nil {
			return goerr.Wrap(err, "failed to save cascade calculation", goerr.V("run_id", run.ID), goerr.V("cascade_id", calc.CascadeID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit analysis run", goerr.V("run_id", run.ID))
	}
	return nil
}

const runColumns = `id, parameters, probability, impact, started_at, finished_at`

func scanRun(row rowScanner) (*model.AnalysisRun, error) {
	var (
		run                   model.AnalysisRun
		id                    string
		params, prob, impact  string
		startedAt, finishedAt int64
	)
	if err := row.Scan(&id, &params, &prob, &impact, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.ID = model.AnalysisRunID(id)
	if err := json.Unmarshal([]byte(params), &run.Parameters); err != nil {
		return nil, goerr.Wrap(err, "failed to decode parameters", goerr.V("run_id", id))
	}
	if err := json.Unmarshal([]byte(prob), &run.Probability); err != nil {
		return nil, goerr.Wrap(err, "failed to decode probability summary", goerr.V("run_id", id))
	}
	if err := json.Unmarshal([]byte(impact), &run.Impact); err != nil {
		return nil, goerr.Wrap(err, "failed to decode impact summary", goerr.V("run_id", id))
	}
	run.StartedAt = fromUnix(startedAt)
	run.FinishedAt = fromUnix(finishedAt)
	return &run, nil
}

func (r *analysisRunRepository) Get(ctx context.Context, id model.AnalysisRunID) (*model.AnalysisRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "analysis run not found", goerr.V("run_id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get analysis run", goerr.V("run_id", id))
	}

	if err := r.loadCalculations(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *analysisRunRepository) List(ctx context.Context, limit int) ([]*model.AnalysisRun, error) {
	q := `SELECT ` + runColumns + ` FROM analysis_runs ORDER BY finished_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list analysis runs")
	}

	runs := make([]*model.AnalysisRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, goerr.Wrap(err, "failed to scan analysis run")
		}
		runs = append(runs, run)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to iterate analysis runs")
	}

	// Calculations are loaded after the cursor is closed; the pool holds a
	// single connection.
	for _, run := range runs {
		if err := r.loadCalculations(ctx, run); err != nil {
			return nil, err
		}
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

func (r *analysisRunRepository) loadCalculations(ctx context.Context, run *model.AnalysisRun) error {
	risks, err := queryCalculations[model.RiskCalculation](ctx, r.db,
		`SELECT data FROM risk_calculations WHERE run_id = ? ORDER BY risk_id`, run.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to load risk calculations", goerr.V("run_id", run.ID))
	}
	cascades, err := queryCalculations[model.CascadeCalculation](ctx, r.db,
		`SELECT data FROM cascade_calculations WHERE run_id = ? ORDER BY cascade_id`, run.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to load cascade calculations", goerr.V("run_id", run.ID))
	}
	run.Risks = risks
	run.Cascades = cascades
	return nil
}

func queryCalculations[T any](ctx context.Context, db *sql.DB, q string, runID model.AnalysisRunID) ([]*T, error) {
	rows, err := db.QueryContext(ctx, q, runID.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query calculations")
	}
	defer func() { _ = rows.Close() }()

	result := make([]*T, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to scan calculation")
		}
		var calc T
		if err := json.Unmarshal([]byte(data), &calc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode calculation")
		}
		result = append(result, &calc)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate calculations")
	}
	return result, nil
}
