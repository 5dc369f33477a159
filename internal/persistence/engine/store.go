package enginepersist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"equilibrium-api/pkg/engine"
	"equilibrium-api/pkg/footprint"
)

var _ engine.MetricStore = (*Store)(nil)

// Store persists session metric rows in Postgres. Session dates live in a
// DATE column and are bound as "2006-01-02" strings so the server session
// timezone can never shift them.
type Store struct {
	conn sqlx.SqlConn
}

// NewStore returns a metric store bound to the given connection, nil when no
// connection is configured.
func NewStore(conn sqlx.SqlConn) *Store {
	if conn == nil {
		return nil
	}
	return &Store{conn: conn}
}

type metricRow struct {
	SessionDate time.Time `db:"session_date"`
	Metrics     string    `db:"metrics"`
}

type dateRow struct {
	SessionDate time.Time `db:"session_date"`
}

// SessionMetrics returns stored rows with from <= session date <= to in
// ascending date order.
func (s *Store) SessionMetrics(ctx context.Context, assetID string, from, to time.Time) ([]*footprint.SessionMetric, error) {
	query := `SELECT session_date, metrics FROM public.session_metrics
WHERE asset_id = $1 AND session_date >= $2 AND session_date <= $3
ORDER BY session_date ASC`
	var rows []metricRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, query, assetID, dateArg(from), dateArg(to)); err != nil {
		return nil, fmt.Errorf("enginepersist: query session metrics %s: %w", assetID, err)
	}
	metrics := make([]*footprint.SessionMetric, 0, len(rows))
	for _, row := range rows {
		metric, err := rowToMetric(assetID, row)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, metric)
	}
	return metrics, nil
}

// OldestSessionMetric returns the earliest stored row, or (nil, nil) when
// the asset has no metrics yet.
func (s *Store) OldestSessionMetric(ctx context.Context, assetID string) (*footprint.SessionMetric, error) {
	query := `SELECT session_date, metrics FROM public.session_metrics
WHERE asset_id = $1 ORDER BY session_date ASC LIMIT 1`
	var row metricRow
	err := s.conn.QueryRowCtx(ctx, &row, query, assetID)
	switch {
	case err == nil:
		return rowToMetric(assetID, row)
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("enginepersist: query oldest metric %s: %w", assetID, err)
	}
}

// SessionDates returns every stored session date for the asset ascending.
func (s *Store) SessionDates(ctx context.Context, assetID string) ([]time.Time, error) {
	query := `SELECT session_date FROM public.session_metrics
WHERE asset_id = $1 ORDER BY session_date ASC`
	var rows []dateRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, query, assetID); err != nil {
		return nil, fmt.Errorf("enginepersist: query session dates %s: %w", assetID, err)
	}
	dates := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		dates = append(dates, footprint.DateOf(row.SessionDate))
	}
	return dates, nil
}

// UpsertSessionMetric writes one metric row and advances the processed
// cursor inside the same transaction, so a crash between the two statements
// can never leave the cursor ahead of the data. With patch set the stored
// keys keep their values and the new payload only fills gaps.
func (s *Store) UpsertSessionMetric(ctx context.Context, assetID string, date time.Time, fields footprint.Fields, patch bool) error {
	payload, err := fields.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("enginepersist: encode metrics %s %s: %w", assetID, dateArg(date), err)
	}
	metricSet := `metrics = EXCLUDED.metrics,
	schema_version = EXCLUDED.schema_version`
	if patch {
		// jsonb || keeps the right operand on shared keys, so the stored
		// document goes on the right to win over the patch payload.
		metricSet = `metrics = EXCLUDED.metrics || session_metrics.metrics,
	schema_version = GREATEST(session_metrics.schema_version, EXCLUDED.schema_version)`
	}
	upsert := fmt.Sprintf(`INSERT INTO public.session_metrics (asset_id, session_date, metrics, schema_version)
VALUES ($1, $2, $3, $4)
ON CONFLICT (asset_id, session_date) DO UPDATE SET
	%s,
	updated_at = NOW()`, metricSet)
	advance := `INSERT INTO public.sync_cursors (asset_id, last_ingested, last_processed_date, updated_at)
VALUES ($1, 0, $2, NOW())
ON CONFLICT (asset_id) DO UPDATE SET
	last_processed_date = GREATEST(COALESCE(sync_cursors.last_processed_date, EXCLUDED.last_processed_date), EXCLUDED.last_processed_date),
	updated_at = NOW()`
	day := dateArg(date)
	return s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		if _, err := session.ExecCtx(ctx, upsert, assetID, day, string(payload), int64(footprint.SchemaVersion)); err != nil {
			return fmt.Errorf("enginepersist: upsert metric %s %s: %w", assetID, day, err)
		}
		if _, err := session.ExecCtx(ctx, advance, assetID, day); err != nil {
			return fmt.Errorf("enginepersist: advance processed cursor %s: %w", assetID, err)
		}
		return nil
	})
}

// DeleteAsset removes every metric row for the asset and returns how many
// existed. The reset tool uses it; the engine never deletes rows.
func (s *Store) DeleteAsset(ctx context.Context, assetID string) (int64, error) {
	res, err := s.conn.ExecCtx(ctx, `DELETE FROM public.session_metrics WHERE asset_id = $1`, assetID)
	if err != nil {
		return 0, fmt.Errorf("enginepersist: delete metrics %s: %w", assetID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// dateArg renders a civil date for a DATE placeholder.
func dateArg(date time.Time) string {
	return date.Format(time.DateOnly)
}

func rowToMetric(assetID string, row metricRow) (*footprint.SessionMetric, error) {
	var fields footprint.Fields
	if err := json.Unmarshal([]byte(row.Metrics), &fields); err != nil {
		return nil, fmt.Errorf("enginepersist: decode metrics %s %s: %w", assetID, dateArg(row.SessionDate), err)
	}
	return &footprint.SessionMetric{
		Symbol: assetID,
		Date:   footprint.DateOf(row.SessionDate),
		Fields: fields,
	}, nil
}
