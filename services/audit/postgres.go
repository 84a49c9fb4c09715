package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"github.com/civinigrani/civigate/models"
)

// PostgresSink stores audit records in a Postgres table. Selected when the
// deployment needs the trail queryable alongside the dashboard's database.
type PostgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSink connects to the audit database and ensures the schema.
func NewPostgresSink(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit database ping failed: %w", err)
	}

	sink := &PostgresSink{db: db, logger: logger.Named("audit_pg")}
	if err := sink.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

// NewPostgresSinkWithDB wraps an existing connection, used by tests.
func NewPostgresSinkWithDB(db *sql.DB, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: logger.Named("audit_pg")}
}

func (s *PostgresSink) initSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_records (
			id UUID PRIMARY KEY,
			request_id TEXT NOT NULL,
			identity_id TEXT NOT NULL,
			role TEXT NOT NULL,
			operation TEXT,
			arg_keys TEXT,
			args JSONB,
			decision TEXT NOT NULL,
			denial_reason TEXT,
			token_id TEXT,
			outcome TEXT NOT NULL,
			badge TEXT NOT NULL,
			input_findings JSONB,
			output_findings JSONB,
			error TEXT,
			timestamp TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

// Append inserts one record. Records are write-once; there is no update path.
func (s *PostgresSink) Append(ctx context.Context, rec *models.AuditRecord) error {
	if rec == nil {
		return nil
	}

	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("marshal audit args: %w", err)
	}
	inputFindings, err := json.Marshal(rec.InputFindings)
	if err != nil {
		return fmt.Errorf("marshal input findings: %w", err)
	}
	outputFindings, err := json.Marshal(rec.OutputFindings)
	if err != nil {
		return fmt.Errorf("marshal output findings: %w", err)
	}

	const query = `
		INSERT INTO audit_records (
			id, request_id, identity_id, role, operation, arg_keys, args,
			decision, denial_reason, token_id, outcome, badge,
			input_findings, output_findings, error, timestamp, duration_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.RequestID,
		rec.IdentityID,
		string(rec.Role),
		rec.Operation,
		strings.Join(rec.ArgKeys, ","),
		args,
		string(rec.Decision),
		rec.DenialReason,
		rec.TokenID,
		string(rec.Outcome),
		string(rec.Badge),
		inputFindings,
		outputFindings,
		rec.Error,
		rec.Timestamp,
		rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	s.logger.Debug("audit record inserted",
		zap.String("id", rec.ID.String()),
		zap.String("decision", string(rec.Decision)))
	return nil
}

// Recent returns up to n most recent records, newest first.
func (s *PostgresSink) Recent(n int) ([]*models.AuditRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	const query = `
		SELECT id, request_id, identity_id, role, operation, arg_keys, args,
			decision, denial_reason, token_id, outcome, badge,
			input_findings, output_findings, error, timestamp, duration_ms
		FROM audit_records
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := s.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditRecord
	for rows.Next() {
		var (
			rec            models.AuditRecord
			role           string
			argKeys        string
			args           []byte
			decision       string
			outcome        string
			badge          string
			inputFindings  []byte
			outputFindings []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.IdentityID, &role, &rec.Operation,
			&argKeys, &args, &decision, &rec.DenialReason, &rec.TokenID,
			&outcome, &badge, &inputFindings, &outputFindings,
			&rec.Error, &rec.Timestamp, &rec.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}

		rec.Role = models.Role(role)
		rec.Decision = models.Decision(decision)
		rec.Outcome = models.Outcome(outcome)
		rec.Badge = models.Badge(badge)
		if argKeys != "" {
			rec.ArgKeys = strings.Split(argKeys, ",")
		}
		if len(args) > 0 {
			_ = json.Unmarshal(args, &rec.Args)
		}
		if len(inputFindings) > 0 {
			_ = json.Unmarshal(inputFindings, &rec.InputFindings)
		}
		if len(outputFindings) > 0 {
			_ = json.Unmarshal(outputFindings, &rec.OutputFindings)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Close closes the underlying connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
