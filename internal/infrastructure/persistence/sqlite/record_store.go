package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/project-billing/internal/application/port"
	"github.com/garyjia/project-billing/internal/domain/entity"
)

// timeLayout sorts lexically in UTC
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordStore keeps each billing record as a JSON document with indexed key columns.
// The version column is compared-and-swapped on every update.
type RecordStore struct {
	db     *DB
	logger *zap.Logger
}

// NewRecordStore creates a new sqlite record store
func NewRecordStore(db *DB, logger *zap.Logger) *RecordStore {
	return &RecordStore{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new record
func (s *RecordStore) Create(ctx context.Context, record *entity.BillingRecord) error {
	if record.Version < 1 {
		record.Version = 1
	}

	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	query := `
		INSERT INTO billing_records (
			id, project_id, record_number, record_type, status, version, document, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.getExecutor(ctx).ExecContext(ctx, query,
		record.ID,
		record.ProjectID,
		record.RecordNumber,
		string(record.RecordType),
		string(record.Status),
		record.Version,
		string(doc),
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", port.ErrDuplicate, record.RecordNumber)
		}
		s.logger.Error("Failed to insert record", zap.Error(err), zap.String("record_id", record.ID))
		return fmt.Errorf("failed to insert record: %w", err)
	}

	s.logger.Debug("Record inserted",
		zap.String("project_id", record.ProjectID),
		zap.String("record_id", record.ID),
		zap.String("record_number", record.RecordNumber))
	return nil
}

// Load retrieves a record by project and id
func (s *RecordStore) Load(ctx context.Context, projectID, recordID string) (*entity.BillingRecord, error) {
	return s.load(ctx, s.db.getExecutor(ctx), projectID, recordID)
}

// Persist applies update if the stored version still equals update.ExpectedVersion
func (s *RecordStore) Persist(ctx context.Context, projectID, recordID string, update port.RecordUpdate) (*entity.BillingRecord, error) {
	var result *entity.BillingRecord

	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := s.db.getExecutor(txCtx)

		current, err := s.load(txCtx, exec, projectID, recordID)
		if err != nil {
			return err
		}
		if current.Version != update.ExpectedVersion {
			return fmt.Errorf("%w: %s has version %d, expected %d",
				port.ErrConflict, recordID, current.Version, update.ExpectedVersion)
		}

		update.Apply(current)

		doc, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}

		query := `
			UPDATE billing_records
			SET status = ?, version = ?, document = ?, updated_at = ?
			WHERE project_id = ? AND id = ? AND version = ?
		`
		res, err := exec.ExecContext(txCtx, query,
			string(current.Status),
			current.Version,
			string(doc),
			formatTime(current.UpdatedAt),
			projectID,
			recordID,
			update.ExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if rows != 1 {
			return fmt.Errorf("%w: %s", port.ErrConflict, recordID)
		}

		result = current
		return nil
	})
	if err != nil {
		if !errors.Is(err, port.ErrConflict) && !errors.Is(err, port.ErrNotFound) {
			s.logger.Error("Failed to persist record", zap.Error(err),
				zap.String("project_id", projectID), zap.String("record_id", recordID))
		}
		return nil, err
	}

	return result, nil
}

// ListByProject returns every record of a project ordered by creation time
func (s *RecordStore) ListByProject(ctx context.Context, projectID string) ([]*entity.BillingRecord, error) {
	query := `
		SELECT document, version FROM billing_records
		WHERE project_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.getExecutor(ctx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*entity.BillingRecord
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		record, err := decodeRecord(doc, version)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}

func (s *RecordStore) load(ctx context.Context, exec executor, projectID, recordID string) (*entity.BillingRecord, error) {
	query := `SELECT document, version FROM billing_records WHERE project_id = ? AND id = ?`

	var doc string
	var version int64
	err := exec.QueryRowContext(ctx, query, projectID, recordID).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", port.ErrNotFound, recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	return decodeRecord(doc, version)
}

func decodeRecord(doc string, version int64) (*entity.BillingRecord, error) {
	var record entity.BillingRecord
	if err := json.Unmarshal([]byte(doc), &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	record.Version = version
	return &record, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Verify interface compliance
var _ port.RecordStore = (*RecordStore)(nil)
