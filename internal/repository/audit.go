package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Biswadipgoj/emi-portal-full/internal/model"
)

// AuditRepository appends to the audit log. The table is append-only: there
// are no update or delete operations here on purpose.
type AuditRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewAuditRepository(db *sql.DB, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

func (r *AuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	query := `
        INSERT INTO audit_log (id, actor_user_id, actor_role, action, table_name, record_id,
                               before_data, after_data, remark, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	beforeJSON, err := marshalSnapshot(entry.BeforeData)
	if err != nil {
		return err
	}
	afterJSON, err := marshalSnapshot(entry.AfterData)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.ActorUserID, entry.ActorRole, entry.Action, entry.TableName,
		entry.RecordID, beforeJSON, afterJSON, entry.Remark, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}

func (r *AuditRepository) List(ctx context.Context, limit int) ([]model.AuditLog, error) {
	query := `
        SELECT id, actor_user_id, actor_role, action, table_name, record_id,
               before_data, after_data, COALESCE(remark, ''), created_at
        FROM audit_log
        ORDER BY created_at DESC
        LIMIT $1
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLog
	for rows.Next() {
		var entry model.AuditLog
		var beforeJSON, afterJSON []byte
		if err := rows.Scan(
			&entry.ID, &entry.ActorUserID, &entry.ActorRole, &entry.Action, &entry.TableName,
			&entry.RecordID, &beforeJSON, &afterJSON, &entry.Remark, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(beforeJSON) > 0 {
			if err := json.Unmarshal(beforeJSON, &entry.BeforeData); err != nil {
				return nil, fmt.Errorf("failed to decode audit snapshot: %w", err)
			}
		}
		if len(afterJSON) > 0 {
			if err := json.Unmarshal(afterJSON, &entry.AfterData); err != nil {
				return nil, fmt.Errorf("failed to decode audit snapshot: %w", err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func marshalSnapshot(data map[string]interface{}) (interface{}, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit snapshot: %w", err)
	}
	return raw, nil
}
