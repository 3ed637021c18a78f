package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docuquery/backend/internal/models"
)

// historyPageSize caps interaction queries; callers never page past the
// most recent window.
const historyPageSize = 100

// AppendInteraction appends one entry to the interaction log. The log is
// append-only; entries are never mutated or deleted by normal operation.
func (s *Store) AppendInteraction(ctx context.Context, entry *models.InteractionEntry) error {
	var response, errorMessage sql.NullString
	if entry.Success {
		response = sql.NullString{String: entry.Response, Valid: true}
	} else {
		errorMessage = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO interaction_log (principal, question, asked_at, success, response, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, entry.Principal, entry.Question, entry.AskedAt, entry.Success, response, errorMessage).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("appending interaction: %w", err)
	}

	return nil
}

// QueryInteractions returns log entries within [start, end], newest first,
// capped at 100 rows. An empty principal matches all askers.
func (s *Store) QueryInteractions(ctx context.Context, principal string, start, end time.Time) ([]models.InteractionEntry, error) {
	query := `
		SELECT id, principal, question, asked_at, success, response, error_message
		FROM interaction_log
		WHERE asked_at >= ? AND asked_at <= ?
	`
	args := []interface{}{start, end}

	if principal != "" {
		query += " AND principal = ?"
		args = append(args, principal)
	}

	query += fmt.Sprintf(" ORDER BY asked_at DESC LIMIT %d", historyPageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	entries := []models.InteractionEntry{}
	for rows.Next() {
		var e models.InteractionEntry
		var response, errorMessage sql.NullString
		if err := rows.Scan(&e.ID, &e.Principal, &e.Question, &e.AskedAt, &e.Success, &response, &errorMessage); err != nil {
			return nil, err
		}
		e.Response = response.String
		e.ErrorMessage = errorMessage.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
