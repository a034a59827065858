package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"formbuilder/internal/domain"
)

// maxStoredEntries bounds the persisted history per form; the in-memory
// manager carries its own bound, this one only guards the table size.
const maxStoredEntries = 200

// HistoryStore implements domain.HistoryStore using SQLite. Entries are
// stored oldest-first by a per-form sequence number; the cursor row tracks
// how many of them sit on the undo side.
type HistoryStore struct {
	db *DB
}

func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Append adds one record past the current cursor and advances the cursor
// over it. Entries beyond the cursor (the redo side) are dropped first,
// matching the in-memory redo invalidation.
func (s *HistoryStore) Append(formID string, rec domain.CommandRecord) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var cursor int
	err = tx.QueryRow(`SELECT cursor FROM history_state WHERE form_id = ?`, formID).Scan(&cursor)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read cursor: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM history_entries WHERE form_id = ? AND seq >= ?`, formID, cursor); err != nil {
		return fmt.Errorf("drop redo entries: %w", err)
	}
	if err := insertEntry(tx, formID, cursor, rec); err != nil {
		return err
	}
	if err := setCursor(tx, formID, cursor+1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.pruneIfNeeded(formID, maxStoredEntries)
	return nil
}

// Replace atomically rewrites the stored history from an in-memory snapshot.
func (s *HistoryStore) Replace(formID string, recs []domain.CommandRecord, cursor int) error {
	if cursor < 0 || cursor > len(recs) {
		return fmt.Errorf("replace history: cursor %d out of range", cursor)
	}
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM history_entries WHERE form_id = ?`, formID); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	for i, rec := range recs {
		if err := insertEntry(tx, formID, i, rec); err != nil {
			return err
		}
	}
	if err := setCursor(tx, formID, cursor); err != nil {
		return err
	}
	return tx.Commit()
}

// Load returns the history oldest-first plus the cursor. A form with no
// history returns an empty slice and cursor zero.
func (s *HistoryStore) Load(formID string) ([]domain.CommandRecord, int, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, type, timestamp_ms, description, data_json, metadata_json
		 FROM history_entries WHERE form_id = ? ORDER BY seq ASC`, formID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var recs []domain.CommandRecord
	for rows.Next() {
		var rec domain.CommandRecord
		var data string
		var metadata sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Timestamp, &rec.Description, &data, &metadata); err != nil {
			return nil, 0, fmt.Errorf("scan history entry: %w", err)
		}
		rec.Data = json.RawMessage(data)
		if metadata.Valid {
			rec.Metadata = json.RawMessage(metadata.String)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var cursor int
	err = s.db.Conn().QueryRow(`SELECT cursor FROM history_state WHERE form_id = ?`, formID).Scan(&cursor)
	if err == sql.ErrNoRows {
		cursor = len(recs)
	} else if err != nil {
		return nil, 0, fmt.Errorf("read cursor: %w", err)
	}
	if cursor > len(recs) {
		cursor = len(recs)
	}
	return recs, cursor, nil
}

// SetCursor moves the undo/redo position without touching the entries.
func (s *HistoryStore) SetCursor(formID string, cursor int) error {
	_, err := s.db.Conn().Exec(
		`INSERT INTO history_state (form_id, cursor) VALUES (?, ?)
		 ON CONFLICT(form_id) DO UPDATE SET cursor = excluded.cursor`,
		formID, cursor,
	)
	return err
}

// Clear removes all history data for a form.
func (s *HistoryStore) Clear(formID string) error {
	_, _ = s.db.Conn().Exec(`DELETE FROM history_state WHERE form_id = ?`, formID)
	_, err := s.db.Conn().Exec(`DELETE FROM history_entries WHERE form_id = ?`, formID)
	return err
}

// pruneIfNeeded drops the oldest entries when count exceeds maxEntries and
// renumbers the rest so seq stays dense. Best effort; a failed prune only
// delays the next one.
func (s *HistoryStore) pruneIfNeeded(formID string, maxEntries int) {
	var count int
	s.db.Conn().QueryRow(`SELECT COUNT(*) FROM history_entries WHERE form_id = ?`, formID).Scan(&count)
	if count <= maxEntries {
		return
	}
	toDelete := count - maxEntries

	tx, err := s.db.Conn().Begin()
	if err != nil {
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM history_entries WHERE form_id = ? AND seq < ?`, formID, toDelete,
	); err != nil {
		return
	}
	if _, err := tx.Exec(
		`UPDATE history_entries SET seq = seq - ? WHERE form_id = ?`, toDelete, formID,
	); err != nil {
		return
	}
	var cursor int
	if err := tx.QueryRow(`SELECT cursor FROM history_state WHERE form_id = ?`, formID).Scan(&cursor); err == nil {
		if cursor -= toDelete; cursor < 0 {
			cursor = 0
		}
		setCursor(tx, formID, cursor)
	}
	tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertEntry(tx execer, formID string, seq int, rec domain.CommandRecord) error {
	var metadata any
	if rec.Metadata != nil {
		metadata = string(rec.Metadata)
	}
	_, err := tx.Exec(
		`INSERT INTO history_entries (id, form_id, seq, type, timestamp_ms, description, data_json, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, formID, seq, rec.Type, rec.Timestamp, rec.Description, string(rec.Data), metadata,
	)
	if err != nil {
		return fmt.Errorf("insert history entry %s: %w", rec.ID, err)
	}
	return nil
}

func setCursor(tx execer, formID string, cursor int) error {
	_, err := tx.Exec(
		`INSERT INTO history_state (form_id, cursor) VALUES (?, ?)
		 ON CONFLICT(form_id) DO UPDATE SET cursor = excluded.cursor`,
		formID, cursor,
	)
	if err != nil {
		return fmt.Errorf("update history cursor: %w", err)
	}
	return nil
}
