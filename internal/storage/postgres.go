package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"formbuilder/internal/domain"
)

// PostgresDB is the shared-database backend: same store surface as the
// SQLite default, for deployments where several editors point at one server.
type PostgresDB struct {
	conn *sql.DB
}

// NewPostgres opens a Postgres connection from a lib/pq DSN and applies
// migrations.
func NewPostgres(dsn string) (*PostgresDB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &PostgresDB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *PostgresDB) Close() error {
	return db.conn.Close()
}

func (db *PostgresDB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT 'Untitled form',
			description TEXT NOT NULL DEFAULT '',
			canvas_width DOUBLE PRECISION NOT NULL DEFAULT 1200,
			canvas_height DOUBLE PRECISION NOT NULL DEFAULT 2000,
			zoom DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			show_grid BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS elements (
			id TEXT PRIMARY KEY,
			form_id TEXT NOT NULL REFERENCES forms(id),
			type TEXT NOT NULL DEFAULT 'text',
			label TEXT NOT NULL DEFAULT '',
			placeholder TEXT NOT NULL DEFAULT '',
			required BOOLEAN NOT NULL DEFAULT FALSE,
			x DOUBLE PRECISION NOT NULL DEFAULT 0,
			y DOUBLE PRECISION NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			validation_json JSONB NOT NULL DEFAULT '[]',
			style_json JSONB NOT NULL DEFAULT '{}',
			properties_json JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_elements_form ON elements(form_id)`,
		`CREATE TABLE IF NOT EXISTS history_entries (
			id TEXT NOT NULL,
			form_id TEXT NOT NULL REFERENCES forms(id),
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			timestamp_ms BIGINT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			data_json JSONB NOT NULL DEFAULT '{}',
			metadata_json JSONB,
			PRIMARY KEY (form_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS history_state (
			form_id TEXT PRIMARY KEY REFERENCES forms(id),
			cursor INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", m[:40], err)
		}
	}
	return nil
}

// PostgresFormStore implements domain.FormStore against Postgres.
type PostgresFormStore struct {
	db *PostgresDB
}

func NewPostgresFormStore(db *PostgresDB) *PostgresFormStore {
	return &PostgresFormStore{db: db}
}

func (s *PostgresFormStore) SaveForm(st *domain.FormBuilderState) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.Exec(
		`INSERT INTO forms (id, title, description, canvas_width, canvas_height, zoom, show_grid, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			canvas_width = EXCLUDED.canvas_width,
			canvas_height = EXCLUDED.canvas_height,
			zoom = EXCLUDED.zoom,
			show_grid = EXCLUDED.show_grid,
			updated_at = EXCLUDED.updated_at`,
		st.FormID, st.Title, st.Description, st.Canvas.Width, st.Canvas.Height, st.Zoom, st.ShowGrid, now,
	)
	if err != nil {
		return fmt.Errorf("upsert form: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM elements WHERE form_id = $1`, st.FormID); err != nil {
		return fmt.Errorf("delete elements: %w", err)
	}
	for _, e := range st.Elements {
		validation, err := json.Marshal(orEmptyRules(e.Validation))
		if err != nil {
			return fmt.Errorf("marshal validation for %s: %w", e.ID, err)
		}
		style, err := json.Marshal(e.Style)
		if err != nil {
			return fmt.Errorf("marshal style for %s: %w", e.ID, err)
		}
		properties, err := json.Marshal(orEmptyMap(e.Properties))
		if err != nil {
			return fmt.Errorf("marshal properties for %s: %w", e.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO elements (id, form_id, type, label, placeholder, required, x, y, sort_order, validation_json, style_json, properties_json, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			e.ID, st.FormID, e.Type, e.Label, e.Placeholder, e.Required,
			e.Position.X, e.Position.Y, e.Position.Order,
			string(validation), string(style), string(properties),
			e.CreatedAt, now,
		)
		if err != nil {
			return fmt.Errorf("insert element %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresFormStore) LoadForm(formID string) (*domain.FormBuilderState, error) {
	st := &domain.FormBuilderState{FormID: formID, Zoom: 1.0}
	err := s.db.conn.QueryRow(
		`SELECT title, description, canvas_width, canvas_height, zoom, show_grid, updated_at FROM forms WHERE id = $1`,
		formID,
	).Scan(&st.Title, &st.Description, &st.Canvas.Width, &st.Canvas.Height, &st.Zoom, &st.ShowGrid, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get form: %w", err)
	}

	rows, err := s.db.conn.Query(
		`SELECT id, type, label, placeholder, required, x, y, sort_order, validation_json, style_json, properties_json, created_at, updated_at
		 FROM elements WHERE form_id = $1 ORDER BY sort_order ASC`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st.Elements = []domain.FormElement{}
	for rows.Next() {
		var e domain.FormElement
		var validation, style, properties string
		if err := rows.Scan(&e.ID, &e.Type, &e.Label, &e.Placeholder, &e.Required,
			&e.Position.X, &e.Position.Y, &e.Position.Order,
			&validation, &style, &properties, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.FormID = formID
		if err := json.Unmarshal([]byte(validation), &e.Validation); err != nil {
			return nil, fmt.Errorf("decode validation for %s: %w", e.ID, err)
		}
		if len(e.Validation) == 0 {
			e.Validation = nil
		}
		if err := json.Unmarshal([]byte(style), &e.Style); err != nil {
			return nil, fmt.Errorf("decode style for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(properties), &e.Properties); err != nil {
			return nil, fmt.Errorf("decode properties for %s: %w", e.ID, err)
		}
		if len(e.Properties) == 0 {
			e.Properties = nil
		}
		st.Elements = append(st.Elements, e)
	}
	return st, rows.Err()
}

func (s *PostgresFormStore) DeleteForm(formID string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM history_entries WHERE form_id = $1`,
		`DELETE FROM history_state WHERE form_id = $1`,
		`DELETE FROM elements WHERE form_id = $1`,
		`DELETE FROM forms WHERE id = $1`,
	} {
		if _, err := tx.Exec(q, formID); err != nil {
			return fmt.Errorf("delete form %s: %w", formID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresFormStore) ListForms() ([]domain.FormSummary, error) {
	rows, err := s.db.conn.Query(
		`SELECT f.id, f.title, COUNT(e.id), f.updated_at
		 FROM forms f LEFT JOIN elements e ON e.form_id = f.id
		 GROUP BY f.id ORDER BY f.updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []domain.FormSummary
	for rows.Next() {
		var f domain.FormSummary
		if err := rows.Scan(&f.ID, &f.Title, &f.ElementCount, &f.UpdatedAt); err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// PostgresHistoryStore implements domain.HistoryStore against Postgres.
type PostgresHistoryStore struct {
	db *PostgresDB
}

func NewPostgresHistoryStore(db *PostgresDB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (s *PostgresHistoryStore) Append(formID string, rec domain.CommandRecord) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var cursor int
	err = tx.QueryRow(`SELECT cursor FROM history_state WHERE form_id = $1`, formID).Scan(&cursor)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read cursor: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM history_entries WHERE form_id = $1 AND seq >= $2`, formID, cursor); err != nil {
		return fmt.Errorf("drop redo entries: %w", err)
	}
	if err := pgInsertEntry(tx, formID, cursor, rec); err != nil {
		return err
	}
	if err := pgSetCursor(tx, formID, cursor+1); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresHistoryStore) Replace(formID string, recs []domain.CommandRecord, cursor int) error {
	if cursor < 0 || cursor > len(recs) {
		return fmt.Errorf("replace history: cursor %d out of range", cursor)
	}
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM history_entries WHERE form_id = $1`, formID); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	for i, rec := range recs {
		if err := pgInsertEntry(tx, formID, i, rec); err != nil {
			return err
		}
	}
	if err := pgSetCursor(tx, formID, cursor); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresHistoryStore) Load(formID string) ([]domain.CommandRecord, int, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, type, timestamp_ms, description, data_json, metadata_json
		 FROM history_entries WHERE form_id = $1 ORDER BY seq ASC`, formID,
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
	err = s.db.conn.QueryRow(`SELECT cursor FROM history_state WHERE form_id = $1`, formID).Scan(&cursor)
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

func (s *PostgresHistoryStore) SetCursor(formID string, cursor int) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO history_state (form_id, cursor) VALUES ($1, $2)
		 ON CONFLICT (form_id) DO UPDATE SET cursor = EXCLUDED.cursor`,
		formID, cursor,
	)
	return err
}

func (s *PostgresHistoryStore) Clear(formID string) error {
	_, _ = s.db.conn.Exec(`DELETE FROM history_state WHERE form_id = $1`, formID)
	_, err := s.db.conn.Exec(`DELETE FROM history_entries WHERE form_id = $1`, formID)
	return err
}

func pgInsertEntry(tx execer, formID string, seq int, rec domain.CommandRecord) error {
	var metadata any
	if rec.Metadata != nil {
		metadata = string(rec.Metadata)
	}
	data := string(rec.Data)
	if data == "" {
		data = "{}"
	}
	_, err := tx.Exec(
		`INSERT INTO history_entries (id, form_id, seq, type, timestamp_ms, description, data_json, metadata_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, formID, seq, rec.Type, rec.Timestamp, rec.Description, data, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert history entry %s: %w", rec.ID, err)
	}
	return nil
}

func pgSetCursor(tx execer, formID string, cursor int) error {
	_, err := tx.Exec(
		`INSERT INTO history_state (form_id, cursor) VALUES ($1, $2)
		 ON CONFLICT (form_id) DO UPDATE SET cursor = EXCLUDED.cursor`,
		formID, cursor,
	)
	if err != nil {
		return fmt.Errorf("update history cursor: %w", err)
	}
	return nil
}
