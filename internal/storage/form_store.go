package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"formbuilder/internal/domain"
)

// FormStore implements domain.FormStore using SQLite. Elements are stored
// row-per-element; list-valued element fields (validation, style, free-form
// properties) are JSON columns.
type FormStore struct {
	db *DB
}

func NewFormStore(db *DB) *FormStore {
	return &FormStore{db: db}
}

// SaveForm upserts the form row and atomically replaces its elements with
// the in-memory collection. Selection and element order are runtime state;
// order persists via sort_order, selection does not persist at all.
func (s *FormStore) SaveForm(st *domain.FormBuilderState) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.Exec(
		`INSERT INTO forms (id, title, description, canvas_width, canvas_height, zoom, show_grid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			canvas_width = excluded.canvas_width,
			canvas_height = excluded.canvas_height,
			zoom = excluded.zoom,
			show_grid = excluded.show_grid,
			updated_at = excluded.updated_at`,
		st.FormID, st.Title, st.Description, st.Canvas.Width, st.Canvas.Height, st.Zoom, st.ShowGrid, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert form: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM elements WHERE form_id = ?`, st.FormID); err != nil {
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
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

// LoadForm restores a form state with its elements in sort_order. The loaded
// state has no selection and zeroed transient flags beyond what persists.
func (s *FormStore) LoadForm(formID string) (*domain.FormBuilderState, error) {
	st := &domain.FormBuilderState{FormID: formID, Zoom: 1.0}
	err := s.db.Conn().QueryRow(
		`SELECT title, description, canvas_width, canvas_height, zoom, show_grid, updated_at FROM forms WHERE id = ?`,
		formID,
	).Scan(&st.Title, &st.Description, &st.Canvas.Width, &st.Canvas.Height, &st.Zoom, &st.ShowGrid, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get form: %w", err)
	}

	rows, err := s.db.Conn().Query(
		`SELECT id, type, label, placeholder, required, x, y, sort_order, validation_json, style_json, properties_json, created_at, updated_at
		 FROM elements WHERE form_id = ? ORDER BY sort_order ASC`,
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

// DeleteForm removes the form, its elements, and its history.
func (s *FormStore) DeleteForm(formID string) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM history_entries WHERE form_id = ?`,
		`DELETE FROM history_state WHERE form_id = ?`,
		`DELETE FROM elements WHERE form_id = ?`,
		`DELETE FROM forms WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, formID); err != nil {
			return fmt.Errorf("delete form %s: %w", formID, err)
		}
	}
	return tx.Commit()
}

// ListForms returns summaries of all saved forms, most recently updated first.
func (s *FormStore) ListForms() ([]domain.FormSummary, error) {
	rows, err := s.db.Conn().Query(
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

func orEmptyRules(rules []domain.ValidationRule) []domain.ValidationRule {
	if rules == nil {
		return []domain.ValidationRule{}
	}
	return rules
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
