package database

import (
	"database/sql"
	"encoding/json"
)

// InsertDraft stores a generated draft.
func (db *DB) InsertDraft(d Draft) error {
	teams, err := json.Marshal(d.Teams)
	if err != nil {
		return err
	}
	projects, err := json.Marshal(d.Projects)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		`INSERT INTO drafts
		(id, version, release_date, teams, projects, content_markdown, system_prompt, user_prompt, total_issues, unclassified_issues)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Version, d.ReleaseDate, string(teams), string(projects),
		d.ContentMarkdown, d.SystemPrompt, d.UserPrompt, d.TotalIssues, d.UnclassifiedIssues,
	)
	return err
}

// GetDraft returns the draft with the given id, or nil when absent.
func (db *DB) GetDraft(id string) (*Draft, error) {
	row := db.conn.QueryRow(
		`SELECT id, version, release_date, teams, projects, content_markdown, system_prompt, user_prompt, total_issues, unclassified_issues, created_at
		FROM drafts WHERE id = ?`, id,
	)
	return scanDraft(row)
}

// GetAllDrafts returns all drafts, newest first.
func (db *DB) GetAllDrafts() ([]Draft, error) {
	rows, err := db.conn.Query(
		`SELECT id, version, release_date, teams, projects, content_markdown, system_prompt, user_prompt, total_issues, unclassified_issues, created_at
		FROM drafts ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		d, err := scanDraftRow(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, rows.Err()
}

// DeleteDraft removes a draft.
func (db *DB) DeleteDraft(id string) error {
	_, err := db.conn.Exec("DELETE FROM drafts WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row *sql.Row) (*Draft, error) {
	d, err := scanDraftRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func scanDraftRow(row rowScanner) (*Draft, error) {
	var d Draft
	var teams, projects string
	if err := row.Scan(&d.ID, &d.Version, &d.ReleaseDate, &teams, &projects,
		&d.ContentMarkdown, &d.SystemPrompt, &d.UserPrompt,
		&d.TotalIssues, &d.UnclassifiedIssues, &d.CreatedAt); err != nil {
		return nil, err
	}
	if teams != "" {
		json.Unmarshal([]byte(teams), &d.Teams)
	}
	if projects != "" {
		json.Unmarshal([]byte(projects), &d.Projects)
	}
	return &d, nil
}
