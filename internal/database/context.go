package database

import "database/sql"

// SetOrganization inserts or replaces the organization profile.
func (db *DB) SetOrganization(org Organization) error {
	_, err := db.conn.Exec(
		`INSERT INTO organization (id, name, meta_description, industry, updated_at)
		VALUES (1, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			meta_description = excluded.meta_description,
			industry = excluded.industry,
			updated_at = excluded.updated_at`,
		org.Name, org.MetaDescription, org.Industry,
	)
	return err
}

// GetOrganization returns the stored organization profile, or nil when none
// has been configured.
func (db *DB) GetOrganization() (*Organization, error) {
	row := db.conn.QueryRow(
		"SELECT name, meta_description, industry, updated_at FROM organization WHERE id = 1",
	)

	var org Organization
	if err := row.Scan(&org.Name, &org.MetaDescription, &org.Industry, &org.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

// SetAIContext inserts or replaces the generation preferences.
func (db *DB) SetAIContext(ctx AIContext) error {
	_, err := db.conn.Exec(
		`INSERT INTO ai_context
		(id, tone, audience, output_format, include_emojis, include_metrics, brevity_level, language, example_output, system_prompt, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			tone = excluded.tone,
			audience = excluded.audience,
			output_format = excluded.output_format,
			include_emojis = excluded.include_emojis,
			include_metrics = excluded.include_metrics,
			brevity_level = excluded.brevity_level,
			language = excluded.language,
			example_output = excluded.example_output,
			system_prompt = excluded.system_prompt,
			updated_at = excluded.updated_at`,
		ctx.Tone, ctx.Audience, ctx.OutputFormat,
		boolToInt(ctx.IncludeEmojis), boolToInt(ctx.IncludeMetrics),
		ctx.BrevityLevel, ctx.Language, ctx.ExampleOutput, ctx.SystemPrompt,
	)
	return err
}

// GetAIContext returns the stored generation preferences, or nil when none
// have been configured.
func (db *DB) GetAIContext() (*AIContext, error) {
	row := db.conn.QueryRow(
		`SELECT tone, audience, output_format, include_emojis, include_metrics, brevity_level, language, example_output, system_prompt, updated_at
		FROM ai_context WHERE id = 1`,
	)

	var ctx AIContext
	var emojis, metrics int
	if err := row.Scan(&ctx.Tone, &ctx.Audience, &ctx.OutputFormat, &emojis, &metrics,
		&ctx.BrevityLevel, &ctx.Language, &ctx.ExampleOutput, &ctx.SystemPrompt, &ctx.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	ctx.IncludeEmojis = emojis != 0
	ctx.IncludeMetrics = metrics != 0
	return &ctx, nil
}

// GetCompleteContext returns the organization profile and generation
// preferences together. Both are optional.
func (db *DB) GetCompleteContext() (*Organization, *AIContext, error) {
	org, err := db.GetOrganization()
	if err != nil {
		return nil, nil, err
	}
	ctx, err := db.GetAIContext()
	if err != nil {
		return nil, nil, err
	}
	return org, ctx, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
