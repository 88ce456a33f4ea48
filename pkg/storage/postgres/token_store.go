package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/geniusharmony/harmony/pkg/storage"
)

const (
	putTokensQuery = `
INSERT INTO harmony.session_token (
  id, profile, username, access_token, refresh_token, date_added, date_modified, expires_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (profile) DO UPDATE
SET
  username = EXCLUDED.username,
  access_token = EXCLUDED.access_token,
  refresh_token = EXCLUDED.refresh_token,
  date_modified = EXCLUDED.date_modified,
  expires_at = EXCLUDED.expires_at
`

	getTokensQuery = `
SELECT
  id::text, profile, username, access_token, refresh_token, date_added, date_modified, expires_at
FROM harmony.session_token
WHERE profile = $1
`

	deleteTokensQuery = `DELETE FROM harmony.session_token WHERE profile = $1`
)

func (a *Adapter) PutTokens(ctx context.Context, record storage.TokenRecord) error {
	if err := a.requirePreparedStatements(); err != nil {
		return err
	}
	if record.Profile == "" {
		return errors.New("postgres adapter: profile is required")
	}

	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	dateAdded := record.DateAdded
	if dateAdded.IsZero() {
		dateAdded = time.Now().UTC()
	}

	dateModified := time.Now().UTC()
	if record.DateModified != nil {
		dateModified = record.DateModified.UTC()
	}

	_, err := a.stmts.putTokens.ExecContext(
		ctx,
		id,
		record.Profile,
		record.Username,
		record.AccessToken,
		record.RefreshToken,
		dateAdded,
		dateModified,
		record.ExpiresAt,
	)
	return err
}

func (a *Adapter) GetTokens(ctx context.Context, profile string) (storage.TokenRecord, error) {
	if err := a.requirePreparedStatements(); err != nil {
		return storage.TokenRecord{}, err
	}

	record, err := scanTokens(a.stmts.getTokens.QueryRowContext(ctx, profile))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.TokenRecord{}, storage.ErrNotFound
	}
	return record, err
}

func (a *Adapter) DeleteTokens(ctx context.Context, profile string) error {
	if err := a.requirePreparedStatements(); err != nil {
		return err
	}

	_, err := a.stmts.deleteTokens.ExecContext(ctx, profile)
	return err
}

func scanTokens(s scanner) (storage.TokenRecord, error) {
	var (
		record       storage.TokenRecord
		dateModified sql.NullTime
		expiresAt    sql.NullTime
	)

	if err := s.Scan(
		&record.ID,
		&record.Profile,
		&record.Username,
		&record.AccessToken,
		&record.RefreshToken,
		&record.DateAdded,
		&dateModified,
		&expiresAt,
	); err != nil {
		return storage.TokenRecord{}, err
	}

	record.DateAdded = record.DateAdded.UTC()
	if dateModified.Valid {
		t := dateModified.Time.UTC()
		record.DateModified = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		record.ExpiresAt = &t
	}

	return record, nil
}
