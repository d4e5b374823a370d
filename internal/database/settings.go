package database

import (
	"context"
	"encoding/json"
)

const getSetting = `
SELECT key, value, updated_at FROM app_settings WHERE key = $1`

// GetSetting returns pgx.ErrNoRows when the key has never been written.
func (q *Queries) GetSetting(ctx context.Context, key string) (Setting, error) {
	var s Setting
	err := q.db.QueryRow(ctx, getSetting, key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}

const upsertSetting = `
INSERT INTO app_settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
RETURNING key, value, updated_at`

type UpsertSettingParams struct {
	Key   string
	Value json.RawMessage
}

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) (Setting, error) {
	var s Setting
	err := q.db.QueryRow(ctx, upsertSetting, arg.Key, arg.Value).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	return s, err
}
