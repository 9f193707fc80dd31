package chat

import (
	"context"
	"database/sql"

	"gymcrm-calls/pkg/utils"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) InsertIgnore(ctx context.Context, recs []Record) (int, error) {
	const q = `
INSERT INTO chat_message_history (
  message_id, channel_id, chat_type, chat_id, date_time, type, status, text, content_uri,
  author_id, author_name, is_echo, contact_name, contact_username, contact_phone,
  error, quoted_message, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)
ON CONFLICT (message_id) DO NOTHING
`
	inserted := 0
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rec := range recs {
			res, err := stmt.ExecContext(ctx,
				rec.MessageID,
				rec.ChannelID,
				rec.ChatType,
				rec.ChatID,
				rec.SentAt,
				rec.Type,
				rec.Status,
				rec.Text,
				rec.ContentURI,
				rec.AuthorID,
				rec.AuthorName,
				rec.IsEcho,
				rec.ContactName,
				rec.ContactUsername,
				rec.ContactPhone,
				nullJSON(rec.Error),
				nullJSON(rec.QuotedMessage),
				rec.CreatedAt,
				rec.UpdatedAt,
			)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
