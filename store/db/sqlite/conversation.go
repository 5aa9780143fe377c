package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/smartlibrarian/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	if create.TitleSource == "" {
		create.TitleSource = store.TitleSourceDefault
	}
	stmt := `INSERT INTO conversation (uid, owner_id, title, title_source, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID, create.OwnerID, create.Title, create.TitleSource, create.CreatedTs, create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "c.id = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "c.uid = ?"), append(args, *v)
	}
	if v := find.OwnerID; v != nil {
		where, args = append(where, "c.owner_id = ?"), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.id, c.uid, c.owner_id, c.title, c.title_source, c.created_ts, c.updated_ts,
			COUNT(m.id) AS message_count
		FROM conversation c
		LEFT JOIN conversation_message m ON m.conversation_id = c.id
		WHERE `+strings.Join(where, " AND ")+`
		GROUP BY c.id
		ORDER BY c.updated_ts DESC, c.id DESC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		c := &store.Conversation{}
		if err := rows.Scan(&c.ID, &c.UID, &c.OwnerID, &c.Title, &c.TitleSource, &c.CreatedTs, &c.UpdatedTs, &c.MessageCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "title = ?"), append(args, *v)
	}
	if v := update.TitleSource; v != nil {
		set, args = append(set, "title_source = ?"), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *v)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	where := []string{"id = ?"}
	args = append(args, update.ID)
	if v := update.OnlyIfTitleSource; v != nil {
		where, args = append(where, "title_source = ?"), append(args, *v)
	}

	result := &store.Conversation{}
	err := d.db.QueryRowContext(ctx, `UPDATE conversation SET `+strings.Join(set, ", ")+
		` WHERE `+strings.Join(where, " AND ")+
		` RETURNING id, uid, owner_id, title, title_source, created_ts, updated_ts`, args...).Scan(
		&result.ID, &result.UID, &result.OwnerID, &result.Title, &result.TitleSource, &result.CreatedTs, &result.UpdatedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound("conversation", update.ID)
		}
		return nil, errors.Wrap(err, "failed to update conversation")
	}
	return result, nil
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM conversation WHERE id = ? AND owner_id = ?`, delete.ID, delete.OwnerID)
	if err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("conversation", delete.ID)
	}
	return nil
}

func (d *DB) CreateConversationMessage(ctx context.Context, create *store.ConversationMessage) (*store.ConversationMessage, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `UPDATE conversation SET updated_ts = ? WHERE id = ?`, create.CreatedTs, create.ConversationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to touch conversation")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, notFound("conversation", create.ConversationID)
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO conversation_message (conversation_id, role, content, created_ts)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		create.ConversationID, create.Role, create.Content, create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation message")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit conversation message")
	}
	return create, nil
}

func (d *DB) ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_ts
		FROM conversation_message
		WHERE conversation_id = ?
		ORDER BY id ASC`, find.ConversationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation messages")
	}
	defer rows.Close()

	list := make([]*store.ConversationMessage, 0)
	for rows.Next() {
		m := &store.ConversationMessage{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation message")
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
