package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hrygo/smartlibrarian/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	if create.TitleSource == "" {
		create.TitleSource = store.TitleSourceDefault
	}
	fields := []string{"uid", "owner_id", "title", "title_source", "created_ts", "updated_ts"}
	args := []any{create.UID, create.OwnerID, create.Title, create.TitleSource, create.CreatedTs, create.UpdatedTs}
	stmt := `INSERT INTO conversation (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	query, args := listConversationsQuery(find)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		c := &store.Conversation{}
		if err := rows.Scan(&c.ID, &c.UID, &c.OwnerID, &c.Title, &c.TitleSource, &c.CreatedTs, &c.UpdatedTs, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return list, nil
}

func listConversationsQuery(find *store.FindConversation) (string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "c.id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "c.uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.OwnerID != nil {
		where, args = append(where, "c.owner_id = "+placeholder(len(args)+1)), append(args, *find.OwnerID)
	}

	query := `
		SELECT
			c.id, c.uid, c.owner_id, c.title, c.title_source, c.created_ts, c.updated_ts,
			COUNT(m.id) AS message_count
		FROM conversation c
		LEFT JOIN conversation_message m ON m.conversation_id = c.id
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY c.id
		ORDER BY c.updated_ts DESC, c.id DESC`
	return query, args
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	stmt, args, err := updateConversationStmt(update)
	if err != nil {
		return nil, err
	}
	result := &store.Conversation{}
	err = d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&result.ID, &result.UID, &result.OwnerID, &result.Title, &result.TitleSource, &result.CreatedTs, &result.UpdatedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return result, nil
}

// updateConversationStmt builds the UPDATE. With OnlyIfTitleSource set, a
// row whose title_source differs is left alone and no row is returned.
func updateConversationStmt(update *store.UpdateConversation) (string, []any, error) {
	set, args := []string{}, []any{}

	if update.Title != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *update.Title)
	}
	if update.TitleSource != nil {
		set, args = append(set, "title_source = "+placeholder(len(args)+1)), append(args, *update.TitleSource)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	where := []string{"id = " + placeholder(len(args)+1)}
	args = append(args, update.ID)
	if update.OnlyIfTitleSource != nil {
		where, args = append(where, "title_source = "+placeholder(len(args)+1)), append(args, *update.OnlyIfTitleSource)
	}

	stmt := `UPDATE conversation SET ` + strings.Join(set, ", ") + ` WHERE ` + strings.Join(where, " AND ") +
		` RETURNING id, uid, owner_id, title, title_source, created_ts, updated_ts`
	return stmt, args, nil
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	// conversation_message rows cascade.
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM conversation WHERE id = `+placeholder(1)+` AND owner_id = `+placeholder(2),
		delete.ID, delete.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateConversationMessage appends a message and bumps the parent
// conversation's updated_ts in one transaction.
func (d *DB) CreateConversationMessage(ctx context.Context, create *store.ConversationMessage) (*store.ConversationMessage, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	stmt := `INSERT INTO conversation_message (conversation_id, role, content, created_ts)
		VALUES (` + placeholders(4) + `)
		RETURNING id`
	if err := tx.QueryRowContext(ctx, stmt, create.ConversationID, create.Role, create.Content, create.CreatedTs).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create conversation_message: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE conversation SET updated_ts = `+placeholder(1)+` WHERE id = `+placeholder(2),
		create.CreatedTs, create.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation_message: %w", err)
	}
	return create, nil
}

func (d *DB) ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_ts
		FROM conversation_message
		WHERE conversation_id = `+placeholder(1)+`
		ORDER BY id ASC`, find.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation_messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ConversationMessage, 0)
	for rows.Next() {
		m := &store.ConversationMessage{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan conversation_message: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation_messages: %w", err)
	}
	return list, nil
}
