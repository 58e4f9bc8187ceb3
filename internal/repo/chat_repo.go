package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/dbutil"
	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
)

// ChatRepo stores conversation history per session.
type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) Append(ctx context.Context, sessionID, role, content string, ctime int64) error {
	data := map[string]interface{}{
		"session_id": sessionID,
		"role":       role,
		"content":    content,
		"ctime":      ctime,
	}
	sqlStr, args, err := builder.BuildInsert("chat_messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListMessages returns the most recent limit messages for a session in
// chronological order. limit <= 0 returns all of them.
func (r *ChatRepo) ListMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	query := `
		SELECT role, content, ctime
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY id DESC
	`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		var ctime int64
		if err := rows.Scan(&msg.Role, &msg.Content, &ctime); err != nil {
			return nil, err
		}
		msg.Timestamp = time.Unix(ctime, 0).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Trim drops the oldest messages of a session beyond keep.
func (r *ChatRepo) Trim(ctx context.Context, sessionID string, keep int) error {
	const query = `
		DELETE FROM chat_messages
		WHERE session_id = $1 AND id NOT IN (
			SELECT id FROM chat_messages
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		)
	`
	_, err := r.db.ExecContext(ctx, query, sessionID, keep)
	return err
}

func (r *ChatRepo) ListSessions(ctx context.Context) ([]model.SessionInfo, error) {
	const query = `
		SELECT session_id, COUNT(*), MAX(ctime)
		FROM chat_messages
		GROUP BY session_id
		ORDER BY MAX(ctime) DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.SessionInfo
	for rows.Next() {
		var info model.SessionInfo
		var last int64
		if err := rows.Scan(&info.SessionID, &info.MessageCount, &last); err != nil {
			return nil, err
		}
		info.LastActivity = time.Unix(last, 0).UTC()
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

func (r *ChatRepo) DeleteSession(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM chat_messages WHERE session_id = $1`
	res, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteIdleBefore removes every session whose latest message is older
// than cutoff.
func (r *ChatRepo) DeleteIdleBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `
		DELETE FROM chat_messages
		WHERE session_id IN (
			SELECT session_id FROM chat_messages
			GROUP BY session_id
			HAVING MAX(ctime) < $1
		)
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
