package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/teamtrack/internal/model"
)

const sessionColumns = `id, user_id, project_name, start_time, end_time, tokens_input, tokens_output, status`

// PostgresSessionRepo はPostgreSQLを使用した作業セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	var endTime sql.NullTime
	if session.EndTime != nil {
		endTime = sql.NullTime{Time: *session.EndTime, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, project_name, start_time, end_time, tokens_input, tokens_output, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.UserID, session.ProjectName, session.StartTime,
		endTime, nullInt64(session.TokensInput), nullInt64(session.TokensOutput), session.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Complete は計測中のセッションを終了済みに更新する。
// 条件付きUPDATEで遷移させ、対象行がなければ存在有無で
// ErrNotFoundとErrAlreadyCompletedを区別する。
func (r *PostgresSessionRepo) Complete(
	ctx context.Context,
	id string,
	endTime time.Time,
	tokensInput, tokensOutput int64,
) (*model.Session, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx,
		`UPDATE sessions
		 SET end_time = $2, tokens_input = $3, tokens_output = $4, status = $5
		 WHERE id = $1 AND status = $6
		 RETURNING `+sessionColumns,
		id, endTime, tokensInput, tokensOutput,
		model.SessionStatusCompleted, model.SessionStatusActive,
	))
	if err == nil {
		return session, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	return nil, ErrAlreadyCompleted
}

// ListActiveByUserID はユーザーの計測中セッションを開始日時の昇順で返す。
func (r *PostgresSessionRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*model.Session, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND status = $2
		 ORDER BY start_time ASC, id ASC`,
		userID, model.SessionStatusActive,
	)
}

// ListActiveByUserIDs は指定ユーザー群の計測中セッションを開始日時の昇順で返す。
func (r *PostgresSessionRepo) ListActiveByUserIDs(ctx context.Context, userIDs []string) ([]*model.Session, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ANY($1::uuid[]) AND status = $2
		 ORDER BY start_time ASC, id ASC`,
		pq.Array(userIDs), model.SessionStatusActive,
	)
}

// ListActive は全ユーザーの計測中セッションを開始日時の昇順で返す。
func (r *PostgresSessionRepo) ListActive(ctx context.Context) ([]*model.Session, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE status = $1
		 ORDER BY start_time ASC, id ASC`,
		model.SessionStatusActive,
	)
}

// ListByUserID はユーザーのセッションを(start_time, id)の降順で返す。
// cursorがnilの場合は先頭から取得する。
func (r *PostgresSessionRepo) ListByUserID(
	ctx context.Context,
	userID string,
	cursor *HistoryCursor,
	limit int,
) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1`
	args := []interface{}{userID}
	argIndex := 2

	// キーセットページネーション
	if cursor != nil {
		query += fmt.Sprintf(" AND (start_time, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursor.StartTime, cursor.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY start_time DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	return r.query(ctx, query, args...)
}

// ListCompletedSince は指定ユーザー群の終了済みセッションのうち開始日時がsince以降のものを返す。
func (r *PostgresSessionRepo) ListCompletedSince(ctx context.Context, userIDs []string, since time.Time) ([]*model.Session, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ANY($1::uuid[]) AND status = $2 AND start_time >= $3
		 ORDER BY start_time DESC, id DESC`,
		pq.Array(userIDs), model.SessionStatusCompleted, since,
	)
}

func (r *PostgresSessionRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*model.Session, error) {
	session := &model.Session{}
	var endTime sql.NullTime
	var tokensInput, tokensOutput sql.NullInt64
	if err := row.Scan(
		&session.ID, &session.UserID, &session.ProjectName, &session.StartTime,
		&endTime, &tokensInput, &tokensOutput, &session.Status,
	); err != nil {
		return nil, err
	}
	session.EndTime = timePtrFromNull(endTime)
	session.TokensInput = int64PtrFromNull(tokensInput)
	session.TokensOutput = int64PtrFromNull(tokensOutput)
	return session, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
