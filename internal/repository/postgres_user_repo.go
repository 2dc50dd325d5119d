package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/teamtrack/internal/model"
)

// usersExternalIdentityKey は外部IdP識別子の一意制約名。
const usersExternalIdentityKey = "users_external_identity_id_key"

const userColumns = `id, external_identity_id, name, role, avatar_ref, company_id, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByExternalIdentityID は外部IdPの識別子でユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByExternalIdentityID(ctx context.Context, externalID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_identity_id = $1`,
		externalID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by external identity: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, external_identity_id, name, role, avatar_ref, company_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.ExternalIdentityID, user.Name, user.Role, user.AvatarRef,
		nullString(user.CompanyID), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, usersExternalIdentityKey) {
			return ErrDuplicateExternalIdentity
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile はプロフィール項目を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, role = $3, avatar_ref = $4, updated_at = $5 WHERE id = $1`,
		user.ID, user.Name, user.Role, user.AvatarRef, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return requireRowsAffected(result)
}

// SetCompany はユーザーの所属企業を設定する。
func (r *PostgresUserRepo) SetCompany(ctx context.Context, userID string, companyID *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET company_id = $2, updated_at = now() WHERE id = $1`,
		userID, nullString(companyID),
	)
	if err != nil {
		return fmt.Errorf("failed to set user company: %w", err)
	}
	return requireRowsAffected(result)
}

// ListByCompanyID は指定企業に所属する全ユーザーを名前順で返す。
func (r *PostgresUserRepo) ListByCompanyID(ctx context.Context, companyID string) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = $1 ORDER BY name ASC, id ASC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by company: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// scanUser は1行分のユーザーを読み取る。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var companyID sql.NullString
	if err := row.Scan(
		&user.ID, &user.ExternalIdentityID, &user.Name, &user.Role, &user.AvatarRef,
		&companyID, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.CompanyID = stringPtr(companyID)
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
