package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/teamtrack/internal/model"
)

// companiesInviteCodeKey は招待コードの一意制約名。
const companiesInviteCodeKey = "companies_invite_code_key"

// PostgresCompanyRepo はPostgreSQLを使用した企業リポジトリ。
type PostgresCompanyRepo struct {
	db *sql.DB
}

// NewPostgresCompanyRepo はPostgresCompanyRepoを生成する。
func NewPostgresCompanyRepo(db *sql.DB) *PostgresCompanyRepo {
	return &PostgresCompanyRepo{db: db}
}

// FindByID は指定IDの企業を取得する。見つからない場合はnilを返す。
func (r *PostgresCompanyRepo) FindByID(ctx context.Context, id string) (*model.Company, error) {
	company := &model.Company{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, invite_code, created_at FROM companies WHERE id = $1`,
		id,
	).Scan(&company.ID, &company.Name, &company.InviteCode, &company.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company by ID: %w", err)
	}
	return company, nil
}

// FindByInviteCode は招待コードで企業を取得する。見つからない場合はnilを返す。
func (r *PostgresCompanyRepo) FindByInviteCode(ctx context.Context, inviteCode string) (*model.Company, error) {
	company := &model.Company{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, invite_code, created_at FROM companies WHERE invite_code = $1`,
		inviteCode,
	).Scan(&company.ID, &company.Name, &company.InviteCode, &company.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company by invite code: %w", err)
	}
	return company, nil
}

// CreateWithOwner は企業の作成と作成者の所属設定を同一トランザクションで行う。
func (r *PostgresCompanyRepo) CreateWithOwner(ctx context.Context, company *model.Company, ownerUserID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 企業を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO companies (id, name, invite_code, created_at) VALUES ($1, $2, $3, $4)`,
		company.ID, company.Name, company.InviteCode, company.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, companiesInviteCodeKey) {
			return ErrDuplicateInviteCode
		}
		return fmt.Errorf("failed to insert company: %w", err)
	}

	// 作成者を所属させる
	result, err := tx.ExecContext(ctx,
		`UPDATE users SET company_id = $2, updated_at = now() WHERE id = $1`,
		ownerUserID, company.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign company owner: %w", err)
	}
	if err := requireRowsAffected(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CompanyRepository = (*PostgresCompanyRepo)(nil)
