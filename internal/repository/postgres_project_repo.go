package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/teamtrack/internal/model"
)

const projectColumns = `id, company_id, name, description, repository_url, created_at, updated_at`

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	project, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	return project, nil
}

// ListByCompanyID は企業のプロジェクト一覧を作成日時の昇順で返す。
func (r *PostgresProjectRepo) ListByCompanyID(ctx context.Context, companyID string) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE company_id = $1 ORDER BY created_at ASC, id ASC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("プロジェクトの読み取りに失敗しました: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の走査に失敗しました: %w", err)
	}
	return projects, nil
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, project *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, company_id, name, description, repository_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		project.ID, project.CompanyID, project.Name,
		nullString(project.Description), nullString(project.RepositoryURL),
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はプロジェクトの編集可能な項目を更新する。
func (r *PostgresProjectRepo) Update(ctx context.Context, project *model.Project) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = $2, description = $3, repository_url = $4, updated_at = $5
		 WHERE id = $1`,
		project.ID, project.Name,
		nullString(project.Description), nullString(project.RepositoryURL),
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロジェクトの更新に失敗しました: %w", err)
	}
	return requireRowsAffected(result)
}

// Delete はプロジェクトを削除する。
func (r *PostgresProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}
	return requireRowsAffected(result)
}

func scanProject(row rowScanner) (*model.Project, error) {
	project := &model.Project{}
	var description, repositoryURL sql.NullString
	if err := row.Scan(
		&project.ID, &project.CompanyID, &project.Name, &description, &repositoryURL,
		&project.CreatedAt, &project.UpdatedAt,
	); err != nil {
		return nil, err
	}
	project.Description = stringPtr(description)
	project.RepositoryURL = stringPtr(repositoryURL)
	return project, nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
