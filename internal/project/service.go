// Package project はチームに属するプロジェクト登録簿のドメインロジックを提供する。
//
// セッションはプロジェクトを名前のスナップショットで参照するため、
// ここでの改名・削除は既存のセッションに影響しない。
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/repository"
	"github.com/hitoshi/teamtrack/internal/security"
)

// maxProjectNameLength はプロジェクト名の最大文字数。
const maxProjectNameLength = 255

// CreateInput はプロジェクト作成の入力。
type CreateInput struct {
	Name          string
	Description   string
	RepositoryURL string
}

// UpdateInput はプロジェクト更新の入力。nilのフィールドは変更しない。
// 空文字列を指定した説明文とリポジトリURLは削除される。
type UpdateInput struct {
	Name          *string
	Description   *string
	RepositoryURL *string
}

// Service はプロジェクト管理のサービス層。
// 全操作は呼び出し元のチームにスコープされ、他チームのプロジェクトは存在しないものとして扱う。
type Service struct {
	projectRepo repository.ProjectRepository
	sanitizer   security.Sanitizer
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(projectRepo repository.ProjectRepository, sanitizer security.Sanitizer) *Service {
	return &Service{
		projectRepo: projectRepo,
		sanitizer:   sanitizer,
		now:         time.Now,
	}
}

// Create はチームにプロジェクトを作成する。
func (s *Service) Create(ctx context.Context, companyID string, input CreateInput) (*model.Project, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	repoURL, err := validateRepositoryURL(input.RepositoryURL)
	if err != nil {
		return nil, err
	}

	now := s.now()
	project := &model.Project{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		Name:          name,
		Description:   s.sanitizeDescription(input.Description),
		RepositoryURL: repoURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}

	slog.Info("プロジェクトを作成しました",
		slog.String("project_id", project.ID),
		slog.String("company_id", companyID),
	)
	return project, nil
}

// Update はプロジェクトの指定された項目のみを更新する。
func (s *Service) Update(ctx context.Context, companyID, projectID string, input UpdateInput) (*model.Project, error) {
	project, err := s.Get(ctx, companyID, projectID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		project.Name = name
	}
	if input.RepositoryURL != nil {
		repoURL, err := validateRepositoryURL(*input.RepositoryURL)
		if err != nil {
			return nil, err
		}
		project.RepositoryURL = repoURL
	}
	if input.Description != nil {
		project.Description = s.sanitizeDescription(*input.Description)
	}
	project.UpdatedAt = s.now()

	if err := s.projectRepo.Update(ctx, project); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProjectNotFoundError(projectID)
		}
		return nil, fmt.Errorf("プロジェクトの更新に失敗しました: %w", err)
	}
	return project, nil
}

// Delete はプロジェクトを削除する。同名で記録されたセッションはそのまま残る。
func (s *Service) Delete(ctx context.Context, companyID, projectID string) error {
	if _, err := s.Get(ctx, companyID, projectID); err != nil {
		return err
	}

	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewProjectNotFoundError(projectID)
		}
		return fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}

	slog.Info("プロジェクトを削除しました",
		slog.String("project_id", projectID),
		slog.String("company_id", companyID),
	)
	return nil
}

// List はチームのプロジェクト一覧を作成日時の昇順で返す。
func (s *Service) List(ctx context.Context, companyID string) ([]*model.Project, error) {
	projects, err := s.projectRepo.ListByCompanyID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	return projects, nil
}

// Get はチーム内の指定プロジェクトを返す。
func (s *Service) Get(ctx context.Context, companyID, projectID string) (*model.Project, error) {
	if uuid.Validate(projectID) != nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil || project.CompanyID != companyID {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return project, nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxProjectNameLength {
		return "", model.NewInvalidProjectNameError()
	}
	return name, nil
}

func validateRepositoryURL(raw string) (*string, error) {
	url := strings.TrimSpace(raw)
	if url == "" {
		return nil, nil
	}
	if !model.IsValidRepositoryURL(url) {
		return nil, model.NewInvalidRepositoryURLError(url)
	}
	return &url, nil
}

// sanitizeDescription は説明文を無害化する。空になった場合はnilを返す。
func (s *Service) sanitizeDescription(raw string) *string {
	desc := s.sanitizer.Sanitize(raw)
	if desc == "" {
		return nil
	}
	return &desc
}
