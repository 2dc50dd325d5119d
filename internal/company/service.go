// Package company はチーム（企業）と招待コードによる所属管理のドメインロジックを提供する。
package company

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/teamtrack/internal/metrics"
	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/repository"
)

// MaxInviteCodeAttempts は招待コード生成の最大試行回数。
const MaxInviteCodeAttempts = 10

// maxCompanyNameLength はチーム名の最大文字数。
const maxCompanyNameLength = 255

// CodeGenerator は招待コードの候補を1つ生成する関数。
type CodeGenerator func() (string, error)

// Service はチーム管理のサービス層。
// チーム作成、招待コード検索、参加・脱退、メンバー一覧のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	companyRepo repository.CompanyRepository
	metrics     metrics.MetricsCollector
	generate    CodeGenerator
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	companyRepo repository.CompanyRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		userRepo:    userRepo,
		companyRepo: companyRepo,
		metrics:     collector,
		generate:    GenerateInviteCode,
		now:         time.Now,
	}
}

// GenerateInviteCode は英大文字と数字からなる6文字の招待コードを暗号論的乱数で生成する。
func GenerateInviteCode() (string, error) {
	limit := big.NewInt(int64(len(model.InviteCodeAlphabet)))
	var b strings.Builder
	b.Grow(model.InviteCodeLength)
	for i := 0; i < model.InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("乱数の生成に失敗しました: %w", err)
		}
		b.WriteByte(model.InviteCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// CreateCompany はチームを作成し、作成者をメンバーとして所属させる。
// 招待コードは既存コードと衝突しないものが見つかるまで最大MaxInviteCodeAttempts回生成する。
// 上限に達した場合はInviteCodeExhaustedエラーを返し、内部で再試行はしない。
func (s *Service) CreateCompany(ctx context.Context, creatorID, name string) (*model.Company, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxCompanyNameLength {
		return nil, model.NewInvalidCompanyNameError()
	}

	creator, err := s.userRepo.FindByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if creator == nil {
		return nil, model.NewUserNotFoundError()
	}

	for attempt := 1; attempt <= MaxInviteCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return nil, fmt.Errorf("招待コードの生成に失敗しました: %w", err)
		}

		existing, err := s.companyRepo.FindByInviteCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("招待コードの重複確認に失敗しました: %w", err)
		}
		if existing != nil {
			slog.Debug("招待コードが既存チームと衝突しました",
				slog.Int("attempt", attempt),
			)
			continue
		}

		company := &model.Company{
			ID:         uuid.New().String(),
			Name:       name,
			InviteCode: code,
			CreatedAt:  s.now(),
		}
		err = s.companyRepo.CreateWithOwner(ctx, company, creatorID)
		if errors.Is(err, repository.ErrDuplicateInviteCode) {
			// 確認後に同じコードで作成された場合も1回の試行として数える
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		if err != nil {
			return nil, fmt.Errorf("チームの作成に失敗しました: %w", err)
		}

		s.metrics.RecordInviteCodeAttempts(attempt)
		slog.Info("チームを作成しました",
			slog.String("company_id", company.ID),
			slog.String("user_id", creatorID),
			slog.Int("attempts", attempt),
		)
		return company, nil
	}

	s.metrics.RecordInviteCodeAttempts(MaxInviteCodeAttempts)
	s.metrics.RecordInviteCodeExhausted()
	slog.Error("一意な招待コードを生成できませんでした",
		slog.String("user_id", creatorID),
		slog.Int("attempts", MaxInviteCodeAttempts),
	)
	return nil, model.NewInviteCodeExhaustedError(MaxInviteCodeAttempts)
}

// LookupByInviteCode は招待コードでチームを検索する。大文字小文字は区別しない。
func (s *Service) LookupByInviteCode(ctx context.Context, code string) (*model.Company, error) {
	if !model.IsValidInviteCode(code) {
		return nil, model.NewInvalidInviteCodeError(code)
	}
	normalized := model.NormalizeInviteCode(code)

	company, err := s.companyRepo.FindByInviteCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("チームの検索に失敗しました: %w", err)
	}
	if company == nil {
		return nil, model.NewCompanyNotFoundError(normalized)
	}
	return company, nil
}

// GetCompany は指定IDのチームを返す。
func (s *Service) GetCompany(ctx context.Context, companyID string) (*model.Company, error) {
	// UUID形式でないIDは保存され得ないため、ストアに問い合わせず未存在として扱う
	if uuid.Validate(companyID) != nil {
		return nil, model.NewCompanyNotFoundError(companyID)
	}
	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if company == nil {
		return nil, model.NewCompanyNotFoundError(companyID)
	}
	return company, nil
}

// JoinCompany はユーザーを指定チームに所属させる。
// 既に別チームに所属している場合は所属先を置き換える。
func (s *Service) JoinCompany(ctx context.Context, userID, companyID string) error {
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return err
	}

	id := companyID
	if err := s.userRepo.SetCompany(ctx, userID, &id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("チームへの参加に失敗しました: %w", err)
	}

	s.metrics.RecordCompanyJoined()
	slog.Info("チームに参加しました",
		slog.String("user_id", userID),
		slog.String("company_id", companyID),
	)
	return nil
}

// JoinByInviteCode は招待コードでチームを検索し、ユーザーを所属させる。
func (s *Service) JoinByInviteCode(ctx context.Context, userID, code string) (*model.Company, error) {
	company, err := s.LookupByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.JoinCompany(ctx, userID, company.ID); err != nil {
		return nil, err
	}
	return company, nil
}

// LeaveCompany はユーザーの所属を解除する。
// ユーザーのセッション履歴はそのまま残る。
func (s *Service) LeaveCompany(ctx context.Context, userID string) error {
	if err := s.userRepo.SetCompany(ctx, userID, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("チームからの脱退に失敗しました: %w", err)
	}

	slog.Info("チームから脱退しました",
		slog.String("user_id", userID),
	)
	return nil
}

// TeamMembers はチームに所属する全ユーザーを名前順で返す。
func (s *Service) TeamMembers(ctx context.Context, companyID string) ([]*model.User, error) {
	users, err := s.userRepo.ListByCompanyID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}
