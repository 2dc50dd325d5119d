// Package user は外部IdPの利用者と内部ユーザーの対応付け、プロフィール管理を提供する。
package user

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
)

// maxProfileFieldLength は名前・役割の最大文字数。
const maxProfileFieldLength = 100

// ProfileInput はプロフィール登録・更新の入力。
type ProfileInput struct {
	Name      string
	Role      string
	AvatarRef string // 空の場合はプレースホルダーを設定する
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
		now:      time.Now,
	}
}

// SubmitProfile は外部IDに対応するユーザーを作成、または既存ユーザーのプロフィールを更新する。
// 所属企業は変更しない。
func (s *Service) SubmitProfile(ctx context.Context, externalID string, input ProfileInput) (*model.User, error) {
	name := strings.TrimSpace(input.Name)
	role := strings.TrimSpace(input.Role)
	if name == "" {
		return nil, model.NewInvalidProfileError("名前は必須です")
	}
	if utf8.RuneCountInString(name) > maxProfileFieldLength {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("名前は%d文字以内で入力してください", maxProfileFieldLength))
	}
	if utf8.RuneCountInString(role) > maxProfileFieldLength {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("役割は%d文字以内で入力してください", maxProfileFieldLength))
	}
	avatar := strings.TrimSpace(input.AvatarRef)
	if avatar == "" {
		avatar = model.DefaultAvatarRef
	}

	existing, err := s.userRepo.FindByExternalIdentityID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return s.updateProfile(ctx, existing, name, role, avatar)
	}

	now := s.now()
	user := &model.User{
		ID:                 uuid.New().String(),
		ExternalIdentityID: externalID,
		Name:               name,
		Role:               role,
		AvatarRef:          avatar,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateExternalIdentity) {
		// 同じ外部IDの初回登録が並行して先に完了した場合は、そのユーザーを更新する
		existing, err = s.userRepo.FindByExternalIdentityID(ctx, externalID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", repository.ErrDuplicateExternalIdentity)
		}
		return s.updateProfile(ctx, existing, name, role, avatar)
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを作成しました",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

func (s *Service) updateProfile(ctx context.Context, user *model.User, name, role, avatar string) (*model.User, error) {
	user.Name = name
	user.Role = role
	user.AvatarRef = avatar
	user.UpdatedAt = s.now()
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	slog.Info("プロフィールを更新しました",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// GetByExternalID は外部IDに対応するユーザーを返す。
// 未登録の場合はUserNotFoundエラーを返す。
func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	user, err := s.userRepo.FindByExternalIdentityID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Resolve はリクエスト処理用に外部IDを内部ユーザーへ解決する。
// プロフィール未登録の場合はProfileRequiredエラーを返す。
func (s *Service) Resolve(ctx context.Context, externalID string) (*model.User, error) {
	user, err := s.userRepo.FindByExternalIdentityID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの解決に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewProfileRequiredError()
	}
	return user, nil
}
