// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultAvatarRef はアバター未指定時に設定するプレースホルダー参照。
const DefaultAvatarRef = "https://via.placeholder.com/150"

// User はサービス利用ユーザーを表す。
// 外部IdPの識別子（ExternalIdentityID）と1対1で紐付く。
type User struct {
	ID                 string
	ExternalIdentityID string
	Name               string
	Role               string
	AvatarRef          string
	// CompanyID は所属企業のID。未所属の場合はnil。
	CompanyID *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsMemberOf はユーザーが指定企業に所属しているかを返す。
func (u *User) IsMemberOf(companyID string) bool {
	return u.CompanyID != nil && *u.CompanyID == companyID
}
