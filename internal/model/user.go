// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID               string
	Username         string
	PasswordDigest   string
	RegistrationTime time.Time
}

// Session はユーザーのログインセッションを表す。
// IDがそのままBearerトークンとして使われる。
type Session struct {
	ID               string
	UserID           string
	ExpirationTime   time.Time
	LastActivityTime time.Time
}

// IsValidAt は指定時刻においてセッションが有効かどうかを返す。
func (s *Session) IsValidAt(now time.Time) bool {
	return s.ExpirationTime.After(now)
}
