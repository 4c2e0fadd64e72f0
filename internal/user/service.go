// Package user はユーザー登録とプロフィール参照のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/teamcal/internal/idgen"
	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
	"github.com/hitoshi/teamcal/internal/security"
)

// 入力値の制約。
const (
	MaxUsernameLength = 64
	MinPasswordBytes  = 8
)

// Profile は公開してよいユーザー情報。
type Profile struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	RegistrationTime time.Time `json:"registration_time"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	store  repository.Store
	hasher security.CredentialHasher
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// nowがnilの場合はtime.Nowを使用する。
func NewService(store repository.Store, hasher security.CredentialHasher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		hasher: hasher,
		now:    now,
	}
}

// Register はユーザーを登録し、採番したユーザーIDを返す。
// ユーザー名は前後の空白を除いて1〜64文字、パスワードは8〜72バイトであること。
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n == 0 || n > MaxUsernameLength {
		return "", model.NewInvalidRequestError(fmt.Sprintf("ユーザー名は1〜%d文字で指定してください。", MaxUsernameLength))
	}
	if len(password) < MinPasswordBytes || len(password) > security.MaxPasswordBytes {
		return "", model.NewInvalidRequestError(fmt.Sprintf("パスワードは%d〜%dバイトで指定してください。", MinPasswordBytes, security.MaxPasswordBytes))
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	var userID string
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		existing, err := tx.Users().FindByUsername(ctx, username)
		if err != nil {
			return err
		}
		if existing != nil {
			return model.NewUsernameTakenError(username)
		}

		id, err := idgen.Unique(ctx, tx.Users().IDExists)
		if err != nil {
			return fmt.Errorf("failed to mint user id: %w", err)
		}

		if err := tx.Users().Create(ctx, &model.User{
			ID:               id,
			Username:         username,
			PasswordDigest:   digest,
			RegistrationTime: s.now(),
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.NewUsernameTakenError(username)
			}
			return err
		}
		userID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Info("user registered",
		slog.String("user_id", userID),
	)
	return userID, nil
}

// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
func (s *Service) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user *model.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		u, err := tx.Users().FindByUsername(ctx, username)
		user = u
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, userID string) (*model.User, error) {
	var user *model.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		u, err := tx.Users().FindByID(ctx, userID)
		user = u
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Profile はユーザーの公開プロフィールを返す。
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return &Profile{
		ID:               user.ID,
		Username:         user.Username,
		RegistrationTime: user.RegistrationTime,
	}, nil
}
