// Package auth はログインとセッション管理を提供する。
// セッションIDがそのままBearerトークンとして扱われる。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/teamcal/internal/idgen"
	"github.com/hitoshi/teamcal/internal/metrics"
	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
	"github.com/hitoshi/teamcal/internal/security"
)

// DefaultSessionTTL はセッションの有効期間（28日間）。
const DefaultSessionTTL = 28 * 24 * time.Hour

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL time.Duration    // セッション有効期間。0の場合はDefaultSessionTTL
	Now        func() time.Time // 現在時刻。nilの場合はtime.Now
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	store   repository.Store
	hasher  security.CredentialHasher
	metrics metrics.MetricsCollector
	ttl     time.Duration
	now     func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	store repository.Store,
	hasher security.CredentialHasher,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop()
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		store:   store,
		hasher:  hasher,
		metrics: collector,
		ttl:     config.SessionTTL,
		now:     config.Now,
	}
}

// Login はユーザー名とパスワードを検証し、セッショントークンを返す。
// ユーザーが存在しない場合もパスワード不一致の場合も同じUnauthorizedを返す。
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	var user *model.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		u, err := tx.Users().FindByUsername(ctx, username)
		user = u
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil || !s.hasher.Verify(password, user.PasswordDigest) {
		s.metrics.RecordLogin(false)
		slog.Info("login rejected", slog.String("username", username))
		return "", model.NewInvalidCredentialsError()
	}

	token, err := s.RenewOrCreateSession(ctx, user.ID)
	if err != nil {
		return "", err
	}

	s.metrics.RecordLogin(true)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return token, nil
}

// RenewOrCreateSession はユーザーの有効なセッションのうち最も有効期限が遅いものを延長し、
// 有効なセッションがない場合は新規に作成する。いずれの場合もトークンを返す。
func (s *Service) RenewOrCreateSession(ctx context.Context, userID string) (string, error) {
	var (
		token   string
		created bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		expiration := now.Add(s.ttl)

		latest, err := tx.Sessions().FindLatestValidByUserID(ctx, userID, now)
		if err != nil {
			return err
		}
		if latest != nil {
			token = latest.ID
			return tx.Sessions().UpdateExpiration(ctx, latest.ID, expiration, now)
		}

		id, err := idgen.Unique(ctx, tx.Sessions().IDExists)
		if err != nil {
			return fmt.Errorf("failed to mint session id: %w", err)
		}
		if err := tx.Sessions().Create(ctx, &model.Session{
			ID:               id,
			UserID:           userID,
			ExpirationTime:   expiration,
			LastActivityTime: now,
		}); err != nil {
			return err
		}
		token = id
		created = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to renew or create session: %w", err)
	}

	if created {
		s.metrics.RecordSession(metrics.SessionCreated)
	} else {
		s.metrics.RecordSession(metrics.SessionRenewed)
	}
	return token, nil
}

// Verify はトークンに対応する有効なセッションのユーザーIDを返し、有効期限を延長する。
// 有効なセッションがない場合はForbiddenを返す。
func (s *Service) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", model.NewSessionExpiredError()
	}

	var userID string
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		session, err := tx.Sessions().FindValidByID(ctx, token, now)
		if err != nil {
			return err
		}
		if session == nil {
			return model.NewSessionExpiredError()
		}
		userID = session.UserID
		return tx.Sessions().UpdateExpiration(ctx, session.ID, now.Add(s.ttl), now)
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

// EndSession はセッションの有効期限を現在時刻に設定して無効化する。
// 該当するセッションがない場合はエラーではなくfalseを返す。
func (s *Service) EndSession(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	var ended bool
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		session, err := tx.Sessions().FindByID(ctx, token)
		if err != nil {
			return err
		}
		if session == nil {
			return nil
		}
		now := s.now()
		ended = true
		return tx.Sessions().UpdateExpiration(ctx, session.ID, now, now)
	})
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}

	if ended {
		s.metrics.RecordSession(metrics.SessionEnded)
		slog.Info("session ended")
	}
	return ended, nil
}
