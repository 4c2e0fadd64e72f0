package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/teamcal/internal/metrics"
	"github.com/hitoshi/teamcal/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionVerifier   middleware.SessionVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler  // nilの場合は/metricsを公開しない
	HealthChecker     HealthChecker // nilの場合は常に正常
	BaseURL           string

	AuthService     AuthServiceInterface
	UserService     UserServiceInterface
	OrgService      OrgServiceInterface
	TeamService     TeamServiceInterface
	CalendarService CalendarServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Metrics → SecurityHeaders → CORS → SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// サインアップ・ログイン・ログアウトはセッションミドルウェアの外に配置し、
// サインアップとログインにはIP単位のレート制限をかける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService)
	orgHandler := NewOrgHandler(deps.OrgService)
	teamHandler := NewTeamHandler(deps.TeamService, deps.BaseURL)
	calHandler := NewCalendarHandler(deps.CalendarService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/signup", authHandler.Signup)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.With(
			middleware.NewSessionMiddleware(deps.SessionVerifier),
			deps.RateLimiter.GeneralMiddleware(),
		).Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/priorities", calHandler.ListPriorities)
		r.Put("/api/calendar", calHandler.SubmitCalendar)

		// 組織管理
		r.Route("/api/orgs", func(r chi.Router) {
			r.Get("/", orgHandler.ListOrgs)
			r.Post("/", orgHandler.CreateOrg)

			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", orgHandler.GetOrg)
				r.Delete("/", orgHandler.DeleteOrg)
				r.Post("/members", orgHandler.JoinOrg)
				r.Delete("/members/{userID}", orgHandler.RemoveMember)
				r.Get("/teams", teamHandler.ListTeams)
				r.Post("/teams", teamHandler.CreateTeam)
			})
		})

		// チーム管理
		r.Route("/api/teams/{teamID}", func(r chi.Router) {
			r.Delete("/", teamHandler.DeleteTeam)
			r.Get("/members", teamHandler.ListMembers)
			r.Post("/members", teamHandler.AddMember)
			r.Delete("/members/{userID}", teamHandler.RemoveMember)
			r.Put("/members/{userID}/role", teamHandler.ChangeRole)
			r.Post("/invites", teamHandler.GenerateInvite)
			r.Get("/events", calHandler.ListTeamEvents)
			r.Get("/calendar.ics", calHandler.ExportTeamCalendar)
		})

		r.Post("/api/invites/{inviteID}/redeem", teamHandler.RedeemInvite)

		// 個人カレンダー
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/events", calHandler.ListUserEvents)
			r.Get("/calendar.ics", calHandler.ExportUserCalendar)
		})
	})

	return r
}

// healthHandler は依存先への疎通を確認し、結果を返すハンドラーを生成する。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
