package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/teamcal/internal/auth"
	"github.com/hitoshi/teamcal/internal/calendar"
	"github.com/hitoshi/teamcal/internal/config"
	"github.com/hitoshi/teamcal/internal/database"
	"github.com/hitoshi/teamcal/internal/handler"
	"github.com/hitoshi/teamcal/internal/logger"
	"github.com/hitoshi/teamcal/internal/metrics"
	"github.com/hitoshi/teamcal/internal/middleware"
	"github.com/hitoshi/teamcal/internal/org"
	"github.com/hitoshi/teamcal/internal/repository"
	"github.com/hitoshi/teamcal/internal/repository/memory"
	"github.com/hitoshi/teamcal/internal/security"
	"github.com/hitoshi/teamcal/internal/team"
	"github.com/hitoshi/teamcal/internal/user"
	"github.com/hitoshi/teamcal/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		PrintUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// backend はストアとヘルスチェック対象、終了処理をまとめたもの。
type backend struct {
	store  repository.Store
	health handler.HealthChecker
	close  func() error
}

// openBackend は設定されたドライバーに応じてストアを開く。
// postgresの場合は疎通確認まで行う。memoryの場合はプロセス内のストアを生成する。
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return &backend{
			store: memory.NewStore(),
			close: func() error { return nil },
		}, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	return &backend{
		store:  repository.NewPostgresStore(db),
		health: db,
		close:  db.Close,
	}, nil
}

// services はAPIサーバーのドメインサービス群。
type services struct {
	auth     *auth.Service
	users    *user.Service
	orgs     *org.Service
	teams    *team.Service
	calendar *calendar.Service
}

// newServices はストアとメトリクスからドメインサービスを構築する。
func newServices(cfg *config.Config, store repository.Store, collector metrics.MetricsCollector) *services {
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	reconciler := calendar.NewReconciler(store, security.NewTextSanitizer(), collector)

	return &services{
		auth:     auth.NewService(store, hasher, collector, auth.ServiceConfig{SessionTTL: cfg.SessionTTL}),
		users:    user.NewService(store, hasher, nil),
		orgs:     org.NewService(store, reconciler, nil),
		teams:    team.NewService(store, reconciler, collector, team.ServiceConfig{InviteTTL: cfg.InviteTTL}),
		calendar: calendar.NewService(store, reconciler, collector, nil),
	}
}

// newRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 返される停止関数でレートリミッターのバックグラウンド処理を止める。
func newRouter(cfg *config.Config, b *backend) (http.Handler, func()) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	svc := newServices(cfg, b.store, collector)
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))

	router := handler.NewRouter(&handler.RouterDeps{
		SessionVerifier:   svc.auth,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     b.health,
		BaseURL:           cfg.BaseURL,

		AuthService:     svc.auth,
		UserService:     svc.users,
		OrgService:      svc.orgs,
		TeamService:     svc.teams,
		CalendarService: svc.calendar,
	})

	access := middleware.NewLoggingMiddleware(slog.Default())
	return access(router), rl.Stop
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// memoryドライバーの場合はクリーンアップジョブも同一プロセスで動かす。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	router, stopLimiter := newRouter(cfg, b)
	defer stopLimiter()

	if cfg.StoreDriver == config.StoreDriverMemory {
		go newCleanupJob(cfg, b.store, nil).Start(ctx, cfg.OrphanSweepInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newCleanupJob は設定の保持期間を反映したクリーンアップジョブを生成する。
func newCleanupJob(cfg *config.Config, store repository.Store, collector metrics.MetricsCollector) *cleanup.CleanupJob {
	job := cleanup.NewCleanupJob(store, slog.Default(), collector)
	job.SessionRetentionDays = cfg.SessionRetentionDays
	job.InviteRetentionDays = cfg.InviteRetentionDays
	return job
}

// runWorker はワーカーモードで起動する。
// ストアを開き、クリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.OrphanSweepInterval),
		slog.Int("session_retention_days", cfg.SessionRetentionDays),
		slog.Int("invite_retention_days", cfg.InviteRetentionDays),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	newCleanupJob(cfg, b.store, nil).Start(ctx, cfg.OrphanSweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。memoryドライバーでは何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Info("in-memory store needs no migrations")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

// compile-time interface check
var _ handler.HealthChecker = (*sql.DB)(nil)
