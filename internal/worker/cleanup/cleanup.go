// Package cleanup は不要になった行の定期削除ジョブを提供する。
// 割り当てのない予定、保持期間を過ぎた期限切れセッション、古い招待を削除する。
// 予定の回収はリクエスト単位のGCの取りこぼしを拾うバックストップとして動作する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/teamcal/internal/metrics"
	"github.com/hitoshi/teamcal/internal/repository"
)

// 削除対象の種別ラベル。
const (
	KindOrphanEvents    = "orphan_events"
	KindExpiredSessions = "expired_sessions"
	KindStaleInvites    = "stale_invites"
)

// CleanupJob は不要になった行の自動削除ジョブ。
// 各削除は冪等で、削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	store                repository.Store
	logger               *slog.Logger
	metrics              metrics.MetricsCollector
	now                  func() time.Time
	SessionRetentionDays int // 期限切れセッションの保持日数（デフォルト: 30）
	InviteRetentionDays  int // 招待の保持日数（デフォルト: 7）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewCleanupJob(store repository.Store, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop()
	}
	return &CleanupJob{
		store:                store,
		logger:               logger,
		metrics:              collector,
		now:                  time.Now,
		SessionRetentionDays: 30,
		InviteRetentionDays:  7,
	}
}

// Run は3種類の削除をそれぞれ別トランザクションで実行する。
// いずれかが失敗しても残りは実行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	now := j.now()

	steps := []struct {
		kind          string
		retentionDays int
		fn            func(tx repository.Tx) (int64, error)
	}{
		{
			kind: KindOrphanEvents,
			fn: func(tx repository.Tx) (int64, error) {
				return tx.Events().DeleteAllOrphans(ctx)
			},
		},
		{
			kind:          KindExpiredSessions,
			retentionDays: j.SessionRetentionDays,
			fn: func(tx repository.Tx) (int64, error) {
				return tx.Sessions().DeleteExpiredBefore(ctx, now.AddDate(0, 0, -j.SessionRetentionDays))
			},
		},
		{
			kind:          KindStaleInvites,
			retentionDays: j.InviteRetentionDays,
			fn: func(tx repository.Tx) (int64, error) {
				return tx.Invites().DeleteCreatedBefore(ctx, now.AddDate(0, 0, -j.InviteRetentionDays))
			},
		},
	}

	var firstErr error
	for _, step := range steps {
		var deleted int64
		err := j.store.WithTx(ctx, func(tx repository.Tx) error {
			n, err := step.fn(tx)
			deleted = n
			return err
		})
		if err != nil {
			j.logger.Error("クリーンアップジョブの実行に失敗しました",
				slog.String("kind", step.kind),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("クリーンアップの実行に失敗 (%s): %w", step.kind, err)
			}
			continue
		}

		j.metrics.RecordCleanupDeleted(step.kind, deleted)
		j.logger.Info("クリーンアップが完了しました",
			slog.String("kind", step.kind),
			slog.Int64("deleted_count", deleted),
			slog.Int("retention_days", step.retentionDays),
		)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return firstErr
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
