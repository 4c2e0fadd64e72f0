// Package calendar は個人・チームカレンダーの差分更新、孤立予定の回収、
// iCalendar形式でのエクスポートを提供する。
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/hitoshi/teamcal/internal/access"
	"github.com/hitoshi/teamcal/internal/idgen"
	"github.com/hitoshi/teamcal/internal/metrics"
	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
	"github.com/hitoshi/teamcal/internal/security"
)

// 入力値の制約。
const (
	MaxTitleLength = 200
	MaxMemoLength  = 2000
)

// Reconciler は送信された予定一覧と保存済みの割り当てとの差分を適用する。
type Reconciler struct {
	store     repository.Store
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
}

// NewReconciler はReconcilerを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewReconciler(store repository.Store, sanitizer security.TextSanitizer, collector metrics.MetricsCollector) *Reconciler {
	if collector == nil {
		collector = metrics.Nop()
	}
	return &Reconciler{
		store:     store,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// reconcileStats は1回の差分適用の件数。
type reconcileStats struct {
	created  int
	updated  int
	unlinked int
}

// UpdateUserEvents はユーザーの個人カレンダーをeventsで置き換える。本人のみ更新できる。
// 新規予定に採番したIDはeventsに書き戻す。割り当てが外れた予定IDをGC候補として返す。
func (r *Reconciler) UpdateUserEvents(ctx context.Context, callerID, userID string, events []model.EventSubmission) ([]string, error) {
	if err := access.AuthorizeModifyUserEvents(callerID, userID); err != nil {
		return nil, err
	}
	return r.update(ctx, callerID, model.UserTarget(userID), events, func(tx repository.Tx) error {
		exists, err := tx.Users().IDExists(ctx, userID)
		if err != nil {
			return fmt.Errorf("ユーザーの確認に失敗しました: %w", err)
		}
		if !exists {
			return model.NewUserNotFoundError()
		}
		return nil
	})
}

// UpdateTeamEvents はチームカレンダーをeventsで置き換える。オーナーまたは管理者のみ更新できる。
// 新規予定に採番したIDはeventsに書き戻す。割り当てが外れた予定IDをGC候補として返す。
func (r *Reconciler) UpdateTeamEvents(ctx context.Context, callerID, teamID string, events []model.EventSubmission) ([]string, error) {
	return r.update(ctx, callerID, model.TeamTarget(teamID), events, func(tx repository.Tx) error {
		team, err := tx.Teams().FindByID(ctx, teamID)
		if err != nil {
			return fmt.Errorf("チームの取得に失敗しました: %w", err)
		}
		if team == nil {
			return model.NewTeamNotFoundError(teamID)
		}
		return access.NewGraph(tx).AuthorizeModifyTeamEvents(ctx, team, callerID)
	})
}

// update は検証済みの入力を1つのトランザクションで割り当て先に反映する。
// エラー時はeventsを変更しない。
func (r *Reconciler) update(
	ctx context.Context,
	callerID string,
	target model.AssignmentTarget,
	events []model.EventSubmission,
	authorize func(tx repository.Tx) error,
) ([]string, error) {
	working, err := r.normalize(events)
	if err != nil {
		return nil, err
	}

	var (
		candidates []string
		stats      reconcileStats
	)
	err = r.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := authorize(tx); err != nil {
			return err
		}
		ids, s, err := reconcile(ctx, tx, callerID, target, working)
		candidates, stats = ids, s
		return err
	})
	if err != nil {
		return nil, err
	}

	copy(events, working)
	r.metrics.RecordReconcile(metrics.ReconcileCreated, stats.created)
	r.metrics.RecordReconcile(metrics.ReconcileUpdated, stats.updated)
	r.metrics.RecordReconcile(metrics.ReconcileUnlinked, stats.unlinked)

	slog.Info("calendar reconciled",
		slog.String("target_kind", string(target.Kind)),
		slog.String("target_id", target.ID),
		slog.Int("created", stats.created),
		slog.Int("updated", stats.updated),
		slog.Int("unlinked", stats.unlinked),
	)
	return candidates, nil
}

// normalize はタイトルとメモをサニタイズし、入力値を検証したコピーを返す。
func (r *Reconciler) normalize(events []model.EventSubmission) ([]model.EventSubmission, error) {
	working := make([]model.EventSubmission, len(events))
	refs := make(map[string]struct{})
	for i, e := range events {
		if e.Ref != "" {
			if _, dup := refs[e.Ref]; dup {
				return nil, model.NewInvalidRequestError(fmt.Sprintf("refが重複しています: %s", e.Ref))
			}
			refs[e.Ref] = struct{}{}
		}
		e.Title = r.sanitizer.Sanitize(e.Title)
		e.Memo = r.sanitizer.Sanitize(e.Memo)

		if n := utf8.RuneCountInString(e.Title); n == 0 || n > MaxTitleLength {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("予定のタイトルは1〜%d文字で指定してください。", MaxTitleLength))
		}
		if utf8.RuneCountInString(e.Memo) > MaxMemoLength {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("予定のメモは%d文字以内で指定してください。", MaxMemoLength))
		}
		if e.StartTime.IsZero() || e.EndTime.IsZero() {
			return nil, model.NewInvalidRequestError("予定の開始時刻と終了時刻を指定してください。")
		}
		if e.EndTime.Before(e.StartTime) {
			return nil, model.NewInvalidRequestError("予定の終了時刻は開始時刻以降を指定してください。")
		}
		working[i] = e
	}
	return working, nil
}

// reconcile は割り当て先の現在の予定とeventsの差分を適用する。
//  1. 送信に含まれない予定の割り当てを外し、GC候補とする
//  2. IDのある予定は上書き、IDのない予定は採番して作成する
//  3. 送信された各予定の割り当てを保証する
//
// 既存の予定を変更または新たに割り当てる場合、呼び出し元は予定の他の割り当て先すべてを
// 更新できなければならない。
func reconcile(ctx context.Context, tx repository.Tx, callerID string, target model.AssignmentTarget, events []model.EventSubmission) ([]string, reconcileStats, error) {
	var stats reconcileStats
	repo := tx.Events()
	graph := access.NewGraph(tx)

	current, err := repo.ListAssignedIDs(ctx, target)
	if err != nil {
		return nil, stats, fmt.Errorf("割り当て済み予定の取得に失敗しました: %w", err)
	}

	submitted := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e.ID != "" {
			submitted[e.ID] = struct{}{}
		}
	}

	var candidates []string
	for _, id := range current {
		if _, ok := submitted[id]; ok {
			continue
		}
		if err := repo.Unassign(ctx, target, id); err != nil {
			return nil, stats, fmt.Errorf("予定の割り当て解除に失敗しました: %w", err)
		}
		candidates = append(candidates, id)
		stats.unlinked++
	}

	priorities := make(map[string]string)
	for i := range events {
		e := &events[i]

		priorityID, ok := priorities[e.Priority]
		if !ok {
			p, err := repo.FindPriorityByName(ctx, e.Priority)
			if err != nil {
				return nil, stats, fmt.Errorf("優先度の取得に失敗しました: %w", err)
			}
			if p == nil {
				return nil, stats, model.NewPriorityNotFoundError(e.Priority)
			}
			priorityID = p.ID
			priorities[e.Priority] = priorityID
		}

		event := &model.Event{
			ID:         e.ID,
			Title:      e.Title,
			Memo:       e.Memo,
			StartTime:  e.StartTime,
			EndTime:    e.EndTime,
			PriorityID: priorityID,
		}

		if e.ID != "" {
			existing, err := repo.FindByID(ctx, e.ID)
			if err != nil {
				return nil, stats, fmt.Errorf("予定の取得に失敗しました: %w", err)
			}
			if existing == nil {
				return nil, stats, model.NewEventNotFoundError(e.ID)
			}
			links, err := repo.ListTargets(ctx, e.ID)
			if err != nil {
				return nil, stats, fmt.Errorf("予定の割り当て先の取得に失敗しました: %w", err)
			}
			changed := !sameContent(existing, event)
			if changed || !slices.Contains(links, target) {
				if err := graph.AuthorizeModifyLinkedEvent(ctx, callerID, links, target); err != nil {
					return nil, stats, err
				}
			}
			if changed {
				if err := repo.Update(ctx, event); err != nil {
					return nil, stats, fmt.Errorf("予定の更新に失敗しました: %w", err)
				}
				stats.updated++
			}
		} else {
			id, err := idgen.Unique(ctx, repo.IDExists)
			if err != nil {
				return nil, stats, fmt.Errorf("予定IDの採番に失敗しました: %w", err)
			}
			event.ID = id
			if err := repo.Create(ctx, event); err != nil {
				return nil, stats, fmt.Errorf("予定の作成に失敗しました: %w", err)
			}
			e.ID = id
			stats.created++
		}

		if err := repo.Assign(ctx, target, e.ID); err != nil {
			return nil, stats, fmt.Errorf("予定の割り当てに失敗しました: %w", err)
		}
	}

	return candidates, stats, nil
}

// sameContent は保存済みの予定とeの内容が一致するかどうかを返す。
func sameContent(stored, e *model.Event) bool {
	return stored.Title == e.Title &&
		stored.Memo == e.Memo &&
		stored.StartTime.Equal(e.StartTime) &&
		stored.EndTime.Equal(e.EndTime) &&
		stored.PriorityID == e.PriorityID
}

// CollectOrphanEvents はcandidatesのうちユーザーにもチームにも割り当てのない予定を削除し、
// 削除した予定IDを返す。
func (r *Reconciler) CollectOrphanEvents(ctx context.Context, candidates []string) ([]string, error) {
	ids := dedupe(candidates)
	if len(ids) == 0 {
		return nil, nil
	}

	var deleted []string
	err := r.store.WithTx(ctx, func(tx repository.Tx) error {
		d, err := tx.Events().DeleteOrphans(ctx, ids)
		deleted = d
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("孤立した予定の削除に失敗しました: %w", err)
	}

	if len(deleted) > 0 {
		r.metrics.RecordOrphansDeleted(len(deleted))
		slog.Info("orphan events collected",
			slog.Int("candidates", len(ids)),
			slog.Int("deleted", len(deleted)),
		)
	}
	return deleted, nil
}

// dedupe は重複と空文字を除いたIDをソートして返す。
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
