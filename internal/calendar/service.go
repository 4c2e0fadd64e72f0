package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/teamcal/internal/access"
	"github.com/hitoshi/teamcal/internal/metrics"
	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
)

// Submission はカレンダー更新リクエスト1件分の内容。
// UserEventsは呼び出しユーザーの個人カレンダー、TeamEventsはチームIDごとのチームカレンダー。
type Submission struct {
	UserEvents []model.EventSubmission
	TeamEvents map[string][]model.EventSubmission
}

// Service はカレンダーの更新と参照のサービス層。
type Service struct {
	store      repository.Store
	reconciler *Reconciler
	metrics    metrics.MetricsCollector
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store repository.Store, reconciler *Reconciler, collector metrics.MetricsCollector, now func() time.Time) *Service {
	if collector == nil {
		collector = metrics.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      store,
		reconciler: reconciler,
		metrics:    collector,
		now:        now,
	}
}

// SubmitCalendar は個人カレンダー、続いて各チームカレンダーをそれぞれ別トランザクションで更新し、
// 最後に全更新で外れた予定をまとめて回収する。
// 同じリクエスト内で先に採番された予定IDをチームカレンダーに含めてもよい。
// IDが空でRefを持つ予定は、それまでの更新で同じRefに採番されたIDを引き継ぐ。
// 途中で失敗した場合もコミット済みの更新で外れた予定は回収する。
func (s *Service) SubmitCalendar(ctx context.Context, callerID string, sub *Submission) (*Submission, error) {
	start := s.now()
	defer func() {
		s.metrics.RecordCalendarSubmitLatency(s.now().Sub(start))
	}()

	var candidates []string
	err := s.apply(ctx, callerID, sub, &candidates)

	if _, gcErr := s.reconciler.CollectOrphanEvents(ctx, candidates); gcErr != nil {
		slog.Warn("failed to collect orphan events",
			slog.String("user_id", callerID),
			slog.String("error", gcErr.Error()),
		)
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) apply(ctx context.Context, callerID string, sub *Submission, candidates *[]string) error {
	refs := make(map[string]string)

	if sub.UserEvents != nil {
		ids, err := s.reconciler.UpdateUserEvents(ctx, callerID, callerID, sub.UserEvents)
		if err != nil {
			return err
		}
		*candidates = append(*candidates, ids...)
		recordRefs(refs, sub.UserEvents)
	}

	teamIDs := make([]string, 0, len(sub.TeamEvents))
	for teamID := range sub.TeamEvents {
		teamIDs = append(teamIDs, teamID)
	}
	sort.Strings(teamIDs)

	for _, teamID := range teamIDs {
		events := sub.TeamEvents[teamID]
		resolveRefs(refs, events)
		ids, err := s.reconciler.UpdateTeamEvents(ctx, callerID, teamID, events)
		if err != nil {
			return err
		}
		*candidates = append(*candidates, ids...)
		recordRefs(refs, events)
	}
	return nil
}

// resolveRefs はIDが空でRefが登録済みの予定にそのIDを設定する。
func resolveRefs(refs map[string]string, events []model.EventSubmission) {
	for i := range events {
		if events[i].ID != "" || events[i].Ref == "" {
			continue
		}
		if id, ok := refs[events[i].Ref]; ok {
			events[i].ID = id
		}
	}
}

// recordRefs は更新後の予定のRefとIDの対応を登録する。最初に登録されたIDを優先する。
func recordRefs(refs map[string]string, events []model.EventSubmission) {
	for _, e := range events {
		if e.Ref == "" || e.ID == "" {
			continue
		}
		if _, ok := refs[e.Ref]; !ok {
			refs[e.Ref] = e.ID
		}
	}
}

// ListUserEvents はユーザーの個人カレンダーの予定を返す。
func (s *Service) ListUserEvents(ctx context.Context, userID string) ([]model.EventWithPriority, error) {
	var events []model.EventWithPriority
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		list, err := tx.Events().ListByTarget(ctx, model.UserTarget(userID))
		events = list
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("予定一覧の取得に失敗しました: %w", err)
	}
	return events, nil
}

// ListTeamEvents はチームカレンダーの予定を返す。チームメンバーのみ参照できる。
func (s *Service) ListTeamEvents(ctx context.Context, callerID, teamID string) ([]model.EventWithPriority, error) {
	var events []model.EventWithPriority
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		team, err := tx.Teams().FindByID(ctx, teamID)
		if err != nil {
			return fmt.Errorf("チームの取得に失敗しました: %w", err)
		}
		if team == nil {
			return model.NewTeamNotFoundError(teamID)
		}
		if err := access.NewGraph(tx).AuthorizeReadTeam(ctx, team, callerID); err != nil {
			return err
		}

		list, err := tx.Events().ListByTarget(ctx, model.TeamTarget(teamID))
		if err != nil {
			return fmt.Errorf("予定一覧の取得に失敗しました: %w", err)
		}
		events = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListPriorities は優先度カタログを返す。
func (s *Service) ListPriorities(ctx context.Context) ([]model.EventPriority, error) {
	var priorities []model.EventPriority
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		list, err := tx.Events().ListPriorities(ctx)
		priorities = list
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("優先度の取得に失敗しました: %w", err)
	}
	return priorities, nil
}
