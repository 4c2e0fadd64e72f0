package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/teamcal/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用した予定リポジトリ。
type PostgresEventRepo struct {
	db Querier
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db Querier) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// assignmentTable は割り当て先種別に対応するテーブル名と所有者カラム名を返す。
func assignmentTable(kind model.TargetKind) (table, column string, err error) {
	switch kind {
	case model.TargetUser:
		return "user_events", "user_id", nil
	case model.TargetTeam:
		return "team_events", "team_id", nil
	default:
		return "", "", fmt.Errorf("unknown assignment target kind: %q", kind)
	}
}

// IDExists は指定IDの予定が存在するかどうかを返す。
func (r *PostgresEventRepo) IDExists(ctx context.Context, id string) (bool, error) {
	return idExists(ctx, r.db, "events", id)
}

// ListPriorities は優先度カタログをID順で返す。
func (r *PostgresEventRepo) ListPriorities(ctx context.Context) ([]model.EventPriority, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, detail, color FROM event_priorities ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list priorities: %w", err)
	}
	defer rows.Close()

	var priorities []model.EventPriority
	for rows.Next() {
		var p model.EventPriority
		if err := rows.Scan(&p.ID, &p.Name, &p.Detail, &p.Color); err != nil {
			return nil, fmt.Errorf("failed to scan priority: %w", err)
		}
		priorities = append(priorities, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate priorities: %w", err)
	}
	return priorities, nil
}

// FindPriorityByName は名前で優先度を取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindPriorityByName(ctx context.Context, name string) (*model.EventPriority, error) {
	p := &model.EventPriority{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, detail, color FROM event_priorities WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.Detail, &p.Color)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find priority: %w", err)
	}
	return p, nil
}

// FindByID は指定IDの予定を取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	e := &model.Event{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, memo, start_time, end_time, priority_id FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.Memo, &e.StartTime, &e.EndTime, &e.PriorityID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	return e, nil
}

// Create は予定を作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, title, memo, start_time, end_time, priority_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Title, e.Memo, e.StartTime, e.EndTime, e.PriorityID,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", translateError(err))
	}
	return nil
}

// Update は予定の可変フィールドを上書き更新する。
func (r *PostgresEventRepo) Update(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events
		 SET title = $2, memo = $3, start_time = $4, end_time = $5, priority_id = $6
		 WHERE id = $1`,
		e.ID, e.Title, e.Memo, e.StartTime, e.EndTime, e.PriorityID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// ListAssignedIDs は割り当て先に紐づく予定IDの一覧を返す。
func (r *PostgresEventRepo) ListAssignedIDs(ctx context.Context, target model.AssignmentTarget) ([]string, error) {
	table, column, err := assignmentTable(target.Kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id FROM `+table+` WHERE `+column+` = $1 ORDER BY event_id ASC`,
		target.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned event ids: %w", err)
	}
	return scanIDs(rows)
}

// ListByTarget は割り当て先の予定を優先度付きで開始時刻順に返す。
func (r *PostgresEventRepo) ListByTarget(ctx context.Context, target model.AssignmentTarget) ([]model.EventWithPriority, error) {
	table, column, err := assignmentTable(target.Kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.title, e.memo, e.start_time, e.end_time, e.priority_id,
		        p.id, p.name, p.detail, p.color
		 FROM events e
		 INNER JOIN `+table+` a ON a.event_id = e.id
		 INNER JOIN event_priorities p ON p.id = e.priority_id
		 WHERE a.`+column+` = $1
		 ORDER BY e.start_time ASC, e.id ASC`,
		target.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []model.EventWithPriority
	for rows.Next() {
		var e model.EventWithPriority
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Memo, &e.StartTime, &e.EndTime, &e.PriorityID,
			&e.Priority.ID, &e.Priority.Name, &e.Priority.Detail, &e.Priority.Color,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// ListTargets は予定が割り当てられているユーザーとチームを返す。
func (r *PostgresEventRepo) ListTargets(ctx context.Context, eventID string) ([]model.AssignmentTarget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, owner_id FROM (
		     SELECT 'user' AS kind, user_id AS owner_id FROM user_events WHERE event_id = $1
		     UNION ALL
		     SELECT 'team' AS kind, team_id AS owner_id FROM team_events WHERE event_id = $1
		 ) t
		 ORDER BY CASE kind WHEN 'user' THEN 0 ELSE 1 END, owner_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list event targets: %w", err)
	}
	defer rows.Close()

	var targets []model.AssignmentTarget
	for rows.Next() {
		var kind, ownerID string
		if err := rows.Scan(&kind, &ownerID); err != nil {
			return nil, fmt.Errorf("failed to scan event target: %w", err)
		}
		targets = append(targets, model.AssignmentTarget{Kind: model.TargetKind(kind), ID: ownerID})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event targets: %w", err)
	}
	return targets, nil
}

// Assign は割り当てを作成する。既に存在する場合は何もしない。
func (r *PostgresEventRepo) Assign(ctx context.Context, target model.AssignmentTarget, eventID string) error {
	table, column, err := assignmentTable(target.Kind)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (`+column+`, event_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		target.ID, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign event: %w", err)
	}
	return nil
}

// Unassign は割り当てを削除する。
func (r *PostgresEventRepo) Unassign(ctx context.Context, target model.AssignmentTarget, eventID string) error {
	table, column, err := assignmentTable(target.Kind)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE `+column+` = $1 AND event_id = $2`,
		target.ID, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to unassign event: %w", err)
	}
	return nil
}

// UnassignAll は割り当て先の全割り当てを削除し、外れた予定IDを返す。
func (r *PostgresEventRepo) UnassignAll(ctx context.Context, target model.AssignmentTarget) ([]string, error) {
	table, column, err := assignmentTable(target.Kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM `+table+` WHERE `+column+` = $1 RETURNING event_id`,
		target.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to unassign events: %w", err)
	}
	return scanIDs(rows)
}

// DeleteOrphans はidsのうちユーザー・チームどちらにも割り当てのない予定を削除し、
// 削除した予定IDを返す。
func (r *PostgresEventRepo) DeleteOrphans(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM events e
		 WHERE e.id = ANY($1)
		   AND NOT EXISTS (SELECT 1 FROM user_events ue WHERE ue.event_id = e.id)
		   AND NOT EXISTS (SELECT 1 FROM team_events te WHERE te.event_id = e.id)
		 RETURNING e.id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete orphan events: %w", err)
	}
	return scanIDs(rows)
}

// DeleteAllOrphans は割り当てのない予定をすべて削除し、削除件数を返す。
func (r *PostgresEventRepo) DeleteAllOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM events e
		 WHERE NOT EXISTS (SELECT 1 FROM user_events ue WHERE ue.event_id = e.id)
		   AND NOT EXISTS (SELECT 1 FROM team_events te WHERE te.event_id = e.id)`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
