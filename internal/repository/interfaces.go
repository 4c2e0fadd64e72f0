// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/teamcal/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// 重複参加やユーザー名の重複はこのエラーとして返される。
var ErrDuplicate = errors.New("duplicate key")

// Store はトランザクション境界を提供する。
type Store interface {
	// WithTx はfnを1つのトランザクション内で実行する。
	// fnがエラーを返した場合、またはコミットに失敗した場合はすべての変更がロールバックされる。
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx はトランザクション内で利用できるリポジトリ群。
type Tx interface {
	Users() UserRepository
	Sessions() SessionRepository
	Orgs() OrgRepository
	Teams() TeamRepository
	Invites() InviteRepository
	Events() EventRepository
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// IDExists は指定IDのユーザーが存在するかどうかを返す。
	IDExists(ctx context.Context, id string) (bool, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// IDExists は指定IDのセッションが存在するかどうかを返す（期限切れを含む）。
	IDExists(ctx context.Context, id string) (bool, error)

	// FindLatestValidByUserID はユーザーの有効なセッションのうち最も有効期限が遅いものを
	// 行ロック付きで取得する。見つからない場合はnilを返す。
	FindLatestValidByUserID(ctx context.Context, userID string, now time.Time) (*model.Session, error)

	// FindValidByID は指定IDの有効なセッションを行ロック付きで取得する。
	// 期限切れまたは存在しない場合はnilを返す。
	FindValidByID(ctx context.Context, id string, now time.Time) (*model.Session, error)

	// FindByID は指定IDのセッションを有効期限に関係なく取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// UpdateExpiration はセッションの有効期限と最終アクティビティ時刻を更新する。
	UpdateExpiration(ctx context.Context, id string, expiration, lastActivity time.Time) error

	// DeleteExpiredBefore はcutoffより前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OrgRepository は組織と組織メンバーシップの永続化インターフェース。
type OrgRepository interface {
	// IDExists は指定IDの組織が存在するかどうかを返す。
	IDExists(ctx context.Context, id string) (bool, error)

	// FindByID は指定IDの組織を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Org, error)

	// ListByUserID はユーザーが所属する組織の一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Org, error)

	// Create は組織を作成する。
	Create(ctx context.Context, org *model.Org) error

	// Delete は組織の行のみを削除する。配下の行は事前に削除しておくこと。
	Delete(ctx context.Context, id string) error

	// AddMember は組織メンバーシップを作成する。既に所属している場合はErrDuplicateを返す。
	AddMember(ctx context.Context, membership model.OrgMembership) error

	// IsMember はユーザーが組織に所属しているかどうかを返す。
	IsMember(ctx context.Context, userID, orgID string) (bool, error)

	// RemoveMember は組織メンバーシップを削除する。削除した場合はtrueを返す。
	RemoveMember(ctx context.Context, userID, orgID string) (bool, error)

	// RemoveAllMembers は組織の全メンバーシップを削除する。
	RemoveAllMembers(ctx context.Context, orgID string) error

	// ListMembers は組織メンバーの一覧を参加日時順で返す。
	ListMembers(ctx context.Context, orgID string) ([]model.OrgMember, error)
}

// TeamMemberRow はチームメンバー一覧の取得結果を表す。
// 役割の導出はaccessパッケージが行う。
type TeamMemberRow struct {
	model.TeamMembership
	Username string
}

// TeamRepository はチームとチームメンバーシップの永続化インターフェース。
type TeamRepository interface {
	// IDExists は指定IDのチームが存在するかどうかを返す。
	IDExists(ctx context.Context, id string) (bool, error)

	// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Team, error)

	// ListByOrgID は組織配下のチーム一覧を返す。
	ListByOrgID(ctx context.Context, orgID string) ([]*model.Team, error)

	// Create はチームを作成する。
	Create(ctx context.Context, team *model.Team) error

	// Delete はチームの行のみを削除する。配下の行は事前に削除しておくこと。
	Delete(ctx context.Context, id string) error

	// AddMember はチームメンバーシップを作成する。既に所属している場合はErrDuplicateを返す。
	AddMember(ctx context.Context, membership model.TeamMembership) error

	// FindMembership はチームメンバーシップを取得する。見つからない場合はnilを返す。
	FindMembership(ctx context.Context, userID, teamID string) (*model.TeamMembership, error)

	// UpdateMemberRole はメンバーの管理者フラグを更新する。
	UpdateMemberRole(ctx context.Context, userID, teamID string, isAdmin bool) error

	// RemoveMember はチームメンバーシップを削除する。削除した場合はtrueを返す。
	RemoveMember(ctx context.Context, userID, teamID string) (bool, error)

	// RemoveAllMembers はチームの全メンバーシップを削除する。
	RemoveAllMembers(ctx context.Context, teamID string) error

	// RemoveMemberFromOrgTeams は組織配下の全チームからユーザーのメンバーシップを削除する。
	RemoveMemberFromOrgTeams(ctx context.Context, userID, orgID string) error

	// ListMembers はチームメンバーの一覧を返す。
	ListMembers(ctx context.Context, teamID string) ([]TeamMemberRow, error)
}

// InviteRepository はチーム招待の永続化インターフェース。
type InviteRepository interface {
	// IDExists は指定IDの招待が存在するかどうかを返す。
	IDExists(ctx context.Context, id string) (bool, error)

	// Create は招待を作成する。
	Create(ctx context.Context, invite *model.TeamInvite) error

	// FindByIDForUpdate は指定IDの招待を行ロック付きで取得する。見つからない場合はnilを返す。
	FindByIDForUpdate(ctx context.Context, id string) (*model.TeamInvite, error)

	// MarkUsed は招待を使用済みにする。
	MarkUsed(ctx context.Context, id string) error

	// DeleteByTeamID はチームの全招待を削除する。
	DeleteByTeamID(ctx context.Context, teamID string) error

	// DeleteCreatedBefore はcutoffより前に作成された招待を削除し、削除件数を返す。
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventRepository は予定・優先度・割り当ての永続化インターフェース。
type EventRepository interface {
	// IDExists は指定IDの予定が存在するかどうかを返す。
	IDExists(ctx context.Context, id string) (bool, error)

	// ListPriorities は優先度カタログをID順で返す。
	ListPriorities(ctx context.Context) ([]model.EventPriority, error)

	// FindPriorityByName は名前で優先度を取得する。見つからない場合はnilを返す。
	FindPriorityByName(ctx context.Context, name string) (*model.EventPriority, error)

	// FindByID は指定IDの予定を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Event, error)

	// Create は予定を作成する。
	Create(ctx context.Context, event *model.Event) error

	// Update は予定の可変フィールドを上書き更新する。
	Update(ctx context.Context, event *model.Event) error

	// ListAssignedIDs は割り当て先に紐づく予定IDの一覧を返す。
	ListAssignedIDs(ctx context.Context, target model.AssignmentTarget) ([]string, error)

	// ListByTarget は割り当て先の予定を優先度付きで開始時刻順に返す。
	ListByTarget(ctx context.Context, target model.AssignmentTarget) ([]model.EventWithPriority, error)

	// ListTargets は予定が割り当てられているユーザーとチームを返す。
	// ユーザー、チームの順にそれぞれID順で並ぶ。
	ListTargets(ctx context.Context, eventID string) ([]model.AssignmentTarget, error)

	// Assign は割り当てを作成する。既に存在する場合は何もしない。
	Assign(ctx context.Context, target model.AssignmentTarget, eventID string) error

	// Unassign は割り当てを削除する。
	Unassign(ctx context.Context, target model.AssignmentTarget, eventID string) error

	// UnassignAll は割り当て先の全割り当てを削除し、外れた予定IDを返す。
	UnassignAll(ctx context.Context, target model.AssignmentTarget) ([]string, error)

	// DeleteOrphans はidsのうちユーザー・チームどちらにも割り当てのない予定を削除し、
	// 削除した予定IDを返す。
	DeleteOrphans(ctx context.Context, ids []string) ([]string, error)

	// DeleteAllOrphans は割り当てのない予定をすべて削除し、削除件数を返す。
	DeleteAllOrphans(ctx context.Context) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Querier は*sql.DBと*sql.Txに共通するクエリ実行インターフェース。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
