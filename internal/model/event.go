// Package model はドメインモデルを定義する。
package model

import "time"

// Event はカレンダー上の予定を表す。
// ユーザーやチームへの割り当てが1件以上ある間だけ存在する共有オブジェクト。
type Event struct {
	ID         string
	Title      string
	Memo       string
	StartTime  time.Time
	EndTime    time.Time
	PriorityID string
}

// EventPriority はシードされる優先度カタログの1行を表す。
type EventPriority struct {
	ID     string
	Name   string
	Detail string
	Color  string
}

// EventWithPriority は予定と優先度を結合したモデル。
type EventWithPriority struct {
	Event
	Priority EventPriority
}

// EventSubmission はカレンダー更新で送信される予定1件を表す。
// IDが空の場合は新規作成され、採番されたIDが書き戻される。
type EventSubmission struct {
	ID        string
	Title     string
	Memo      string
	StartTime time.Time
	EndTime   time.Time
	Priority  string // 優先度名（standard, notime, uncertain, certain）
	Ref       string // 同じリクエスト内で新規予定を指すクライアント側のキー
}

// TargetKind は予定の割り当て先の種別を表す。
type TargetKind string

const (
	// TargetUser は個人カレンダー。
	TargetUser TargetKind = "user"
	// TargetTeam はチームカレンダー。
	TargetTeam TargetKind = "team"
)

// AssignmentTarget は予定の割り当て先（ユーザーまたはチーム）を表す。
type AssignmentTarget struct {
	Kind TargetKind
	ID   string
}

// UserTarget はユーザーの割り当て先を返す。
func UserTarget(userID string) AssignmentTarget {
	return AssignmentTarget{Kind: TargetUser, ID: userID}
}

// TeamTarget はチームの割り当て先を返す。
func TeamTarget(teamID string) AssignmentTarget {
	return AssignmentTarget{Kind: TargetTeam, ID: teamID}
}
