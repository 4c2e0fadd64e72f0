// Package model はドメインモデルを定義する。
package model

import "time"

// Org は組織（テナント）を表す。OwnerIDは作成時に決まり変更されない。
type Org struct {
	ID        string
	Name      string
	OwnerID   string
	OwnerTime time.Time
}

// OrgMembership はユーザーと組織の所属関係を表す。
// (UserID, OrgID) の組は一意。
type OrgMembership struct {
	UserID    string
	OrgID     string
	EntryTime time.Time
}

// OrgMember は組織メンバー一覧の1行を表す。
type OrgMember struct {
	UserID    string
	Username  string
	EntryTime time.Time
	IsOwner   bool
}

// Team は組織配下のチームを表す。OrgIDとOwnerIDは変更されない。
type Team struct {
	ID        string
	OrgID     string
	Name      string
	OwnerID   string
	OwnerTime time.Time
}

// TeamMembership はユーザーとチームの所属関係を表す。
type TeamMembership struct {
	UserID  string
	TeamID  string
	IsAdmin bool
}

// TeamMember はチームメンバー一覧の1行を表す。
type TeamMember struct {
	UserID   string
	Username string
	Role     Role
}

// TeamInvite はチームへの一回限りの招待を表す。
// 有効期限は保存せず、CreateTime + 有効期間で都度判定する。
type TeamInvite struct {
	ID         string
	TeamID     string
	CreateTime time.Time
	Used       bool
}

// IsRedeemableAt は指定時刻において招待が利用可能かどうかを返す。
func (i *TeamInvite) IsRedeemableAt(now time.Time, ttl time.Duration) bool {
	if i.Used {
		return false
	}
	return !now.After(i.CreateTime.Add(ttl))
}

// Role はチーム内でのユーザーの役割を表す。
type Role string

const (
	// RoleOwner はチーム作成者。削除も役割変更もできない。
	RoleOwner Role = "owner"
	// RoleAdmin はメンバー・予定・役割を管理できる。
	RoleAdmin Role = "admin"
	// RoleMember は一般メンバー。
	RoleMember Role = "member"
	// RoleNonMember はチームに所属していない。
	RoleNonMember Role = "none"
)

// CanManage はメンバー・予定・役割の管理権限を持つかどうかを返す。
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// IsMember はチームに所属しているかどうかを返す。
func (r Role) IsMember() bool {
	return r != RoleNonMember && r != ""
}
