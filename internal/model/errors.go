// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの種別を表す。HTTPステータスへの対応はハンドラー層が決める。
type ErrorKind string

const (
	KindUnauthorized   ErrorKind = "unauthorized"
	KindForbidden      ErrorKind = "forbidden"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindGone           ErrorKind = "gone"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindStorageFailure ErrorKind = "storage_failure"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー種別
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, org, team, calendar, system
	Action   string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// KindOf はエラーチェーン中のAPIErrorの種別を返す。
// APIErrorを含まない場合はKindStorageFailureを返す。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindStorageFailure
}

// IsKind はエラーが指定種別のAPIErrorかどうかを返す。
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeOrgNotFound        = "ORG_NOT_FOUND"
	ErrCodeTeamNotFound       = "TEAM_NOT_FOUND"
	ErrCodeMemberNotFound     = "MEMBER_NOT_FOUND"
	ErrCodeAlreadyMember      = "ALREADY_MEMBER"
	ErrCodeInviteNotFound     = "INVITE_NOT_FOUND"
	ErrCodeInviteGone         = "INVITE_GONE"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
	ErrCodePriorityNotFound   = "PRIORITY_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeStorageFailure     = "STORAGE_FAILURE"
)

// NewInvalidCredentialsError はユーザー名またはパスワードの誤りを表すエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Kind:     KindUnauthorized,
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewSessionExpiredError はセッションの期限切れまたは不在を表すエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れているか、見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限不足を表すエラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeForbidden,
		Message:  reason,
		Category: "auth",
		Action:   "この操作を行う権限がありません。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewUsernameTakenError はユーザー名の重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("ユーザー名は既に使われています: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewOrgNotFoundError は組織が見つからない場合のエラーを生成する。
func NewOrgNotFoundError(orgID string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeOrgNotFound,
		Message:  fmt.Sprintf("指定された組織が見つかりません: %s", orgID),
		Category: "org",
		Action:   "組織IDを確認してください。",
	}
}

// NewTeamNotFoundError はチームが見つからない場合のエラーを生成する。
func NewTeamNotFoundError(teamID string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeTeamNotFound,
		Message:  fmt.Sprintf("指定されたチームが見つかりません: %s", teamID),
		Category: "team",
		Action:   "チームIDを確認してください。",
	}
}

// NewMemberNotFoundError は対象ユーザーがメンバーでない場合のエラーを生成する。
func NewMemberNotFoundError(userID string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeMemberNotFound,
		Message:  fmt.Sprintf("指定されたユーザーはメンバーではありません: %s", userID),
		Category: "team",
		Action:   "メンバー一覧を確認してください。",
	}
}

// NewAlreadyMemberError は重複参加のエラーを生成する。
func NewAlreadyMemberError(userID string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeAlreadyMember,
		Message:  fmt.Sprintf("指定されたユーザーは既にメンバーです: %s", userID),
		Category: "team",
		Action:   "メンバー一覧を確認してください。",
	}
}

// NewInviteNotFoundError は招待が見つからない場合のエラーを生成する。
func NewInviteNotFoundError(inviteID string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeInviteNotFound,
		Message:  fmt.Sprintf("指定された招待が見つかりません: %s", inviteID),
		Category: "team",
		Action:   "招待リンクを確認してください。",
	}
}

// NewInviteGoneError は使用済みまたは期限切れの招待のエラーを生成する。
func NewInviteGoneError() *APIError {
	return &APIError{
		Kind:     KindGone,
		Code:     ErrCodeInviteGone,
		Message:  "招待は使用済みか、有効期限が切れています。",
		Category: "team",
		Action:   "チームメンバーに新しい招待を発行してもらってください。",
	}
}

// NewEventNotFoundError は予定が見つからない場合のエラーを生成する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("指定された予定が見つかりません: %s", eventID),
		Category: "calendar",
		Action:   "カレンダーを再読み込みしてください。",
	}
}

// NewPriorityNotFoundError は優先度名がカタログにない場合のエラーを生成する。
func NewPriorityNotFoundError(name string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodePriorityNotFound,
		Message:  fmt.Sprintf("無効な優先度です: %s", name),
		Category: "calendar",
		Action:   "優先度には standard、notime、uncertain、certain のいずれかを指定してください。",
	}
}

// NewInvalidRequestError は入力値の検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Kind:     KindInvalidRequest,
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewStorageFailureError はストレージ障害のエラーを生成する。
// 内部エラーの詳細は含めない。
func NewStorageFailureError() *APIError {
	return &APIError{
		Kind:     KindStorageFailure,
		Code:     ErrCodeStorageFailure,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
