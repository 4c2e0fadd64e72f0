package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/teamcal/internal/model"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	CreateTeam(ctx context.Context, userID, orgID, name string) (string, error)
	ListTeams(ctx context.Context, userID, orgID string) ([]*model.Team, error)
	DeleteTeam(ctx context.Context, callerID, teamID string) ([]string, error)
	AddUserToTeam(ctx context.Context, callerID, teamID, targetID string) error
	RemoveUserFromTeam(ctx context.Context, callerID, teamID, targetID string) error
	ChangeRole(ctx context.Context, callerID, teamID, targetID string, isAdmin bool) error
	ListTeamMembers(ctx context.Context, callerID, teamID string) ([]model.TeamMember, error)
	GenerateInvite(ctx context.Context, callerID, teamID string) (string, error)
	RedeemInvite(ctx context.Context, userID, inviteID string) (orgID, teamID string, err error)
}

// TeamHandler はチームと招待のHTTPハンドラー。
type TeamHandler struct {
	service TeamServiceInterface
	baseURL string
}

// NewTeamHandler はTeamHandlerを生成する。baseURLは招待URLの組み立てに使う。
func NewTeamHandler(service TeamServiceInterface, baseURL string) *TeamHandler {
	return &TeamHandler{
		service: service,
		baseURL: baseURL,
	}
}

type teamResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	OwnerTime time.Time `json:"owner_time"`
}

type teamMemberResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

type changeRoleRequest struct {
	IsAdmin *bool `json:"is_admin"`
}

type inviteResponse struct {
	InviteID string `json:"invite_id"`
	URL      string `json:"url"`
}

type redeemResponse struct {
	OrgID  string `json:"org_id"`
	TeamID string `json:"team_id"`
}

// CreateTeam は組織配下にチームを作成する。作成者がチームの所有者になる。
// POST /api/orgs/{orgID}/teams
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req nameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	teamID, err := h.service.CreateTeam(r.Context(), userID, chi.URLParam(r, "orgID"), req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, idResponse{ID: teamID})
}

// ListTeams は組織配下のチーム一覧を返す。
// GET /api/orgs/{orgID}/teams
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	teams, err := h.service.ListTeams(r.Context(), userID, chi.URLParam(r, "orgID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		resp = append(resp, toTeamResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteTeam はチームを削除する。
// DELETE /api/teams/{teamID}
func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.DeleteTeam(r.Context(), userID, chi.URLParam(r, "teamID")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMembers はチームメンバーと役割の一覧を返す。
// GET /api/teams/{teamID}/members
func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListTeamMembers(r.Context(), userID, chi.URLParam(r, "teamID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]teamMemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, teamMemberResponse{
			UserID:   m.UserID,
			Username: m.Username,
			Role:     string(m.Role),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddMember は組織メンバーをチームに追加する。
// POST /api/teams/{teamID}/members
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		handleServiceError(w, r, model.NewInvalidRequestError("user_idを指定してください。"))
		return
	}

	if err := h.service.AddUserToTeam(r.Context(), userID, chi.URLParam(r, "teamID"), req.UserID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember はチームからメンバーを外す。
// DELETE /api/teams/{teamID}/members/{userID}
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.RemoveUserFromTeam(r.Context(), userID, chi.URLParam(r, "teamID"), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangeRole はメンバーの管理者フラグを変更する。
// PUT /api/teams/{teamID}/members/{userID}/role
func (h *TeamHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsAdmin == nil {
		handleServiceError(w, r, model.NewInvalidRequestError("is_adminを指定してください。"))
		return
	}

	err := h.service.ChangeRole(r.Context(), userID, chi.URLParam(r, "teamID"), chi.URLParam(r, "userID"), *req.IsAdmin)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GenerateInvite はチームへの招待を発行し、招待IDと招待URLを返す。
// POST /api/teams/{teamID}/invites
func (h *TeamHandler) GenerateInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	inviteID, err := h.service.GenerateInvite(r.Context(), userID, chi.URLParam(r, "teamID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, inviteResponse{
		InviteID: inviteID,
		URL:      h.baseURL + "/invites/" + inviteID,
	})
}

// RedeemInvite は招待を使ってチームに参加する。
// POST /api/invites/{inviteID}/redeem
func (h *TeamHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	orgID, teamID, err := h.service.RedeemInvite(r.Context(), userID, chi.URLParam(r, "inviteID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{OrgID: orgID, TeamID: teamID})
}

func toTeamResponse(t *model.Team) teamResponse {
	return teamResponse{
		ID:        t.ID,
		OrgID:     t.OrgID,
		Name:      t.Name,
		OwnerID:   t.OwnerID,
		OwnerTime: t.OwnerTime,
	}
}
