package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/org"
)

// OrgServiceInterface は組織ハンドラーが必要とするサービスインターフェース。
type OrgServiceInterface interface {
	CreateOrg(ctx context.Context, ownerID, name string) (string, error)
	JoinOrg(ctx context.Context, userID, orgID string) error
	DeleteOrg(ctx context.Context, callerID, orgID string) ([]string, error)
	RemoveUserFromOrg(ctx context.Context, callerID, orgID, targetID string) error
	ListOrgs(ctx context.Context, userID string) ([]*model.Org, error)
	GetOrg(ctx context.Context, callerID, orgID string) (*org.Detail, error)
}

// OrgHandler は組織管理のHTTPハンドラー。
type OrgHandler struct {
	service OrgServiceInterface
}

// NewOrgHandler はOrgHandlerを生成する。
func NewOrgHandler(service OrgServiceInterface) *OrgHandler {
	return &OrgHandler{service: service}
}

// nameRequest は組織・チーム作成のリクエストボディ。
type nameRequest struct {
	Name string `json:"name"`
}

// idResponse は作成されたリソースのIDを返すレスポンス。
type idResponse struct {
	ID string `json:"id"`
}

type orgResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	OwnerTime time.Time `json:"owner_time"`
}

type orgMemberResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	EntryTime time.Time `json:"entry_time"`
	IsOwner   bool      `json:"is_owner"`
}

type orgDetailResponse struct {
	orgResponse
	Members []orgMemberResponse `json:"members"`
	Teams   []teamResponse      `json:"teams"`
}

// CreateOrg は組織を作成する。作成者が所有者かつ最初のメンバーになる。
// POST /api/orgs
func (h *OrgHandler) CreateOrg(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req nameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	orgID, err := h.service.CreateOrg(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, idResponse{ID: orgID})
}

// ListOrgs は呼び出しユーザーが所属する組織の一覧を返す。
// GET /api/orgs
func (h *OrgHandler) ListOrgs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	orgs, err := h.service.ListOrgs(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]orgResponse, 0, len(orgs))
	for _, o := range orgs {
		resp = append(resp, toOrgResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrg は組織の詳細（メンバーとチーム）を返す。
// GET /api/orgs/{orgID}
func (h *OrgHandler) GetOrg(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetOrg(r.Context(), userID, chi.URLParam(r, "orgID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := orgDetailResponse{
		orgResponse: toOrgResponse(detail.Org),
		Members:     make([]orgMemberResponse, 0, len(detail.Members)),
		Teams:       make([]teamResponse, 0, len(detail.Teams)),
	}
	for _, m := range detail.Members {
		resp.Members = append(resp.Members, orgMemberResponse{
			UserID:    m.UserID,
			Username:  m.Username,
			EntryTime: m.EntryTime,
			IsOwner:   m.IsOwner,
		})
	}
	for _, t := range detail.Teams {
		resp.Teams = append(resp.Teams, toTeamResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteOrg は組織と配下のチーム・所属・招待を削除する。
// DELETE /api/orgs/{orgID}
func (h *OrgHandler) DeleteOrg(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.DeleteOrg(r.Context(), userID, chi.URLParam(r, "orgID")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// JoinOrg は呼び出しユーザーを組織に参加させる。
// POST /api/orgs/{orgID}/members
func (h *OrgHandler) JoinOrg(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.JoinOrg(r.Context(), userID, chi.URLParam(r, "orgID")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember は組織からユーザーを外す。所有者または本人のみ実行できる。
// DELETE /api/orgs/{orgID}/members/{userID}
func (h *OrgHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.RemoveUserFromOrg(r.Context(), userID, chi.URLParam(r, "orgID"), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toOrgResponse(o *model.Org) orgResponse {
	return orgResponse{
		ID:        o.ID,
		Name:      o.Name,
		OwnerID:   o.OwnerID,
		OwnerTime: o.OwnerTime,
	}
}
