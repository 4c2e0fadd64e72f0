package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/teamcal/internal/calendar"
	"github.com/hitoshi/teamcal/internal/model"
)

// CalendarServiceInterface はカレンダーハンドラーが必要とするサービスインターフェース。
type CalendarServiceInterface interface {
	SubmitCalendar(ctx context.Context, callerID string, sub *calendar.Submission) (*calendar.Submission, error)
	ListUserEvents(ctx context.Context, userID string) ([]model.EventWithPriority, error)
	ListTeamEvents(ctx context.Context, callerID, teamID string) ([]model.EventWithPriority, error)
	ListPriorities(ctx context.Context) ([]model.EventPriority, error)
	ExportUserCalendar(ctx context.Context, userID string) ([]byte, error)
	ExportTeamCalendar(ctx context.Context, callerID, teamID string) ([]byte, error)
}

// CalendarHandler はカレンダー更新・参照・エクスポートのHTTPハンドラー。
type CalendarHandler struct {
	service CalendarServiceInterface
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(service CalendarServiceInterface) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// eventPayload は送受信される予定1件。時刻はRFC 3339形式。
// IDが空の予定は新規作成され、レスポンスで採番されたIDが返る。
// 同じrefを持つIDなしの予定は、先に作成された予定と同じIDを共有する。
type eventPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Memo      string    `json:"memo"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Priority  string    `json:"priority"`
	Ref       string    `json:"ref,omitempty"`
}

// submitCalendarRequest はカレンダー更新のリクエストボディ。
// user_eventsを省略した場合、個人カレンダーは変更しない。
type submitCalendarRequest struct {
	UserEvents []eventPayload            `json:"user_events"`
	TeamEvents map[string][]eventPayload `json:"team_events"`
}

type eventResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Memo          string    `json:"memo"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Priority      string    `json:"priority"`
	PriorityColor string    `json:"priority_color"`
}

type priorityResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Detail string `json:"detail"`
	Color  string `json:"color"`
}

// SubmitCalendar は個人カレンダーとチームカレンダーを送信内容で置き換える。
// PUT /api/calendar
func (h *CalendarHandler) SubmitCalendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req submitCalendarRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub := &calendar.Submission{UserEvents: toSubmissions(req.UserEvents)}
	if len(req.TeamEvents) > 0 {
		sub.TeamEvents = make(map[string][]model.EventSubmission, len(req.TeamEvents))
		for teamID, events := range req.TeamEvents {
			sub.TeamEvents[teamID] = toSubmissions(events)
		}
	}

	result, err := h.service.SubmitCalendar(r.Context(), userID, sub)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := submitCalendarRequest{UserEvents: toPayloads(result.UserEvents)}
	if len(result.TeamEvents) > 0 {
		resp.TeamEvents = make(map[string][]eventPayload, len(result.TeamEvents))
		for teamID, events := range result.TeamEvents {
			resp.TeamEvents[teamID] = toPayloads(events)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListUserEvents は呼び出しユーザーの個人カレンダーの予定を返す。
// GET /api/users/me/events
func (h *CalendarHandler) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListUserEvents(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(events))
}

// ListTeamEvents はチームカレンダーの予定を返す。
// GET /api/teams/{teamID}/events
func (h *CalendarHandler) ListTeamEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListTeamEvents(r.Context(), userID, chi.URLParam(r, "teamID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(events))
}

// ListPriorities は優先度カタログを返す。
// GET /api/priorities
func (h *CalendarHandler) ListPriorities(w http.ResponseWriter, r *http.Request) {
	priorities, err := h.service.ListPriorities(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]priorityResponse, 0, len(priorities))
	for _, p := range priorities {
		resp = append(resp, priorityResponse{ID: p.ID, Name: p.Name, Detail: p.Detail, Color: p.Color})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportUserCalendar は個人カレンダーをiCalendar形式で返す。
// GET /api/users/me/calendar.ics
func (h *CalendarHandler) ExportUserCalendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	data, err := h.service.ExportUserCalendar(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeCalendar(w, "personal.ics", data)
}

// ExportTeamCalendar はチームカレンダーをiCalendar形式で返す。
// GET /api/teams/{teamID}/calendar.ics
func (h *CalendarHandler) ExportTeamCalendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	teamID := chi.URLParam(r, "teamID")
	data, err := h.service.ExportTeamCalendar(r.Context(), userID, teamID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeCalendar(w, "team-"+teamID+".ics", data)
}

func writeCalendar(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// toSubmissions はnilを保って変換する。nilは「変更しない」、空スライスは「全削除」を表す。
func toSubmissions(events []eventPayload) []model.EventSubmission {
	if events == nil {
		return nil
	}
	subs := make([]model.EventSubmission, len(events))
	for i, e := range events {
		subs[i] = model.EventSubmission{
			ID:        e.ID,
			Title:     e.Title,
			Memo:      e.Memo,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			Priority:  e.Priority,
			Ref:       e.Ref,
		}
	}
	return subs
}

func toPayloads(events []model.EventSubmission) []eventPayload {
	if events == nil {
		return nil
	}
	payloads := make([]eventPayload, len(events))
	for i, e := range events {
		payloads[i] = eventPayload(e)
	}
	return payloads
}

func toEventResponses(events []model.EventWithPriority) []eventResponse {
	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, eventResponse{
			ID:            e.ID,
			Title:         e.Title,
			Memo:          e.Memo,
			StartTime:     e.StartTime,
			EndTime:       e.EndTime,
			Priority:      e.Priority.Name,
			PriorityColor: e.Priority.Color,
		})
	}
	return resp
}
