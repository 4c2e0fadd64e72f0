package calendar

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/hitoshi/teamcal/internal/model"
)

// ProductID はエクスポートするVCALENDARのPRODID。
const ProductID = "-//teamcal//Calendar Export//EN"

// ExportUserCalendar はユーザーの個人カレンダーをiCalendar形式で返す。
func (s *Service) ExportUserCalendar(ctx context.Context, userID string) ([]byte, error) {
	events, err := s.ListUserEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.encode(events)
}

// ExportTeamCalendar はチームカレンダーをiCalendar形式で返す。チームメンバーのみ取得できる。
func (s *Service) ExportTeamCalendar(ctx context.Context, callerID, teamID string) ([]byte, error) {
	events, err := s.ListTeamEvents(ctx, callerID, teamID)
	if err != nil {
		return nil, err
	}
	return s.encode(events)
}

func (s *Service) encode(events []model.EventWithPriority) ([]byte, error) {
	cal := BuildCalendar(events, s.now())

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildCalendar は予定一覧からVEVENTを1件ずつ持つVCALENDARを組み立てる。
// 優先度名はCATEGORIES、優先度の色はCOLORとして出力する。
func BuildCalendar(events []model.EventWithPriority, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, e := range events {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, e.ID)
		event.Props.SetText(ical.PropSummary, e.Title)
		if e.Memo != "" {
			event.Props.SetText(ical.PropDescription, e.Memo)
		}
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, e.StartTime.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, e.EndTime.UTC())
		event.Props.SetText(ical.PropCategories, e.Priority.Name)
		event.Props.SetText(ical.PropColor, e.Priority.Color)

		cal.Children = append(cal.Children, event.Component)
	}
	return cal
}
