package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルのメトリクスを検索する。labelsがnilの場合は最初の1件を返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return nil
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	for key, want := range labels {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == key && lp.GetValue() == want {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLogin_CountsByResult はログイン結果ごとにカウントされることを検証する。
func TestRecordLogin_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(true)
	c.RecordLogin(false)
	c.RecordLogin(false)

	if v := findMetric(t, reg, "teamcal_logins_total", map[string]string{"result": "success"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("success = %v, want 1", v)
	}
	if v := findMetric(t, reg, "teamcal_logins_total", map[string]string{"result": "failure"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("failure = %v, want 2", v)
	}
}

// TestRecordSession_CountsByAction はセッション操作ごとにカウントされることを検証する。
func TestRecordSession_CountsByAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSession(SessionCreated)
	c.RecordSession(SessionRenewed)
	c.RecordSession(SessionRenewed)

	if v := findMetric(t, reg, "teamcal_sessions_total", map[string]string{"action": SessionRenewed}).GetCounter().GetValue(); v != 2 {
		t.Errorf("renewed = %v, want 2", v)
	}
}

// TestRecordReconcile_IgnoresZero は0件の差分が系列を作らないことを検証する。
func TestRecordReconcile_IgnoresZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReconcile(ReconcileCreated, 0)
	c.RecordReconcile(ReconcileUpdated, 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "teamcal_events_reconciled_total" {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Errorf("expected 1 series, got %d", len(mf.GetMetric()))
		}
	}
	if v := findMetric(t, reg, "teamcal_events_reconciled_total", map[string]string{"op": ReconcileUpdated}).GetCounter().GetValue(); v != 3 {
		t.Errorf("updated = %v, want 3", v)
	}
}

// TestRecordCalendarSubmitLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordCalendarSubmitLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCalendarSubmitLatency(150 * time.Millisecond)

	h := findMetric(t, reg, "teamcal_calendar_submit_latency_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
}

// TestRecordCleanupDeleted_AddsCount はクリーンアップ件数が加算されることを検証する。
func TestRecordCleanupDeleted_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCleanupDeleted("sessions", 4)
	c.RecordCleanupDeleted("sessions", 1)
	c.RecordOrphansDeleted(2)

	if v := findMetric(t, reg, "teamcal_cleanup_deleted_total", map[string]string{"kind": "sessions"}).GetCounter().GetValue(); v != 5 {
		t.Errorf("sessions = %v, want 5", v)
	}
	if v := findMetric(t, reg, "teamcal_orphan_events_deleted_total", nil).GetCounter().GetValue(); v != 2 {
		t.Errorf("orphans = %v, want 2", v)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はステータスコード別にカウントされることを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)
	c.RecordHTTPStatus(404)

	if v := findMetric(t, reg, "teamcal_http_status_total", map[string]string{"status_code": "404"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("404 = %v, want 2", v)
	}
}

// TestMultipleCollectors_IndependentRegistries はレジストリごとに独立して登録できることを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordInviteRedeem("success")

	if v := findMetric(t, reg1, "teamcal_invite_redemptions_total", map[string]string{"result": "success"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("reg1 = %v, want 1", v)
	}
	families, _ := reg2.Gather()
	for _, mf := range families {
		if mf.GetName() == "teamcal_invite_redemptions_total" && len(mf.GetMetric()) != 0 {
			t.Error("reg2 should not have recorded redemptions")
		}
	}
}

// TestNop_DoesNotPanic はNopが全メソッドを安全に受け付けることを検証する。
func TestNop_DoesNotPanic(t *testing.T) {
	m := Nop()
	m.RecordLogin(true)
	m.RecordSession(SessionEnded)
	m.RecordInviteRedeem("gone")
	m.RecordReconcile(ReconcileUnlinked, 1)
	m.RecordCalendarSubmitLatency(time.Second)
	m.RecordOrphansDeleted(1)
	m.RecordCleanupDeleted("invites", 1)
	m.RecordHTTPStatus(500)
}
