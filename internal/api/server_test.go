package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/eventbus"
	"github.com/tempohq/tempo/internal/infra/delegation"
	"github.com/tempohq/tempo/internal/infra/disruption"
	"github.com/tempohq/tempo/internal/infra/energy"
	"github.com/tempohq/tempo/internal/infra/kernel"
	"github.com/tempohq/tempo/internal/infra/lts"
	"github.com/tempohq/tempo/internal/infra/mts"
	"github.com/tempohq/tempo/internal/infra/store"
	"github.com/tempohq/tempo/internal/infra/sts"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()

	st := store.New(nil, log)
	est := energy.New(energy.DefaultConfig(), nil, log)
	planner := lts.New(lts.DefaultConfig(), st, est, nil, log)
	classifier := disruption.New(disruption.DefaultConfig(), st, nil, nil, log)
	swapper := mts.New(st, planner, nil, log)
	queue := sts.New(st, nil, log)
	gateway := delegation.New(delegation.DefaultConfig(), st, log)
	eng := kernel.New(st, planner, classifier, swapper, queue, gateway, est, eventbus.New(), log)

	srv := httptest.NewServer(NewServer(eng, 1000, log).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}

// ─── Health ─────────────────────────────────────────────────────────────────

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	wantStatus(t, resp, http.StatusOK)
	var body map[string]string
	decodeInto(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("health body = %v", body)
	}
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func TestServer_CreateAndPlanAndSnapshot(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/v1/tasks", domain.Task{
		ID: "t1", Title: "report", Priority: domain.P1Important,
		DurationMinutes: 60, EnergyCost: 3,
	})
	wantStatus(t, resp, http.StatusCreated)
	var created domain.Task
	decodeInto(t, resp, &created)
	if created.Status != domain.TaskBacklog {
		t.Errorf("created status = %s, want BACKLOG", created.Status)
	}

	resp = postJSON(t, srv, "/v1/plan", map[string]int{"available_minutes": 480})
	wantStatus(t, resp, http.StatusOK)
	var plan domain.AdmissionResult
	decodeInto(t, resp, &plan)
	if len(plan.Admitted) != 1 || plan.Admitted[0].ID != "t1" {
		t.Fatalf("Admitted = %v", plan.Admitted)
	}

	snapResp, err := http.Get(srv.URL + "/v1/snapshot")
	if err != nil {
		t.Fatalf("GET /v1/snapshot: %v", err)
	}
	wantStatus(t, snapResp, http.StatusOK)
	var snap domain.ScheduleSnapshot
	decodeInto(t, snapResp, &snap)
	if len(snap.Active) != 1 || snap.CommittedMinutes != 60 || snap.CapacityMinutes != 480 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestServer_PlanValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/v1/plan", map[string]int{"available_minutes": -5})
	wantStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestServer_StartUnknownTaskIs404(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv, "/v1/tasks/ghost/start", nil)
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestServer_IllegalTransitionIs409(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv, "/v1/tasks", domain.Task{ID: "t1", Title: "x", DurationMinutes: 30}).Body.Close()

	// Backlog → InProgress is not a lifecycle edge.
	resp := postJSON(t, srv, "/v1/tasks/t1/start", nil)
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestServer_CompleteTask(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv, "/v1/tasks", domain.Task{ID: "t1", Title: "x", DurationMinutes: 30}).Body.Close()

	resp := postJSON(t, srv, "/v1/tasks/t1/complete", nil)
	wantStatus(t, resp, http.StatusOK)
	var done domain.Task
	decodeInto(t, resp, &done)
	if done.Status != domain.TaskCompleted {
		t.Errorf("status = %s, want COMPLETED", done.Status)
	}
}

// ─── Events ─────────────────────────────────────────────────────────────────

func TestServer_EventPipeline(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv, "/v1/tasks", domain.Task{ID: "bg", Title: "filler",
		Priority: domain.P3Background, DurationMinutes: 60, EnergyCost: 2}).Body.Close()
	postJSON(t, srv, "/v1/plan", map[string]int{"available_minutes": 60}).Body.Close()

	resp := postJSON(t, srv, "/v1/events", domain.ContextChangeEvent{
		ID:           "ev-1",
		Source:       "calendar",
		ChangeType:   "meeting_overrun",
		DeltaMinutes: -45,
		Timestamp:    time.Now(),
	})
	wantStatus(t, resp, http.StatusOK)

	var out eventResponse
	decodeInto(t, resp, &out)
	if out.Dropped {
		t.Fatal("event dropped, want classified")
	}
	if out.Disruption == nil || out.Disruption.Severity != domain.SeverityMajor {
		t.Errorf("disruption = %+v, want MAJOR", out.Disruption)
	}
	if len(out.Swaps) != 1 || out.Swaps[0].TaskID != "bg" {
		t.Errorf("swaps = %+v, want swap_out of bg", out.Swaps)
	}
}

func TestServer_BenignEventReportedAsDropped(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/v1/events", domain.ContextChangeEvent{
		ID: "ev-1", Source: "calendar", ChangeType: "meeting_ended_early",
		DeltaMinutes: 2, Timestamp: time.Now(),
	})
	wantStatus(t, resp, http.StatusOK)
	var out eventResponse
	decodeInto(t, resp, &out)
	if !out.Dropped || out.Disruption != nil {
		t.Errorf("response = %+v, want dropped", out)
	}
}

func TestServer_MalformedEventIs400(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv, "/v1/events", domain.ContextChangeEvent{DeltaMinutes: 60})
	wantStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

// ─── Energy + Delegation ────────────────────────────────────────────────────

func TestServer_EnergyRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv, "/v1/tasks", domain.Task{ID: "t5", Title: "replies",
		Priority: domain.P3Background, DurationMinutes: 20, EnergyCost: 1,
		Delegable: true, Type: "email_reply"}).Body.Close()
	postJSON(t, srv, "/v1/plan", map[string]int{"available_minutes": 480}).Body.Close()

	resp := postJSON(t, srv, "/v1/energy", domain.EnergyLevel{
		Level: 1, Provenance: domain.EnergyUserReported,
	})
	wantStatus(t, resp, http.StatusOK)
	var out energyResponse
	decodeInto(t, resp, &out)
	if out.Energy.Level != 1 {
		t.Errorf("energy = %+v, want level 1", out.Energy)
	}
	if len(out.Delegated) != 1 || out.Delegated[0].TaskID != "t5" {
		t.Fatalf("delegated = %+v, want t5", out.Delegated)
	}

	// Worker acknowledges completion.
	ack := postJSON(t, srv, "/v1/delegations/ack", domain.DelegationResult{
		TaskID: "t5", Outcome: domain.DelegationCompleted,
	})
	wantStatus(t, ack, http.StatusOK)
	ack.Body.Close()

	// A second ack for the same task is no longer pending.
	again := postJSON(t, srv, "/v1/delegations/ack", domain.DelegationResult{
		TaskID: "t5", Outcome: domain.DelegationCompleted,
	})
	wantStatus(t, again, http.StatusNotFound)
	again.Body.Close()
}

func TestServer_GetEnergy(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/energy")
	if err != nil {
		t.Fatalf("GET /v1/energy: %v", err)
	}
	wantStatus(t, resp, http.StatusOK)
	var e domain.EnergyLevel
	decodeInto(t, resp, &e)
	if e.Level < 1 || e.Level > 5 {
		t.Errorf("Level = %d, want 1-5", e.Level)
	}
	if e.Provenance != domain.EnergyTimeBased {
		t.Errorf("Provenance = %s, want time_based", e.Provenance)
	}
}

// ─── Rate Limiting ──────────────────────────────────────────────────────────

func TestServer_EventRateLimit(t *testing.T) {
	log := zerolog.Nop()
	st := store.New(nil, log)
	est := energy.New(energy.DefaultConfig(), nil, log)
	planner := lts.New(lts.DefaultConfig(), st, est, nil, log)
	classifier := disruption.New(disruption.DefaultConfig(), st, nil, nil, log)
	swapper := mts.New(st, planner, nil, log)
	queue := sts.New(st, nil, log)
	gateway := delegation.New(delegation.DefaultConfig(), st, log)
	eng := kernel.New(st, planner, classifier, swapper, queue, gateway, est, eventbus.New(), log)

	srv := httptest.NewServer(NewServer(eng, 1, log).Handler()) // burst of 2
	defer srv.Close()

	limited := false
	for i := 0; i < 10; i++ {
		resp := postJSON(t, srv, "/v1/events", domain.ContextChangeEvent{
			ID: "ev", Source: "calendar", ChangeType: "x",
			DeltaMinutes: 1, Timestamp: time.Now(),
		})
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
		resp.Body.Close()
	}
	if !limited {
		t.Error("no request was rate limited at 1 event/s")
	}
}
