package probe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/station-conditions-service/internal/client"
	"github.com/kjstillabower/station-conditions-service/internal/models"
	"github.com/kjstillabower/station-conditions-service/internal/service"
)

type mockResolver struct {
	mu      sync.Mutex
	results map[string]models.ResolutionResult
	errs    map[string]error
	queries []string
	block   bool
}

func (m *mockResolver) Resolve(ctx context.Context, query string) (models.ResolutionResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	block := m.block
	m.mu.Unlock()
	if block {
		<-ctx.Done()
		return models.ResolutionResult{}, ctx.Err()
	}
	return m.results[query], m.errs[query]
}

func (m *mockResolver) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

func okResult(id string) models.ResolutionResult {
	station := models.StationID(id)
	temp := 10.0
	return models.ResolutionResult{
		Label:       id,
		StationID:   &station,
		Observation: &models.Observation{Temperature: &models.Measurement{Value: &temp}},
	}
}

// TestProber_Run verifies every location is probed, results keep location order,
// and only upstream failures are returned as errors.
func TestProber_Run(t *testing.T) {
	// Arrange
	resolver := &mockResolver{
		results: map[string]models.ResolutionResult{
			"Seattle": okResult("KSEA"),
			"Nowhere": {Label: "Nowhere"},
		},
		errs: map[string]error{
			"Atlantis": service.ErrNotFound,
			"Portland": &client.ServiceError{Stage: client.UpstreamPoints, StatusCode: 503},
		},
	}
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewProber(resolver, []string{"Seattle", "Nowhere", "Atlantis", "Portland"}, time.Second, zap.New(core))

	// Act
	results, err := p.Run(context.Background())

	// Assert
	if err == nil || !strings.Contains(err.Error(), "Portland") {
		t.Fatalf("Run() error = %v, want failure mentioning Portland", err)
	}
	if errors.Is(err, service.ErrNotFound) {
		t.Errorf("Run() error includes not-found, want only upstream failures")
	}
	want := []struct {
		loc     string
		outcome string
	}{
		{"Seattle", service.OutcomeOK},
		{"Nowhere", service.OutcomeNoData},
		{"Atlantis", service.OutcomeNotFound},
		{"Portland", service.OutcomeUpstreamError},
	}
	if len(results) != len(want) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].Location != w.loc || results[i].Outcome != w.outcome {
			t.Errorf("results[%d] = %s/%s, want %s/%s", i, results[i].Location, results[i].Outcome, w.loc, w.outcome)
		}
	}
	if results[0].Station != "KSEA" {
		t.Errorf("results[0].Station = %q, want KSEA", results[0].Station)
	}
	if n := logs.FilterMessage("probe location without data").Len(); n != 3 {
		t.Errorf("warn logs = %d, want 3", n)
	}
}

func TestProber_RunAllOK(t *testing.T) {
	resolver := &mockResolver{results: map[string]models.ResolutionResult{"A": okResult("A"), "B": okResult("B")}}

	results, err := NewProber(resolver, []string{"A", "B"}, 0, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if len(results) != 2 || resolver.calls() != 2 {
		t.Errorf("results = %d calls = %d, want 2 and 2", len(results), resolver.calls())
	}
}

// TestProber_PerLocationTimeout verifies a hung location ends as a timeout outcome.
func TestProber_PerLocationTimeout(t *testing.T) {
	resolver := &mockResolver{block: true}

	results, err := NewProber(resolver, []string{"Slow"}, 20*time.Millisecond, nil).Run(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want deadline exceeded", err)
	}
	if results[0].Outcome != service.OutcomeTimeout {
		t.Errorf("Outcome = %q, want timeout", results[0].Outcome)
	}
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler("every now and then", NewProber(&mockResolver{}, nil, 0, nil), nil)
	if err == nil {
		t.Fatal("NewScheduler() expected error for invalid schedule")
	}
}

func TestNewScheduler_DefaultSchedule(t *testing.T) {
	s, err := NewScheduler("", NewProber(&mockResolver{}, nil, 0, nil), nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(s.cron.Entries()))
	}
}

// TestScheduler_RunsAndStops verifies the job fires on schedule and Stop cancels a run in progress.
func TestScheduler_RunsAndStops(t *testing.T) {
	resolver := &mockResolver{block: true}
	s, err := NewScheduler("@every 1s", NewProber(resolver, []string{"Seattle"}, 0, nil), nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for resolver.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if resolver.calls() == 0 {
		t.Fatal("probe did not run within 3s")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v, want running probe cancelled", err)
	}
}
