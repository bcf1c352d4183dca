package scheduler

import (
	"context"
	"testing"

	"github.com/edumesones/clientflow-pro/internal/models"
)

type countingAgent struct {
	runs int
}

func (a *countingAgent) Name() string { return "counting" }

func (a *countingAgent) Run(ctx context.Context) models.RunSummary {
	a.runs++
	return models.NewRunSummary(a.Name())
}

func TestRegisterRejectsInvalidExpression(t *testing.T) {
	s := New(context.Background())
	defer s.Stop()
	if err := s.Register("not a cron line", &countingAgent{}); err == nil {
		t.Error("expected an error for an invalid cron expression")
	}
	if err := s.Register("*/5 * * * *", &countingAgent{}); err != nil {
		t.Errorf("unexpected error for valid expression: %v", err)
	}
}

func TestRunNowExecutesAgent(t *testing.T) {
	s := New(context.Background())
	defer s.Stop()
	agent := &countingAgent{}
	s.RunNow(agent)
	if agent.runs != 1 {
		t.Errorf("expected 1 run, got %d", agent.runs)
	}
}
