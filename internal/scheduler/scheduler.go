// Package scheduler drives the periodic agent runs for ClientFlow.
//
// Agents are registered with cron expressions and executed on the wrapped
// robfig/cron scheduler. A run that panics is recovered by the cron chain so
// one bad batch never takes down the process.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/edumesones/clientflow-pro/internal/agents"
)

// Scheduler provides cron-based agent scheduling.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New creates and starts a cron scheduler. ctx is the base context handed to
// every agent run.
func New(ctx context.Context) *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c, ctx: ctx}
}

// Register schedules an agent with the given cron expression. It returns an
// error if the expression is invalid.
func (s *Scheduler) Register(expr string, agent agents.Agent) error {
	_, err := s.cron.AddFunc(expr, func() { runAgent(s.ctx, agent) })
	if err != nil {
		return err
	}
	slog.Info("Scheduler registered agent", "agent", agent.Name(), "schedule", expr)
	return nil
}

// RunNow executes an agent immediately, outside its schedule.
func (s *Scheduler) RunNow(agent agents.Agent) {
	runAgent(s.ctx, agent)
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func runAgent(ctx context.Context, agent agents.Agent) {
	summary := agent.Run(ctx)
	if len(summary.Errors) > 0 {
		slog.Error("agent run finished with errors", "agent", summary.Agent, "counts", summary.Counts, "errors", summary.Errors)
		return
	}
	slog.Info("agent run finished", "agent", summary.Agent, "counts", summary.Counts)
}
