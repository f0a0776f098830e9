package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/brandai/internal/chat"
	"github.com/flemzord/brandai/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&ProbeModule{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*ProbeModule)(nil)
	_ core.Provisioner  = (*ProbeModule)(nil)
	_ core.Validator    = (*ProbeModule)(nil)
	_ core.Starter      = (*ProbeModule)(nil)
	_ core.Stopper      = (*ProbeModule)(nil)
)

// ProbeConfig configures the cron.probe module.
type ProbeConfig struct {
	// Schedule is a cron expression or descriptor. Defaults to "@every 1m".
	Schedule string `yaml:"schedule"`

	// RunOnStart probes once when the module starts. Defaults to true.
	RunOnStart *bool `yaml:"run_on_start"`
}

func (c *ProbeConfig) defaults() {
	if c.Schedule == "" {
		c.Schedule = DefaultProbeSchedule
	}
	if c.RunOnStart == nil {
		t := true
		c.RunOnStart = &t
	}
}

// ProbeModule periodically tests provider connectivity through the shared
// chat router, feeding its health board.
type ProbeModule struct {
	config    ProbeConfig
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *ProbeModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cron.probe",
		New: func() core.Module { return &ProbeModule{} },
	}
}

// Configure implements core.Configurable.
func (m *ProbeModule) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *ProbeModule) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (m *ProbeModule) Validate() error {
	return ValidateSchedule(m.config.Schedule)
}

// Start implements core.Starter. The router is resolved lazily because it
// is wired after all modules are provisioned.
func (m *ProbeModule) Start() error {
	svc, ok := m.appCtx.Service(chat.RouterService)
	if !ok {
		return errors.New("cron: chat router service not available")
	}
	tester, ok := svc.(Tester)
	if !ok {
		return fmt.Errorf("cron: service %s has type %T, want a connection tester", chat.RouterService, svc)
	}

	job := &ProbeJob{Tester: tester, Logger: m.logger, ScheduleExpr: m.config.Schedule}
	m.scheduler = NewScheduler(m.logger)
	if err := m.scheduler.RegisterJob(job); err != nil {
		return err
	}
	if err := m.scheduler.Start(); err != nil {
		return err
	}
	if *m.config.RunOnStart {
		go m.scheduler.RunNow(m.scheduler.ctx, job.Name())
	}
	return nil
}

// Stop implements core.Stopper.
func (m *ProbeModule) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}
