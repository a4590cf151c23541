package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/conn-castle/dextctl/internal/command"
	"github.com/conn-castle/dextctl/internal/logging"
	"github.com/conn-castle/dextctl/internal/messages"
)

// Options configures a Coordinator.
type Options struct {
	Label             string
	DaemonName        string
	PlistPath         string
	Domain            string
	SupervisorFormula string
	// CommandTimeout bounds each query; zero means command.DefaultTimeout.
	CommandTimeout time.Duration
	Runner         command.Runner
	System         System
	Logger         logrus.FieldLogger
}

// Coordinator cross-checks launchd, the supervisor, and the process table.
type Coordinator struct {
	opts   Options
	logger logrus.FieldLogger
}

// NewCoordinator returns a Coordinator. Nil Runner and System use the host.
func NewCoordinator(opts Options) *Coordinator {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = command.DefaultTimeout
	}
	if opts.Runner == nil {
		opts.Runner = command.ExecRunner{Timeout: opts.CommandTimeout}
	}
	if opts.System == nil {
		opts.System = RealSystem{}
	}
	if opts.Domain == "" {
		opts.Domain = "system"
	}
	return &Coordinator{
		opts:   opts,
		logger: logging.Component(opts.Logger, logging.ComponentService),
	}
}

func (c *Coordinator) run(ctx context.Context, name string, args ...string) command.Result {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CommandTimeout)
	defer cancel()
	res := c.opts.Runner.Run(ctx, name, args...)
	entry := c.logger.WithFields(logrus.Fields{"command": res.CommandLine(), "exit": res.ExitCode})
	if res.TimedOut {
		entry.Warn("system query timed out")
	} else {
		entry.Debug("system query finished")
	}
	return res
}

type queryState struct {
	known      bool
	permission bool
	detail     string
}

func (c *Coordinator) classify(res command.Result) queryState {
	if res.OK() {
		return queryState{known: true}
	}
	state := queryState{permission: res.PermissionDenied()}
	if f := res.Fault(); f != nil {
		state.detail = f.Message
	}
	return state
}

// Reconcile queries launchd, the supervisor, and the process table and cross-checks them.
// A query that fails or times out is reported in Status.Unknown, never as "not running".
func (c *Coordinator) Reconcile(ctx context.Context) Status {
	var status Status

	launchdRes := c.run(ctx, "launchctl", "list")
	launchd := c.classify(launchdRes)
	var job launchdJob
	var hasJob bool
	if launchd.known {
		job, hasJob = parseLaunchctlList(string(launchdRes.Stdout))[c.opts.Label]
	} else {
		status.Unknown = append(status.Unknown, messages.ServiceQueryLaunchd)
	}

	supervisorRes := c.run(ctx, "brew", "services", "list")
	supervisor := c.classify(supervisorRes)
	var row supervisorRow
	var hasRow bool
	if supervisor.known {
		row, hasRow = parseBrewServices(string(supervisorRes.Stdout))[c.opts.SupervisorFormula]
	} else {
		status.Unknown = append(status.Unknown, messages.ServiceQuerySupervisor)
	}

	// pgrep exits 1 when nothing matches, which is a definite "not running".
	processRes := c.run(ctx, "pgrep", "-x", c.opts.DaemonName)
	process := c.classify(processRes)
	var pids []int
	if process.known {
		pids = parsePgrep(string(processRes.Stdout))
	} else if processRes.ExitCode == 1 && !processRes.TimedOut && len(processRes.Stderr) == 0 {
		process = queryState{known: true}
	} else {
		status.Unknown = append(status.Unknown, messages.ServiceQueryProcess)
	}

	status.IndependentlyManaged = hasJob
	if hasRow {
		status.SupervisorState = row.Status
		status.SupervisorRegistered = row.Status != "none"
	}
	switch {
	case hasJob && job.PID != nil:
		status.ProcessRunning = true
		status.PID = intPtr(*job.PID)
	case len(pids) > 0:
		status.ProcessRunning = true
		status.PID = intPtr(pids[0])
	}

	if launchd.known && supervisor.known {
		if hasRow && row.Status == "started" && !hasJob {
			status.Issues = append(status.Issues, Issue{
				Kind:    IssueRegistrationMismatch,
				Message: fmt.Sprintf(messages.ServiceRegistrationMismatchFmt, c.opts.SupervisorFormula, c.opts.Label),
			})
		}
		if hasJob && !status.SupervisorRegistered {
			status.Issues = append(status.Issues, Issue{
				Kind:    IssueSupervisorDisconnected,
				Message: fmt.Sprintf(messages.ServiceSupervisorDisconnectedFmt, c.opts.Label, c.opts.SupervisorFormula),
			})
		}
	}
	if launchd.known && process.known {
		for _, pid := range pids {
			if hasJob && job.PID != nil && *job.PID == pid {
				continue
			}
			status.Issues = append(status.Issues, Issue{
				Kind:    IssueOrphanedProcess,
				PID:     pid,
				Message: fmt.Sprintf(messages.ServiceOrphanedProcessFmt, c.opts.DaemonName, pid, c.opts.Label),
			})
		}
	}
	for _, q := range []struct {
		name  string
		state queryState
	}{
		{messages.ServiceQueryLaunchd, launchd},
		{messages.ServiceQuerySupervisor, supervisor},
		{messages.ServiceQueryProcess, process},
	} {
		if q.state.permission {
			status.Issues = append(status.Issues, Issue{
				Kind:    IssuePrivilegeEscalation,
				Query:   q.name,
				Message: fmt.Sprintf(messages.ServicePrivilegeFailureFmt, q.name, q.state.detail),
			})
		}
	}

	c.logger.WithFields(logrus.Fields{
		"supervisor_registered": status.SupervisorRegistered,
		"launchd_registered":    status.IndependentlyManaged,
		"running":               status.ProcessRunning,
		"issues":                len(status.Issues),
		"unknown":               len(status.Unknown),
	}).Info("service status reconciled")
	return status
}

func (c *Coordinator) jobTarget() string {
	return c.opts.Domain + "/" + c.opts.Label
}
