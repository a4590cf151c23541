package service

import (
	"context"
	"fmt"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
)

const lsofCommand = "lsof"

// ResolveConflicts acts on each issue in status. It never restarts a healthy process.
func (c *Coordinator) ResolveConflicts(ctx context.Context, status Status) []ResolvedConflict {
	results := make([]ResolvedConflict, 0, len(status.Issues))
	for _, issue := range status.Issues {
		var rc ResolvedConflict
		switch issue.Kind {
		case IssueOrphanedProcess:
			rc = c.resolveOrphan(ctx, issue)
		case IssueRegistrationMismatch:
			rc = c.resolveWith(ctx, issue, fmt.Sprintf(messages.ServiceResolvedBootstrapFmt, c.opts.Label), c.bootoutAction(),
				"launchctl", "bootstrap", c.opts.Domain, c.opts.PlistPath)
		case IssueSupervisorDisconnected:
			rc = c.resolveWith(ctx, issue, fmt.Sprintf(messages.ServiceResolvedSupervisorFmt, c.opts.SupervisorFormula), c.supervisorStopAction(),
				"brew", "services", "start", c.opts.SupervisorFormula)
		default:
			rc = ResolvedConflict{Issue: issue, Action: messages.ServiceSkipPrivilege, Err: issue.Fault()}
		}
		entry := c.logger.WithFields(logrus.Fields{"issue": issue.Kind, "resolved": rc.Resolved})
		if rc.Resolved {
			entry.Info(rc.Action)
		} else {
			entry.Warn(rc.Action)
		}
		results = append(results, rc)
	}
	return results
}

func (c *Coordinator) resolveWith(ctx context.Context, issue Issue, action string, undo RollbackAction, name string, args ...string) ResolvedConflict {
	res := c.run(ctx, name, args...)
	if f := res.Fault(); f != nil {
		return ResolvedConflict{Issue: issue, Action: res.CommandLine(), Err: f}
	}
	return ResolvedConflict{Issue: issue, Resolved: true, Action: action, Rollback: &undo}
}

// resolveOrphan terminates an orphaned daemon only when it has no client connections.
func (c *Coordinator) resolveOrphan(ctx context.Context, issue Issue) ResolvedConflict {
	clients, err := c.clientConnections(ctx, issue.PID)
	if err != nil {
		return ResolvedConflict{
			Issue:  issue,
			Action: fmt.Sprintf(messages.ServiceSkipProbeUnknownFmt, issue.PID, err.Message),
			Err:    err,
		}
	}
	if clients > 0 {
		return ResolvedConflict{
			Issue:  issue,
			Action: fmt.Sprintf(messages.ServiceSkipClientsFmt, issue.PID, clients),
			Err:    issue.Fault(),
		}
	}
	if killErr := c.opts.System.Kill(issue.PID, syscall.SIGTERM); killErr != nil {
		return ResolvedConflict{
			Issue:  issue,
			Action: fmt.Sprintf(messages.ServiceTerminateFailedFmt, issue.PID, killErr),
			Err:    fault.Wrap(fault.CodeOrphanedProcess, killErr, messages.ServiceTerminateFailedFmt, issue.PID, killErr),
		}
	}
	return ResolvedConflict{
		Issue:    issue,
		Resolved: true,
		Action:   fmt.Sprintf(messages.ServiceResolvedTerminatedFmt, issue.PID),
	}
}

// clientConnections probes pid's connected sockets. lsof exits 1 with no output when the
// process has none.
func (c *Coordinator) clientConnections(ctx context.Context, pid int) (int, *fault.Error) {
	res := c.run(ctx, lsofCommand, "-nP", "-a", "-p", strconv.Itoa(pid), "-i", "-U", "-F", "tn")
	if res.OK() {
		return countClientConnections(string(res.Stdout)), nil
	}
	if res.ExitCode == 1 && !res.TimedOut && len(res.Stdout) == 0 && len(res.Stderr) == 0 {
		return 0, nil
	}
	return 0, res.Fault()
}
