package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/aymanbagabas/go-udiff"

	"github.com/conn-castle/dextctl/internal/bundle"
	"github.com/conn-castle/dextctl/internal/fault"
	"github.com/conn-castle/dextctl/internal/messages"
)

// DefaultDiffMaxLines caps PlistDiff output when no limit is given.
const DefaultDiffMaxLines = 40

// EnsureRegistration installs the bundle's daemon plist when the installed copy differs and
// bootstraps the job when launchd does not know it. The returned rollback actions undo what was
// done, newest last; they are returned even when a later step fails.
func (c *Coordinator) EnsureRegistration(ctx context.Context, desc bundle.Descriptor) ([]RollbackAction, error) {
	var actions []RollbackAction

	src := bundle.DaemonPlistPath(desc.Path, c.opts.Label)
	bundled, err := c.opts.System.ReadFile(src)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.WithField("path", src).Debug(messages.ServiceBundlePlistMissing)
	case err != nil:
		return actions, fault.Wrap(fault.CodeFilesystem, err, messages.ServiceInstalledPlistFmt, c.opts.PlistPath)
	default:
		action, changed, err := c.installPlist(bundled)
		if err != nil {
			return actions, err
		}
		if changed {
			actions = append(actions, action)
		}
	}

	res := c.run(ctx, "launchctl", "list")
	if f := res.Fault(); f != nil {
		return actions, f
	}
	if _, ok := parseLaunchctlList(string(res.Stdout))[c.opts.Label]; ok {
		return actions, nil
	}

	boot := c.run(ctx, "launchctl", "bootstrap", c.opts.Domain, c.opts.PlistPath)
	if f := boot.Fault(); f != nil {
		return actions, f
	}
	c.logger.WithField("label", c.opts.Label).Infof(messages.ServiceBootstrapFmt, c.opts.Label, c.opts.Domain)
	actions = append(actions, c.bootoutAction())
	return actions, nil
}

// bootoutAction removes the job from launchd again.
func (c *Coordinator) bootoutAction() RollbackAction {
	target := c.jobTarget()
	return RollbackAction{
		Description: fmt.Sprintf(messages.ServiceBootoutFmt, c.opts.Label, c.opts.Domain),
		Undo: func(ctx context.Context) error {
			if f := c.run(ctx, "launchctl", "bootout", target).Fault(); f != nil {
				return f
			}
			return nil
		},
	}
}

// supervisorStopAction drops the formula's supervisor registration again.
func (c *Coordinator) supervisorStopAction() RollbackAction {
	formula := c.opts.SupervisorFormula
	return RollbackAction{
		Description: fmt.Sprintf(messages.ServiceSupervisorStopFmt, formula),
		Undo: func(ctx context.Context) error {
			if f := c.run(ctx, "brew", "services", "stop", formula).Fault(); f != nil {
				return f
			}
			return nil
		},
	}
}

// installPlist writes bundled over the installed plist when they differ, snapshotting the
// previous content for rollback.
func (c *Coordinator) installPlist(bundled []byte) (RollbackAction, bool, error) {
	dst := c.opts.PlistPath
	previous, err := c.opts.System.ReadFile(dst)
	existed := true
	if errors.Is(err, fs.ErrNotExist) {
		existed = false
	} else if err != nil {
		return RollbackAction{}, false, fault.Wrap(fault.CodeFilesystem, err, messages.ServiceInstalledPlistFmt, dst)
	}
	if existed && bytes.Equal(previous, bundled) {
		return RollbackAction{}, false, nil
	}
	if err := c.opts.System.WriteFileAtomic(dst, bundled, 0o644); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return RollbackAction{}, false, fault.Wrap(fault.CodePrivilegeEscalation, err, messages.ServiceInstalledPlistFmt, dst)
		}
		return RollbackAction{}, false, fault.Wrap(fault.CodeFilesystem, err, messages.ServiceInstalledPlistFmt, dst)
	}
	c.logger.WithField("path", dst).Infof(messages.ServiceInstalledPlistFmt, dst)

	if !existed {
		return RollbackAction{
			Description: fmt.Sprintf(messages.ServiceRemovePlistFmt, dst),
			Undo: func(context.Context) error {
				if err := c.opts.System.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				return nil
			},
		}, true, nil
	}
	snapshot := append([]byte(nil), previous...)
	return RollbackAction{
		Description: fmt.Sprintf(messages.ServiceRestorePlistFmt, dst),
		Undo: func(context.Context) error {
			return c.opts.System.WriteFileAtomic(dst, snapshot, 0o644)
		},
	}, true, nil
}

// PlistDiff renders the difference between the installed daemon plist and the bundle's copy.
// A missing installed plist diffs against empty content.
func (c *Coordinator) PlistDiff(desc bundle.Descriptor, maxLines int) (DiffPreview, error) {
	src := bundle.DaemonPlistPath(desc.Path, c.opts.Label)
	bundled, err := c.opts.System.ReadFile(src)
	if err != nil {
		return DiffPreview{}, fmt.Errorf(messages.ServiceReadPlistFmt, src, err)
	}
	installed, err := c.opts.System.ReadFile(c.opts.PlistPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return DiffPreview{}, fmt.Errorf(messages.ServiceReadPlistFmt, c.opts.PlistPath, err)
	}
	preview := DiffPreview{
		InstalledPath: c.opts.PlistPath,
		BundledPath:   src,
		Changed:       !bytes.Equal(installed, bundled),
	}
	if !preview.Changed {
		return preview, nil
	}
	preview.UnifiedDiff, preview.Truncated = renderTruncatedUnifiedDiff(
		fmt.Sprintf(messages.ServiceDiffInstalledFmt, c.opts.PlistPath),
		fmt.Sprintf(messages.ServiceDiffBundledFmt, src),
		string(installed),
		string(bundled),
		maxLines,
	)
	return preview, nil
}

func renderTruncatedUnifiedDiff(fromName, toName, fromContent, toContent string, maxLines int) (string, bool) {
	limit := maxLines
	if limit <= 0 {
		limit = DefaultDiffMaxLines
	}
	diff := udiff.Unified(fromName, toName, fromContent, toContent)
	lines := splitDiffLines(diff)
	if len(lines) <= limit {
		return ensureTrailingNewline(strings.Join(lines, "\n")), false
	}
	truncated := append(lines[:limit:limit], fmt.Sprintf(messages.ServiceDiffTruncatedFmt, limit))
	return ensureTrailingNewline(strings.Join(truncated, "\n")), true
}

func splitDiffLines(content string) []string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "\n")
}

func ensureTrailingNewline(content string) string {
	if content == "" || strings.HasSuffix(content, "\n") {
		return content
	}
	return content + "\n"
}
