package session

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/creack/pty"

	"github.com/orchestrace/control-plane/log"
)

const tmuxPrefix = "orchestratord_"

var whiteSpaceRegex = regexp.MustCompile(`\s+`)

func toTmuxName(sessionID string) string {
	s := whiteSpaceRegex.ReplaceAllString(sessionID, "")
	s = strings.ReplaceAll(s, ".", "_")
	return tmuxPrefix + s
}

// Terminal is a spawned interactive terminal bound to one session,
// grounded on session/tmux/tmux.go's tmux-backed pty lifecycle, generalized
// from a coding-CLI-specific session to an arbitrary agent shell.
type Terminal struct {
	sanitizedName string
	ptmx          *os.File
}

// NewTerminal allocates (but does not yet start) a terminal for sessionID.
func NewTerminal(sessionID string) *Terminal {
	return &Terminal{sanitizedName: toTmuxName(sessionID)}
}

// Start creates a detached tmux session running shellCommand in workDir and
// attaches a pty to it, polling for existence with exponential backoff.
func (t *Terminal) Start(workDir, shellCommand string) error {
	if t.exists() {
		return fmt.Errorf("terminal: tmux session already exists: %s", t.sanitizedName)
	}

	cmd := exec.Command("tmux", "new-session", "-d", "-s", t.sanitizedName, "-c", workDir, shellCommand)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("terminal: failed to start tmux session: %w", err)
	}

	timeout := time.After(2 * time.Second)
	sleep := 5 * time.Millisecond
	for !t.exists() {
		select {
		case <-timeout:
			ptmx.Close()
			return fmt.Errorf("terminal: timed out waiting for tmux session %s", t.sanitizedName)
		default:
			time.Sleep(sleep)
			if sleep < 50*time.Millisecond {
				sleep *= 2
			}
		}
	}
	ptmx.Close()

	attach, err := pty.Start(exec.Command("tmux", "attach-session", "-t", t.sanitizedName))
	if err != nil {
		return fmt.Errorf("terminal: failed to attach: %w", err)
	}
	t.ptmx = attach
	return nil
}

func (t *Terminal) exists() bool {
	cmd := exec.Command("tmux", "has-session", fmt.Sprintf("-t=%s", t.sanitizedName))
	return cmd.Run() == nil
}

// CapturePaneContent returns the current rendered content of the terminal.
func (t *Terminal) CapturePaneContent() (string, error) {
	cmd := exec.Command("tmux", "capture-pane", "-p", "-e", "-J", "-t", t.sanitizedName)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("terminal: failed to capture pane: %w", err)
	}
	return string(out), nil
}

// Close kills the tmux session and releases the pty.
func (t *Terminal) Close() error {
	var errs []error
	if t.ptmx != nil {
		if err := t.ptmx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing pty: %w", err))
		}
		t.ptmx = nil
	}
	if err := exec.Command("tmux", "kill-session", "-t", t.sanitizedName).Run(); err != nil {
		log.WarningLog.Printf("terminal: kill-session %s: %v", t.sanitizedName, err)
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := "terminal: multiple errors:"
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
