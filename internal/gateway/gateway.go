// Package gateway drives the fixed SSH wrapper script that starts, kills and
// inspects pipeline runs on the compute host. The wrapper is the only
// transport to the remote side; this package owns its process lifecycle and
// timeouts.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/ngslab/seqportal/internal/config"
)

// ErrTimeout marks a wrapper invocation that exceeded its deadline, as
// opposed to one that ran and failed.
var ErrTimeout = errors.New("ssh command timed out")

// Gateway is the interface the job lifecycle service depends on.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Run dispatches a pipeline start fire-and-forget and returns the local
	// wrapper PID. Success means the wrapper process was launched, not that
	// the remote pipeline succeeded.
	Run(ctx context.Context, analysisType, inputPath, samples, jobCode string) (int, error)
	// Kill requests termination of a running job. It does not confirm the
	// remote process actually died, only that the kill command succeeded.
	Kill(ctx context.Context, jobID, jobType string) error
	// FetchLog returns the remote pipeline log for an input folder.
	FetchLog(ctx context.Context, inputPath, jobType string) (string, error)
}

// SSHGateway implements Gateway by invoking the wrapper executable as
// `<wrapper> <verb> <args...>`.
type SSHGateway struct {
	wrapperPath    string
	commandTimeout time.Duration
	killTimeout    time.Duration
	logTimeout     time.Duration
	log            *slog.Logger
}

// NewSSHGateway creates an SSHGateway from config. A nil logger falls back
// to slog.Default.
func NewSSHGateway(cfg config.GatewayConfig, log *slog.Logger) *SSHGateway {
	if log == nil {
		log = slog.Default()
	}
	g := &SSHGateway{
		wrapperPath:    cfg.WrapperPath,
		commandTimeout: cfg.CommandTimeout,
		killTimeout:    cfg.KillTimeout,
		logTimeout:     cfg.LogTimeout,
		log:            log,
	}
	if g.commandTimeout <= 0 {
		g.commandTimeout = 30 * time.Second
	}
	if g.killTimeout <= 0 {
		g.killTimeout = 10 * time.Second
	}
	if g.logTimeout <= 0 {
		g.logTimeout = 15 * time.Second
	}
	return g
}

func (g *SSHGateway) Run(ctx context.Context, analysisType, inputPath, samples, jobCode string) (int, error) {
	args := []string{"run", analysisType, inputPath, samples, jobCode}
	cmd := exec.Command(g.wrapperPath, args...)

	if err := cmd.Start(); err != nil {
		g.log.Error("failed to launch ssh wrapper", "args", args, "error", err)
		return 0, fmt.Errorf("launch ssh wrapper: %w", err)
	}
	pid := cmd.Process.Pid

	// Reap the wrapper in the background so it never lingers as a zombie.
	// The run verb is fire-and-forget: nobody waits on the outcome here.
	go func() {
		if err := cmd.Wait(); err != nil {
			g.log.Warn("ssh wrapper run exited with error", "pid", pid, "error", err)
		}
	}()

	g.log.Info("started background ssh command", "verb", "run", "args", args, "pid", pid)
	return pid, nil
}

func (g *SSHGateway) Kill(ctx context.Context, jobID, jobType string) error {
	_, err := g.exec(ctx, g.killTimeout, false, "kill", jobID, jobType)
	return err
}

func (g *SSHGateway) FetchLog(ctx context.Context, inputPath, jobType string) (string, error) {
	out, err := g.exec(ctx, g.logTimeout, true, "get_log", inputPath, jobType)
	if err != nil {
		return "", err
	}
	return out, nil
}

// exec runs the wrapper synchronously with the given verb, capturing stdout
// when asked. A non-zero exit returns stderr as the error text; a deadline
// returns ErrTimeout wrapped with the timeout that fired.
func (g *SSHGateway) exec(ctx context.Context, timeout time.Duration, captureStdout bool, verb string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdArgs := append([]string{verb}, args...)
	cmd := exec.CommandContext(ctx, g.wrapperPath, cmdArgs...)

	var stdout, stderr bytes.Buffer
	if captureStdout {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	g.log.Info("executed ssh command", "verb", verb, "args", args, "error", err)

	if ctx.Err() == context.DeadlineExceeded {
		g.log.Error("ssh command timeout", "verb", verb, "timeout", timeout)
		return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = "unknown ssh error"
		}
		g.log.Error("ssh command failed", "verb", verb, "error", errMsg)
		return "", errors.New(errMsg)
	}

	return strings.TrimSpace(stdout.String()), nil
}
