package sources

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/pubsync/internal/logger"
)

//go:embed scholarly_bridge.py
var scholarlyBridge string

// bridgeMissingModule is the exit status the bridge uses when the scholarly
// package cannot be imported.
const bridgeMissingModule = 3

// commandRunner runs name with args and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ScholarlyLookup drives the Python scholarly package through an embedded
// bridge script.
type ScholarlyLookup struct {
	python  string
	timeout time.Duration
	run     commandRunner
}

// NewScholarlyLookup builds the lookup. A nil runner executes real processes.
func NewScholarlyLookup(python string, timeout time.Duration, run commandRunner) *ScholarlyLookup {
	if strings.TrimSpace(python) == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if run == nil {
		run = execRunner
	}
	return &ScholarlyLookup{python: python, timeout: timeout, run: run}
}

func (l *ScholarlyLookup) Backend() string { return BackendScholarly }

type bridgeReply struct {
	Publications []LookupEntry `json:"publications"`
}

// Lookup runs the bridge for authorID and decodes its JSON reply.
func (l *ScholarlyLookup) Lookup(ctx context.Context, authorID string, limit int) ([]LookupEntry, error) {
	if strings.TrimSpace(authorID) == "" {
		return nil, fmt.Errorf("%w: scholar user id is empty", ErrLookupUnavailable)
	}
	if limit <= 0 {
		limit = defaultLookupLimit
	}

	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	out, err := l.run(runCtx, l.python, "-c", scholarlyBridge, authorID, strconv.Itoa(limit))
	if err != nil {
		return nil, classifyRunError(l.python, err)
	}

	var reply bridgeReply
	if err := json.Unmarshal(out, &reply); err != nil {
		return nil, fmt.Errorf("decode scholarly bridge output: %w", err)
	}
	return reply.Publications, nil
}

type exitCoder interface {
	ExitCode() int
}

func classifyRunError(python string, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: python interpreter %q not found", ErrLookupUnavailable, python)
	}
	var coded exitCoder
	if errors.As(err, &coded) && coded.ExitCode() == bridgeMissingModule {
		return fmt.Errorf("%w: scholarly module is not installed", ErrLookupUnavailable)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("scholarly bridge: %w: %s", err, responseSnippet(exitErr.Stderr))
	}
	return fmt.Errorf("scholarly bridge: %w", err)
}

// ScholarlyInstaller installs the scholarly package with pip. It is the
// one-shot remedy for a scholarly-backed lookup.
type ScholarlyInstaller struct {
	python string
	run    commandRunner
	log    logger.Logger
}

// NewScholarlyInstaller builds the installer. A nil runner executes real processes.
func NewScholarlyInstaller(python string, run commandRunner, log logger.Logger) *ScholarlyInstaller {
	if strings.TrimSpace(python) == "" {
		python = "python3"
	}
	if run == nil {
		run = execRunner
	}
	return &ScholarlyInstaller{python: python, run: run, log: logger.Ensure(log)}
}

// Apply runs `<python> -m pip install scholarly --quiet`.
func (i *ScholarlyInstaller) Apply(ctx context.Context) error {
	i.log.InfoObj("installing scholarly package", "remedy", map[string]any{
		"python": i.python,
	})
	if _, err := i.run(ctx, i.python, "-m", "pip", "install", "scholarly", "--quiet"); err != nil {
		return fmt.Errorf("pip install scholarly: %w", err)
	}
	return nil
}
