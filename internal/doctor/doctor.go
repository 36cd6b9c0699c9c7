// Package doctor validates farmctl configuration and the worker environment.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/mattjoyce/farmctl/internal/config"
	"github.com/mattjoyce/farmctl/internal/storage"
	"github.com/mattjoyce/farmctl/internal/supervisor"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// RunningFinder reports an already-running worker for a binary.
type RunningFinder func(ctx context.Context, binary string) (int32, bool, error)

// Doctor validates a loaded configuration against the local machine.
type Doctor struct {
	cfg         *config.Config
	findRunning RunningFinder
	checkFS     func(path string) error
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{
		cfg:         cfg,
		findRunning: supervisor.FindRunning,
		checkFS:     storage.CheckFilesystem,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateConfig(r)
	d.validateWorker(r)
	d.validateEndpoint(r)
	d.validateState(r)
	d.warnAlreadyRunning(ctx, r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateConfig re-runs schema validation so programmatic configs are covered.
func (d *Doctor) validateConfig(r *Result) {
	if err := config.Validate(d.cfg); err != nil {
		d.addError(r, "config", "", err.Error())
	}
}

// validateWorker checks the local worker executable.
func (d *Doctor) validateWorker(r *Result) {
	w := d.cfg.Worker
	if !d.cfg.IsLocal() {
		if w.Binary != "" {
			d.addWarning(r, "worker", "worker.binary", "ignored in remote mode")
		}
		return
	}
	if err := supervisor.ValidateBinary(w.Binary); err != nil {
		d.addError(r, "worker", "worker.binary", err.Error())
	}
	if w.SettleDelay == 0 {
		d.addWarning(r, "worker", "worker.settle_delay",
			"roster is requested immediately after start; the worker may not be listening yet")
	}
}

// validateEndpoint checks the control endpoint and its credential.
func (d *Doctor) validateEndpoint(r *Result) {
	ep := d.cfg.Endpoint
	u, err := url.Parse(ep.URL)
	if err != nil || u.Host == "" {
		d.addError(r, "endpoint", "endpoint.url", fmt.Sprintf("cannot parse %q", ep.URL))
		return
	}
	if ep.Credential == "" {
		d.addWarning(r, "endpoint", "endpoint.credential", "no credential configured; requests are sent unauthenticated")
	}
	if u.Scheme == "http" && !isLoopback(u.Hostname()) && ep.Credential != "" {
		d.addWarning(r, "endpoint", "endpoint.url", "credential is sent in clear text to a non-local host; use https")
	}
}

func (d *Doctor) validateState(r *Result) {
	if err := d.checkFS(d.cfg.State.Path); err != nil {
		d.addError(r, "state", "state.path", err.Error())
	}
}

// warnAlreadyRunning flags a worker started outside this controller.
func (d *Doctor) warnAlreadyRunning(ctx context.Context, r *Result) {
	if !d.cfg.IsLocal() || d.cfg.Worker.Binary == "" || d.findRunning == nil {
		return
	}
	pid, found, err := d.findRunning(ctx, d.cfg.Worker.Binary)
	if err != nil {
		d.addWarning(r, "worker", "", fmt.Sprintf("could not list processes: %v", err))
		return
	}
	if found {
		d.addWarning(r, "worker", "worker.binary",
			fmt.Sprintf("worker already running (pid %d); starting another instance will conflict", pid))
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
