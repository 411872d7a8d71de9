package healthcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-forward-split/internal/config"
	"github.com/l3aro/go-forward-split/pkg/flow"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
	"github.com/l3aro/go-forward-split/pkg/source"
)

// Status values of a single check.
const (
	StatusReady   = "ready"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// CheckStatus represents the outcome of one check.
type CheckStatus struct {
	Name   string
	Detail string
	Status string
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	Parser         CheckStatus
	Target         CheckStatus
}

// OK reports whether no check failed.
func (r *HealthCheckResult) OK() bool {
	return r.Parser.Status != StatusError && r.Target.Status != StatusError
}

// parserProbe exercises every construct class the analyzer must handle.
const parserProbe = `h = self.embed(ids)
for blk in self.blocks:
    h = blk(h, mask=[m for m in masks if m])
out = (lambda v: v * scale)(h)
return out
`

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
// probeFile, when set, is loaded and its target class is looked up.
func Check(cfg *config.Config, savedPath, effectivePath, probeFile, probeClass string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	result.Parser = checkParser(cfg)
	result.Target = checkTarget(cfg, probeFile, probeClass)

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".fsplit")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// checkParser parses and analyzes a fixed snippet with the configured receiver.
func checkParser(cfg *config.Config) CheckStatus {
	status := CheckStatus{Name: "parser", Detail: "tree-sitter python"}

	stmts, err := pysyntax.ParseStatements(parserProbe)
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	res, err := flow.Analyze(stmts, flow.WithReceiver("self"))
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	if !res.ReadBeforeWrite.Has("ids") || res.ReadBeforeWrite.Has("m") {
		status.Status = StatusError
		status.Error = fmt.Sprintf("unexpected read-before-write set %v", res.ReadBeforeWrite.Sorted())
		return status
	}

	status.Status = StatusReady
	status.Detail = fmt.Sprintf("tree-sitter python, receiver %q", cfg.Receiver)
	return status
}

// checkTarget loads probeFile and looks up the configured method on probeClass.
func checkTarget(cfg *config.Config, probeFile, probeClass string) CheckStatus {
	status := CheckStatus{Name: "target"}
	if probeFile == "" {
		status.Status = StatusSkipped
		return status
	}

	loader, err := source.NewLoader(0, nil)
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	m, err := loader.Load(probeFile)
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}

	classes := m.Classes()
	if probeClass == "" {
		for _, c := range classes {
			if _, err := c.Method(cfg.Method); err == nil {
				probeClass = c.Name
				break
			}
		}
	}
	if probeClass == "" {
		status.Status = StatusError
		status.Error = fmt.Sprintf("no class in %s defines %s", probeFile, cfg.Method)
		return status
	}

	c, err := m.Class(probeClass)
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	fn, err := c.Method(cfg.Method)
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	if _, err := flow.Analyze(fn.Body, flow.WithReceiver(fn.Receiver)); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}

	status.Status = StatusReady
	status.Detail = fmt.Sprintf("%s.%s, %d statements, loop at %d", c.Name, fn.Name, len(fn.Body), fn.FindLoop())
	return status
}
