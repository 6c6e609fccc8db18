// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// FuncChecker adapts a ping-style function. A non-nil error reports the
// configured failure status.
type FuncChecker struct {
	name   string
	fn     func(ctx context.Context) error
	onFail Status
}

// NewFuncChecker reports unhealthy when fn fails.
func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn, onFail: StatusUnhealthy}
}

// NewOptionalFuncChecker reports degraded when fn fails.
func NewOptionalFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn, onFail: StatusDegraded}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		return CheckResult{Status: c.onFail, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// FileChecker checks if a file exists and is readable. An empty path means
// the file is optional and not configured.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file existence
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(_ context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (embedded default)"}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Status: StatusUnhealthy, Error: "file not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	}
	if info.Size() == 0 {
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "file exists and readable"}
}

// CompositionSummary is what CompositionChecker needs from the last composition.
type CompositionSummary struct {
	At     time.Time
	Slots  int
	Failed int
}

// CompositionChecker reports degraded while the last composed page had
// failing slots. Slot failures never make the service unready.
type CompositionChecker struct {
	last   func() (CompositionSummary, bool)
	maxAge time.Duration
	now    func() time.Time
}

// NewCompositionChecker creates a checker over the last composition. maxAge
// of zero disables the staleness check.
func NewCompositionChecker(last func() (CompositionSummary, bool), maxAge time.Duration) *CompositionChecker {
	return &CompositionChecker{last: last, maxAge: maxAge, now: time.Now}
}

func (c *CompositionChecker) Name() string { return "last_composition" }

func (c *CompositionChecker) Check(_ context.Context) CheckResult {
	sum, ok := c.last()
	if !ok {
		return CheckResult{Status: StatusHealthy, Message: "no composition yet"}
	}
	if sum.Failed > 0 {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("%d of %d slots failed in the last composition", sum.Failed, sum.Slots),
		}
	}
	if c.maxAge > 0 && c.now().Sub(sum.At) > c.maxAge {
		return CheckResult{Status: StatusDegraded, Message: "last composition is stale"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d slots rendered", sum.Slots)}
}

// BreakerChecker reports degraded while any origin circuit is open.
type BreakerChecker struct {
	open func() []string
}

// NewBreakerChecker takes a function listing the origins whose breaker is open.
func NewBreakerChecker(open func() []string) *BreakerChecker {
	return &BreakerChecker{open: open}
}

func (c *BreakerChecker) Name() string { return "data_origin" }

func (c *BreakerChecker) Check(_ context.Context) CheckResult {
	open := c.open()
	if len(open) == 0 {
		return CheckResult{Status: StatusHealthy}
	}
	return CheckResult{
		Status:  StatusDegraded,
		Message: "circuit open for " + strings.Join(open, ", "),
	}
}
