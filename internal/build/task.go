// Package build implements the contract build pipeline: compiling the
// Solidity sources with a pinned solc and flattening the IDO contract.
package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Task is one named build step.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Sequence runs tasks strictly in order and stops at the first failure.
type Sequence struct {
	name   string
	tasks  []Task
	logger *slog.Logger
}

// NewSequence creates a composite task.
func NewSequence(name string, logger *slog.Logger, tasks ...Task) *Sequence {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sequence{name: name, tasks: tasks, logger: logger}
}

func (s *Sequence) Name() string { return s.name }

// Tasks returns the steps of the sequence in run order.
func (s *Sequence) Tasks() []Task { return s.tasks }

func (s *Sequence) Run(ctx context.Context) error {
	for _, t := range s.tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		s.logger.Debug("task started", slog.String("task", t.Name()))
		if err := t.Run(ctx); err != nil {
			return fmt.Errorf("%s: %w", t.Name(), err)
		}
		s.logger.Info("task finished", slog.String("task", t.Name()), slog.Duration("took", time.Since(start)))
	}
	return nil
}
