package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultDepth bounds each user's undo history.
const DefaultDepth = 20

// UndoResult reports the outcome of UndoLast. Err is nil when the command
// was undone.
type UndoResult struct {
	Command string `json:"command,omitempty"`
	Undone  bool   `json:"undone"`
	Err     error  `json:"-"`
}

// Invoker executes commands and keeps a per-user undo stack. The stack
// lives in memory only.
type Invoker struct {
	mu      sync.Mutex
	history map[uuid.UUID][]Command
	depth   int
	logger  *slog.Logger
}

type Option func(*Invoker)

func WithDepth(n int) Option {
	return func(i *Invoker) {
		if n > 0 {
			i.depth = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) { i.logger = logger }
}

func NewInvoker(opts ...Option) *Invoker {
	i := &Invoker{
		history: make(map[uuid.UUID][]Command),
		depth:   DefaultDepth,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Execute runs cmd and records it for userID when it succeeds.
func (i *Invoker) Execute(ctx context.Context, userID uuid.UUID, cmd Command) error {
	if err := cmd.Execute(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	stack := append(i.history[userID], cmd)
	if len(stack) > i.depth {
		stack = stack[len(stack)-i.depth:]
	}
	i.history[userID] = stack
	return nil
}

// UndoLast pops the user's most recent command and undoes it. Failures,
// including panics, are logged and reported in the result.
func (i *Invoker) UndoLast(ctx context.Context, userID uuid.UUID) (res UndoResult) {
	cmd := i.pop(userID)
	if cmd == nil {
		return UndoResult{Err: ErrNothingToUndo}
	}
	res.Command = cmd.Name()

	defer func() {
		if r := recover(); r != nil {
			res.Undone = false
			res.Err = fmt.Errorf("undo %s panicked: %v", cmd.Name(), r)
		}
		if res.Err != nil {
			i.logger.WarnContext(ctx, "undo failed",
				"user_id", userID,
				"command", res.Command,
				"error", res.Err,
			)
		}
	}()

	if err := cmd.Undo(ctx); err != nil {
		res.Err = err
		return res
	}
	res.Undone = true
	return res
}

// Depth returns how many commands userID can still undo.
func (i *Invoker) Depth(userID uuid.UUID) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.history[userID])
}

func (i *Invoker) pop(userID uuid.UUID) Command {
	i.mu.Lock()
	defer i.mu.Unlock()
	stack := i.history[userID]
	if len(stack) == 0 {
		return nil
	}
	cmd := stack[len(stack)-1]
	stack[len(stack)-1] = nil
	if len(stack) == 1 {
		delete(i.history, userID)
	} else {
		i.history[userID] = stack[:len(stack)-1]
	}
	return cmd
}
