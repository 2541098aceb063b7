package worker

import (
	"fmt"
	"sync"
)

// CommandKind enumerates the user intents the worker can apply to the stove.
type CommandKind int

const (
	CmdIncreaseTemperature CommandKind = iota
	CmdDecreaseTemperature
	CmdIncreasePower
	CmdDecreasePower
	CmdSetPower
	CmdToggleMode
	CmdSetOperativeMode
)

func (k CommandKind) String() string {
	switch k {
	case CmdIncreaseTemperature:
		return "increase temperature"
	case CmdDecreaseTemperature:
		return "decrease temperature"
	case CmdIncreasePower:
		return "increase power"
	case CmdDecreasePower:
		return "decrease power"
	case CmdSetPower:
		return "set power"
	case CmdToggleMode:
		return "toggle mode"
	case CmdSetOperativeMode:
		return "set operative mode"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is one queued user intent. Which field matters depends on Kind;
// how increase/decrease is applied depends on the stove's operative mode at
// the moment the queue is drained, not at enqueue time.
type Command struct {
	Kind  CommandKind
	Delta float64 // temperature step for increase/decrease, 0 means default
	On    bool    // target state for CmdSetPower
	Mode  int     // requested mode for CmdSetOperativeMode
}

func IncreaseTemperature(delta float64) Command {
	return Command{Kind: CmdIncreaseTemperature, Delta: delta}
}

func DecreaseTemperature(delta float64) Command {
	return Command{Kind: CmdDecreaseTemperature, Delta: delta}
}

func IncreasePower() Command { return Command{Kind: CmdIncreasePower} }

func DecreasePower() Command { return Command{Kind: CmdDecreasePower} }

func SetPower(on bool) Command { return Command{Kind: CmdSetPower, On: on} }

func ToggleMode() Command { return Command{Kind: CmdToggleMode} }

func SetOperativeMode(mode int) Command {
	return Command{Kind: CmdSetOperativeMode, Mode: mode}
}

// Queue holds pending commands between poll ticks. Producers append from
// any goroutine; the worker drains it exactly once per tick. The lock is
// held only for the slice swap, never across device I/O.
type Queue struct {
	mu       sync.Mutex
	commands []Command
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends cmd to the tail. It never blocks and never fails.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.Lock()
	q.commands = append(q.commands, cmd)
	q.mu.Unlock()
}

// DrainAndClear removes and returns all queued commands in FIFO order.
func (q *Queue) DrainAndClear() []Command {
	q.mu.Lock()
	drained := q.commands
	q.commands = nil
	q.mu.Unlock()
	return drained
}

// Clear discards all queued commands. Used when no session exists, so
// stale intents never reach a newly established session.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.commands = nil
	q.mu.Unlock()
}

// Len reports the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}
