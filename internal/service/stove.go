package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stovelink"
	"stovelink/internal/repository"
	"stovelink/internal/stove"
	"stovelink/internal/worker"

	"github.com/google/uuid"
)

var (
	ErrNotConnected = errors.New("no stove session: the device has not been discovered yet")
	errInvalidDelta = errors.New("invalid delta: must be a positive temperature step")
	errInvalidMode  = errors.New("invalid mode: must be 0 (power), 1 (temperature) or 2 (emergency)")
)

// Largest accepted per-request temperature step.
const maxTempStepC = 5.0

type StoveService struct {
	ctrl      Controller
	eventRepo repository.EventRepo
}

func NewStoveService(ctrl Controller, eventRepo repository.EventRepo) *StoveService {
	return &StoveService{ctrl: ctrl, eventRepo: eventRepo}
}

func (s *StoveService) IncreaseTemperature(ctx context.Context, delta float64) error {
	if delta < 0 || delta > maxTempStepC {
		return errInvalidDelta
	}
	return s.submit(ctx, worker.IncreaseTemperature(delta), "increase requested", map[string]any{"delta": delta})
}

func (s *StoveService) DecreaseTemperature(ctx context.Context, delta float64) error {
	if delta < 0 || delta > maxTempStepC {
		return errInvalidDelta
	}
	return s.submit(ctx, worker.DecreaseTemperature(delta), "decrease requested", map[string]any{"delta": delta})
}

func (s *StoveService) IncreasePower(ctx context.Context) error {
	return s.submit(ctx, worker.IncreasePower(), "power level increase requested", nil)
}

func (s *StoveService) DecreasePower(ctx context.Context) error {
	return s.submit(ctx, worker.DecreasePower(), "power level decrease requested", nil)
}

func (s *StoveService) SetPower(ctx context.Context, on bool) error {
	desc := "power off requested"
	if on {
		desc = "power on requested"
	}
	return s.submit(ctx, worker.SetPower(on), desc, map[string]any{"on": on})
}

func (s *StoveService) ToggleMode(ctx context.Context) error {
	return s.submit(ctx, worker.ToggleMode(), "mode toggle requested", nil)
}

func (s *StoveService) SetOperativeMode(ctx context.Context, mode int) error {
	switch mode {
	case stove.ModePower, stove.ModeTemperature, stove.ModeEmergency:
	default:
		return errInvalidMode
	}
	return s.submit(ctx, worker.SetOperativeMode(mode), fmt.Sprintf("mode change to %d requested", mode), map[string]any{"mode": mode})
}

// submit queues the command and records it in the event log. The command is
// applied on the worker's next poll tick.
func (s *StoveService) submit(ctx context.Context, cmd worker.Command, desc string, meta map[string]any) error {
	if !s.ctrl.Status().Connected {
		return ErrNotConnected
	}
	s.ctrl.Enqueue(cmd)

	return s.eventRepo.Append(ctx, stovelink.StoveEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        "COMMAND",
		Description: desc,
		Metadata:    meta,
	})
}
