package service

import (
	"context"
	"time"

	"stovelink"
	"stovelink/internal/repository"
	"stovelink/internal/worker"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Stove exposes control intents. Each call queues a command for the
// background worker; nothing talks to the device synchronously.
type Stove interface {
	IncreaseTemperature(ctx context.Context, delta float64) error
	DecreaseTemperature(ctx context.Context, delta float64) error
	IncreasePower(ctx context.Context) error
	DecreasePower(ctx context.Context) error
	SetPower(ctx context.Context, on bool) error
	ToggleMode(ctx context.Context) error
	SetOperativeMode(ctx context.Context, mode int) error
}

// Monitoring exposes the read-only connection status and latest snapshot.
type Monitoring interface {
	GetState(ctx context.Context) (StoveStateView, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]stovelink.StoveEvent, error)
}

// Controller is the worker surface the services depend on.
type Controller interface {
	Enqueue(cmd worker.Command)
	Status() stovelink.ConnectionStatus
	Latest() (stovelink.StoveSnapshot, bool)
}

// Root Service aggregates all sub-services.

type Service struct {
	Stove
	Monitoring
	EventLog
	Authorization
}

// NewService wires the repository layer and the background worker into
// concrete services.
func NewService(repos *repository.Repository, ctrl Controller, signingKey string, tokenTTL time.Duration) *Service {
	return &Service{
		Stove:         NewStoveService(ctrl, repos.EventRepo),
		Monitoring:    NewMonitoringService(ctrl),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, signingKey, tokenTTL),
	}
}
