package service

import (
	"context"

	"stovelink"
)

// StoveStateView is the combined read model: connection status plus the
// latest snapshot, when one exists.
type StoveStateView struct {
	Connection stovelink.ConnectionStatus `json:"connection"`
	Snapshot   *stovelink.StoveSnapshot   `json:"snapshot,omitempty"`
}

type MonitoringService struct {
	ctrl Controller
}

func NewMonitoringService(ctrl Controller) *MonitoringService {
	return &MonitoringService{ctrl: ctrl}
}

// GetState returns the current connection status and, while a session is
// active, the latest snapshot. The snapshot is absent until the first poll
// completes.
func (s *MonitoringService) GetState(ctx context.Context) (StoveStateView, error) {
	view := StoveStateView{Connection: s.ctrl.Status()}
	if snap, ok := s.ctrl.Latest(); ok {
		view.Snapshot = &snap
	}
	return view, nil
}
