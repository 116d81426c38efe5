package monitor

import (
	"context"

	"go.uber.org/zap"

	"investment-core/internal/events"
)

// Monitor counts committed balance changes from the bus and logs them.
type Monitor struct {
	Bus     *events.Bus
	Metrics *SystemMetrics
	Log     *zap.Logger
}

// Start consumes balance updates until ctx is done or the bus closes.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Metrics == nil {
		if m.Log != nil {
			m.Log.Warn("monitor not fully configured; skipping")
		}
		return
	}
	log := m.Log
	if log == nil {
		log = zap.NewNop()
	}

	stream, unsub := m.Bus.Subscribe(events.EventBalanceUpdate, 256)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				upd, ok := msg.(events.BalanceUpdate)
				if !ok {
					continue
				}
				m.Metrics.IncrementBalanceUpdates()
				log.Info("balance updated",
					zap.String("user_id", upd.UserID),
					zap.String("currency", upd.Currency),
					zap.String("delta", upd.Delta),
					zap.String("amount", upd.Amount))
			}
		}
	}()
}
