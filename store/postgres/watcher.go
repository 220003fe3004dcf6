// server/store/postgres/watcher.go
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	notifyChannel  = "memos_changed"
	reconnectDelay = 5 * time.Second
)

// Watcher listens for memos_changed notifications, raised by a trigger on
// every write, and calls onChange for each. This is how writes made by other
// processes reach live queries.
type Watcher struct {
	pool     *pgxpool.Pool
	onChange func()
	log      zerolog.Logger
}

func NewWatcher(pool *pgxpool.Pool, onChange func(), log zerolog.Logger) *Watcher {
	return &Watcher{
		pool:     pool,
		onChange: onChange,
		log:      log.With().Str("component", "pg_watcher").Logger(),
	}
}

// Run blocks until ctx is done, reconnecting after connection loss.
func (w *Watcher) Run(ctx context.Context) {
	for {
		err := w.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("notification listener lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
		// Anything written while disconnected went unnoticed.
		w.onChange()
	}
}

func (w *Watcher) listen(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	w.log.Info().Str("channel", notifyChannel).Msg("listening for memo changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		w.log.Debug().Str("op", n.Payload).Msg("memo change notification")
		w.onChange()
	}
}
