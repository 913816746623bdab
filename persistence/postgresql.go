// persistence/postgresql.go
package persistence

import (
	"context"
	"time"

	"github.com/lib/pq" // PostgreSQL LISTEN/NOTIFY

	"github.com/wfunc/kruivka/logger"
)

// Notifier listens on RoomChannel and republishes rooms changed by other
// processes to this process' subscribers.
type Notifier struct {
	store    *GormPostgreSQL
	listener *pq.Listener
}

// NewNotifier 创建 PostgreSQL 通知监听
func NewNotifier(dsn string, store *GormPostgreSQL) (*Notifier, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Log.Warnf("room listener event %d: %v", ev, err)
		}
	})
	if err := listener.Listen(RoomChannel); err != nil {
		listener.Close()
		return nil, err
	}
	return &Notifier{store: store, listener: listener}, nil
}

// Run dispatches notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.listener.Notify:
			if msg == nil {
				// reconnected, notifications may have been lost
				n.reloadAll(ctx)
				continue
			}
			n.reload(ctx, msg.Extra)
		case <-ping.C:
			go n.listener.Ping()
		}
	}
}

func (n *Notifier) reload(ctx context.Context, roomID string) {
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := n.store.reload(rctx, roomID); err != nil {
		logger.Log.Warnf("reload room %s: %v", roomID, err)
	}
}

func (n *Notifier) reloadAll(ctx context.Context) {
	for _, roomID := range n.store.hub.rooms() {
		n.reload(ctx, roomID)
	}
}

// Close 关闭监听连接
func (n *Notifier) Close() error {
	return n.listener.Close()
}
