// internal/export/run.go
package export

import (
	"context"
	"log/slog"
	"time"

	"github.com/tamzrod/sysex-bridge/internal/status"
)

// Run writes a snapshot once at start and then on every tick until ctx
// is done. Write failures are logged; the writer re-asserts the full
// block on the next success.
func Run(ctx context.Context, sw *StatusWriter, snapshot func() status.Snapshot, interval time.Duration, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}

	write := func() {
		if err := sw.WriteStatus(snapshot()); err != nil {
			log.Warn("export: status write failed", "err", err)
		}
	}

	write()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			write()
		}
	}
}
