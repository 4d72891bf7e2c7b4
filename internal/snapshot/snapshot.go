// Package snapshot periodically dumps the registry and session counts to a
// JSON file for crash diagnosis. The file is never read back.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lodestone/internal/domain"

	"github.com/rs/zerolog/log"
)

type ServerLister interface {
	List() []domain.ServerRecord
}

type SessionLister interface {
	List() []domain.Session
}

type Snapshot struct {
	WrittenAt time.Time             `json:"writtenAt"`
	Servers   []domain.ServerRecord `json:"servers"`
	Sessions  int                   `json:"sessions"`
	PerServer map[string]int        `json:"perServer"`
}

type Writer struct {
	path     string
	servers  ServerLister
	sessions SessionLister
	now      func() time.Time
}

func NewWriter(path string, servers ServerLister, sessions SessionLister) *Writer {
	return &Writer{path: path, servers: servers, sessions: sessions, now: time.Now}
}

func (w *Writer) Build() Snapshot {
	sessions := w.sessions.List()
	perServer := make(map[string]int)
	for _, s := range sessions {
		if s.CurrentServer != "" {
			perServer[s.CurrentServer]++
		}
	}
	return Snapshot{
		WrittenAt: w.now().UTC(),
		Servers:   w.servers.List(),
		Sessions:  len(sessions),
		PerServer: perServer,
	}
}

// WriteOnce writes to a temporary file next to the target and renames it,
// so readers never see a partial snapshot.
func (w *Writer) WriteOnce() error {
	data, err := json.MarshalIndent(w.Build(), "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return err
	}

	tmp := w.path + ".temp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Run writes a snapshot every interval and once more on shutdown.
func (w *Writer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := w.WriteOnce(); err != nil {
				log.Warn().Err(err).Msg("final snapshot failed")
			}
			return
		case <-ticker.C:
			if err := w.WriteOnce(); err != nil {
				log.Warn().Err(err).Str("path", w.path).Msg("snapshot failed")
			}
		}
	}
}
