package testsupport

import (
	"testing"

	"rdaemon/internal/config"
	"rdaemon/internal/journal"
)

// MustOpenJournal opens the stop journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Journal {
	t.Helper()

	j, err := journal.Open(cfg.JournalPath())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		j.Close()
	})
	return j
}
