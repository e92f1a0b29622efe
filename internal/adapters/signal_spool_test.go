package adapters

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apk-installer/internal/types"
)

type collectingSink struct {
	mu     sync.Mutex
	events []types.Event
}

func (s *collectingSink) Deliver(event types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.ID)
	}
	return out
}

func TestSignalSpoolReplaysThenWatches(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	require.NoError(t, WriteSignal(dir, "0001", types.Event{Action: types.ActionInstallComplete, ID: "replayed", Session: 3}))
	require.NoError(t, WriteSignal(dir, "0000", types.Event{Action: types.ActionInstallComplete, ID: "first"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	sink := &collectingSink{}
	spool := NewSignalSpoolAdapter(dir, sink)
	require.NoError(t, spool.Start(t.Context()))
	t.Cleanup(spool.Stop)

	assert.Equal(t, []string{"first", "replayed"}, sink.ids())

	require.NoError(t, WriteSignal(dir, "0002", types.Event{Action: types.ActionInstallInterrupted, ID: "live", ErrorMessage: "boom"}))
	require.Eventually(t, func() bool { return len(sink.ids()) == 3 }, 5*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	live := sink.events[2]
	sink.mu.Unlock()
	assert.Equal(t, types.ActionInstallInterrupted, live.Action)
	assert.Equal(t, "boom", live.ErrorMessage)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "0002.json"))
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond)
	_, err := os.Stat(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
}

func TestSignalSpoolRequiresDirectory(t *testing.T) {
	err := NewSignalSpoolAdapter(" ", &collectingSink{}).Start(t.Context())
	require.Error(t, err)
}
