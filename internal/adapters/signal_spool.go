package adapters

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// SignalSpoolAdapter delivers lifecycle signals written by other processes
// (the privileged helper, an OS broadcast bridge) as JSON files into Dir.
// Each file holds one types.Event. Files are removed after delivery, and
// files present at startup are replayed, so signals survive restarts.
type SignalSpoolAdapter struct {
	Dir  string
	Sink ports.SignalSink

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewSignalSpoolAdapter(dir string, sink ports.SignalSink) *SignalSpoolAdapter {
	return &SignalSpoolAdapter{Dir: dir, Sink: sink, stopCh: make(chan struct{})}
}

func (s *SignalSpoolAdapter) Start(ctx context.Context) error {
	if strings.TrimSpace(s.Dir) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("signal spool directory is empty")
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create signal spool directory").
			WithCause(err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create spool watcher").
			WithCause(err)
	}
	if err := watcher.Add(s.Dir); err != nil {
		watcher.Close()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to watch signal spool").
			WithCause(err)
	}
	s.watcher = watcher

	// Watch first, then replay, so nothing written in between is missed.
	s.replay(ctx)

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

func (s *SignalSpoolAdapter) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *SignalSpoolAdapter) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			s.consume(ctx, event.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Ctx(ctx).Warn().Err(err).Msg("signal spool watcher error")
		}
	}
}

func (s *SignalSpoolAdapter) replay(ctx context.Context) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to list signal spool")
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		s.consume(ctx, filepath.Join(s.Dir, name))
	}
}

// consume delivers one spool file. Writers should create files under a
// dot-prefixed name and rename them into place; partial files are skipped
// and picked up again on their next write event.
func (s *SignalSpoolAdapter) consume(ctx context.Context, path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".json") {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to read signal")
		}
		return
	}
	var event types.Event
	if err := json.Unmarshal(data, &event); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("signal not readable yet")
		return
	}
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			log.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to remove signal")
		}
		return
	}
	log.Ctx(ctx).Debug().Str("operation", event.ID).Str("action", string(event.Action)).Msg("delivering spooled signal")
	s.Sink.Deliver(event)
}

// WriteSignal atomically drops event into dir for a running spool.
func WriteSignal(dir string, name string, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+name+".json")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, name+".json"))
}
