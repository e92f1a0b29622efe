package app

import (
	"context"

	"apk-installer/internal/types"
)

// Watch calls fn for every lifecycle event until ctx is done. Start must
// have been called for events to flow.
func (s *Service) Watch(ctx context.Context, fn func(types.Event)) error {
	events, unsubscribe := s.Bus.Subscribe(256)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			fn(event)
		}
	}
}
