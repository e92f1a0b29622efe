package app

import (
	"context"
	"strings"

	"apk-installer/internal/adapters"
	"apk-installer/internal/types"
)

const defaultHistoryLimit = 50

func (s *Service) ListHistory(ctx context.Context, req HistoryRequest) ([]types.HistoryEntry, error) {
	since, err := adapters.ParseSince(req.Since, s.Clock())
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	return s.History.List(ctx, types.HistoryFilter{
		PackageName: strings.TrimSpace(req.PackageName),
		Since:       since,
		Limit:       limit,
	})
}
