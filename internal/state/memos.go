package state

import (
	"context"
	"sort"
	"strings"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Memos returns every memo, newest first.
func (s *Store) Memos() []models.Memo {
	out := s.memos.list()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) AddMemo(ctx context.Context, content string) (models.Memo, error) {
	now := s.now().UTC()
	m := models.Memo{ID: s.newID(), Content: strings.TrimSpace(content), CreatedAt: now, UpdatedAt: now}
	if err := validateMemo(m); err != nil {
		s.recordFailure(models.KindMemos, "add", err)
		return models.Memo{}, err
	}
	if err := addEntity(ctx, s, s.memos, m); err != nil {
		return models.Memo{}, err
	}
	return m, nil
}

func (s *Store) UpdateMemo(ctx context.Context, id string, patch models.MemoPatch) (models.Memo, error) {
	return updateEntity(ctx, s, s.memos, id, func(cur models.Memo) (models.Memo, error) {
		next := patch.Apply(cur)
		next.Content = strings.TrimSpace(next.Content)
		next.UpdatedAt = s.now().UTC()
		if err := validateMemo(next); err != nil {
			return models.Memo{}, err
		}
		return next, nil
	})
}

func (s *Store) DeleteMemo(ctx context.Context, id string) error {
	return deleteEntity(ctx, s, s.memos, id)
}
