// Package memory is a process-local script store, used when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"jsbridge/dao/model"
)

type Store struct {
	mu      sync.RWMutex
	scripts map[string]model.ScriptEntity
	order   []string
}

func New() *Store {
	return &Store{scripts: make(map[string]model.ScriptEntity)}
}

func (s *Store) ListScripts(_ context.Context) ([]model.ScriptEntity, error) {
	return s.list(func(model.ScriptEntity) bool { return true }), nil
}

func (s *Store) ListRunnable(_ context.Context) ([]model.ScriptEntity, error) {
	return s.list(func(e model.ScriptEntity) bool { return e.State == model.Runnable }), nil
}

func (s *Store) list(keep func(model.ScriptEntity) bool) []model.ScriptEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.ScriptEntity, 0, len(s.order))
	for _, id := range s.order {
		e := s.scripts[id]
		if !keep(e) {
			continue
		}
		e.Source = ""
		res = append(res, e)
	}
	return res
}

func (s *Store) GetScript(_ context.Context, id string) (model.ScriptEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.scripts[id]
	if !ok {
		return model.ScriptEntity{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return e, nil
}

func (s *Store) AddScript(_ context.Context, e model.ScriptEntity) (string, error) {
	if e.ScriptId == "" {
		e.ScriptId = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scripts[e.ScriptId]; ok {
		return "", fmt.Errorf("script %s already exists", e.ScriptId)
	}
	s.scripts[e.ScriptId] = e
	s.order = append(s.order, e.ScriptId)
	return e.ScriptId, nil
}

// UpdateScript applies fields keyed by their stored names; unknown keys are rejected.
func (s *Store) UpdateScript(_ context.Context, id string, fields map[string]any) error {
	if id == "" {
		return fmt.Errorf("script id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.scripts[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	for k, v := range fields {
		if err := apply(&e, k, v); err != nil {
			return err
		}
	}
	s.scripts[id] = e
	return nil
}

func apply(e *model.ScriptEntity, key string, v any) error {
	var ok bool
	switch key {
	case model.ScriptId:
		return nil
	case model.Name:
		e.Name, ok = v.(string)
	case model.Cron:
		e.Cron, ok = v.(string)
	case model.Description:
		e.Description, ok = v.(string)
	case model.Source:
		e.Source, ok = v.(string)
	case model.Language:
		e.Language, ok = v.(string)
	case model.LastExecTime:
		e.LastExecTime, ok = timeOf(v)
	case model.ExecAt:
		e.ExecAt, ok = timeOf(v)
	case model.ExecType:
		e.ExecType, ok = uint8Of(v)
	case model.State:
		e.State, ok = uint8Of(v)
	default:
		return fmt.Errorf("unknown field %q", key)
	}
	if !ok {
		return fmt.Errorf("invalid value %v for field %q", v, key)
	}
	return nil
}

func timeOf(v any) (*time.Time, bool) {
	switch t := v.(type) {
	case *time.Time:
		return t, true
	case time.Time:
		return &t, true
	case nil:
		return nil, true
	}
	return nil, false
}

func uint8Of(v any) (uint8, bool) {
	switch n := v.(type) {
	case uint8:
		return n, true
	case int:
		return uint8(n), n >= 0 && n < 256
	case int64:
		return uint8(n), n >= 0 && n < 256
	case float64:
		return uint8(n), n >= 0 && n < 256
	}
	return 0, false
}

func (s *Store) RemoveScript(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scripts[id]; !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	delete(s.scripts, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
