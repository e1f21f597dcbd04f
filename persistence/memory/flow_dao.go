package memory

import (
	"context"
	"fmt"
	"time"

	c "github.com/patrickmn/go-cache"

	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/util"
)

var _ persistence.FlowDao = new(memoryFlowDao)

// memoryFlowDao keeps encoded documents rather than pointers so callers never share a
// data bag across loads.
type memoryFlowDao struct {
	cache          *c.Cache
	ttl            time.Duration
	encoderDecoder util.EncoderDecoder[model.FlowState]
}

func NewMemoryFlowDao(ttl time.Duration, encoderDecoder util.EncoderDecoder[model.FlowState]) *memoryFlowDao {
	if ttl <= 0 {
		ttl = persistence.DefaultFlowTTL
	}
	return &memoryFlowDao{
		cache:          c.New(ttl, 10*time.Minute),
		ttl:            ttl,
		encoderDecoder: encoderDecoder,
	}
}

func (m *memoryFlowDao) SaveFlowState(ctx context.Context, state *model.FlowState) error {
	key := persistence.FlowKey("", state.FlowKind, state.SubjectId)
	data, err := m.encoderDecoder.Encode(*state)
	if err != nil {
		return fmt.Errorf("encode flow state %s: %w", key, err)
	}
	m.cache.Set(key, data, m.ttl)
	return nil
}

func (m *memoryFlowDao) GetFlowState(ctx context.Context, flowKind string, subjectId string) (*model.FlowState, error) {
	key := persistence.FlowKey("", flowKind, subjectId)
	value, found := m.cache.Get(key)
	if !found {
		return nil, persistence.ErrNotFound
	}
	state, err := m.encoderDecoder.Decode(value.([]byte))
	if err != nil {
		return nil, fmt.Errorf("decode flow state %s: %w", key, err)
	}
	if state.Data == nil {
		state.Data = make(map[string]any)
	}
	return state, nil
}

func (m *memoryFlowDao) DeleteFlowState(ctx context.Context, flowKind string, subjectId string) error {
	m.cache.Delete(persistence.FlowKey("", flowKind, subjectId))
	return nil
}
