package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
	"github.com/luximus/flowbot/util"
)

var _ persistence.FlowDao = new(redisFlowDao)

type redisFlowDao struct {
	*baseDao
	ttl            time.Duration
	encoderDecoder util.EncoderDecoder[model.FlowState]
}

func NewRedisFlowDao(conf Config, encoderDecoder util.EncoderDecoder[model.FlowState]) *redisFlowDao {
	ttl := conf.FlowTTL
	if ttl <= 0 {
		ttl = persistence.DefaultFlowTTL
	}
	return &redisFlowDao{
		baseDao:        newBaseDao(conf),
		ttl:            ttl,
		encoderDecoder: encoderDecoder,
	}
}

func (rf *redisFlowDao) SaveFlowState(ctx context.Context, state *model.FlowState) error {
	key := rf.getNamespaceKey(persistence.FLOW_KEY, state.FlowKind, state.SubjectId)
	data, err := rf.encoderDecoder.Encode(*state)
	if err != nil {
		return fmt.Errorf("encode flow state %s: %w", key, err)
	}
	if err := rf.redisClient.Set(ctx, key, data, rf.ttl).Err(); err != nil {
		logger.Error("error in saving flow state", zap.String("key", key), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowDao) GetFlowState(ctx context.Context, flowKind string, subjectId string) (*model.FlowState, error) {
	key := rf.getNamespaceKey(persistence.FLOW_KEY, flowKind, subjectId)
	data, err := rf.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.ErrNotFound
		}
		logger.Error("error in getting flow state", zap.String("key", key), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	state, err := rf.encoderDecoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode flow state %s: %w", key, err)
	}
	if state.Data == nil {
		state.Data = make(map[string]any)
	}
	return state, nil
}

func (rf *redisFlowDao) DeleteFlowState(ctx context.Context, flowKind string, subjectId string) error {
	key := rf.getNamespaceKey(persistence.FLOW_KEY, flowKind, subjectId)
	if err := rf.redisClient.Del(ctx, key).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
