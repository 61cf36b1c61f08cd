package redis

import (
	"context"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/persistence"
	"github.com/harishgarg/procflow/util"
	"go.uber.org/zap"
)

const INSTANCE_KEY string = "INSTANCE"

var _ persistence.InstanceStorage = new(redisInstanceDao)

type redisInstanceDao struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.ProcessInstance]
}

func NewRedisInstanceStorage(conf Config) *redisInstanceDao {
	return &redisInstanceDao{
		baseDao:        newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.ProcessInstance](),
	}
}

func (r *redisInstanceDao) SaveProcessInstance(inst model.ProcessInstance) error {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	data, err := r.encoderDecoder.Encode(inst)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{inst.Id, string(data)}).Err(); err != nil {
		logger.Error("error in saving process instance", zap.String("instanceId", inst.Id), zap.Error(err))
		return model.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisInstanceDao) GetProcessInstance(id string) (*model.ProcessInstance, error) {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	instStr, err := r.redisClient.HGet(ctx, key, id).Result()
	if err == rd.Nil {
		return nil, model.InstanceNotFoundError{Id: id}
	}
	if err != nil {
		logger.Error("error in getting process instance", zap.String("instanceId", id), zap.Error(err))
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	return r.encoderDecoder.Decode([]byte(instStr))
}

func (r *redisInstanceDao) DeleteProcessInstance(id string) error {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	deleted, err := r.redisClient.HDel(ctx, key, id).Result()
	if err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	if deleted == 0 {
		return model.InstanceNotFoundError{Id: id}
	}
	return nil
}

func (r *redisInstanceDao) GetAllProcessInstances() ([]model.ProcessInstance, error) {
	return r.filter(func(*model.ProcessInstance) bool { return true })
}

func (r *redisInstanceDao) FindByState(state model.InstanceState) ([]model.ProcessInstance, error) {
	return r.filter(func(inst *model.ProcessInstance) bool {
		return inst.State == state
	})
}

func (r *redisInstanceDao) FindByProcess(processId string) ([]model.ProcessInstance, error) {
	return r.filter(func(inst *model.ProcessInstance) bool {
		return inst.ProcessId == processId
	})
}

func (r *redisInstanceDao) Count() (int, error) {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	n, err := r.redisClient.HLen(ctx, key).Result()
	if err != nil {
		return 0, model.StorageLayerError{Message: err.Error()}
	}
	return int(n), nil
}

func (r *redisInstanceDao) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	all, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, model.StorageLayerError{Message: err.Error()}
	}
	deleted := 0
	for id, data := range all {
		inst, err := r.encoderDecoder.Decode([]byte(data))
		if err != nil {
			return deleted, err
		}
		if inst.State == model.INSTANCE_RUNNING {
			continue
		}
		if inst.CompletedAt != nil && inst.CompletedAt.Before(cutoff) {
			if err := r.redisClient.HDel(ctx, key, id).Err(); err != nil {
				return deleted, model.StorageLayerError{Message: err.Error()}
			}
			deleted++
		}
	}
	return deleted, nil
}

func (r *redisInstanceDao) filter(keep func(*model.ProcessInstance) bool) ([]model.ProcessInstance, error) {
	key := r.getNamespaceKey(INSTANCE_KEY)
	ctx := context.Background()
	all, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	var out []model.ProcessInstance
	for _, data := range all {
		inst, err := r.encoderDecoder.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		if keep(inst) {
			out = append(out, *inst)
		}
	}
	return out, nil
}
