package redis

import (
	"context"

	rd "github.com/go-redis/redis/v9"
	"github.com/harishgarg/procflow/metadata"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/util"
)

const PROCESS_DEF string = "PROCESS"

var _ metadata.MetadataStorage = new(redisMetadataStorage)

type redisMetadataStorage struct {
	*baseDao
	defEncoderDecoder util.EncoderDecoder[model.ProcessDefinition]
}

func NewRedisMetadataStorage(conf Config) *redisMetadataStorage {
	return &redisMetadataStorage{
		baseDao:           newBaseDao(conf),
		defEncoderDecoder: util.NewJsonEncoderDecoder[model.ProcessDefinition](),
	}
}

func (r *redisMetadataStorage) SaveProcessDefinition(def model.ProcessDefinition) error {
	key := r.getNamespaceKey(PROCESS_DEF)
	ctx := context.Background()
	data, err := r.defEncoderDecoder.Encode(def)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{def.Id, string(data)}).Err(); err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisMetadataStorage) DeleteProcessDefinition(id string) error {
	key := r.getNamespaceKey(PROCESS_DEF)
	ctx := context.Background()
	deleted, err := r.redisClient.HDel(ctx, key, id).Result()
	if err != nil {
		return model.StorageLayerError{Message: err.Error()}
	}
	if deleted == 0 {
		return model.StorageLayerError{Message: "process definition " + id + " not found"}
	}
	return nil
}

func (r *redisMetadataStorage) GetProcessDefinition(id string) (*model.ProcessDefinition, error) {
	key := r.getNamespaceKey(PROCESS_DEF)
	ctx := context.Background()
	val, err := r.redisClient.HGet(ctx, key, id).Result()
	if err == rd.Nil {
		return nil, model.StorageLayerError{Message: "process definition " + id + " not found"}
	}
	if err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	return r.defEncoderDecoder.Decode([]byte(val))
}

func (r *redisMetadataStorage) GetAllProcessDefinitions() ([]model.ProcessDefinition, error) {
	key := r.getNamespaceKey(PROCESS_DEF)
	ctx := context.Background()
	all, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, model.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.ProcessDefinition, 0, len(all))
	for _, data := range all {
		def, err := r.defEncoderDecoder.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, nil
}

func (r *redisMetadataStorage) ExistsProcessDefinition(id string) (bool, error) {
	key := r.getNamespaceKey(PROCESS_DEF)
	ctx := context.Background()
	exists, err := r.redisClient.HExists(ctx, key, id).Result()
	if err != nil {
		return false, model.StorageLayerError{Message: err.Error()}
	}
	return exists, nil
}
