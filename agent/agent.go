package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/harishgarg/procflow/analytics"
	"github.com/harishgarg/procflow/config"
	"github.com/harishgarg/procflow/engine"
	"github.com/harishgarg/procflow/executor"
	"github.com/harishgarg/procflow/filestore"
	"github.com/harishgarg/procflow/flow"
	"github.com/harishgarg/procflow/jpel"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/metadata"
	"github.com/harishgarg/procflow/persistence"
	"github.com/harishgarg/procflow/persistence/inmem"
	"github.com/harishgarg/procflow/persistence/redis"
	"github.com/harishgarg/procflow/persistence/sqlite"
	"github.com/harishgarg/procflow/rest"
	"github.com/harishgarg/procflow/util"
	"go.uber.org/zap"
)

// Agent wires the storage, metadata, engine and http components together
// and owns their lifecycle.
type Agent struct {
	Config          config.Config
	instanceStorage persistence.InstanceStorage
	metadataService metadata.MetadataService
	engine          *engine.Engine
	fileStore       *filestore.FileStore
	httpServer      *rest.Server
	cleanupWorker   *util.TickWorker
	shutdown        bool
	shutdowns       chan struct{}
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupAnalytics,
		a.setupStorage,
		a.setupEngine,
		a.setupCleanupWorker,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupAnalytics() error {
	if a.Config.AuditLogFile == "" {
		return nil
	}
	return analytics.InitDataCollector(analytics.DataCollectorConfig{
		FileName:      a.Config.AuditLogFile,
		CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
	})
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		conf := redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		}
		a.instanceStorage = redis.NewRedisInstanceStorage(conf)
		a.metadataService = metadata.NewMetadataService(redis.NewRedisMetadataStorage(conf))
	case config.STORAGE_TYPE_SQLITE:
		st, err := sqlite.NewStorage(a.Config.SqliteConfig.Path)
		if err != nil {
			return err
		}
		a.instanceStorage = st
		a.metadataService = metadata.NewMetadataService(st)
	case config.STORAGE_TYPE_INMEM:
		st := inmem.NewStorage()
		a.instanceStorage = st
		a.metadataService = metadata.NewMetadataService(st)
	default:
		return fmt.Errorf("unknown storage implementation %s", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupEngine() error {
	evaluator := jpel.NewEvaluator(a.Config.Env)
	resolver := flow.NewResolver(evaluator)
	callExecutor := executor.NewCallExecutor(evaluator, a.Config.Env, a.Config.ExternalCallTimeout)
	a.engine = engine.NewEngine(a.metadataService, a.instanceStorage, resolver, evaluator, callExecutor)
	a.fileStore = filestore.New(a.Config.FileStoreDir)
	return nil
}

func (a *Agent) setupCleanupWorker() error {
	if a.Config.InstanceRetention <= 0 {
		return nil
	}
	a.cleanupWorker = util.NewTickWorker("instance-cleanup", 1*time.Hour, a.shutdowns, func() {
		cutoff := time.Now().Add(-a.Config.InstanceRetention)
		deleted, err := a.instanceStorage.DeleteCompletedBefore(cutoff)
		if err != nil {
			logger.Error("instance cleanup failed", zap.Error(err))
			return
		}
		if deleted > 0 {
			logger.Info("cleaned up terminal instances", zap.Int("count", deleted))
		}
	}, &a.wg)
	a.cleanupWorker.Start()
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.engine, a.fileStore)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	var err error
	go func() error {
		err = a.httpServer.Start()
		if err != nil {
			_ = a.Shutdown()
			panic(err)
		}
		return nil
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	a.wg.Wait()
	return nil
}
