package config

import "time"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_SQLITE StorageType = "sqlite"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	HttpPort            int
	StorageType         StorageType
	RedisConfig         RedisStorageConfig
	SqliteConfig        SqliteStorageConfig
	FileStoreDir        string
	ExternalCallTimeout time.Duration
	// InstanceRetention drops terminal instances older than this; zero
	// disables cleanup.
	InstanceRetention time.Duration
	// AuditLogFile receives the execution audit trail; empty disables it.
	AuditLogFile string
	// Env backs env: tokens in process expressions. Read-only at runtime.
	Env map[string]string
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

type SqliteStorageConfig struct {
	Path string
}
