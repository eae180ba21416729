package config

const (
	EnvPrefix = "CARTENGINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	PersistenceMemory   = "memory"
	PersistenceRedis    = "redis"
	PersistenceDatabase = "database"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)
