package config

const (
	EnvPrefix = "CONTRACTS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CONTRACTS_DB_DSN"
	EnvDBHost = "CONTRACTS_DB_HOST"
	EnvDBUser = "CONTRACTS_DB_USER"
	EnvDBName = "CONTRACTS_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
