package config

const (
	// Prefix of all environment configurations
	EnvConfigPrefix = "ORACLE_"
	// Environment variable with the path of the config file or folder
	ConfigFilePath = "ORACLE_CONFIG_FILE"
)
