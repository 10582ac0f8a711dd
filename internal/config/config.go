// Package config exposes the backend's runtime configuration: environment
// variables layered over an optional .env file.
package config

type Config interface {
	EnvConfig
}

type EnvConfig interface {
	GetAppName() string
	GetListenAddr() string
	GetPortalProfilePath() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
