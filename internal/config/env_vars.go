package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	appNameVar       = "APP_NAME"
	listenAddrVar    = "DESQTA_LISTEN"
	portalProfileVar = "DESQTA_PORTAL_PROFILE"
)

func init() {
	// Optional developer overrides. Missing .env is fine.
	godotenv.Load()
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "DesQTA")
}

// GetListenAddr is the loopback address the UI command bridge binds to.
func (EnvVars) GetListenAddr() string {
	return GetEnv(listenAddrVar, "127.0.0.1:36930")
}

// GetPortalProfilePath points at an optional YAML portal profile overriding
// the default handshake field names. Empty means built-in defaults.
func (EnvVars) GetPortalProfilePath() string {
	return GetEnv(portalProfileVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
