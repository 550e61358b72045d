package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo service names and paths from .env
type EnvInfo struct {
	Env string

	Gateway string
	Client  string

	GatewayYAMLPath string
	ClientYAMLPath  string

	GatewayLogPath string
	ClientLogPath  string
}

var (
	envConfig EnvInfo
	once      sync.Once
)

// Env loads .env once (searching up to 5 parent dirs) and returns the service settings
func Env() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		} else if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}

		envConfig = EnvInfo{
			Env: os.Getenv("ENV"),

			Gateway: getenv("REALTIME_GATEWAY", "realtime_gateway"),
			Client:  getenv("REALTIME_CLIENT", "realtime_client"),

			GatewayYAMLPath: getenv("REALTIME_GATEWAY_YAML", "./configs"),
			ClientYAMLPath:  getenv("REALTIME_CLIENT_YAML", "./configs"),

			GatewayLogPath: os.Getenv("REALTIME_GATEWAY_LOG"),
			ClientLogPath:  os.Getenv("REALTIME_CLIENT_LOG"),
		}
	})
	return envConfig
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsProduction check run env
func IsProduction() bool {
	return Env().Env == "production"
}

// IsLocal check run env
func IsLocal() bool {
	return Env().Env == "local"
}

// LoadConfig reads <serviceName>.yaml from configPath, expands ${VAR} placeholders from
// the environment and unmarshals into T
func LoadConfig[T any](serviceName string, configPath string) (T, error) {
	var cfg T

	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("load config file: %w", err)
	}

	rawConfig, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return cfg, fmt.Errorf("read raw config file: %w", err)
	}

	expanded := os.ExpandEnv(string(rawConfig))
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return cfg, fmt.Errorf("read expanded config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// GetPath use fileName loop maxCount find file path
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
