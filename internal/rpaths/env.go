package rpaths

import "github.com/caarlos0/env/v11"

// EnvConfig captures the environment variables consumed by rudi, per
// spec.md §6. It is decoded once at process start and threaded through the
// components that need it instead of scattered os.Getenv calls.
type EnvConfig struct {
	Home            string `env:"HOME"`
	UseLocalRegistry bool   `env:"USE_LOCAL_REGISTRY"`
	ResourcesPath   string `env:"RESOURCES_PATH"`
}

// LoadEnvConfig decodes EnvConfig from the process environment.
func LoadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}
