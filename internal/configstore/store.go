package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rudi-cli/rudi/internal/rpaths"
)

// Store owns the config document at paths.ConfigFile.
type Store struct {
	path     string
	lockPath string
}

// New builds a Store rooted at the given rudi paths.
func New(p rpaths.Paths) *Store {
	return &Store{path: p.ConfigFile, lockPath: p.ConfigFile + ".lock"}
}

// InitConfig reads the existing document, or creates and persists a fresh
// one from createRudiConfig() if none exists yet.
func (s *Store) InitConfig() (Config, error) {
	cfg, err := s.read()
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return Config{}, err
	}
	fresh := createRudiConfig(nowISO8601())
	if err := s.write(fresh); err != nil {
		return Config{}, err
	}
	return fresh, nil
}

func (s *Store) read() (Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// write serialises cfg to a temp file and renames it atomically over the
// target, reasserting mode 0600 after the rename, per spec.md §4.F.
func (s *Store) write(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("saving config: %w", err)
	}
	return os.Chmod(s.path, 0o600)
}

// UpdateConfig reads the document, invokes modifier inside the locked
// section, and writes the result back.
func (s *Store) UpdateConfig(modifier func(cfg *Config) error) error {
	release, err := acquireLock(s.lockPath)
	if err != nil {
		return err
	}
	defer release()

	cfg, err := s.read()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		cfg = createRudiConfig(nowISO8601())
	}
	if err := modifier(&cfg); err != nil {
		return err
	}
	cfg.UpdatedAt = nowISO8601()
	return s.write(cfg)
}

// AddStack derives the launch config, stores the stack record, and
// registers any newly-declared secrets with configured:false, per
// spec.md §4.F.
func (s *Store) AddStack(id string, info StackAddInfo, bundledRuntimeBin func(runtime string) string) error {
	return s.UpdateConfig(func(cfg *Config) error {
		launch := CreateLaunchConfig(info.Command, info.Runtime, info.Path, bundledRuntimeBin)
		secrets := make([]SecretRequirement, len(info.Secrets))
		for i, name := range info.Secrets {
			secrets[i] = SecretRequirement{Name: name, Required: true}
		}
		cfg.Stacks[id] = StackInfo{
			ID: id, Name: info.Name, Version: info.Version, Path: info.Path,
			Command: info.Command, Runtime: info.Runtime, Launch: launch,
			Secrets: secrets, InstalledAt: nowISO8601(),
		}
		defaultProvider := ProviderSecretsFile
		if isDarwin() {
			defaultProvider = ProviderKeychain
		}
		for _, secretName := range info.Secrets {
			if _, exists := cfg.Secrets[secretName]; exists {
				continue
			}
			cfg.Secrets[secretName] = SecretMeta{
				Name: secretName, Stack: id, Provider: defaultProvider, Configured: false, Required: true,
			}
		}
		return nil
	})
}

// RemoveStack deletes the stack entry, then deletes any secret whose
// Stack pointer equals id and which no remaining stack still requires.
func (s *Store) RemoveStack(id string) error {
	return s.UpdateConfig(func(cfg *Config) error {
		delete(cfg.Stacks, id)
		for name, meta := range cfg.Secrets {
			if meta.Stack != id {
				continue
			}
			if stillRequired(cfg, name) {
				continue
			}
			delete(cfg.Secrets, name)
		}
		return nil
	})
}

func stillRequired(cfg *Config, secretName string) bool {
	for _, st := range cfg.Stacks {
		for _, s := range st.Secrets {
			if s.Name == secretName {
				return true
			}
		}
	}
	return false
}

// UpdateStackTools replaces the cached tool list for a stack.
func (s *Store) UpdateStackTools(id string, tools []ToolInfo) error {
	return s.UpdateConfig(func(cfg *Config) error {
		st, ok := cfg.Stacks[id]
		if !ok {
			return fmt.Errorf("stack %s not found", id)
		}
		st.Tools = tools
		cfg.Stacks[id] = st
		return nil
	})
}

// AddRuntime records an installed runtime.
func (s *Store) AddRuntime(id string, info RuntimeInfo) error {
	return s.UpdateConfig(func(cfg *Config) error {
		cfg.Runtimes[id] = info
		return nil
	})
}

// AddBinary records an installed standalone binary.
func (s *Store) AddBinary(id string, info BinaryInfo) error {
	return s.UpdateConfig(func(cfg *Config) error {
		cfg.Binaries[id] = info
		return nil
	})
}

// UpdateSecretStatus flips a secret's configured flag and provider.
func (s *Store) UpdateSecretStatus(name string, configured bool, provider SecretProvider) error {
	return s.UpdateConfig(func(cfg *Config) error {
		meta, ok := cfg.Secrets[name]
		if !ok {
			return fmt.Errorf("secret %s not found", name)
		}
		meta.Configured = configured
		if provider != "" {
			meta.Provider = provider
		}
		meta.LastUpdated = nowISO8601()
		cfg.Secrets[name] = meta
		return nil
	})
}

// Read returns a lock-free snapshot of the document (may observe either
// the pre- or post-rename file during a concurrent write).
func (s *Store) Read() (Config, error) {
	cfg, err := s.read()
	if err != nil {
		if os.IsNotExist(err) {
			return createRudiConfig(nowISO8601()), nil
		}
		return Config{}, err
	}
	return cfg, nil
}
