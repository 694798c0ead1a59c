package agents

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ReadEnvFile loads a stack's .env file (if present) into a plain map,
// used to seed an agent's own env overlay for an MCP entry.
func ReadEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return vals, nil
}

// WriteEnvFile writes vals back to path in KEY=VALUE form.
func WriteEnvFile(path string, vals map[string]string) error {
	return godotenv.Write(vals, path)
}
