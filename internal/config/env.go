package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFiles lists the dotenv files consulted before configuration is loaded,
// in priority order.
func EnvFiles() []string {
	files := []string{".env", "revoice.env"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".config", "revoice", "revoice.env"))
	}
	return files
}

// LoadEnv loads the given dotenv files into the process environment. Variables
// already set are left alone, so earlier files and the real environment win.
// Missing files are skipped; the loaded paths are returned.
func LoadEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load env file %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
