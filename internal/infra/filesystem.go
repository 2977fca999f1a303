package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// GetWorkDir expands dotPath, joins the optional parts and makes sure the directory exists.
func GetWorkDir(dotPath string, parts ...string) (string, error) {
	workDir, err := homedir.Expand(filepath.Join(append([]string{dotPath}, parts...)...))
	if err != nil {
		return "", fmt.Errorf("expand work dir: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return workDir, nil
}
