package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxSourceSize = 8 << 20

var sourceExtensions = map[string]bool{
	".tex": true,
	".ltx": true,
}

// validateSourcePath checks that path names a readable LaTeX source file.
func validateSourcePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("cannot access file %s: %w", path, err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !sourceExtensions[ext] {
		return fmt.Errorf("file is not a LaTeX source (has extension %q)", ext)
	}

	if info.Size() > maxSourceSize {
		return fmt.Errorf("file is too large to submit (%d bytes, limit %d)", info.Size(), maxSourceSize)
	}

	return nil
}

// outputPathFor returns the PDF path written next to the source file.
func outputPathFor(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".pdf"
}
