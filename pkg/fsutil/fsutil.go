package fsutil

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// Layout maps an image to its place on disk: {root}/{site-hostname}/{filename}
type Layout struct {
	OriginalDir string
	RotatedDir  string
}

// OriginalPath is where the raw downloaded bytes are cached
func (l Layout) OriginalPath(dirname, filename string) string {
	return filepath.Join(l.OriginalDir, dirname, filename)
}

// RotatedPath is where the transformed image is written
func (l Layout) RotatedPath(dirname, filename string) string {
	return filepath.Join(l.RotatedDir, dirname, filename)
}

// Exists returns true if path exists and is a regular file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadFile reads a cached image
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading '%s': %w", utils.ErrFilesystem, path, err)
	}
	return data, nil
}

// WriteFile writes data to path, creating parent directories.
// Data goes to a temp file in the same directory first so a reader never sees a partial image.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: ensuring directory '%s' exists: %w", utils.ErrFilesystem, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: chmod '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: renaming into '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}

// ReadSiteList reads one site URL per line. Blank lines and lines starting with '#' are skipped.
func ReadSiteList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: site list '%s' not found: %w", utils.ErrFilesystem, path, err)
		}
		return nil, fmt.Errorf("%w: opening site list '%s': %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	var sites []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sites = append(sites, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading site list '%s': %w", utils.ErrFilesystem, path, err)
	}
	return sites, nil
}
