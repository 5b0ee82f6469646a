package files

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/localdrop/localdrop/internal/transfer"
)

// FileInfo holds information about a path to be sent
type FileInfo struct {
	// Path is the absolute path
	Path string

	// Name is the base name without directory
	Name string

	// Size in bytes. Zero for directories until they are packaged.
	Size int64

	// Type is the MIME type derived from the extension
	Type string

	IsDir bool
}

// Validate checks that path exists and can be read. Directories are
// accepted and packaged later.
func Validate(path string) (FileInfo, error) {
	if path == "" {
		return FileInfo{}, fmt.Errorf("no file specified")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, fmt.Errorf("%s: file does not exist", path)
		}
		return FileInfo{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}

	name := filepath.Base(absPath)
	if stat.IsDir() {
		return FileInfo{Path: absPath, Name: name, IsDir: true}, nil
	}

	file, err := os.Open(absPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	file.Close()

	return FileInfo{
		Path: absPath,
		Name: name,
		Size: stat.Size(),
		Type: MimeType(name),
	}, nil
}

// MimeType detects the MIME type from the file extension.
func MimeType(name string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if t == "" {
		return transfer.DefaultMimeType
	}
	return t
}
