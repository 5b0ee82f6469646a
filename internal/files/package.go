package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ZipMimeType is announced for packaged folders.
const ZipMimeType = "application/zip"

// Blob is a named payload ready to send. Close releases the underlying
// file and removes it if it was a temporary archive.
type Blob struct {
	Name     string
	Size     int64
	MimeType string

	file      *os.File
	temporary bool
}

// Read implements io.Reader.
func (b *Blob) Read(p []byte) (int, error) {
	return b.file.Read(p)
}

// Path is where the blob's bytes live on disk.
func (b *Blob) Path() string {
	return b.file.Name()
}

func (b *Blob) Close() error {
	err := b.file.Close()
	if b.temporary {
		os.Remove(b.file.Name())
	}
	return err
}

// Open turns a validated path into a blob. Directories are packaged
// into a zip archive first.
func Open(info FileInfo) (*Blob, error) {
	if info.IsDir {
		return PackageFolder(info.Path)
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return nil, err
	}
	return &Blob{Name: info.Name, Size: info.Size, MimeType: info.Type, file: f}, nil
}

// PackageFolder zips dir into a temporary file and returns it as a blob
// named after the folder. Entries use paths relative to dir.
func PackageFolder(dir string) (*Blob, error) {
	tmp, err := os.CreateTemp("", "localdrop-*.zip")
	if err != nil {
		return nil, err
	}

	if err := zipDirectory(dir, tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("package %s: %w", dir, err)
	}

	stat, err := tmp.Stat()
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}

	return &Blob{
		Name:      filepath.Base(filepath.Clean(dir)) + ".zip",
		Size:      stat.Size(),
		MimeType:  ZipMimeType,
		file:      tmp,
		temporary: true,
	}, nil
}

func zipDirectory(source string, w io.Writer) error {
	archive := zip.NewWriter(w)

	err := filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == source {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)

		if info.IsDir() {
			header.Name += "/"
		} else {
			header.Method = zip.Deflate
		}

		writer, err := archive.CreateHeader(header)
		if err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})
	if err != nil {
		archive.Close()
		return err
	}
	return archive.Close()
}
