package files

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.PDF")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}

	info, err := Validate(path)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if info.Name != "report.PDF" || info.Size != 4 || info.Type != "application/pdf" || info.IsDir {
		t.Errorf("info = %+v", info)
	}

	info, err = Validate(dir)
	if err != nil || !info.IsDir {
		t.Errorf("directory: %+v, %v", info, err)
	}

	if _, err := Validate(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestMimeTypeFallback(t *testing.T) {
	if got := MimeType("blob.unknownext"); got != "application/octet-stream" {
		t.Errorf("MimeType = %q", got)
	}
}

func TestPackageFolderRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "photos")
	files := map[string]string{
		"a.txt":          "alpha",
		"nested/b.txt":   "bravo",
		"nested/c/d.txt": "delta",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		os.MkdirAll(filepath.Dir(path), 0o755)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	blob, err := PackageFolder(root)
	if err != nil {
		t.Fatalf("PackageFolder: %v", err)
	}
	archivePath := blob.Path()

	if blob.Name != "photos.zip" || blob.MimeType != ZipMimeType {
		t.Errorf("blob = %s %s", blob.Name, blob.MimeType)
	}

	data, err := io.ReadAll(blob)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(data)) != blob.Size {
		t.Errorf("read %d bytes, size says %d", len(data), blob.Size)
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	var names []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)

		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		content, _ := io.ReadAll(rc)
		rc.Close()
		if string(content) != files[f.Name] {
			t.Errorf("%s = %q, want %q", f.Name, content, files[f.Name])
		}
	}
	r.Close()

	sort.Strings(names)
	if len(names) != 3 || names[0] != "a.txt" || names[2] != "nested/c/d.txt" {
		t.Errorf("entries = %v", names)
	}

	if err := blob.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(archivePath); !os.IsNotExist(err) {
		t.Error("temporary archive not removed on Close")
	}
}

func TestDigestAgreesAcrossForms(t *testing.T) {
	data := []byte("the same bytes on both ends")
	path := filepath.Join(t.TempDir(), "f")
	os.WriteFile(path, data, 0o600)

	fromFile, err := DigestFile(path)
	if err != nil {
		t.Fatal(err)
	}

	streamed := NewDigest()
	streamed.Write(data[:5])
	streamed.Write(data[5:])

	if fromFile != DigestBytes(data) || fromFile != streamed.String() {
		t.Errorf("digests differ: %s %s %s", fromFile, DigestBytes(data), streamed.String())
	}
	if len(fromFile) != 32 {
		t.Errorf("digest length = %d", len(fromFile))
	}
}
