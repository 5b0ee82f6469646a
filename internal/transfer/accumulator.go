package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/localdrop/localdrop/internal/utils"
)

// Accumulator collects the chunks of one transfer in arrival order.
type Accumulator interface {
	Begin(meta Metadata) error
	Append(chunk []byte) error
	// Finish completes the transfer and reports where the bytes are.
	Finish() (Result, error)
	// Discard drops everything collected since Begin.
	Discard() error
}

// MemoryAccumulator keeps the ordered chunk list and concatenates at Finish.
type MemoryAccumulator struct {
	chunks [][]byte
	size   int
}

func NewMemoryAccumulator() *MemoryAccumulator {
	return &MemoryAccumulator{}
}

func (m *MemoryAccumulator) Begin(Metadata) error {
	m.chunks = nil
	m.size = 0
	return nil
}

func (m *MemoryAccumulator) Append(chunk []byte) error {
	m.chunks = append(m.chunks, chunk)
	m.size += len(chunk)
	return nil
}

func (m *MemoryAccumulator) Finish() (Result, error) {
	data := make([]byte, 0, m.size)
	for _, c := range m.chunks {
		data = append(data, c...)
	}
	m.chunks = nil
	m.size = 0
	return Result{Data: data}, nil
}

func (m *MemoryAccumulator) Discard() error {
	m.chunks = nil
	m.size = 0
	return nil
}

// FileAccumulator streams chunks into a hidden temporary file in Dir and
// renames it to a free name derived from the announced one at Finish.
type FileAccumulator struct {
	Dir string

	file *os.File
	name string
}

func NewFileAccumulator(dir string) *FileAccumulator {
	return &FileAccumulator{Dir: dir}
}

func (f *FileAccumulator) Begin(meta Metadata) error {
	if f.file != nil {
		f.Discard()
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return NewFileError("create directory", f.Dir, err)
	}

	file, err := os.CreateTemp(f.Dir, ".localdrop-*.part")
	if err != nil {
		return NewFileError("create file", meta.Name, err)
	}
	f.file = file
	f.name = utils.SafeFilename(meta.Name)
	return nil
}

func (f *FileAccumulator) Append(chunk []byte) error {
	if f.file == nil {
		return NewError("write", ErrNoActiveTransfer)
	}
	if _, err := f.file.Write(chunk); err != nil {
		return NewFileError("write", f.name, err)
	}
	return nil
}

func (f *FileAccumulator) Finish() (Result, error) {
	if f.file == nil {
		return Result{}, NewError("finish", ErrNoActiveTransfer)
	}
	file := f.file
	tmp := file.Name()
	f.file = nil

	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return Result{}, NewFileError("close", f.name, err)
	}

	target := utils.GetUniqueFilename(filepath.Join(f.Dir, f.name))
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return Result{}, NewFileError("rename", f.name, err)
	}
	return Result{Path: target}, nil
}

func (f *FileAccumulator) Discard() error {
	if f.file == nil {
		return nil
	}
	tmp := f.file.Name()
	f.file.Close()
	f.file = nil
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove partial file: %w", err)
	}
	return nil
}
