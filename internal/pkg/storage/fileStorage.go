package storage

import (
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

type FileStorage interface {
	Save(path string, data io.Reader) error
	Get(path string) (io.ReadCloser, error)
}

type fileStorage struct {
	fs       afero.Fs
	basePath string
}

func NewFileStorage(fs afero.Fs, basePath string) FileStorage {
	return &fileStorage{fs: fs, basePath: basePath}
}

// Save writes through a temporary file so readers never see a partial record.
func (s *fileStorage) Save(path string, data io.Reader) error {
	fullPath := filepath.Join(s.basePath, path)

	// Создаем директорию если нужно
	if err := s.fs.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	tmp := fullPath + ".tmp"
	file, err := s.fs.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		s.fs.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		s.fs.Remove(tmp)
		return err
	}

	return s.fs.Rename(tmp, fullPath)
}

func (s *fileStorage) Get(path string) (io.ReadCloser, error) {
	return s.fs.Open(filepath.Join(s.basePath, path))
}
