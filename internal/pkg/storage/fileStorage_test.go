package storage

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileStorage проверяет сохранение и чтение файлов
func TestFileStorage(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFileStorage(fs, "/data")

	require.NoError(t, s.Save("jobs/a.json", strings.NewReader(`{"id":"a"}`)))

	// временный файл не должен оставаться после записи
	ok, err := afero.Exists(fs, "/data/jobs/a.json.tmp")
	require.NoError(t, err)
	assert.False(t, ok)

	r, err := s.Get("jobs/a.json")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(data))

	require.NoError(t, s.Save("jobs/a.json", strings.NewReader(`{"id":"b"}`)))
	raw, err := afero.ReadFile(fs, "/data/jobs/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"b"}`, string(raw))

	_, err = s.Get("jobs/missing.json")
	assert.True(t, os.IsNotExist(err))
}
