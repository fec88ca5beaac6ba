package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xela07ax/pamwatch/internal/domain"
)

// FilePersister хранит настройки в JSON-файле рядом с порталом
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Load читает файл поверх дефолтов: отсутствующие секции берутся из DefaultSettings.
// Если файла нет, он создается с дефолтами.
func (p *FilePersister) Load(ctx context.Context) (domain.Settings, error) {
	s := domain.DefaultSettings()

	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, p.Save(ctx, s)
	}
	if err != nil {
		return domain.Settings{}, err
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Settings{}, fmt.Errorf("decode %s: %w", p.path, err)
	}
	return s, nil
}

// Save пишет во временный файл и переименовывает, чтобы читатель не увидел половину JSON
func (p *FilePersister) Save(ctx context.Context, s domain.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".settings-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}
