package statefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File хранит значение T в JSON-файле. Все обращения сериализуются мьютексом.
type File[T any] struct {
	mu   sync.Mutex
	path string
}

// New создаёт обёртку над файлом.
func New[T any](path string) *File[T] {
	return &File[T]{path: path}
}

// Path возвращает путь к файлу.
func (f *File[T]) Path() string { return f.path }

// Load читает значение. Отсутствующий или повреждённый файл даёт нулевое значение.
func (f *File[T]) Load() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Update читает значение, передаёт его в fn и сохраняет результат.
// Если fn вернула remove=true, файл удаляется.
func (f *File[T]) Update(fn func(v *T) (remove bool, err error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.read()
	remove, err := fn(&v)
	if err != nil {
		return err
	}
	if remove {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", f.path, err)
		}
		return nil
	}
	return f.write(v)
}

func (f *File[T]) read() T {
	var v T
	data, err := os.ReadFile(f.path)
	if err != nil {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero
	}
	return v
}

func (f *File[T]) write(v T) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
