package statefile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileMissingAndCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	f := New[map[string]int](path)
	if v := f.Load(); len(v) != 0 {
		t.Fatalf("ожидали пустое значение, получили %v", v)
	}
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("запись: %v", err)
	}
	if v := f.Load(); len(v) != 0 {
		t.Fatalf("повреждённый файл должен читаться как пустой, получили %v", v)
	}
}

func TestFileUpdateAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "list.json")
	f := New[[]int](path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = f.Update(func(v *[]int) (bool, error) {
				*v = append(*v, n)
				return false, nil
			})
		}(i)
	}
	wg.Wait()
	if got := len(f.Load()); got != 20 {
		t.Fatalf("ожидали 20 элементов без потерь, получили %d", got)
	}

	if err := f.Update(func(v *[]int) (bool, error) { return true, nil }); err != nil {
		t.Fatalf("удаление: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("файл должен быть удалён, err=%v", err)
	}
}
