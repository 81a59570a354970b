// Пакет filestore — операции с физическими файлами ассетов на диске.
// Файлы адресуются парой (bucket, key) и лежат в {dataDir}/{bucket}/{key}.
// Запись атомарная, с подсчётом SHA-256 на лету.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Ошибки файлового хранилища.
var (
	// ErrInvalidPath — недопустимое имя бакета или ключа.
	ErrInvalidPath = errors.New("недопустимый путь файла")
	// ErrFileNotFound — файл отсутствует на диске.
	ErrFileNotFound = errors.New("файл не найден")
)

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (PM_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт новый FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// Path возвращает абсолютный путь файла для (bucket, key).
// Ключ — относительный slash-путь без пустых сегментов, "." и "..".
func (s *FileStore) Path(bucket, key string) (string, error) {
	if err := ValidateKey(bucket); err != nil || strings.Contains(bucket, "/") {
		return "", fmt.Errorf("%w: бакет %q", ErrInvalidPath, bucket)
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dataDir, bucket, filepath.FromSlash(key)), nil
}

// ValidateKey проверяет, что ключ безопасен для использования как путь.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: пустой ключ", ErrInvalidPath)
	}
	if strings.ContainsAny(key, "\\\x00") || path.IsAbs(key) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidPath, key)
		}
	}
	return nil
}

// Save записывает данные из reader в {bucket}/{key} с подсчётом SHA-256.
// Существующий файл перезаписывается.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *FileStore) Save(bucket, key string, reader io.Reader) (*SaveResult, error) {
	fullPath, err := s.Path(bucket, key)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	// Уникальное имя temp файла: параллельная запись одного ключа
	// не должна портить чужой temp
	f, err := os.CreateTemp(dir, filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(reader, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		FullPath: fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (s *FileStore) Open(bucket, key string) (*os.File, error) {
	fullPath, err := s.Path(bucket, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrFileNotFound, bucket, key)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s/%s: %w", bucket, key, err)
	}
	return f, nil
}

// Delete удаляет файл с диска. Возвращает nil, если файла уже нет.
func (s *FileStore) Delete(bucket, key string) error {
	fullPath, err := s.Path(bucket, key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s/%s: %w", bucket, key, err)
	}
	return nil
}

// DataDir возвращает путь к директории данных.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// CheckReady проверяет, что директория данных доступна на запись.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *FileStore) CheckReady() (status string, message string) {
	f, err := os.CreateTemp(s.dataDir, ".ready-*")
	if err != nil {
		return "fail", fmt.Sprintf("директория данных недоступна на запись: %v", err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return "ok", "директория данных доступна"
}
