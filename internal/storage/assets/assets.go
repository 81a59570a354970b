// Пакет assets — хранилище ассетов товаров (изображения, QR-коды).
// Ассет адресуется парой (bucket, key), хранится на диске через filestore
// вместе с attr.json и доступен по публичному URL {base}/assets/{bucket}/{key}.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/product-module/internal/domain/model"
	"github.com/bigkaa/goartstore/product-module/internal/storage/attr"
	"github.com/bigkaa/goartstore/product-module/internal/storage/filestore"
)

// PathPrefix — префикс маршрута отдачи ассетов.
const PathPrefix = "/assets/"

// Ошибки хранилища ассетов.
var (
	// ErrStorage — ошибка записи или чтения хранилища.
	ErrStorage = errors.New("ошибка хранилища ассетов")
	// ErrInvalidKey — неизвестный бакет или небезопасный ключ.
	ErrInvalidKey = errors.New("недопустимый бакет или ключ ассета")
	// ErrNotFound — ассет не найден.
	ErrNotFound = errors.New("ассет не найден")
)

// Prometheus-метрики хранилища ассетов.
var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_asset_operations_total",
		Help: "Количество операций с ассетами.",
	}, []string{"operation", "bucket", "status"})
	metaCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_asset_meta_cache_hits_total",
		Help: "Попадания в LRU-кэш метаданных ассетов.",
	})
	metaCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_asset_meta_cache_misses_total",
		Help: "Промахи LRU-кэша метаданных ассетов.",
	})
)

// Options — параметры Store.
type Options struct {
	// Buckets — допустимые бакеты
	Buckets []string
	// BaseURL — базовый URL публичных ссылок. Пустой — берётся из
	// контекста (WithBaseURL), иначе ссылка относительная.
	BaseURL string
	// CacheSize — размер LRU-кэша метаданных
	CacheSize int
	// CacheTTL — время жизни записи кэша
	CacheTTL time.Duration
}

// Store — хранилище ассетов поверх FileStore.
type Store struct {
	files   *filestore.FileStore
	buckets map[string]struct{}
	baseURL string
	cache   *expirable.LRU[string, *model.AssetMetadata]
	now     func() time.Time
	logger  *slog.Logger
}

// New создаёт Store.
func New(files *filestore.FileStore, opts Options, logger *slog.Logger) *Store {
	buckets := make(map[string]struct{}, len(opts.Buckets))
	for _, b := range opts.Buckets {
		buckets[b] = struct{}{}
	}
	size := opts.CacheSize
	if size < 1 {
		size = 1000
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Store{
		files:   files,
		buckets: buckets,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		cache:   expirable.NewLRU[string, *model.AssetMetadata](size, nil, ttl),
		now:     time.Now,
		logger:  logger.With(slog.String("component", "asset_store")),
	}
}

// Asset — открытый на чтение ассет. Вызывающий код обязан закрыть File.
type Asset struct {
	File *os.File
	Meta *model.AssetMetadata
}

// Put сохраняет data под (bucket, key), перезаписывая существующий ассет,
// и возвращает его публичный URL. Повторный Put с тем же ключом
// возвращает тот же URL.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if err := s.validate(bucket, key); err != nil {
		operationsTotal.WithLabelValues("put", bucket, "invalid").Inc()
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	res, err := s.files.Save(bucket, key, bytes.NewReader(data))
	if err != nil {
		operationsTotal.WithLabelValues("put", bucket, "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	meta := &model.AssetMetadata{
		Bucket:      bucket,
		Key:         key,
		ContentType: contentType,
		Size:        res.Size,
		Checksum:    res.Checksum,
		UpdatedAt:   s.now().UTC(),
	}
	if err := attr.Write(attr.AttrFilePath(res.FullPath), meta); err != nil {
		s.cache.Remove(cacheKey(bucket, key))
		operationsTotal.WithLabelValues("put", bucket, "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.cache.Add(cacheKey(bucket, key), meta)

	operationsTotal.WithLabelValues("put", bucket, "success").Inc()
	s.logger.Debug("Ассет сохранён",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int64("size", res.Size),
	)

	return s.PublicURL(ctx, bucket, key), nil
}

// Open открывает ассет для отдачи клиенту.
// Метаданные берутся из кэша или attr.json.
func (s *Store) Open(bucket, key string) (*Asset, error) {
	if err := s.validate(bucket, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	meta, err := s.Stat(bucket, key)
	if err != nil {
		return nil, err
	}

	f, err := s.files.Open(bucket, key)
	if err != nil {
		s.cache.Remove(cacheKey(bucket, key))
		if errors.Is(err, filestore.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	operationsTotal.WithLabelValues("open", bucket, "success").Inc()
	return &Asset{File: f, Meta: meta}, nil
}

// Stat возвращает метаданные ассета без открытия файла.
func (s *Store) Stat(bucket, key string) (*model.AssetMetadata, error) {
	if err := s.validate(bucket, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	ck := cacheKey(bucket, key)
	if meta, ok := s.cache.Get(ck); ok {
		metaCacheHitsTotal.Inc()
		return meta, nil
	}
	metaCacheMissesTotal.Inc()

	fullPath, _ := s.files.Path(bucket, key)
	meta, err := attr.Read(attr.AttrFilePath(fullPath))
	if err != nil {
		if errors.Is(err, attr.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.cache.Add(ck, meta)
	return meta, nil
}

// Delete удаляет ассет и его attr.json. Отсутствующий ассет — не ошибка.
func (s *Store) Delete(bucket, key string) error {
	if err := s.validate(bucket, key); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(bucket, key))

	fullPath, _ := s.files.Path(bucket, key)
	if err := s.files.Delete(bucket, key); err != nil {
		operationsTotal.WithLabelValues("delete", bucket, "error").Inc()
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := attr.Delete(attr.AttrFilePath(fullPath)); err != nil {
		operationsTotal.WithLabelValues("delete", bucket, "error").Inc()
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	operationsTotal.WithLabelValues("delete", bucket, "success").Inc()
	s.logger.Info("Ассет удалён",
		slog.String("bucket", bucket),
		slog.String("key", key),
	)
	return nil
}

// PublicURL возвращает публичную ссылку на ассет.
func (s *Store) PublicURL(ctx context.Context, bucket, key string) string {
	base := s.baseURL
	if base == "" {
		base = BaseURLFromContext(ctx)
	}

	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + PathPrefix + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// HasBucket сообщает, обслуживается ли бакет.
func (s *Store) HasBucket(bucket string) bool {
	_, ok := s.buckets[bucket]
	return ok
}

// CheckReady проверяет доступность директории данных.
func (s *Store) CheckReady() (status string, message string) {
	return s.files.CheckReady()
}

func (s *Store) validate(bucket, key string) error {
	if !s.HasBucket(bucket) {
		return fmt.Errorf("%w: %w: бакет %q", ErrStorage, ErrInvalidKey, bucket)
	}
	if err := filestore.ValidateKey(key); err != nil {
		return fmt.Errorf("%w: %w: %v", ErrStorage, ErrInvalidKey, err)
	}
	// Ключ не должен совпадать с именами служебных файлов
	if attr.IsAttrFile(key) || strings.HasSuffix(key, ".tmp") {
		return fmt.Errorf("%w: %w: %q", ErrStorage, ErrInvalidKey, key)
	}
	return nil
}

func cacheKey(bucket, key string) string {
	return bucket + "/" + key
}

type baseURLKey struct{}

// WithBaseURL кладёт в контекст базовый URL для публичных ссылок.
// Используется, когда PM_ASSET_BASE_URL не задан и origin
// вычисляется из запроса.
func WithBaseURL(ctx context.Context, base string) context.Context {
	return context.WithValue(ctx, baseURLKey{}, strings.TrimRight(base, "/"))
}

// BaseURLFromContext возвращает базовый URL из контекста или "".
func BaseURLFromContext(ctx context.Context) string {
	v, _ := ctx.Value(baseURLKey{}).(string)
	return v
}
