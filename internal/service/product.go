// Пакет service — бизнес-логика Product Module.
// product.go — жизненный цикл товара: создание с загрузкой изображения
// и QR-кода, чтение, частичное обновление, удаление.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/product-module/internal/domain/idgen"
	"github.com/bigkaa/goartstore/product-module/internal/domain/model"
	"github.com/bigkaa/goartstore/product-module/internal/qrcode"
	"github.com/bigkaa/goartstore/product-module/internal/repository"
	"github.com/bigkaa/goartstore/product-module/internal/storage/assets"
)

// defaultImageExtension — расширение ключа, если формат не дал своего.
const defaultImageExtension = "jpg"

// Prometheus-метрики жизненного цикла товаров.
var (
	productOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_product_operations_total",
		Help: "Количество операций с товарами по типу и результату.",
	}, []string{"operation", "status"})
	orphanedAssetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_orphaned_assets_total",
		Help: "Ассеты, оставшиеся без строки товара после неудачного создания.",
	}, []string{"bucket"})
)

// AssetStore — хранилище ассетов, используемое сервисом.
type AssetStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}

// QRRenderer — рендеринг QR-кода в PNG.
type QRRenderer interface {
	Render(text string) ([]byte, error)
}

// ProductServiceDeps — зависимости ProductService.
type ProductServiceDeps struct {
	IDs     idgen.Generator
	Assets  AssetStore
	QR      QRRenderer
	Repo    repository.ProductRepository
	Clock   func() time.Time
	Logger  *slog.Logger
	Buckets Buckets

	// MaxImageSize — максимальный размер изображения в байтах; 0 — без лимита
	MaxImageSize int64
}

// Buckets — имена бакетов ассетов.
type Buckets struct {
	Images string
	QR     string
}

// CreateInput — данные формы создания товара.
type CreateInput struct {
	Name        string
	Description string
	// Image — содержимое изображения
	Image []byte
	// ImageDataURI — изображение в виде data:<mime>;base64,<payload>.
	// Используется, если Image пуст.
	ImageDataURI string
	// ImageContentType — заявленный MIME-тип; не-image/* отклоняется
	ImageContentType string
	// ImageExtension — расширение имени файла без точки; принимается,
	// если соответствует распознанному формату
	ImageExtension string
	// Origin — origin для ссылки в QR-коде
	Origin string
}

// UpdateInput — частичное обновление товара. nil = поле не изменяется.
// Image и QRCode заменяют URL ассетов; сами ассеты не перезаписываются.
type UpdateInput struct {
	Name        *string
	Description *string
	Image       *string
	QRCode      *string
}

// ProductService — оркестратор жизненного цикла товара.
type ProductService struct {
	ids     idgen.Generator
	assets  AssetStore
	qr      QRRenderer
	repo    repository.ProductRepository
	clock   func() time.Time
	buckets Buckets
	maxSize int64
	logger  *slog.Logger
}

// NewProductService создаёт сервис товаров.
func NewProductService(deps ProductServiceDeps) *ProductService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := deps.IDs
	if ids == nil {
		ids = idgen.UUIDGenerator{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ProductService{
		ids:     ids,
		assets:  deps.Assets,
		qr:      deps.QR,
		repo:    deps.Repo,
		clock:   clock,
		buckets: deps.Buckets,
		maxSize: deps.MaxImageSize,
		logger:  logger.With(slog.String("component", "product_service")),
	}
}

// Create создаёт товар.
//
// Поток:
//  1. Валидация (без I/O при ошибке): поля, data URI, размер и формат изображения
//  2. Генерация id
//  3. Загрузка изображения → {id}/image.{ext}
//  4. Построение ссылки и рендеринг QR
//  5. Загрузка QR → {id}/qr-code.png
//  6. Сборка записи (createdAt = now, UTC)
//  7. Вставка строки
//
// Отката нет: при ошибке на шагах 4-7 уже загруженные ассеты остаются
// в хранилище без строки товара.
func (s *ProductService) Create(ctx context.Context, in CreateInput) (*model.Product, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "обязательное поле"
	}
	if description == "" {
		fields["description"] = "обязательное поле"
	}
	if len(in.Image) == 0 && in.ImageDataURI == "" {
		fields["image"] = "изображение обязательно"
	}
	if in.Origin == "" {
		fields["origin"] = "не удалось определить origin для ссылки"
	}
	if len(fields) > 0 {
		productOperationsTotal.WithLabelValues("create", "invalid").Inc()
		return nil, validationError(fields)
	}

	image, declared := in.Image, in.ImageContentType
	if len(image) == 0 {
		data, mimeType, err := assets.DecodeDataURI(in.ImageDataURI)
		if err != nil {
			productOperationsTotal.WithLabelValues("create", "invalid").Inc()
			return nil, classify("некорректное изображение", err)
		}
		image = data
		if declared == "" {
			declared = mimeType
		}
	}

	if s.maxSize > 0 && int64(len(image)) > s.maxSize {
		productOperationsTotal.WithLabelValues("create", "invalid").Inc()
		return nil, &Error{
			Kind:    KindTooLarge,
			Message: fmt.Sprintf("изображение больше %d байт", s.maxSize),
		}
	}

	contentType, ext, problem := detectImage(image, declared, in.ImageExtension)
	if problem != "" {
		productOperationsTotal.WithLabelValues("create", "invalid").Inc()
		return nil, validationError(map[string]string{"image": problem})
	}

	id := s.ids.Generate()
	log := s.logger.With(slog.String("product_id", id))

	imageKey := id + "/image." + ext

	var uploaded []orphan

	imageURL, err := s.assets.Put(ctx, s.buckets.Images, imageKey, image, contentType)
	if err != nil {
		return nil, s.failCreate(log, "ошибка загрузки изображения", err, uploaded)
	}
	uploaded = append(uploaded, orphan{bucket: s.buckets.Images, key: imageKey})

	payload := qrcode.BuildPayloadURL(in.Origin, id)
	png, err := s.qr.Render(payload)
	if err != nil {
		return nil, s.failCreate(log, "ошибка генерации QR-кода", err, uploaded)
	}

	qrKey := id + "/qr-code.png"
	qrURL, err := s.assets.Put(ctx, s.buckets.QR, qrKey, png, "image/png")
	if err != nil {
		return nil, s.failCreate(log, "ошибка загрузки QR-кода", err, uploaded)
	}
	uploaded = append(uploaded, orphan{bucket: s.buckets.QR, key: qrKey})

	p := &model.Product{
		ID:          id,
		Name:        name,
		Description: description,
		Image:       imageURL,
		QRCode:      qrURL,
		// Точность timestamptz в PostgreSQL — микросекунды
		CreatedAt: s.clock().UTC().Truncate(time.Microsecond),
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, s.failCreate(log, "ошибка сохранения товара", err, uploaded)
	}

	productOperationsTotal.WithLabelValues("create", "success").Inc()
	log.Info("Товар создан",
		slog.String("name", p.Name),
		slog.String("image", p.Image),
		slog.String("qr_code", p.QRCode),
		slog.String("payload", payload),
	)
	return p, nil
}

// Get возвращает товар по id.
func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, classify(fmt.Sprintf("не удалось получить товар %s", id), err)
	}
	return p, nil
}

// List возвращает все товары, новые первыми.
func (s *ProductService) List(ctx context.Context) ([]*model.Product, error) {
	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, classify("не удалось получить список товаров", err)
	}
	return products, nil
}

// Update применяет переданные поля. Переданное поле не может быть пустым;
// хотя бы одно поле обязательно.
func (s *ProductService) Update(ctx context.Context, id string, in UpdateInput) (*model.Product, error) {
	fields := map[string]string{}
	upd := model.ProductUpdate{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			fields["name"] = "не может быть пустым"
		}
		upd.Name = &name
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if description == "" {
			fields["description"] = "не может быть пустым"
		}
		upd.Description = &description
	}
	if in.Image != nil {
		image := strings.TrimSpace(*in.Image)
		if image == "" {
			fields["image"] = "не может быть пустым"
		}
		upd.Image = &image
	}
	if in.QRCode != nil {
		qrCode := strings.TrimSpace(*in.QRCode)
		if qrCode == "" {
			fields["qrCode"] = "не может быть пустым"
		}
		upd.QRCode = &qrCode
	}
	if upd.Empty() {
		fields["body"] = "нужно передать хотя бы одно поле: name, description, image, qrCode"
	}
	if len(fields) > 0 {
		productOperationsTotal.WithLabelValues("update", "invalid").Inc()
		return nil, validationError(fields)
	}

	p, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		productOperationsTotal.WithLabelValues("update", "error").Inc()
		return nil, classify(fmt.Sprintf("не удалось обновить товар %s", id), err)
	}

	productOperationsTotal.WithLabelValues("update", "success").Inc()
	s.logger.Info("Товар обновлён", slog.String("product_id", id))
	return p, nil
}

// Delete удаляет строку товара. Изображение и QR-код остаются в хранилище.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		productOperationsTotal.WithLabelValues("delete", "error").Inc()
		return classify(fmt.Sprintf("не удалось удалить товар %s", id), err)
	}

	productOperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Товар удалён", slog.String("product_id", id))
	return nil
}

// orphan — ассет, загруженный до сбоя создания.
type orphan struct {
	bucket string
	key    string
}

// failCreate классифицирует ошибку создания, логирует и учитывает
// оставшиеся ассеты.
func (s *ProductService) failCreate(log *slog.Logger, message string, err error, uploaded []orphan) error {
	se := classify(message, err)
	productOperationsTotal.WithLabelValues("create", "error").Inc()

	log.Error("Ошибка создания товара",
		slog.String("kind", string(se.Kind)),
		slog.String("error", err.Error()),
	)
	for _, o := range uploaded {
		orphanedAssetsTotal.WithLabelValues(o.bucket).Inc()
		log.Warn("Ассет остался без товара",
			slog.String("bucket", o.bucket),
			slog.String("key", o.key),
		)
	}
	return se
}
