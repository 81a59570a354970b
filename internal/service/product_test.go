package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"

	"github.com/bigkaa/goartstore/product-module/internal/domain/model"
	"github.com/bigkaa/goartstore/product-module/internal/qrcode"
	"github.com/bigkaa/goartstore/product-module/internal/repository"
	"github.com/bigkaa/goartstore/product-module/internal/storage/assets"
	"github.com/bigkaa/goartstore/product-module/internal/storage/filestore"
)

// tinyPNG — PNG 1x1.
var tinyPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==")

const testOrigin = "https://shop.example.com"

// --- Моки и фейки ---

// fixedIDs — генератор с заранее заданной последовательностью id.
type fixedIDs struct {
	ids   []string
	calls int
}

func (f *fixedIDs) Generate() string {
	id := f.ids[f.calls%len(f.ids)]
	f.calls++
	return id
}

// countingAssets оборачивает AssetStore, считает вызовы и может
// отказывать для выбранного бакета.
type countingAssets struct {
	inner    AssetStore
	failFor  string
	putCalls []string
}

func (c *countingAssets) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	c.putCalls = append(c.putCalls, bucket+"/"+key)
	if bucket == c.failFor {
		return "", assets.ErrStorage
	}
	return c.inner.Put(ctx, bucket, key, data, contentType)
}

// countingQR оборачивает QRRenderer и может возвращать ошибку.
type countingQR struct {
	inner QRRenderer
	err   error
	texts []string
}

func (c *countingQR) Render(text string) ([]byte, error) {
	c.texts = append(c.texts, text)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Render(text)
}

// memRepo — in-memory ProductRepository с возможностью подмены методов.
type memRepo struct {
	mu       sync.Mutex
	rows     map[string]*model.Product
	insertFn func(ctx context.Context, p *model.Product) error
	listFn   func(ctx context.Context) ([]*model.Product, error)
	inserts  int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]*model.Product{}}
}

func (m *memRepo) Insert(ctx context.Context, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertFn != nil {
		return m.insertFn(ctx, p)
	}
	if _, ok := m.rows[p.ID]; ok {
		return repository.ErrConflict
	}
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) ListAll(ctx context.Context) ([]*model.Product, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*model.Product, 0, len(m.rows))
	for _, p := range m.rows {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *memRepo) Update(_ context.Context, id string, upd model.ProductUpdate) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Image != nil {
		p.Image = *upd.Image
	}
	if upd.QRCode != nil {
		p.QRCode = *upd.QRCode
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) Ping(context.Context) error { return nil }

// testEnv — сервис с реальным хранилищем ассетов на temp-директории.
type testEnv struct {
	svc    *ProductService
	store  *assets.Store
	assets *countingAssets
	qr     *countingQR
	repo   *memRepo
	ids    *fixedIDs
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLimit(t, 0)
}

func newTestEnvWithLimit(t *testing.T, maxImageSize int64) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	store := assets.New(files, assets.Options{
		Buckets: []string{"product-images", "qr-codes"},
		BaseURL: "https://cdn.example.com",
	}, logger)

	env := &testEnv{
		store:  store,
		assets: &countingAssets{inner: store},
		qr:     &countingQR{inner: qrcode.NewEncoder()},
		repo:   newMemRepo(),
		ids:    &fixedIDs{ids: []string{"p-1", "p-2", "p-3"}},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
	}
	env.svc = NewProductService(ProductServiceDeps{
		IDs:          env.ids,
		Assets:       env.assets,
		QR:           env.qr,
		Repo:         env.repo,
		Clock:        func() time.Time { return env.now },
		Logger:       logger,
		Buckets:      Buckets{Images: "product-images", QR: "qr-codes"},
		MaxImageSize: maxImageSize,
	})
	return env
}

func widgetInput() CreateInput {
	return CreateInput{
		Name:             "Widget",
		Description:      "A widget",
		Image:            tinyPNG,
		ImageContentType: "image/png",
		ImageExtension:   "png",
		Origin:           testOrigin,
	}
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("ожидалась ошибка %s, получен nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("KindOf(%v) = %q, ожидался %q", err, got, kind)
	}
}

func assetExists(t *testing.T, store *assets.Store, bucket, key string) bool {
	t.Helper()
	a, err := store.Open(bucket, key)
	if err != nil {
		return false
	}
	a.File.Close()
	return true
}

// --- Create ---

// TestCreate_Widget — сквозной сценарий создания товара.
func TestCreate_Widget(t *testing.T) {
	env := newTestEnv(t)
	env.svc.clock = time.Now
	before := time.Now()

	p, err := env.svc.Create(context.Background(), widgetInput())
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	if p.ID != "p-1" || p.Name != "Widget" || p.Description != "A widget" {
		t.Errorf("неверные поля товара: %+v", p)
	}
	if p.Image != "https://cdn.example.com/assets/product-images/p-1/image.png" {
		t.Errorf("Image = %q", p.Image)
	}
	if p.QRCode != "https://cdn.example.com/assets/qr-codes/p-1/qr-code.png" {
		t.Errorf("QRCode = %q", p.QRCode)
	}
	if p.Image == p.QRCode {
		t.Error("Image и QRCode не должны совпадать")
	}
	if d := p.CreatedAt.Sub(before); d < -time.Millisecond || d > time.Second {
		t.Errorf("CreatedAt = %v, ожидалось в пределах 1s от %v", p.CreatedAt, before)
	}

	// Запись сохранена и читается обратно
	got, err := env.svc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() вернул ошибку: %v", err)
	}
	if *got != *p {
		t.Errorf("Get() = %+v, ожидалось %+v", got, p)
	}

	// Изображение сохранено без изменений
	a, err := env.store.Open("product-images", "p-1/image.png")
	if err != nil {
		t.Fatalf("изображение не найдено: %v", err)
	}
	data, _ := io.ReadAll(a.File)
	a.File.Close()
	if !bytes.Equal(data, tinyPNG) {
		t.Error("содержимое изображения изменено")
	}

	// QR-код декодируется в ссылку на карточку товара
	q, err := env.store.Open("qr-codes", "p-1/qr-code.png")
	if err != nil {
		t.Fatalf("QR-код не найден: %v", err)
	}
	defer q.File.Close()
	if q.Meta.ContentType != "image/png" {
		t.Errorf("ContentType QR = %q, ожидался image/png", q.Meta.ContentType)
	}
	img, err := png.Decode(q.File)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	bmp, _ := gozxing.NewBinaryBitmapFromImage(img)
	res, err := zxingqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		t.Fatalf("декодирование QR: %v", err)
	}
	if res.GetText() != testOrigin+"/product/p-1" {
		t.Errorf("QR = %q, ожидался %q", res.GetText(), testOrigin+"/product/p-1")
	}
}

func TestCreate_CreatedAtUTCMicroseconds(t *testing.T) {
	env := newTestEnv(t)
	env.now = time.Date(2026, 3, 1, 15, 0, 0, 123456789, time.FixedZone("MSK", 3*3600))

	p, err := env.svc.Create(context.Background(), widgetInput())
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	expected := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
	if !p.CreatedAt.Equal(expected) || p.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, ожидалось %v", p.CreatedAt, expected)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"пустое имя", func(in *CreateInput) { in.Name = "" }, "name"},
		{"имя из пробелов", func(in *CreateInput) { in.Name = "   \t" }, "name"},
		{"пустое описание", func(in *CreateInput) { in.Description = "" }, "description"},
		{"описание из пробелов", func(in *CreateInput) { in.Description = "\n " }, "description"},
		{"нет изображения", func(in *CreateInput) { in.Image = nil }, "image"},
		{"нет origin", func(in *CreateInput) { in.Origin = "" }, "origin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := widgetInput()
			tt.mutate(&in)

			_, err := env.svc.Create(context.Background(), in)
			assertKind(t, err, KindValidation)

			var se *Error
			errors.As(err, &se)
			if _, ok := se.Fields[tt.field]; !ok {
				t.Errorf("Fields = %v, ожидалось поле %s", se.Fields, tt.field)
			}

			// Ни одного обращения к зависимостям
			if env.ids.calls != 0 || len(env.assets.putCalls) != 0 || len(env.qr.texts) != 0 || env.repo.inserts != 0 {
				t.Errorf("при ошибке валидации выполнен I/O: ids=%d puts=%v qr=%v inserts=%d",
					env.ids.calls, env.assets.putCalls, env.qr.texts, env.repo.inserts)
			}
		})
	}
}

func TestCreate_ValidationReportsAllFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), CreateInput{Origin: testOrigin})
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("ошибка = %v, ожидалась *Error", err)
	}
	for _, f := range []string{"name", "description", "image"} {
		if _, ok := se.Fields[f]; !ok {
			t.Errorf("нет ошибки для поля %s: %v", f, se.Fields)
		}
	}
}

func TestCreate_ImageUploadFails(t *testing.T) {
	env := newTestEnv(t)
	env.assets.failFor = "product-images"

	_, err := env.svc.Create(context.Background(), widgetInput())
	assertKind(t, err, KindStorage)

	if len(env.qr.texts) != 0 {
		t.Error("QR-код не должен генерироваться после ошибки загрузки изображения")
	}
	if len(env.assets.putCalls) != 1 {
		t.Errorf("putCalls = %v, ожидался один вызов", env.assets.putCalls)
	}
	if env.repo.inserts != 0 {
		t.Error("строка не должна вставляться")
	}
}

func TestCreate_EncodingFails(t *testing.T) {
	env := newTestEnv(t)
	env.qr.err = qrcode.ErrEncoding

	_, err := env.svc.Create(context.Background(), widgetInput())
	assertKind(t, err, KindEncoding)

	// Изображение уже загружено и остаётся в хранилище
	if !assetExists(t, env.store, "product-images", "p-1/image.png") {
		t.Error("загруженное изображение должно остаться в хранилище")
	}
	if env.repo.inserts != 0 {
		t.Error("строка не должна вставляться")
	}
}

// TestCreate_QRUploadFails — изображение загружено, QR нет: ошибка
// хранилища, изображение доступно, строки нет.
func TestCreate_QRUploadFails(t *testing.T) {
	env := newTestEnv(t)
	env.assets.failFor = "qr-codes"

	_, err := env.svc.Create(context.Background(), widgetInput())
	assertKind(t, err, KindStorage)

	if !assetExists(t, env.store, "product-images", "p-1/image.png") {
		t.Error("загруженное изображение должно остаться в хранилище")
	}
	if env.repo.inserts != 0 {
		t.Error("строка не должна вставляться")
	}
	if _, err := env.svc.Get(context.Background(), "p-1"); KindOf(err) != KindNotFound {
		t.Errorf("Get() ошибка = %v, ожидалась NOT_FOUND", err)
	}
}

func TestCreate_InsertFails(t *testing.T) {
	env := newTestEnv(t)
	env.repo.insertFn = func(context.Context, *model.Product) error {
		return errors.New("connection reset by peer")
	}

	_, err := env.svc.Create(context.Background(), widgetInput())
	assertKind(t, err, KindStorage)

	// Оба ассета остаются без строки товара
	if !assetExists(t, env.store, "product-images", "p-1/image.png") {
		t.Error("изображение должно остаться в хранилище")
	}
	if !assetExists(t, env.store, "qr-codes", "p-1/qr-code.png") {
		t.Error("QR-код должен остаться в хранилище")
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	env := newTestEnv(t)
	env.ids.ids = []string{"same"}

	if _, err := env.svc.Create(context.Background(), widgetInput()); err != nil {
		t.Fatalf("первый Create() вернул ошибку: %v", err)
	}
	_, err := env.svc.Create(context.Background(), widgetInput())
	assertKind(t, err, KindConstraint)
}

// TestCreate_TypeFromContent — тип и расширение берутся из сигнатуры,
// а не из заявленных клиентом значений.
func TestCreate_TypeFromContent(t *testing.T) {
	tests := []struct {
		name      string
		declared  string
		extension string
	}{
		{"без типа и расширения", "", ""},
		{"octet-stream", "application/octet-stream", "bin"},
		{"неверный image/*", "image/jpeg", "jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := widgetInput()
			in.ImageContentType = tt.declared
			in.ImageExtension = tt.extension

			p, err := env.svc.Create(context.Background(), in)
			if err != nil {
				t.Fatalf("Create() вернул ошибку: %v", err)
			}
			if !strings.HasSuffix(p.Image, "/p-1/image.png") {
				t.Errorf("Image = %q, ожидался ключ image.png", p.Image)
			}
			a, err := env.store.Open("product-images", "p-1/image.png")
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer a.File.Close()
			if a.Meta.ContentType != "image/png" {
				t.Errorf("ContentType = %q, ожидался image/png", a.Meta.ContentType)
			}
		})
	}
}

func TestCreate_RejectsNonImage(t *testing.T) {
	html := []byte("<script>alert(document.cookie)</script>")
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"data URI text/html", func(in *CreateInput) {
			in.Image = nil
			in.ImageContentType = ""
			in.ImageDataURI = "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
		}},
		{"HTML под видом image/png", func(in *CreateInput) { in.Image = html }},
		{"SVG", func(in *CreateInput) {
			in.Image = svg
			in.ImageContentType = "image/svg+xml"
			in.ImageExtension = "svg"
		}},
		{"PDF", func(in *CreateInput) { in.Image = pdf }},
		{"PNG с заявленным text/html", func(in *CreateInput) { in.ImageContentType = "text/html" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := widgetInput()
			tt.mutate(&in)

			_, err := env.svc.Create(context.Background(), in)
			assertKind(t, err, KindValidation)

			var se *Error
			errors.As(err, &se)
			if _, ok := se.Fields["image"]; !ok {
				t.Errorf("Fields = %v, ожидалось поле image", se.Fields)
			}
			if env.ids.calls != 0 || len(env.assets.putCalls) != 0 || env.repo.inserts != 0 {
				t.Errorf("при недопустимом изображении выполнен I/O: ids=%d puts=%v inserts=%d",
					env.ids.calls, env.assets.putCalls, env.repo.inserts)
			}
		})
	}
}

func TestCreate_ImageTooLarge(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"байты", func(*CreateInput) {}},
		{"data URI", func(in *CreateInput) {
			in.Image = nil
			in.ImageDataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnvWithLimit(t, int64(len(tinyPNG)-1))
			in := widgetInput()
			tt.mutate(&in)

			_, err := env.svc.Create(context.Background(), in)
			assertKind(t, err, KindTooLarge)
			if env.ids.calls != 0 || len(env.assets.putCalls) != 0 {
				t.Errorf("при превышении размера выполнен I/O: ids=%d puts=%v", env.ids.calls, env.assets.putCalls)
			}
		})
	}

	// Изображение ровно на лимите допустимо
	env := newTestEnvWithLimit(t, int64(len(tinyPNG)))
	if _, err := env.svc.Create(context.Background(), widgetInput()); err != nil {
		t.Errorf("Create() на лимите вернул ошибку: %v", err)
	}
}

func TestCreate_FromDataURI(t *testing.T) {
	env := newTestEnv(t)
	in := widgetInput()
	in.Image = nil
	in.ImageContentType = ""
	in.ImageExtension = ""
	in.ImageDataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)

	p, err := env.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	if !strings.HasSuffix(p.Image, "/p-1/image.png") {
		t.Errorf("Image = %q, ожидался ключ image.png", p.Image)
	}

	a, err := env.store.Open("product-images", "p-1/image.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.File.Close()
	if a.Meta.ContentType != "image/png" {
		t.Errorf("ContentType = %q, ожидался image/png", a.Meta.ContentType)
	}
	data, _ := io.ReadAll(a.File)
	if !bytes.Equal(data, tinyPNG) {
		t.Error("содержимое изображения не совпадает с декодированным data URI")
	}
}

func TestCreate_MalformedDataURI(t *testing.T) {
	env := newTestEnv(t)
	in := widgetInput()
	in.Image = nil
	in.ImageDataURI = "image/png;base64,AAAA"

	_, err := env.svc.Create(context.Background(), in)
	assertKind(t, err, KindMalformedDataURI)

	if env.ids.calls != 0 || len(env.assets.putCalls) != 0 || env.repo.inserts != 0 {
		t.Errorf("при некорректном data URI выполнен I/O: ids=%d puts=%v inserts=%d",
			env.ids.calls, env.assets.putCalls, env.repo.inserts)
	}
}

func TestCreate_TrimsFields(t *testing.T) {
	env := newTestEnv(t)
	in := widgetInput()
	in.Name = "  Widget  "
	in.Description = "\tA widget\n"

	p, err := env.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	if p.Name != "Widget" || p.Description != "A widget" {
		t.Errorf("Name/Description = %q/%q, ожидались без пробелов", p.Name, p.Description)
	}
}

// --- Чтение ---

func TestList_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		env.now = base.Add(time.Duration(i) * time.Minute)
		if _, err := env.svc.Create(context.Background(), widgetInput()); err != nil {
			t.Fatalf("Create() #%d: %v", i, err)
		}
	}

	list, err := env.svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	var ids []string
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "p-3,p-2,p-1" {
		t.Errorf("порядок = %v, ожидался [p-3 p-2 p-1]", ids)
	}
}

func TestList_Empty(t *testing.T) {
	env := newTestEnv(t)

	list, err := env.svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len = %d, ожидалось 0", len(list))
	}
}

func TestList_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"некорректная строка", repository.ErrMalformedRow, KindMalformedRow},
		{"база недоступна", errors.New("dial tcp: connection refused"), KindStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.repo.listFn = func(context.Context) ([]*model.Product, error) { return nil, tt.err }

			_, err := env.svc.List(context.Background())
			assertKind(t, err, tt.kind)
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Get(context.Background(), "missing")
	assertKind(t, err, KindNotFound)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Error("ошибка должна оборачивать repository.ErrNotFound")
	}
}

// --- Update / Delete ---

func strPtr(s string) *string { return &s }

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), widgetInput())
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	updated, err := env.svc.Update(context.Background(), created.ID, UpdateInput{Name: strPtr("  Gadget ")})
	if err != nil {
		t.Fatalf("Update() вернул ошибку: %v", err)
	}
	if updated.Name != "Gadget" {
		t.Errorf("Name = %q, ожидалось Gadget", updated.Name)
	}
	if updated.Description != created.Description || updated.Image != created.Image ||
		updated.QRCode != created.QRCode || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("Update() изменил непереданные поля: %+v", updated)
	}
}

func TestUpdate_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   UpdateInput
	}{
		{"нет полей", UpdateInput{}},
		{"пустое имя", UpdateInput{Name: strPtr("")}},
		{"описание из пробелов", UpdateInput{Description: strPtr("   ")}},
		{"пустой image", UpdateInput{Image: strPtr("")}},
		{"qrCode из пробелов", UpdateInput{Name: strPtr("x"), QRCode: strPtr(" \t")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.svc.Update(context.Background(), "p-1", tt.in)
			assertKind(t, err, KindValidation)
		})
	}
}

func TestUpdate_AssetURLs(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), widgetInput())
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	updated, err := env.svc.Update(context.Background(), created.ID, UpdateInput{
		Image:  strPtr(" https://cdn.example.com/other.png "),
		QRCode: strPtr("https://cdn.example.com/other-qr.png"),
	})
	if err != nil {
		t.Fatalf("Update() вернул ошибку: %v", err)
	}
	if updated.Image != "https://cdn.example.com/other.png" || updated.QRCode != "https://cdn.example.com/other-qr.png" {
		t.Errorf("Image/QRCode = %q/%q", updated.Image, updated.QRCode)
	}
	if updated.Name != created.Name || updated.Description != created.Description {
		t.Errorf("Update() изменил непереданные поля: %+v", updated)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Update(context.Background(), "missing", UpdateInput{Name: strPtr("x")})
	assertKind(t, err, KindNotFound)
}

// TestDelete — удаляется только строка, ассеты остаются.
func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), widgetInput())
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	if err := env.svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete() вернул ошибку: %v", err)
	}
	if _, err := env.svc.Get(context.Background(), created.ID); KindOf(err) != KindNotFound {
		t.Errorf("Get() после Delete: %v, ожидалась NOT_FOUND", err)
	}
	if !assetExists(t, env.store, "product-images", "p-1/image.png") ||
		!assetExists(t, env.store, "qr-codes", "p-1/qr-code.png") {
		t.Error("ассеты не должны удаляться вместе с товаром")
	}

	assertKind(t, env.svc.Delete(context.Background(), created.ID), KindNotFound)
}

// --- Вспомогательные ---

func TestImageExtension(t *testing.T) {
	tests := []struct {
		ext, contentType, fallback, expected string
	}{
		{"png", "image/png", "png", "png"},
		{".JPEG", "image/jpeg", "jpg", "jpeg"},
		{"", "image/jpeg", "jpg", "jpg"},
		{"", "image/png", "png", "png"},
		{"html", "image/png", "png", "png"},
		{"bin", "image/png", "png", "png"},
		{"jpg", "image/jpeg; charset=binary", "jpg", "jpg"},
		{"../../etc", "image/png", "png", "png"},
		{"tar.gz", "image/gif", "gif", "gif"},
		{"", "image/x-unknown", "", "jpg"},
	}
	for _, tt := range tests {
		if got := imageExtension(tt.ext, tt.contentType, tt.fallback); got != tt.expected {
			t.Errorf("imageExtension(%q, %q, %q) = %q, ожидалось %q", tt.ext, tt.contentType, tt.fallback, got, tt.expected)
		}
	}
}

func TestError_Format(t *testing.T) {
	err := validationError(map[string]string{"name": "обязательное поле", "description": "обязательное поле"})
	msg := err.Error()
	if !strings.HasPrefix(msg, "VALIDATION_ERROR: ") {
		t.Errorf("Error() = %q, ожидался префикс VALIDATION_ERROR", msg)
	}
	if strings.Index(msg, "description") > strings.Index(msg, "name:") {
		t.Errorf("поля должны быть отсортированы: %q", msg)
	}

	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf() для обычной ошибки должен возвращать пустую строку")
	}

	wrapped := classify("x", assets.ErrMalformedDataURI)
	if wrapped.Kind != KindMalformedDataURI || !errors.Is(wrapped, assets.ErrMalformedDataURI) {
		t.Errorf("classify() = %+v", wrapped)
	}
}
