package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/product-module/internal/config"
	"github.com/bigkaa/goartstore/product-module/internal/database"
	"github.com/bigkaa/goartstore/product-module/internal/domain/model"
)

// --- MapRow ---

func validRow() map[string]any {
	return map[string]any{
		"id":          "p1",
		"name":        "Widget",
		"description": "A widget",
		"image_url":   "https://cdn.example.com/assets/product-images/p1/image.png",
		"qr_code_url": "https://cdn.example.com/assets/qr-codes/p1/qr-code.png",
		"created_at":  time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
	}
}

func TestMapRow(t *testing.T) {
	p, err := MapRow(validRow())
	if err != nil {
		t.Fatalf("MapRow() вернул ошибку: %v", err)
	}

	if p.ID != "p1" || p.Name != "Widget" || p.Description != "A widget" {
		t.Errorf("неверные поля: %+v", p)
	}
	if p.Image != "https://cdn.example.com/assets/product-images/p1/image.png" {
		t.Errorf("Image = %q", p.Image)
	}
	if p.QRCode != "https://cdn.example.com/assets/qr-codes/p1/qr-code.png" {
		t.Errorf("QRCode = %q", p.QRCode)
	}
	expected := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if !p.CreatedAt.Equal(expected) || p.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, ожидалось %v (UTC)", p.CreatedAt, expected)
	}
}

func TestMapRow_StringTimestampAndNullQR(t *testing.T) {
	row := validRow()
	row["created_at"] = "2026-03-01T09:00:00.123456Z"
	row["qr_code_url"] = nil

	p, err := MapRow(row)
	if err != nil {
		t.Fatalf("MapRow() вернул ошибку: %v", err)
	}
	if p.QRCode != "" {
		t.Errorf("QRCode = %q, ожидалась пустая строка", p.QRCode)
	}
	if p.CreatedAt.Nanosecond() != 123456000 {
		t.Errorf("CreatedAt = %v, потеряна дробная часть", p.CreatedAt)
	}
}

func TestMapRow_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"нет id", func(r map[string]any) { delete(r, "id") }},
		{"нет image_url", func(r map[string]any) { delete(r, "image_url") }},
		{"нет qr_code_url", func(r map[string]any) { delete(r, "qr_code_url") }},
		{"нет created_at", func(r map[string]any) { delete(r, "created_at") }},
		{"name не строка", func(r map[string]any) { r["name"] = 42 }},
		{"description NULL", func(r map[string]any) { r["description"] = nil }},
		{"created_at число", func(r map[string]any) { r["created_at"] = int64(1700000000) }},
		{"created_at не RFC 3339", func(r map[string]any) { r["created_at"] = "01.03.2026" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			tt.mutate(row)

			if _, err := MapRow(row); !errors.Is(err, ErrMalformedRow) {
				t.Errorf("ошибка = %v, ожидалась ErrMalformedRow", err)
			}
		})
	}
}

// --- Интеграционные тесты ---

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("products_test"),
		postgres.WithUsername("products"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("PM_DB_HOST", host)
	t.Setenv("PM_DB_PORT", port.Port())
	t.Setenv("PM_DB_NAME", "products_test")
	t.Setenv("PM_DB_USER", "products")
	t.Setenv("PM_DB_PASSWORD", "test-password")
	t.Setenv("PM_DB_SSL_MODE", "disable")
	t.Setenv("PM_DATA_DIR", t.TempDir())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newProduct(createdAt time.Time) *model.Product {
	id := uuid.NewString()
	return &model.Product{
		ID:          id,
		Name:        "Widget",
		Description: "A widget",
		Image:       "https://cdn.example.com/assets/product-images/" + id + "/image.png",
		QRCode:      "https://cdn.example.com/assets/qr-codes/" + id + "/qr-code.png",
		CreatedAt:   createdAt.UTC().Truncate(time.Microsecond),
	}
}

func TestProductCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProductRepository(pool)

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping() на пустой таблице: %v", err)
	}

	p := newProduct(time.Now())

	// Insert
	if err := repo.Insert(ctx, p); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	// Дубликат id
	if err := repo.Insert(ctx, p); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный Insert() ошибка = %v, ожидалась ErrConflict", err)
	}

	// GetByID
	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Name != p.Name || got.Description != p.Description || got.Image != p.Image || got.QRCode != p.QRCode {
		t.Errorf("GetByID() = %+v, ожидалось %+v", got, p)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt = %v, ожидалось %v", got.CreatedAt, p.CreatedAt)
	}

	// Update: только name
	newName := "Gadget"
	updated, err := repo.Update(ctx, p.ID, model.ProductUpdate{Name: &newName})
	if err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	if updated.Name != "Gadget" {
		t.Errorf("Name = %q, ожидалось Gadget", updated.Name)
	}
	if updated.Description != p.Description || updated.Image != p.Image {
		t.Error("Update() изменил поля, которые не передавались")
	}
	if !updated.CreatedAt.Equal(p.CreatedAt) {
		t.Error("Update() изменил CreatedAt")
	}

	// Update несуществующего
	if _, err := repo.Update(ctx, "missing", model.ProductUpdate{Name: &newName}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) ошибка = %v, ожидалась ErrNotFound", err)
	}

	// Delete
	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() после Delete ошибка = %v, ожидалась ErrNotFound", err)
	}
	if err := repo.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete() ошибка = %v, ожидалась ErrNotFound", err)
	}
}

func TestPing_Readiness(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	checker := database.NewReadinessChecker(NewProductRepository(pool))

	if status, msg := checker.CheckReady(); status != "ok" {
		t.Fatalf("CheckReady() = %q (%s), ожидался ok", status, msg)
	}

	// Пул жив, но таблицы products нет — readiness должна провалиться
	if _, err := pool.Exec(ctx, `DROP TABLE products`); err != nil {
		t.Fatalf("DROP TABLE: %v", err)
	}
	if status, _ := checker.CheckReady(); status != "fail" {
		t.Errorf("CheckReady() = %q, ожидался fail", status)
	}
}

func TestListAll_NewestFirst(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewProductRepository(pool)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p1 := newProduct(base)
	p2 := newProduct(base.Add(time.Minute))
	p3 := newProduct(base.Add(2 * time.Minute))

	// Порядок вставки не совпадает с порядком created_at
	for _, p := range []*model.Product{p2, p3, p1} {
		if err := repo.Insert(ctx, p); err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
	}

	list, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() ошибка: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, ожидалось 3", len(list))
	}
	for i, expected := range []*model.Product{p3, p2, p1} {
		if list[i].ID != expected.ID {
			t.Errorf("list[%d].ID = %s, ожидался %s", i, list[i].ID, expected.ID)
		}
	}
}
