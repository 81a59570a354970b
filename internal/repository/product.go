package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/product-module/internal/domain/model"
)

// productColumns — список столбцов таблицы products для SELECT/RETURNING.
const productColumns = `id, name, description, image_url, qr_code_url, created_at`

// ProductRepository — доступ к таблице products.
type ProductRepository interface {
	// Insert добавляет товар. Дубликат id — ErrConflict.
	Insert(ctx context.Context, p *model.Product) error
	// GetByID возвращает товар или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Product, error)
	// ListAll возвращает все товары, новые первыми.
	ListAll(ctx context.Context) ([]*model.Product, error)
	// Update применяет непустые поля и возвращает обновлённый товар.
	Update(ctx context.Context, id string, upd model.ProductUpdate) (*model.Product, error)
	// Delete удаляет строку товара. Ассеты не затрагиваются.
	Delete(ctx context.Context, id string) error
	// Ping проверяет доступность таблицы products.
	Ping(ctx context.Context) error
}

// productRepo — реализация ProductRepository через pgx.
// Ping делает его database.Pinger для readiness-проверки.
type productRepo struct {
	db DBTX
}

// NewProductRepository создаёт репозиторий товаров.
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Insert(ctx context.Context, p *model.Product) error {
	query := `
		INSERT INTO products (id, name, description, image_url, qr_code_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Image, p.QRCode, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: товар %s уже существует", ErrConflict, p.ID)
		}
		return fmt.Errorf("ошибка создания товара: %w", err)
	}
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения товара: %w", err)
	}
	return p, nil
}

// ListAll читает строки как map и проверяет каждую через MapRow:
// строка с неожиданной схемой даёт ErrMalformedRow, а не панику.
func (r *productRepo) ListAll(ctx context.Context) ([]*model.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY created_at DESC, id`, productColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка товаров: %w", err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка товаров: %w", err)
	}

	result := make([]*model.Product, 0, len(raw))
	for _, row := range raw {
		p, err := MapRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (r *productRepo) Update(ctx context.Context, id string, upd model.ProductUpdate) (*model.Product, error) {
	if upd.Empty() {
		return r.GetByID(ctx, id)
	}

	var sets []string
	args := []any{id}
	argNum := 2

	for _, f := range []struct {
		column string
		value  *string
	}{
		{"name", upd.Name},
		{"description", upd.Description},
		{"image_url", upd.Image},
		{"qr_code_url", upd.QRCode},
	} {
		if f.value == nil {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", f.column, argNum))
		args = append(args, *f.value)
		argNum++
	}

	query := fmt.Sprintf(`
		UPDATE products
		SET %s
		WHERE id = $1
		RETURNING %s`, strings.Join(sets, ", "), productColumns)

	p, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления товара: %w", err)
	}
	return p, nil
}

func (r *productRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления товара: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) Ping(ctx context.Context) error {
	var one int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM products LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("таблица products недоступна: %w", err)
	}
	return nil
}

// scanProduct сканирует строку в порядке productColumns.
func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.QRCode, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// MapRow преобразует нетипизированную строку (column → value) в Product.
// image_url → Image, qr_code_url → QRCode, created_at → CreatedAt.
// Отсутствующий столбец или значение неверного типа — ErrMalformedRow.
// NULL в qr_code_url трактуется как пустая строка.
func MapRow(row map[string]any) (*model.Product, error) {
	p := &model.Product{}
	var err error

	if p.ID, err = stringColumn(row, "id", false); err != nil {
		return nil, err
	}
	if p.Name, err = stringColumn(row, "name", false); err != nil {
		return nil, err
	}
	if p.Description, err = stringColumn(row, "description", false); err != nil {
		return nil, err
	}
	if p.Image, err = stringColumn(row, "image_url", false); err != nil {
		return nil, err
	}
	if p.QRCode, err = stringColumn(row, "qr_code_url", true); err != nil {
		return nil, err
	}

	v, ok := row["created_at"]
	if !ok {
		return nil, fmt.Errorf("%w: отсутствует столбец created_at", ErrMalformedRow)
	}
	switch t := v.(type) {
	case time.Time:
		p.CreatedAt = t.UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, fmt.Errorf("%w: created_at %q не в формате RFC 3339", ErrMalformedRow, t)
		}
		p.CreatedAt = parsed.UTC()
	default:
		return nil, fmt.Errorf("%w: created_at имеет тип %T", ErrMalformedRow, v)
	}

	return p, nil
}

func stringColumn(row map[string]any, column string, nullable bool) (string, error) {
	v, ok := row[column]
	if !ok {
		return "", fmt.Errorf("%w: отсутствует столбец %s", ErrMalformedRow, column)
	}
	if v == nil && nullable {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: столбец %s имеет тип %T, ожидалась строка", ErrMalformedRow, column, v)
	}
	return s, nil
}
