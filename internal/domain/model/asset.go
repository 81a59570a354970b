package model

import "time"

// AssetMetadata — метаданные ассета (изображение, QR-код).
// Соответствует содержимому сопутствующего *.attr.json.
type AssetMetadata struct {
	// Bucket — имя бакета (product-images, qr-codes)
	Bucket string `json:"bucket"`

	// Key — ключ внутри бакета, например {id}/image.png
	Key string `json:"key"`

	// ContentType — MIME-тип содержимого
	ContentType string `json:"content_type"`

	// Size — размер в байтах
	Size int64 `json:"size"`

	// Checksum — SHA-256 хэш содержимого (hex), используется как ETag
	Checksum string `json:"checksum"`

	// UpdatedAt — время последней записи (UTC)
	UpdatedAt time.Time `json:"updated_at"`
}
