package model

import "time"

// Product — товар каталога с изображением и QR-кодом.
// Хранится в таблице products.
type Product struct {
	// ID — непрозрачный уникальный идентификатор (UUID v4), неизменяемый
	ID string
	// Name — отображаемое имя товара
	Name string
	// Description — описание товара
	Description string
	// Image — публичный URL изображения (столбец image_url)
	Image string
	// QRCode — публичный URL PNG с QR-кодом (столбец qr_code_url)
	QRCode string
	// CreatedAt — время создания, не изменяется
	CreatedAt time.Time
}

// ProductUpdate — частичное обновление товара.
// nil = поле не изменяется.
type ProductUpdate struct {
	Name        *string
	Description *string
	Image       *string
	QRCode      *string
}

// Empty сообщает, что обновление не содержит ни одного поля.
func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Image == nil && u.QRCode == nil
}
