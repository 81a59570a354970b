// Пакет qrcode — построение ссылки на карточку товара и рендеринг
// QR-кода в PNG (boombuler/barcode).
package qrcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// ErrEncoding — не удалось закодировать текст в QR-код.
var ErrEncoding = errors.New("ошибка кодирования QR-кода")

// Параметры рендеринга по умолчанию.
const (
	DefaultSize   = 256
	DefaultMargin = 2
)

// BuildPayloadURL возвращает ссылку на карточку товара: {origin}/product/{id}.
// Ни origin, ни id не нормализуются и не экранируются.
func BuildPayloadURL(origin, productID string) string {
	return origin + "/product/" + productID
}

// Encoder рендерит QR-коды в PNG.
// Нулевой Size и nil-цвета заменяются значениями по умолчанию.
type Encoder struct {
	// Size — ширина и высота изображения в пикселях
	Size int
	// Margin — ширина «тихой зоны» в модулях
	Margin int
	// Foreground — цвет тёмных модулей
	Foreground color.Color
	// Background — цвет фона и тихой зоны
	Background color.Color
	// Level — уровень коррекции ошибок
	Level qr.ErrorCorrectionLevel
}

// NewEncoder создаёт Encoder: 256px, margin 2, чёрный на белом, уровень M.
func NewEncoder() *Encoder {
	return &Encoder{
		Size:       DefaultSize,
		Margin:     DefaultMargin,
		Foreground: color.Black,
		Background: color.White,
		Level:      qr.M,
	}
}

// Render кодирует text в QR и возвращает PNG.
// Для одного и того же text результат побайтно совпадает.
func (e *Encoder) Render(text string) ([]byte, error) {
	img, err := e.Image(text)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: запись PNG: %v", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

// RenderDataURI возвращает тот же PNG в виде data:image/png;base64,...
func (e *Encoder) RenderDataURI(text string) (string, error) {
	data, err := e.Render(text)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Image строит растр QR-кода. Матрица масштабируется на наибольший
// целый размер модуля, помещающийся в Size с учётом Margin, и
// центрируется на квадратном холсте.
// barcode.Scale не подходит: он не оставляет тихую зону в Margin модулей.
func (e *Encoder) Image(text string) (image.Image, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: пустой текст", ErrEncoding)
	}

	code, err := qr.Encode(text, e.Level, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	modules := code.Bounds().Dx()
	margin := e.margin()
	size := e.size()

	scale := size / (modules + 2*margin)
	if scale < 1 {
		// Текст не помещается в заданный размер — растим холст
		scale = 1
		size = modules + 2*margin
	}
	offset := (size - modules*scale) / 2

	fg, bg := e.colors()
	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{bg, fg})
	// Индекс 0 палитры — фон, холст уже залит им
	for my := 0; my < modules; my++ {
		for mx := 0; mx < modules; mx++ {
			if !isDark(code, mx, my) {
				continue
			}
			x0, y0 := offset+mx*scale, offset+my*scale
			for y := y0; y < y0+scale; y++ {
				for x := x0; x < x0+scale; x++ {
					img.SetColorIndex(x, y, 1)
				}
			}
		}
	}
	return img, nil
}

func isDark(code barcode.Barcode, x, y int) bool {
	b := code.Bounds()
	g := color.GrayModel.Convert(code.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
	return g.Y < 128
}

func (e *Encoder) size() int {
	if e.Size <= 0 {
		return DefaultSize
	}
	return e.Size
}

func (e *Encoder) margin() int {
	if e.Margin < 0 {
		return 0
	}
	return e.Margin
}

func (e *Encoder) colors() (fg, bg color.Color) {
	fg, bg = e.Foreground, e.Background
	if fg == nil {
		fg = color.Black
	}
	if bg == nil {
		bg = color.White
	}
	return fg, bg
}
