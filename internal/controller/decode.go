package controller

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"face-search/internal/models"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// MaxImageSize - максимальный размер загружаемого файла
const MaxImageSize = 10 << 20

// ErrImageRead - не удалось прочитать выбранный файл как изображение
var ErrImageRead = errors.New("failed to read file")

// imageReadMessage - текст ошибки в сессии
const imageReadMessage = "Failed to read file."

var mediaTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// DecodeImage читает файл и определяет его подтип.
// Поддерживаются только png, jpeg, gif и webp
func DecodeImage(r io.Reader) (*models.UploadedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageRead, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrImageRead)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrImageRead, MaxImageSize)
	}

	mt := mimetype.Detect(data)
	subtype, ok := mediaTypes[mt.String()]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported media type %s", ErrImageRead, mt.String())
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageRead, err)
	}

	return &models.UploadedImage{MediaType: subtype, Data: data}, nil
}
