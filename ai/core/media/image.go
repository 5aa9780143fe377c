package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/sashabaranov/go-openai"
)

// ImageService renders an illustration from a text prompt.
type ImageService struct {
	client  *openai.Client
	model   string
	size    string
	maxSide int
}

// NewImageService creates a new ImageService.
func NewImageService(cfg *Config) *ImageService {
	cfg = cfg.withDefaults()
	return &ImageService{
		client:  newClient(cfg),
		model:   cfg.ImageModel,
		size:    cfg.ImageSize,
		maxSide: cfg.ImageMaxSide,
	}
}

// GenerateImage requests one base64 image and returns it as PNG.
func (s *ImageService) GenerateImage(ctx context.Context, prompt string) (*Asset, error) {
	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.model,
		N:              1,
		Size:           s.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("image generation returned no data")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}

	data, err := s.normalize(raw)
	if err != nil {
		return nil, err
	}

	slog.Debug("Media: image generated", "model", s.model, "bytes", len(data))
	return &Asset{Kind: KindImage, MimeType: "image/png", Data: data}, nil
}

// normalize re-encodes the image as PNG, downscaled to maxSide when set.
func (s *ImageService) normalize(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated image: %w", err)
	}
	if s.maxSide > 0 {
		b := img.Bounds()
		if b.Dx() > s.maxSide || b.Dy() > s.maxSide {
			img = imaging.Fit(img, s.maxSide, s.maxSide, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
