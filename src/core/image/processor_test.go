package image

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"celebrity-detector-go/src/configs"
	"celebrity-detector-go/src/core/utils"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testSecurityConfig() *configs.SecurityConfig {
	return &configs.DefaultConfig().Image
}

// stubDetector 固定返回结果的检测器
type stubDetector struct {
	face  *FaceBox
	out   []byte
	err   error
	calls int
}

func (d *stubDetector) Detect(ctx context.Context, data []byte) (*FaceBox, []byte, error) {
	d.calls++
	if d.out == nil {
		return d.face, data, d.err
	}
	return d.face, d.out, d.err
}

func (d *stubDetector) Close() error { return nil }

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "png"},
		{"gif", []byte("GIF89a..."), "gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"riff但不是webp", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), "jpeg"},
		{"未知默认jpeg", []byte("hello"), "jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, DetectFormat(tt.data))
		})
	}
}

func TestValidateImage(t *testing.T) {
	config := testSecurityConfig()
	validator := NewImageSecurityValidator(config)

	result := validator.ValidateImage(encodePNG(t, 4, 3))
	require.True(t, result.IsValid)
	require.Equal(t, "png", result.Format)
	require.Equal(t, 4, result.Width)
	require.Equal(t, 3, result.Height)

	require.False(t, validator.ValidateImage(nil).IsValid)
	require.False(t, validator.ValidateImage([]byte("definitely not an image")).IsValid)

	small := *config
	small.MaxWidth = 2
	require.False(t, NewImageSecurityValidator(&small).ValidateImage(encodePNG(t, 4, 3)).IsValid)

	tiny := *config
	tiny.MaxFileSize = 10
	require.False(t, NewImageSecurityValidator(&tiny).ValidateImage(encodePNG(t, 4, 3)).IsValid)

	onlyJPEG := *config
	onlyJPEG.AllowedFormats = []string{"jpeg"}
	require.False(t, NewImageSecurityValidator(&onlyJPEG).ValidateImage(encodePNG(t, 4, 3)).IsValid)
}

func TestProcess_FaceFound(t *testing.T) {
	detector := &stubDetector{face: &FaceBox{X: 1, Y: 1, Width: 2, Height: 2}}
	processor := NewImageProcessor(testSecurityConfig(), detector, utils.NewConsoleLogger(io.Discard, "debug"))

	data := encodePNG(t, 4, 4)
	result, err := processor.Process(context.Background(), data)
	require.NoError(t, err)
	require.NotNil(t, result.Face)
	require.Equal(t, 4, result.Face.Area())
	require.Equal(t, data, result.Bytes)
	require.Equal(t, "png", result.Format)

	metrics := processor.GetMetrics()
	require.EqualValues(t, 1, metrics.TotalProcessed)
	require.EqualValues(t, 1, metrics.FacesDetected)
}

func TestProcess_NoFace(t *testing.T) {
	detector := &stubDetector{}
	processor := NewImageProcessor(testSecurityConfig(), detector, utils.NewConsoleLogger(io.Discard, "info"))

	data := encodePNG(t, 4, 4)
	result, err := processor.Process(context.Background(), data)
	require.NoError(t, err)
	require.Nil(t, result.Face)
	require.Equal(t, data, result.Bytes)
	require.EqualValues(t, 1, processor.GetMetrics().NoFace)
}

func TestProcess_InvalidImageSkipsDetector(t *testing.T) {
	detector := &stubDetector{}
	processor := NewImageProcessor(testSecurityConfig(), detector, utils.NewConsoleLogger(io.Discard, "info"))

	_, err := processor.Process(context.Background(), []byte("not an image"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidImage))
	require.Zero(t, detector.calls)
	require.EqualValues(t, 1, processor.GetMetrics().FailedValidations)
}

func TestProcess_DetectorErrorIsInvalidImage(t *testing.T) {
	detector := &stubDetector{err: errors.New("failed to decode image")}
	processor := NewImageProcessor(testSecurityConfig(), detector, utils.NewConsoleLogger(io.Discard, "info"))

	_, err := processor.Process(context.Background(), encodePNG(t, 2, 2))
	require.ErrorIs(t, err, ErrInvalidImage)
}
