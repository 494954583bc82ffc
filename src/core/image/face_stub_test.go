//go:build !gocv
// +build !gocv

package image

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"celebrity-detector-go/src/configs"
	"celebrity-detector-go/src/core/utils"
)

func TestFrameDetector_WholeImageIsFace(t *testing.T) {
	config := configs.DefaultConfig().Face
	config.PigoCascadePath = filepath.Join(t.TempDir(), "missing-facefinder")

	detector, err := NewFaceDetector(config, utils.NewConsoleLogger(io.Discard, "info"))
	require.NoError(t, err)
	require.IsType(t, &FrameDetector{}, detector)
	defer detector.Close()

	data := encodePNG(t, 6, 5)
	face, out, err := detector.Detect(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, &FaceBox{Width: 6, Height: 5}, face)
	require.Equal(t, data, out)
}

func TestFrameDetector_BadData(t *testing.T) {
	detector := &FrameDetector{}
	_, _, err := detector.Detect(context.Background(), []byte("nope"))
	require.Error(t, err)
}

func TestNewFaceDetector_BadCascade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facefinder")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))

	config := configs.DefaultConfig().Face
	config.PigoCascadePath = path
	_, err := NewFaceDetector(config, utils.NewConsoleLogger(io.Discard, "info"))
	require.Error(t, err)
}
