//go:build !gocv
// +build !gocv

package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"celebrity-detector-go/src/configs"
	"celebrity-detector-go/src/core/utils"
)

// FrameDetector 没有可用的级联文件时使用：整张图片视为人脸区域
type FrameDetector struct{}

// NewFaceDetector 不依赖OpenCV的检测器：优先使用pigo，缺少级联文件时退化为整图区域
func NewFaceDetector(config configs.FaceConfig, logger *utils.Logger) (FaceDetector, error) {
	cascade, err := os.ReadFile(config.PigoCascadePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn(fmt.Sprintf("未找到pigo级联文件 %s，人脸检测退化为整图区域", config.PigoCascadePath))
		return &FrameDetector{}, nil
	case err != nil:
		return nil, fmt.Errorf("read pigo cascade %s: %w", config.PigoCascadePath, err)
	}

	detector, err := NewPigoDetector(cascade, config)
	if err != nil {
		return nil, fmt.Errorf("load pigo cascade %s: %w", config.PigoCascadePath, err)
	}
	logger.Info(fmt.Sprintf("人脸检测模型加载成功: %s", config.PigoCascadePath))
	return detector, nil
}

// Detect 返回整张图片的区域，图片原样转发
func (d *FrameDetector) Detect(ctx context.Context, data []byte) (*FaceBox, []byte, error) {
	_ = ctx
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	if config.Width == 0 || config.Height == 0 {
		return nil, data, nil
	}
	return &FaceBox{Width: config.Width, Height: config.Height}, data, nil
}

// Close 无资源需要释放
func (d *FrameDetector) Close() error {
	return nil
}
