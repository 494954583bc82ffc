package image

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"celebrity-detector-go/src/configs"
	"celebrity-detector-go/src/core/utils"
)

// ErrInvalidImage 上传内容不是可接受的图片
var ErrInvalidImage = errors.New("invalid image")

// FaceDetector 人脸检测器
type FaceDetector interface {
	// Detect 返回最大人脸区域（没有时为nil）和要转发的图片字节
	Detect(ctx context.Context, data []byte) (*FaceBox, []byte, error)
	Close() error
}

// ImageProcessor 上传图片处理器：验证、检测人脸
type ImageProcessor struct {
	validator *ImageSecurityValidator
	detector  FaceDetector
	logger    *utils.TaggedLogger
	metrics   *ImageMetrics
}

// NewImageProcessor 创建新的图片处理器
func NewImageProcessor(config *configs.SecurityConfig, detector FaceDetector, logger *utils.Logger) *ImageProcessor {
	return &ImageProcessor{
		validator: NewImageSecurityValidator(config),
		detector:  detector,
		logger:    logger.WithTag("image"),
		metrics:   &ImageMetrics{},
	}
}

// Process 验证图片并检测人脸
func (p *ImageProcessor) Process(ctx context.Context, data []byte) (*IntakeResult, error) {
	atomic.AddInt64(&p.metrics.TotalProcessed, 1)

	validation := p.validator.ValidateImage(data)
	if !validation.IsValid {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		p.logger.Warn("图片验证失败", map[string]interface{}{
			"error": validation.Error.Error(),
			"size":  len(data),
		})
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, validation.Error)
	}

	face, processed, err := p.detector.Detect(ctx, data)
	if err != nil {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if face == nil {
		atomic.AddInt64(&p.metrics.NoFace, 1)
		p.logger.Info("未检测到人脸")
		return &IntakeResult{Bytes: data, Format: validation.Format}, nil
	}

	atomic.AddInt64(&p.metrics.FacesDetected, 1)
	p.logger.Debug("检测到人脸", map[string]interface{}{
		"format": validation.Format,
		"width":  validation.Width,
		"height": validation.Height,
		"face":   face,
	})

	return &IntakeResult{
		Bytes:  processed,
		Format: DetectFormat(processed),
		Face:   face,
	}, nil
}

// GetMetrics 获取处理统计信息
func (p *ImageProcessor) GetMetrics() ImageMetrics {
	return ImageMetrics{
		TotalProcessed:    atomic.LoadInt64(&p.metrics.TotalProcessed),
		FailedValidations: atomic.LoadInt64(&p.metrics.FailedValidations),
		FacesDetected:     atomic.LoadInt64(&p.metrics.FacesDetected),
		NoFace:            atomic.LoadInt64(&p.metrics.NoFace),
	}
}

// Cleanup 释放检测器
func (p *ImageProcessor) Cleanup() error {
	return p.detector.Close()
}
