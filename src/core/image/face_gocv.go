//go:build gocv
// +build gocv

package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"gocv.io/x/gocv"

	"celebrity-detector-go/src/configs"
	"celebrity-detector-go/src/core/utils"
)

// CascadeDetector 基于OpenCV Haar级联的人脸检测
type CascadeDetector struct {
	ScaleFactor  float64
	MinNeighbors int

	// CascadeClassifier 不能并发使用
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// NewFaceDetector 加载级联模型文件
func NewFaceDetector(config configs.FaceConfig, logger *utils.Logger) (FaceDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(config.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade file %s failed", config.CascadePath)
	}
	logger.Info(fmt.Sprintf("人脸检测模型加载成功: %s", config.CascadePath))

	return &CascadeDetector{
		ScaleFactor:  config.ScaleFactor,
		MinNeighbors: config.MinNeighbors,
		classifier:   classifier,
	}, nil
}

// Detect 检测最大人脸，画框后重新编码为JPEG
func (d *CascadeDetector) Detect(ctx context.Context, data []byte) (*FaceBox, []byte, error) {
	_ = ctx
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, nil, err
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, nil, errors.New("failed to decode image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(gray, d.ScaleFactor, d.MinNeighbors, 0, image.Point{}, image.Point{})
	d.mu.Unlock()

	if len(rects) == 0 {
		return nil, data, nil
	}

	largest := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > largest.Dx()*largest.Dy() {
			largest = r
		}
	}

	green := color.RGBA{G: 255, A: 255}
	gocv.Rectangle(&mat, largest, green, 3)

	img, err := mat.ToImage()
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, nil, err
	}

	return &FaceBox{
		X:      largest.Min.X,
		Y:      largest.Min.Y,
		Width:  largest.Dx(),
		Height: largest.Dy(),
	}, buf.Bytes(), nil
}

// Close 释放分类器
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}
