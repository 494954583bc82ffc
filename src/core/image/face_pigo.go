package image

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	pigo "github.com/esimov/pigo/core"

	"celebrity-detector-go/src/configs"
)

const (
	pigoShiftFactor  = 0.1
	pigoIoUThreshold = 0.2
	// 级联文件头：8字节保留 + 树深度 + 树数量
	pigoHeaderSize = 16
)

// faceBoxColor 标注人脸的颜色和线宽
var faceBoxColor = color.RGBA{G: 255, A: 255}

const faceBoxThickness = 3

// PigoDetector 纯Go的人脸检测（pigo级联），不需要cgo
type PigoDetector struct {
	classifier *pigo.Pigo

	MinSize     int
	MaxSize     int
	ScaleFactor float64
	MinQuality  float32
}

// NewPigoDetector 从级联文件内容创建检测器
func NewPigoDetector(cascade []byte, config configs.FaceConfig) (*PigoDetector, error) {
	if len(cascade) < pigoHeaderSize {
		return nil, errors.New("pigo cascade file is truncated")
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, err
	}
	return &PigoDetector{
		classifier:  classifier,
		MinSize:     config.MinSize,
		MaxSize:     config.MaxSize,
		ScaleFactor: config.ScaleFactor,
		MinQuality:  float32(config.MinQuality),
	}, nil
}

// Detect 检测最大人脸，画框后重新编码为JPEG
func (d *PigoDetector) Detect(ctx context.Context, data []byte) (*FaceBox, []byte, error) {
	_ = ctx
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	src := pigo.ImgToNRGBA(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	params := pigo.CascadeParams{
		MinSize:     d.MinSize,
		MaxSize:     d.MaxSize,
		ShiftFactor: pigoShiftFactor,
		ScaleFactor: d.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	detections := d.classifier.RunCascade(params, 0.0)
	detections = d.classifier.ClusterDetections(detections, pigoIoUThreshold)

	face := largestFace(detections, d.MinQuality, src.Bounds())
	if face == nil {
		return nil, data, nil
	}

	drawFaceBox(src, *face, faceBoxColor, faceBoxThickness)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		return nil, nil, err
	}
	return face, buf.Bytes(), nil
}

// Close 无资源需要释放
func (d *PigoDetector) Close() error {
	return nil
}

// largestFace 质量达标的检测结果中面积最大的一个，裁剪到图片范围内
func largestFace(detections []pigo.Detection, minQuality float32, bounds image.Rectangle) *FaceBox {
	var best *FaceBox
	for _, det := range detections {
		if det.Q < minQuality || det.Scale <= 0 {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale).Intersect(bounds)
		if r.Empty() {
			continue
		}
		box := &FaceBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
		if best == nil || box.Area() > best.Area() {
			best = box
		}
	}
	return best
}

// drawFaceBox 在图片上画出人脸矩形框
func drawFaceBox(dst draw.Image, box FaceBox, c color.Color, thickness int) {
	fill := image.NewUniform(c)
	outer := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
	edges := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+thickness),
		image.Rect(outer.Min.X, outer.Max.Y-thickness, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+thickness, outer.Max.Y),
		image.Rect(outer.Max.X-thickness, outer.Min.Y, outer.Max.X, outer.Max.Y),
	}
	for _, edge := range edges {
		draw.Draw(dst, edge.Intersect(dst.Bounds()), fill, image.Point{}, draw.Src)
	}
}
