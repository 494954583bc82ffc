package image

import (
	"image"
	"image/color"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/require"

	"celebrity-detector-go/src/configs"
)

func TestLargestFace(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)
	tests := []struct {
		name       string
		detections []pigo.Detection
		expected   *FaceBox
	}{
		{"没有检测结果", nil, nil},
		{"质量不达标", []pigo.Detection{{Row: 50, Col: 50, Scale: 40, Q: 2}}, nil},
		{
			name:       "取面积最大",
			detections: []pigo.Detection{{Row: 50, Col: 50, Scale: 20, Q: 9}, {Row: 50, Col: 120, Scale: 40, Q: 6}},
			expected:   &FaceBox{X: 100, Y: 30, Width: 40, Height: 40},
		},
		{
			name:       "裁剪到图片范围",
			detections: []pigo.Detection{{Row: 10, Col: 10, Scale: 40, Q: 8}},
			expected:   &FaceBox{X: 0, Y: 0, Width: 30, Height: 30},
		},
		{"完全在图片外", []pigo.Detection{{Row: 500, Col: 500, Scale: 40, Q: 8}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, largestFace(tt.detections, 5, bounds))
		})
	}
}

func TestDrawFaceBox(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	drawFaceBox(img, FaceBox{X: 5, Y: 5, Width: 10, Height: 10}, faceBoxColor, 3)

	green := color.NRGBA{G: 255, A: 255}
	require.Equal(t, green, img.NRGBAAt(5, 5))
	require.Equal(t, green, img.NRGBAAt(14, 14))
	require.Equal(t, green, img.NRGBAAt(7, 10))
	require.Equal(t, color.NRGBA{}, img.NRGBAAt(10, 10))
	require.Equal(t, color.NRGBA{}, img.NRGBAAt(2, 2))
}

func TestNewPigoDetector_Truncated(t *testing.T) {
	_, err := NewPigoDetector([]byte("nope"), configs.DefaultConfig().Face)
	require.Error(t, err)
}
