package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"celebrity-detector-go/src/configs"

	_ "image/gif"  // 注册GIF解码器
	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器

	_ "golang.org/x/image/webp" // 注册WEBP解码器
)

// ImageSecurityValidator 图片安全验证器
type ImageSecurityValidator struct {
	config *configs.SecurityConfig
}

// NewImageSecurityValidator 创建新的图片安全验证器
func NewImageSecurityValidator(config *configs.SecurityConfig) *ImageSecurityValidator {
	return &ImageSecurityValidator{config: config}
}

// 图片格式魔数签名
var imageSignatures = []struct {
	format    string
	signature []byte
}{
	{"jpeg", []byte{0xFF, 0xD8}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
	{"webp", []byte{0x52, 0x49, 0x46, 0x46}}, // RIFF，需要进一步检查WEBP标识
}

// DetectFormat 根据文件头判断图片格式，无法识别时返回jpeg
func DetectFormat(data []byte) string {
	for _, s := range imageSignatures {
		if !bytes.HasPrefix(data, s.signature) {
			continue
		}
		if s.format == "webp" && (len(data) < 12 || !bytes.Equal(data[8:12], []byte("WEBP"))) {
			continue
		}
		return s.format
	}
	return "jpeg"
}

// ValidateImage 验证上传的图片字节
func (v *ImageSecurityValidator) ValidateImage(data []byte) ValidationResult {
	result := ValidationResult{}

	if len(data) == 0 {
		result.Error = fmt.Errorf("empty image")
		return result
	}

	if int64(len(data)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf("file too large: %d bytes, max %d bytes", len(data), v.config.MaxFileSize)
		return result
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("cannot decode image: %v", err)
		return result
	}
	result.Format = format

	if !v.isFormatAllowed(format) {
		result.Error = fmt.Errorf("unsupported format: %s", format)
		return result
	}

	if config.Width > v.config.MaxWidth || config.Height > v.config.MaxHeight {
		result.Error = fmt.Errorf("image too large: %dx%d, max %dx%d",
			config.Width, config.Height, v.config.MaxWidth, v.config.MaxHeight)
		return result
	}

	totalPixels := int64(config.Width) * int64(config.Height)
	if totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("too many pixels: %d, max %d", totalPixels, v.config.MaxPixels)
		return result
	}

	result.IsValid = true
	result.Width = config.Width
	result.Height = config.Height
	result.FileSize = int64(len(data))
	return result
}

// isFormatAllowed 检查格式是否被允许
func (v *ImageSecurityValidator) isFormatAllowed(format string) bool {
	for _, allowed := range v.config.AllowedFormats {
		if strings.EqualFold(allowed, format) {
			return true
		}
	}
	return false
}
