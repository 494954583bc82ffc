package image

// FaceBox 检测到的人脸区域
type FaceBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Area 人脸面积
func (f FaceBox) Area() int {
	return f.Width * f.Height
}

// IntakeResult 上传图片的处理结果
type IntakeResult struct {
	Bytes  []byte   // 转发给识别模型的图片（可能已标注人脸）
	Format string   // jpeg, png, gif, webp
	Face   *FaceBox // nil 表示没有检测到人脸
}

// ValidationResult 图片验证结果
type ValidationResult struct {
	IsValid  bool   // 是否有效
	Format   string // 实际格式
	Width    int    // 图片宽度
	Height   int    // 图片高度
	FileSize int64  // 文件大小
	Error    error  // 错误信息
}

// ImageMetrics 图片处理统计信息
type ImageMetrics struct {
	TotalProcessed    int64 `json:"total_processed"`    // 总处理数量
	FailedValidations int64 `json:"failed_validations"` // 验证失败次数
	FacesDetected     int64 `json:"faces_detected"`     // 检测到人脸的次数
	NoFace            int64 `json:"no_face"`            // 未检测到人脸的次数
}
