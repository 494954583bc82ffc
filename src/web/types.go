package web

import (
	"context"

	"celebrity-detector-go/src/core/image"
	"celebrity-detector-go/src/core/types"
)

// 表单字段名
const (
	FieldImage         = "image"
	FieldQuestion      = "question"
	FieldPlayerName    = "player_name"
	FieldPlayerInfo    = "player_info"
	FieldResultImgData = "result_img_data"
	FieldStateToken    = "state_token"
)

const (
	// NoFaceMessage 上传图片中没有人脸
	NoFaceMessage = "No face detected Please try another image"
	// RefusalMessage 没有有效名人时拒绝追问
	RefusalMessage = "Error: Cannot answer questions. No valid celebrity was detected. Please upload an image first."
)

// Intake 图片验证与人脸检测
type Intake interface {
	Process(ctx context.Context, data []byte) (*image.IntakeResult, error)
}

// Identifier 名人识别
type Identifier interface {
	Identify(ctx context.Context, imageData []byte, format string) types.Identification
}

// Asker 追问问答
type Asker interface {
	Ask(ctx context.Context, name, question string) types.Answer
}

// FormRequest 从表单解析出的请求
type FormRequest struct {
	Image       []byte // 非空表示上传了图片
	Question    string
	HasQuestion bool // 表单中存在question字段（可以为空字符串）

	PlayerName    string
	PlayerInfo    string
	ResultImgData string
	StateToken    string

	RequestID string
}

// PageData 页面渲染数据，也是来回传递的会话状态
type PageData struct {
	PlayerName        string
	PlayerInfo        string
	ResultImgData     string
	UserQuestion      string
	Answer            string
	HasValidCelebrity bool

	StateToken string
	ImageMIME  string // 为空时不显示图片
}
