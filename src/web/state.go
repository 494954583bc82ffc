package web

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"celebrity-detector-go/src/core/image"
	"celebrity-detector-go/src/core/types"
)

// HasValidCelebrity 描述是否包含一次成功的识别结果
func HasValidCelebrity(description string) bool {
	return description != "" &&
		!strings.HasPrefix(description, types.ErrorPrefix) &&
		!strings.HasPrefix(description, types.UnknownName) &&
		strings.Contains(description, types.FullNameMarker)
}

// CanAsk 名字可以用于追问
func CanAsk(name string) bool {
	return strings.TrimSpace(name) != "" && !strings.HasPrefix(name, types.ErrorPrefix)
}

// ImageMIME 根据base64前缀推断图片类型，无法识别时返回空字符串
func ImageMIME(b64 string) string {
	switch {
	case strings.HasPrefix(b64, "/9j/"):
		return "image/jpeg"
	case strings.HasPrefix(b64, "iVBOR"):
		return "image/png"
	case strings.HasPrefix(b64, "R0lG"):
		return "image/gif"
	case strings.HasPrefix(b64, "UklG"):
		return "image/webp"
	}
	return ""
}

// invalidImageDescription 图片验证失败时的描述
func invalidImageDescription(err error) string {
	detail := err.Error()
	if errors.Is(err, image.ErrInvalidImage) {
		detail = strings.TrimPrefix(detail, image.ErrInvalidImage.Error()+": ")
	}
	return fmt.Sprintf("%s Invalid image: %s", types.ErrorPrefix, detail)
}

// resolve 根据表单计算下一个页面状态
func (s *Service) resolve(ctx context.Context, req *FormRequest) PageData {
	var page PageData

	switch {
	case len(req.Image) > 0:
		page = s.identify(ctx, req)
	case req.HasQuestion:
		page = s.ask(ctx, req)
	}

	page.HasValidCelebrity = HasValidCelebrity(page.PlayerInfo)
	page.ImageMIME = ImageMIME(page.ResultImgData)
	return page
}

// identify 图片上传：检测人脸，有人脸时才调用识别
func (s *Service) identify(ctx context.Context, req *FormRequest) PageData {
	var page PageData
	fields := map[string]interface{}{"request_id": req.RequestID, "size": len(req.Image)}

	result, err := s.intake.Process(ctx, req.Image)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("图片处理失败: %v", err), fields)
		page.PlayerInfo = invalidImageDescription(err)
		return page
	}

	if result.Face == nil {
		s.logger.Info("未检测到人脸，跳过识别", fields)
		page.PlayerInfo = NoFaceMessage
		return page
	}

	identification := s.identifier.Identify(ctx, result.Bytes, result.Format)
	page.PlayerInfo = identification.Description()
	page.PlayerName = identification.Name
	page.ResultImgData = base64.StdEncoding.EncodeToString(result.Bytes)

	fields["kind"] = identification.Kind.String()
	fields["model"] = identification.Model
	fields["name"] = identification.Name
	s.logger.Info("识别完成", fields)

	token, err := s.signer.Sign(page.PlayerName, page.PlayerInfo, page.ResultImgData)
	if err != nil {
		s.logger.Error(fmt.Sprintf("状态签名失败: %v", err), fields)
	}
	page.StateToken = token
	return page
}

// ask 追问：隐藏字段原样回传，名字有效时才调用问答
func (s *Service) ask(ctx context.Context, req *FormRequest) PageData {
	page := PageData{
		PlayerName:    req.PlayerName,
		PlayerInfo:    req.PlayerInfo,
		ResultImgData: req.ResultImgData,
		UserQuestion:  req.Question,
		StateToken:    req.StateToken,
	}
	fields := map[string]interface{}{"request_id": req.RequestID, "name": req.PlayerName}

	if err := s.signer.Verify(req.StateToken, req.PlayerName, req.PlayerInfo, req.ResultImgData); err != nil {
		s.logger.Warn(fmt.Sprintf("状态校验失败: %v", err), fields)
		page.Answer = RefusalMessage
		return page
	}

	if !CanAsk(req.PlayerName) {
		s.logger.Info("没有有效名人，拒绝追问", fields)
		page.Answer = RefusalMessage
		return page
	}

	answer := s.asker.Ask(ctx, req.PlayerName, req.Question)
	page.Answer = answer.Text()

	fields["kind"] = answer.Kind.String()
	s.logger.Info("追问完成", fields)
	return page
}
