package web

import (
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"celebrity-detector-go/src/core/auth"
	"celebrity-detector-go/src/core/image"
	"celebrity-detector-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// formOverhead 图片之外留给其它表单字段（描述、问题、令牌）的空间
const formOverhead = 1 << 20

// Service 名人识别页面服务
type Service struct {
	intake     Intake
	identifier Identifier
	asker      Asker
	signer     *auth.StateSigner
	logger     *utils.TaggedLogger

	maxUploadSize int64
}

// NewService 构造函数
func NewService(intake Intake, identifier Identifier, asker Asker, signer *auth.StateSigner,
	logger *utils.Logger, maxUploadSize int64) *Service {
	return &Service{
		intake:        intake,
		identifier:    identifier,
		asker:         asker,
		signer:        signer,
		logger:        logger.WithTag("web"),
		maxUploadSize: maxUploadSize,
	}
}

// maxBodySize 请求体上限。追问时图片以base64放在隐藏字段里回传，
// 按编码后的长度计算，保证能上传的图片也能被追问
func (s *Service) maxBodySize() int64 {
	return int64(base64.StdEncoding.EncodedLen(int(s.maxUploadSize))) + formOverhead
}

// LoadTemplates 解析内嵌的页面模板
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"dataURL": func(mime, b64 string) template.URL {
			return template.URL("data:" + mime + ";base64," + b64)
		},
	}).ParseFS(templateFS, "templates/*.html")
}

// Start 注册页面路由
func (s *Service) Start(ctx context.Context, engine *gin.Engine) error {
	tmpl, err := LoadTemplates()
	if err != nil {
		return fmt.Errorf("加载页面模板失败: %w", err)
	}
	engine.SetHTMLTemplate(tmpl)
	engine.MaxMultipartMemory = s.maxBodySize()

	engine.GET("/", s.handleGet)
	engine.POST("/", s.handlePost)
	engine.GET("/healthz", s.handleHealth)

	s.logger.Info("页面路由注册完成")
	return nil
}

// handleGet 空白页面
func (s *Service) handleGet(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", PageData{})
}

// handlePost 上传图片或追问
func (s *Service) handlePost(c *gin.Context) {
	req, err := s.parseForm(c)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
			err = fmt.Errorf("upload exceeds the %d byte limit", maxErr.Limit)
		}
		s.logger.Warn(fmt.Sprintf("表单解析失败: %v", err), map[string]interface{}{
			"request_id": RequestID(c),
		})
		page := PageData{PlayerInfo: invalidImageDescription(err)}
		c.HTML(status, "index.html", page)
		return
	}

	page := s.resolve(c.Request.Context(), req)
	c.HTML(http.StatusOK, "index.html", page)
}

// parseForm 解析multipart或urlencoded表单
func (s *Service) parseForm(c *gin.Context) (*FormRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodySize())

	req := &FormRequest{RequestID: RequestID(c)}

	header, err := c.FormFile(FieldImage)
	switch {
	case err == nil:
		if header.Size > s.maxUploadSize {
			return nil, &http.MaxBytesError{Limit: s.maxUploadSize}
		}
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		req.Image = data
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return nil, err
	}

	req.Question, req.HasQuestion = c.GetPostForm(FieldQuestion)
	req.PlayerName = c.PostForm(FieldPlayerName)
	req.PlayerInfo = c.PostForm(FieldPlayerInfo)
	req.ResultImgData = c.PostForm(FieldResultImgData)
	req.StateToken = c.PostForm(FieldStateToken)
	return req, nil
}

// handleHealth 服务状态
func (s *Service) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}

	if m, ok := s.identifier.(interface{ Candidates() []string }); ok {
		status["models"] = m.Candidates()
	}
	if m, ok := s.identifier.(interface{ PreferredModel() string }); ok {
		status["preferred_model"] = m.PreferredModel()
	}
	if m, ok := s.intake.(interface{ GetMetrics() image.ImageMetrics }); ok {
		status["image"] = m.GetMetrics()
	}
	status["state_signing"] = s.signer.Enabled()

	c.JSON(http.StatusOK, status)
}
