package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"celebrity-detector-go/src/core/utils"
)

func newTestRouter(t *testing.T, service *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := NewRouter(utils.NewConsoleLogger(io.Discard, "debug"))
	require.NoError(t, service.Start(context.Background(), router))
	return router
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(FieldImage, "face.jpg")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestHTTP_GetIndex(t *testing.T) {
	router := newTestRouter(t, newTestService(&fakeIntake{}, successIdentifier(), &fakeAsker{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Celebrity Detector")
	require.Contains(t, w.Body.String(), `name="image"`)
	require.NotContains(t, w.Body.String(), `name="question"`)
	require.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestHTTP_UploadAndAsk(t *testing.T) {
	identifier := successIdentifier()
	asker := &fakeAsker{}
	router := newTestRouter(t, newTestService(&fakeIntake{}, identifier, asker, nil))

	body, contentType := multipartImage(t, jpegBytes)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, identifier.calls)
	html := w.Body.String()
	require.Contains(t, html, "Ask about Tom Hanks")
	require.Contains(t, html, `name="player_name" value="Tom Hanks"`)
	require.Contains(t, html, "data:image/jpeg;base64,")

	form := url.Values{}
	form.Set(FieldQuestion, "Is he married?")
	form.Set(FieldPlayerName, "Tom Hanks")
	form.Set(FieldPlayerInfo, tomHanksInfo)
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(requestIDHeader, "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-123", w.Header().Get(requestIDHeader))
	require.Equal(t, 1, asker.calls)
	require.Equal(t, "Is he married?", asker.question)
	require.Contains(t, w.Body.String(), "Tom Hanks is an actor.")
}

func TestHTTP_QuestionWithoutCelebrity(t *testing.T) {
	asker := &fakeAsker{}
	router := newTestRouter(t, newTestService(&fakeIntake{}, successIdentifier(), asker, nil))

	form := url.Values{}
	form.Set(FieldQuestion, "Who is this?")
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, asker.calls)
	require.Contains(t, w.Body.String(), "Cannot answer questions. No valid celebrity was detected.")
}

func TestHTTP_UploadTooLarge(t *testing.T) {
	identifier := successIdentifier()
	service := newTestService(&fakeIntake{}, identifier, &fakeAsker{}, nil)
	service.maxUploadSize = 4
	router := newTestRouter(t, service)

	body, contentType := multipartImage(t, jpegBytes)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Zero(t, identifier.calls)
	require.Contains(t, w.Body.String(), "Invalid image: upload exceeds the 4 byte limit")
}

func TestHTTP_Health(t *testing.T) {
	router := newTestRouter(t, newTestService(&fakeIntake{}, successIdentifier(), &fakeAsker{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.Equal(t, "ok", status["status"])
	require.Equal(t, false, status["state_signing"])
}

func multipartFields(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

// largeJPEG 以JPEG文件头开头、指定大小的字节
func largeJPEG(size int) []byte {
	data := bytes.Repeat([]byte{0x42}, size)
	copy(data, jpegBytes)
	return data
}

func TestHTTP_LargeImageCanBeAskedAbout(t *testing.T) {
	const maxUpload = 10 << 20
	identifier := successIdentifier()
	asker := &fakeAsker{}
	service := NewService(&fakeIntake{}, identifier, asker, nil, utils.NewConsoleLogger(io.Discard, "info"), maxUpload)
	router := newTestRouter(t, service)

	data := largeJPEG(9 << 20)
	body, contentType := multipartImage(t, data)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, identifier.calls)

	imgData := base64.StdEncoding.EncodeToString(data)
	require.Contains(t, w.Body.String(), imgData[:64])

	body, contentType = multipartFields(t, map[string]string{
		FieldQuestion:      "How tall is he?",
		FieldPlayerName:    "Tom Hanks",
		FieldPlayerInfo:    tomHanksInfo,
		FieldResultImgData: imgData,
	})
	req = httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, asker.calls)
	html := w.Body.String()
	require.NotContains(t, html, "Invalid image")
	require.Contains(t, html, "Tom Hanks is an actor.")
	require.Contains(t, html, `name="player_name" value="Tom Hanks"`)
	require.Contains(t, html, "data:image/jpeg;base64,"+imgData[:64])
}

func TestHTTP_OversizedBodyRejected(t *testing.T) {
	identifier := successIdentifier()
	service := newTestService(&fakeIntake{}, identifier, &fakeAsker{}, nil)
	service.maxUploadSize = 4
	router := newTestRouter(t, service)

	// 请求体超过上限，在解析multipart时就被截断
	body, contentType := multipartImage(t, largeJPEG(2<<20))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Zero(t, identifier.calls)
	require.Contains(t, w.Body.String(), "Invalid image: upload exceeds the")
}

func TestHTTP_OversizedQuestionRejected(t *testing.T) {
	asker := &fakeAsker{}
	service := newTestService(&fakeIntake{}, successIdentifier(), asker, nil)
	service.maxUploadSize = 4
	router := newTestRouter(t, service)

	body, contentType := multipartFields(t, map[string]string{
		FieldQuestion:      "Who?",
		FieldPlayerName:    "Tom Hanks",
		FieldResultImgData: strings.Repeat("A", 2<<20),
	})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Zero(t, asker.calls)
}
