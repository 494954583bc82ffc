package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"celebrity-detector-go/src/configs"
	"celebrity-detector-go/src/core/auth"
	"celebrity-detector-go/src/core/image"
	"celebrity-detector-go/src/core/providers"
	"celebrity-detector-go/src/core/providers/llm"
	"celebrity-detector-go/src/core/providers/vlllm"
	"celebrity-detector-go/src/core/utils"
	"celebrity-detector-go/src/web"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// App 进程内共享的组件
type App struct {
	Config     *configs.Config
	Logger     *utils.Logger
	Processor  *image.ImageProcessor
	Identifier *vlllm.Provider
	Asker      *llm.Provider
	Signer     *auth.StateSigner
}

func LoadConfigAndLogger(configPath string) (*configs.Config, *utils.Logger, error) {
	// .env 需要在读取API key之前加载
	envErr := godotenv.Load()

	// 加载配置,默认使用.config.yaml
	var (
		config *configs.Config
		path   string
		err    error
	)
	if configPath != "" {
		config, path, err = configs.LoadConfigFile(configPath)
	} else {
		config, path, err = configs.LoadConfig()
	}
	if err != nil {
		return nil, nil, err
	}
	config.LoadAPIKey()

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		logger.Info("未找到配置文件，使用默认配置")
	} else {
		logger.Info(fmt.Sprintf("日志系统初始化成功, 配置文件路径: %s", path))
	}
	if envErr != nil {
		logger.Warn("未找到 .env 文件，使用系统环境变量")
	}

	return config, logger, nil
}

// NewApp 按配置创建识别、问答和图片处理组件
func NewApp(config *configs.Config, logger *utils.Logger) (*App, error) {
	client := providers.ClientConfig{
		BaseURL:   config.Provider.BaseURL,
		APIKey:    config.Provider.APIKey,
		APIKeyEnv: config.Provider.APIKeyEnv,
		Timeout:   config.ProviderTimeout(),
	}

	identifier := vlllm.NewProvider(&vlllm.Config{
		Models:      config.Vision.Models,
		Temperature: config.Vision.Temperature,
		MaxTokens:   config.Vision.MaxTokens,
		Client:      client,
	}, logger)
	if err := identifier.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化识别模型失败: %w", err)
	}

	asker := llm.NewProvider(&llm.Config{
		ModelName:   config.QA.ModelName,
		Temperature: config.QA.Temperature,
		MaxTokens:   config.QA.MaxTokens,
		Client:      client,
	}, logger)
	if err := asker.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化问答模型失败: %w", err)
	}

	detector, err := image.NewFaceDetector(config.Face, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化人脸检测失败: %w", err)
	}

	signer := auth.NewStateSigner(config.State.Secret, config.StateTTL())
	if !signer.Enabled() {
		logger.Warn("state.secret 未设置，表单隐藏字段不签名")
	}

	return &App{
		Config:     config,
		Logger:     logger,
		Processor:  image.NewImageProcessor(&config.Image, detector, logger),
		Identifier: identifier,
		Asker:      asker,
		Signer:     signer,
	}, nil
}

// Cleanup 释放组件资源
func (a *App) Cleanup() {
	if err := a.Processor.Cleanup(); err != nil {
		a.Logger.Error(fmt.Sprintf("释放人脸检测器失败: %v", err))
	}
	for _, provider := range []providers.Provider{a.Identifier, a.Asker} {
		if err := provider.Cleanup(); err != nil {
			a.Logger.Error(fmt.Sprintf("释放模型客户端失败: %v", err))
		}
	}
	a.Logger.Close()
}

func StartHttpServer(app *App, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config, logger := app.Config, app.Logger

	// 初始化Gin引擎
	if strings.EqualFold(config.Log.LogLevel, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := web.NewRouter(logger)
	router.SetTrustedProxies(nil)

	service := web.NewService(app.Processor, app.Identifier, app.Asker, app.Signer, logger, config.Image.MaxFileSize)
	if err := service.Start(groupCtx, router); err != nil {
		logger.Error("页面服务启动失败", err.Error())
		return nil, err
	}

	// HTTP Server（支持优雅关机）
	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Gin 服务已启动，访问地址: http://%s", addr))

		// 在单独的 goroutine 中监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败", err.Error())
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务启动失败", err.Error())
			return err
		}
		return nil
	})

	return httpServer, nil
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group, groupCtx context.Context) error {
	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// 等待信号，或者服务自己退出（例如端口被占用）
	select {
	case sig := <-sigChan:
		logger.Info(fmt.Sprintf("接收到系统信号: %v，开始优雅关闭服务", sig))
	case <-groupCtx.Done():
		logger.Warn("服务提前退出，开始关闭")
	}

	// 取消上下文，通知所有服务开始关闭
	cancel()

	// 等待所有服务关闭，设置超时保护
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("服务关闭过程中出现错误", err.Error())
			return err
		}
		logger.Info("所有服务已优雅关闭")
		return nil
	case <-time.After(15 * time.Second):
		logger.Error("服务关闭超时，强制退出")
		return fmt.Errorf("shutdown timed out")
	}
}

// runServer 启动HTTP服务直到收到退出信号
func runServer(ctx context.Context, app *App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 用 errgroup 管理服务
	g, groupCtx := errgroup.WithContext(ctx)

	if _, err := StartHttpServer(app, g, groupCtx); err != nil {
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	if err := GracefulShutdown(cancel, app.Logger, g, groupCtx); err != nil {
		return err
	}
	app.Logger.Info("程序已成功退出")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
