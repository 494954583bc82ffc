package configs

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		LogLevel string `yaml:"log_level"`
		LogDir   string `yaml:"log_dir"`
		LogFile  string `yaml:"log_file"`
	} `yaml:"log"`

	Provider ProviderConfig `yaml:"provider"`
	Vision   VisionConfig   `yaml:"vision"`
	QA       QAConfig       `yaml:"qa"`
	Image    SecurityConfig `yaml:"image"`
	Face     FaceConfig     `yaml:"face"`
	State    StateConfig    `yaml:"state"`
}

// ProviderConfig OpenAI兼容接口配置（默认Groq）
type ProviderConfig struct {
	BaseURL   string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Timeout   string `yaml:"timeout"`

	// APIKey 不从配置文件读取，只来自环境变量
	APIKey string `yaml:"-"`
}

// VisionConfig 名人识别（视觉模型）配置
type VisionConfig struct {
	Models      []string `yaml:"models"` // 按顺序尝试的候选模型
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// QAConfig 追问问答配置
type QAConfig struct {
	ModelName   string  `yaml:"model_name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// SecurityConfig 图片安全配置结构
type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`   // 最大文件大小（字节）
	MaxPixels      int64    `yaml:"max_pixels"`      // 最大像素数量
	MaxWidth       int      `yaml:"max_width"`       // 最大宽度
	MaxHeight      int      `yaml:"max_height"`      // 最大高度
	AllowedFormats []string `yaml:"allowed_formats"` // 允许的图片格式
}

// FaceConfig 人脸检测配置。gocv构建使用Haar级联，默认构建使用pigo级联
type FaceConfig struct {
	CascadePath  string  `yaml:"cascade_path"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`

	PigoCascadePath string  `yaml:"pigo_cascade_path"`
	MinSize         int     `yaml:"min_size"`
	MaxSize         int     `yaml:"max_size"`
	MinQuality      float64 `yaml:"min_quality"` // pigo检测分数下限
}

// StateConfig 表单隐藏字段签名配置，secret为空时不签名
type StateConfig struct {
	Secret string `yaml:"secret"`
	TTL    string `yaml:"ttl"`
}

const (
	DefaultBaseURL   = "https://api.groq.com/openai/v1"
	DefaultAPIKeyEnv = "GROQ_API_KEY"
	DefaultTimeout   = 30 * time.Second
	DefaultStateTTL  = 24 * time.Hour
)

// DefaultVisionModels Groq当前可用的视觉模型，第一个为主模型
var DefaultVisionModels = []string{
	"meta-llama/llama-4-maverick-17b-128e-instruct",
	"meta-llama/llama-4-scout-17b-16e-instruct",
}

// LoadConfig 从文件加载配置，.config.yaml优先，其次config.yaml，都不存在时使用默认配置
func LoadConfig() (*Config, string, error) {
	for _, path := range []string{".config.yaml", "config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return LoadConfigFile(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, path, err
		}
	}
	return DefaultConfig(), "", nil
}

// LoadConfigFile 读取指定路径的配置，文件必须存在
func LoadConfigFile(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}

	// 先填默认值再覆盖，配置中显式写出的0（如temperature: 0）得以保留
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, path, err
	}

	config.Validate()
	return config, path, nil
}

// DefaultConfig 内置默认配置
func DefaultConfig() *Config {
	config := &Config{}
	config.Vision.Temperature = 0.3
	config.QA.Temperature = 0.5
	config.Validate()
	return config
}

// Validate 填充默认值
func (c *Config) Validate() {
	if c.Server.IP == "" {
		c.Server.IP = "0.0.0.0"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 5000
	}

	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "INFO"
	}
	if c.Log.LogDir == "" {
		c.Log.LogDir = "logs"
	}
	if c.Log.LogFile == "" {
		c.Log.LogFile = "server.log"
	}

	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultBaseURL
	}
	if c.Provider.APIKeyEnv == "" {
		c.Provider.APIKeyEnv = DefaultAPIKeyEnv
	}

	if len(c.Vision.Models) == 0 {
		c.Vision.Models = append([]string(nil), DefaultVisionModels...)
	}
	if c.Vision.MaxTokens <= 0 {
		c.Vision.MaxTokens = 1024
	}

	if c.QA.ModelName == "" {
		c.QA.ModelName = "llama-3.1-8b-instant"
	}
	if c.QA.MaxTokens <= 0 {
		c.QA.MaxTokens = 512
	}

	if c.Image.MaxFileSize <= 0 {
		c.Image.MaxFileSize = 10 * 1024 * 1024
	}
	if c.Image.MaxWidth <= 0 {
		c.Image.MaxWidth = 8192
	}
	if c.Image.MaxHeight <= 0 {
		c.Image.MaxHeight = 8192
	}
	if c.Image.MaxPixels <= 0 {
		c.Image.MaxPixels = 40 * 1000 * 1000
	}
	if len(c.Image.AllowedFormats) == 0 {
		c.Image.AllowedFormats = []string{"jpeg", "png", "gif", "webp"}
	}

	if c.Face.CascadePath == "" {
		c.Face.CascadePath = "haarcascade_frontalface_default.xml"
	}
	if c.Face.ScaleFactor <= 1 {
		c.Face.ScaleFactor = 1.1
	}
	if c.Face.MinNeighbors <= 0 {
		c.Face.MinNeighbors = 5
	}
	if c.Face.PigoCascadePath == "" {
		c.Face.PigoCascadePath = "facefinder"
	}
	if c.Face.MinSize <= 0 {
		c.Face.MinSize = 20
	}
	if c.Face.MaxSize <= 0 {
		c.Face.MaxSize = 1000
	}
	if c.Face.MinQuality <= 0 {
		c.Face.MinQuality = 5.0
	}
}

// LoadAPIKey 从环境变量读取API key，缺失时不报错（降级模式）
func (c *Config) LoadAPIKey() {
	c.Provider.APIKey = os.Getenv(c.Provider.APIKeyEnv)
}

// ProviderTimeout 单次请求超时，解析失败时使用默认值
func (c *Config) ProviderTimeout() time.Duration {
	return parseDuration(c.Provider.Timeout, DefaultTimeout)
}

// StateTTL 状态令牌有效期
func (c *Config) StateTTL() time.Duration {
	return parseDuration(c.State.TTL, DefaultStateTTL)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
