package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName используется для XDG путей
const AppName = "gemini-analyzer"

// Значения по умолчанию совпадают с оригинальным плагином
const (
	DefaultProvider      = "gemini"
	DefaultModel         = "gemini-1.5-flash"
	DefaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTimeout       = 60 * time.Second
	DefaultProxyAddr     = "127.0.0.1:8080"
	DefaultWebAddr       = "127.0.0.1:8081"
	DefaultHistoryLimit  = 5000
	defaultConfigFile    = "config.yaml"
	defaultCAFile        = "ca.pem"
	defaultResultsDBFile = "results.db"
)

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Web     WebConfig     `yaml:"web"`
	Cert    CertConfig    `yaml:"cert"`
	Burp    BurpConfig    `yaml:"burp"`
	Storage StorageConfig `yaml:"storage"`
}

type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"url"`
	ApiKey       string        `yaml:"apiKey"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	MaxBodyBytes int           `yaml:"max_body_bytes"`
}

type ProxyConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	SkipStatic   bool   `yaml:"skip_static"`
	HistoryLimit int    `yaml:"history_limit"`
}

type WebConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type CertConfig struct {
	CertFile string `yaml:"cert_file"`
}

// BurpConfig - upstream Burp Suite, пустой host выключает интеграцию
type BurpConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type StorageConfig struct {
	// ResultsDB - путь к sqlite базе результатов, пустой - хранение в памяти
	ResultsDB string `yaml:"results_db"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: DefaultProvider,
			Model:    DefaultModel,
			BaseURL:  DefaultBaseURL,
			Timeout:  DefaultTimeout,
		},
		Proxy: ProxyConfig{
			ListenAddr:   DefaultProxyAddr,
			HistoryLimit: DefaultHistoryLimit,
		},
		Web: WebConfig{
			ListenAddr: DefaultWebAddr,
		},
		Cert: CertConfig{
			CertFile: filepath.Join(XDGDataDir(), defaultCAFile),
		},
	}
}

// XDGConfigDir возвращает каталог конфигурации (~/.config/gemini-analyzer на Linux)
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGDataDir возвращает каталог данных (~/.local/share/gemini-analyzer на Linux)
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultResultsDB - путь к базе результатов, если включено сохранение без явного пути
func DefaultResultsDB() string {
	return filepath.Join(XDGDataDir(), defaultResultsDBFile)
}

// Load собирает конфигурацию: defaults → YAML → .env → переменные окружения.
// Пустой path означает XDG файл, если он существует.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(XDGConfigDir(), defaultConfigFile)
	}

	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// .env не обязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.BaseURL, "LLM_URL")
	setString(&c.LLM.ApiKey, "API_KEY")
	setString(&c.LLM.ApiKey, "GEMINI_API_KEY")
	setString(&c.Proxy.ListenAddr, "PROXY_LISTEN_ADDR")
	setString(&c.Web.ListenAddr, "WEB_LISTEN_ADDR")
	setString(&c.Cert.CertFile, "PROXY_CERT_FILE")
	setString(&c.Burp.Host, "BURP_HOST")
	setString(&c.Burp.Port, "BURP_PORT")
	setString(&c.Storage.ResultsDB, "RESULTS_DB")

	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LLM_TIMEOUT: %w", err)
		}
		c.LLM.Timeout = d
	}
	if err := setInt(&c.LLM.MaxRetries, "LLM_MAX_RETRIES"); err != nil {
		return err
	}
	if err := setInt(&c.LLM.MaxBodyBytes, "LLM_MAX_BODY_BYTES"); err != nil {
		return err
	}
	if v := os.Getenv("PROXY_SKIP_STATIC"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PROXY_SKIP_STATIC: %w", err)
		}
		c.Proxy.SkipStatic = b
	}
	return nil
}

// Validate проверяет конфигурацию до начала работы
func (c *Config) Validate() error {
	provider := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if !IsKnownProvider(provider) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.LLM.Provider)
	}
	c.LLM.Provider = provider

	if c.LLM.ApiKey == "" && RequiresAPIKey(provider) {
		return ErrMissingAPIKey
	}
	if c.LLM.Model == "" {
		return ErrMissingModel
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, c.LLM.Timeout)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, c.LLM.MaxRetries)
	}
	if c.LLM.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBodyLimit, c.LLM.MaxBodyBytes)
	}
	if (c.Burp.Host == "") != (c.Burp.Port == "") {
		return ErrIncompleteBurp
	}
	return nil
}

// IsKnownProvider проверяет имя провайдера
func IsKnownProvider(name string) bool {
	switch name {
	case "gemini", "googleai", "openai", "ollama", "localai", "lm-studio":
		return true
	}
	return false
}

// RequiresAPIKey - локальные OpenAI-совместимые сервера работают без ключа
func RequiresAPIKey(provider string) bool {
	switch provider {
	case "ollama", "localai", "lm-studio":
		return false
	}
	return true
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
