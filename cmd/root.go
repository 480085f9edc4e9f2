package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/config"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/logging"
)

// NewRootCmd создает корневую команду
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gemini-analyzer",
		Short: "Send captured HTTP responses to Gemini for vulnerability commentary",
		Long: `gemini-analyzer takes HTTP responses you selected (from a Burp export, a crawl log,
a raw response file or its own intercepting proxy), sends each body to Gemini
with a fixed OWASP prompt and prints the model's commentary.

The API key is read from GEMINI_API_KEY (or API_KEY), a config file
(` + config.XDGConfigDir() + `/config.yaml) or a .env file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logging.Setup(verbose, cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: XDG config dir)")

	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configOverrides - флаги командной строки поверх конфигурации
type configOverrides struct {
	provider     string
	model        string
	timeout      time.Duration
	maxRetries   int
	maxBodyBytes int
	save         bool
}

func addConfigFlags(cmd *cobra.Command, o *configOverrides) {
	cmd.Flags().StringVar(&o.provider, "provider", "", "LLM provider: gemini, googleai, openai, ollama, localai, lm-studio")
	cmd.Flags().StringVarP(&o.model, "model", "m", "", "Model name (default "+config.DefaultModel+")")
	cmd.Flags().DurationVarP(&o.timeout, "timeout", "t", 0, "Timeout for one model call (default from config, 60s)")
	cmd.Flags().IntVar(&o.maxRetries, "retries", -1, "Retries on 429/5xx/network errors (default from config, 0)")
	cmd.Flags().IntVar(&o.maxBodyBytes, "max-body-bytes", -1, "Reduce bodies larger than this before sending (0 sends bodies unchanged)")
	cmd.Flags().BoolVar(&o.save, "save", false, "Persist results to sqlite (storage.results_db, default "+config.DefaultResultsDB()+")")
}

// loadConfig читает конфигурацию, применяет флаги и проверяет результат
func loadConfig(cmd *cobra.Command, o *configOverrides) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if o != nil {
		if o.provider != "" {
			cfg.LLM.Provider = o.provider
		}
		if o.model != "" {
			cfg.LLM.Model = o.model
		}
		if o.timeout > 0 {
			cfg.LLM.Timeout = o.timeout
		}
		if o.maxRetries >= 0 {
			cfg.LLM.MaxRetries = o.maxRetries
		}
		if o.maxBodyBytes >= 0 {
			cfg.LLM.MaxBodyBytes = o.maxBodyBytes
		}
		if o.save && cfg.Storage.ResultsDB == "" {
			cfg.Storage.ResultsDB = config.DefaultResultsDB()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
