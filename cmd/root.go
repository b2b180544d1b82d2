package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spigell/job-curator/internal/scraper"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "job-curator"
)

type Config struct {
	Search       scraper.SearchParams `mapstructure:"search"`
	MinJobScore  int                  `mapstructure:"min-job-score"`
	RankedLimit  int                  `mapstructure:"ranked-limit"`
	Scraper      *ScraperConfig       `mapstructure:"scraper"`
	AI           *AIConfig            `mapstructure:"ai"`
	Scoring      *ScoringConfig       `mapstructure:"scoring"`
	Orchestrator *struct {
		MaxToolAttempts int `mapstructure:"max-tool-attempts"`
	} `mapstructure:"orchestrator"`
	Database *struct {
		URLFile string `mapstructure:"url-file"`
	} `mapstructure:"database"`
	Resume  *ResumeConfig `mapstructure:"resume"`
	Exclude *struct {
		Companies []string
	}
	Server *struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"server"`
}

type ScraperConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AIConfig struct {
	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string        `mapstructure:"api-key-file"`
	Model        string        `mapstructure:"model"`
	MaxRetries   int           `mapstructure:"max-retries"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ScoringConfig struct {
	MaxAttempts int    `mapstructure:"max-attempts"`
	OnExhausted string `mapstructure:"on-exhausted"`
	Rescore     bool   `mapstructure:"rescore"`
}

type ResumeConfig struct {
	File       string `mapstructure:"file"`
	Collection string `mapstructure:"collection"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-curator scrapes job postings, scores a resume against them and curates a tailored resume per job",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"database.url-file":      "JOB_CURATOR_DATABASE_URL_FILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-curator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	search := scraper.DefaultSearchParams()
	viper.SetDefault("search.search-term", search.SearchTerm)
	viper.SetDefault("search.location", search.Location)
	viper.SetDefault("search.results-wanted", search.ResultsWanted)
	viper.SetDefault("search.hours-old", search.HoursOld)
	viper.SetDefault("search.country-indeed", search.CountryIndeed)

	viper.SetDefault("min-job-score", 60)
	viper.SetDefault("ranked-limit", 10)
	viper.SetDefault("scraper.url", "http://localhost:8000")
	viper.SetDefault("scraper.timeout", "2m")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)
	viper.SetDefault("ai.gemini.timeout", "2m")
	viper.SetDefault("scoring.max-attempts", 5)
	viper.SetDefault("scoring.on-exhausted", "drop")
	viper.SetDefault("orchestrator.max-tool-attempts", 3)
	viper.SetDefault("resume.collection", "resume")
	viper.SetDefault("server.listen", ":8080")
}

func initConfig() {
	// Version does not need a config.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default file is fine: defaults and env cover a local run.
	// An explicit or broken file is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
