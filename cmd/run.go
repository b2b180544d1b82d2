package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/orchestrator"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once: scrape, score and curate",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("search-term", "s", "", "search term passed to the job scraper")
	runCmd.Flags().StringP("location", "l", "", "location of the jobs")
	runCmd.Flags().Int("results-wanted", 0, "number of jobs to scrape")
	runCmd.Flags().Int("hours-old", 0, "only scrape jobs posted within this many hours")
	runCmd.Flags().String("country-indeed", "", "country used for Indeed searches")
	runCmd.Flags().Int("min-job-score", 0, "curate only jobs scored above this value")
	runCmd.Flags().BoolP("rescore", "r", false, "score jobs again even if they already have a score")
	runCmd.Flags().StringP("output", "o", "", "dump the run result as JSON to this file")

	flags := map[string]string{
		"search.search-term":    "search-term",
		"search.location":       "location",
		"search.results-wanted": "results-wanted",
		"search.hours-old":      "hours-old",
		"search.country-indeed": "country-indeed",
		"min-job-score":         "min-job-score",
		"scoring.rescore":       "rescore",
	}
	for key, flag := range flags {
		viper.BindPFlag(key, runCmd.Flags().Lookup(flag))
	}
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-curator", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	c, err := build(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer c.Close()

	result, err := c.graph.Automate(ctx, config.request())
	if result != nil {
		report(logger, result)
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			if err := dumpResult(output, result); err != nil {
				logger.Error("dumping result", zap.String("file", output), zap.Error(err))
			}
		}
	}
	if err != nil {
		if errors.Is(err, orchestrator.ErrToolRetriesExhausted) {
			logger.Error("exiting", zap.String("reason", "the scraper returned no jobs"), zap.Error(err))
			os.Exit(2)
		}
		logger.Fatal("exiting", zap.Error(err))
	}
}

func report(logger *zap.Logger, result *orchestrator.Result) {
	logger.Info("run finished",
		zap.String("run_id", result.RunID),
		zap.String("state", result.State),
		zap.Int("tool_attempts", result.ToolAttempts),
		zap.Int("parse_errors", result.ParseErrors),
		zap.Int("scored", len(result.Scores)),
	)

	if result.Curation != nil {
		logger.Info("curation summary",
			zap.Int("curated", len(result.Curation.Curated)),
			zap.Int("skipped", len(result.Curation.Skipped)),
			zap.Int("failed", len(result.Curation.Failed)),
		)
	}

	for i, job := range result.Jobs {
		fields := []zap.Field{
			zap.Int("rank", i+1),
			zap.String("title", job.Title),
			zap.String("company", job.Company),
			zap.String("job_url", job.JobURL),
			zap.Bool("curated", job.Curated),
		}
		if job.Score != nil {
			fields = append(fields, zap.Int("score", *job.Score))
		}
		logger.Info("ranked job", fields...)
	}
}

func dumpResult(path string, result *orchestrator.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
