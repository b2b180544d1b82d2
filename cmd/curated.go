package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var curatedCmd = &cobra.Command{
	Use:   "curated",
	Short: "Print or save a curated resume",
	Run: func(cmd *cobra.Command, _ []string) {
		curated(cmd)
	},
}

func init() {
	rootCmd.AddCommand(curatedCmd)

	curatedCmd.Flags().StringP("job-url", "u", "", "job url of the curated resume. Asked interactively when unset.")
	curatedCmd.Flags().StringP("output", "o", "", "write the resume to this file instead of stdout")
}

func curated(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	store, pool, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening job store", zap.Error(err))
	}
	if pool == nil {
		logger.Fatal("a database is required to read curated resumes")
	}
	defer pool.Close()

	jobURL, _ := cmd.Flags().GetString("job-url")
	if jobURL == "" {
		jobURL, err = selectCurated(ctx, store)
		if err != nil {
			logger.Fatal("selecting a curated job", zap.Error(err))
		}
	}

	job, err := store.GetCuratedResume(ctx, jobURL)
	if errors.Is(err, jobs.ErrNotFound) {
		logger.Fatal("job not found", zap.String("job_url", jobURL))
	}
	if err != nil {
		logger.Fatal("getting curated resume", zap.Error(err))
	}
	if job.CuratedResume == nil {
		logger.Fatal("job has no curated resume yet", zap.String("job_url", jobURL))
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Println(*job.CuratedResume)
		return
	}

	if err := os.WriteFile(output, []byte(*job.CuratedResume), 0o644); err != nil {
		logger.Fatal("writing curated resume", zap.String("file", output), zap.Error(err))
	}
	logger.Info("curated resume saved", zap.String("file", output), zap.String("job_url", jobURL))
}

func selectCurated(ctx context.Context, store jobs.Store) (string, error) {
	list, err := store.FetchJobs(ctx, jobs.Filter{Curated: jobs.Bool(true)})
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", errors.New("there are no curated jobs")
	}

	items := make([]string, 0, len(list))
	for _, job := range list {
		score := "-"
		if job.Score != nil {
			score = fmt.Sprint(*job.Score)
		}
		items = append(items, fmt.Sprintf("[%s] %s @ %s", score, job.Title, job.Company))
	}

	prompt := promptui.Select{
		Label: "Select a job",
		Items: items,
		Size:  10,
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", err
	}

	return list[i].JobURL, nil
}
