package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/orchestrator"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the resume against a single job description",
	Run: func(cmd *cobra.Command, _ []string) {
		review(cmd, func(g *orchestrator.Graph) reviewFunc { return g.ScoreDescription })
	},
}

var reviseCmd = &cobra.Command{
	Use:   "revise",
	Short: "Rewrite the resume for a single job description",
	Run: func(cmd *cobra.Command, _ []string) {
		review(cmd, func(g *orchestrator.Graph) reviewFunc { return g.ReviseResume })
	},
}

type reviewFunc func(ctx context.Context, req orchestrator.ReviewRequest) (*orchestrator.Review, error)

func init() {
	rootCmd.AddCommand(scoreCmd, reviseCmd)

	for _, c := range []*cobra.Command{scoreCmd, reviseCmd} {
		c.Flags().StringP("file", "f", "-", "file with the job description, - for stdin")
		c.Flags().StringP("output", "o", "", "write the result to this file instead of stdout")
	}
	reviseCmd.Flags().String("recommendations", "", "recommendations from an earlier score. Scored first when unset.")
}

func review(cmd *cobra.Command, pick func(*orchestrator.Graph) reviewFunc) {
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

	file, _ := cmd.Flags().GetString("file")
	description, err := readDescription(file, cmd.InOrStdin())
	if err != nil {
		logger.Fatal("reading job description", zap.String("file", file), zap.Error(err))
	}

	c, err := build(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer c.Close()

	req := orchestrator.ReviewRequest{Description: description}
	if f := cmd.Flags().Lookup("recommendations"); f != nil {
		req.Recommendations = f.Value.String()
	}

	result, err := pick(c.graph)(ctx, req)
	if err != nil {
		logger.Fatal("reviewing job description", zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if err := writeReview(output, result, cmd.OutOrStdout()); err != nil {
		logger.Fatal("writing result", zap.String("file", output), zap.Error(err))
	}
}

func readDescription(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}

	description := strings.TrimSpace(string(data))
	if description == "" {
		return "", errors.New("job description is empty")
	}
	return description, nil
}

// writeReview prints the curated resume when there is one and the score
// otherwise.
func writeReview(path string, review *orchestrator.Review, stdout io.Writer) error {
	var text string
	switch {
	case review.CuratedResume != "":
		text = review.CuratedResume
	case review.Score != nil:
		text = fmt.Sprintf("score: %d\n\n%s\n", review.Score.Score, review.Score.Content)
	default:
		return errors.New("nothing to write")
	}

	if path == "" {
		_, err := io.WriteString(stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
