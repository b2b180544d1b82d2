package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/scoring"
)

// ReviewRequest carries a pasted job description that is not in the store.
type ReviewRequest struct {
	Description string `json:"description" validate:"required"`
	// Recommendations from an earlier score. When empty, ReviseResume scores first.
	Recommendations string `json:"recommendations,omitempty"`
}

// Review is the answer to a ReviewRequest. Nothing in it is persisted.
type Review struct {
	Score         *scoring.RankedScore `json:"score,omitempty"`
	CuratedResume string               `json:"curated_resume,omitempty"`
}

func (r ReviewRequest) normalize() (ReviewRequest, error) {
	r.Description = strings.TrimSpace(r.Description)
	r.Recommendations = strings.TrimSpace(r.Recommendations)
	if err := validate.Struct(r); err != nil {
		return r, fmt.Errorf("invalid review request: %w", err)
	}
	return r, nil
}

// ScoreDescription rates the stored resume against one pasted job description.
func (g *Graph) ScoreDescription(ctx context.Context, req ReviewRequest) (*Review, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	text, err := g.resumeText(ctx, &PipelineState{})
	if err != nil {
		return nil, err
	}

	score, err := g.scorer.Score(ctx, req.Description, text)
	if err != nil {
		return nil, err
	}

	g.logger.Info("description scored", zap.Int("score", score.Score))
	return &Review{Score: score}, nil
}

// ReviseResume runs the curation stages for one pasted job description. The
// scoring rationale feeds the first stage; it is produced on the fly when the
// request does not carry one.
func (g *Graph) ReviseResume(ctx context.Context, req ReviewRequest) (*Review, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	text, err := g.resumeText(ctx, &PipelineState{})
	if err != nil {
		return nil, err
	}

	review := &Review{}
	recommendations := req.Recommendations
	if recommendations == "" {
		score, err := g.scorer.Score(ctx, req.Description, text)
		if err != nil {
			return nil, err
		}
		review.Score = score
		recommendations = score.Content
	}

	curated, err := g.curator.Curate(ctx, text, req.Description, recommendations)
	if err != nil {
		return review, fmt.Errorf("revise resume: %w", err)
	}
	review.CuratedResume = curated

	g.logger.Info("resume revised", zap.Int("length", len(curated)))
	return review, nil
}
