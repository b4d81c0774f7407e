package ltr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// Ranker trains a model from a feature file and scores another feature
// file with it.
type Ranker interface {
	Train(ctx context.Context, featureFile, modelFile string) error
	Classify(ctx context.Context, featureFile, modelFile, scoreFile string) error
}

// SVMRank runs the svm_rank_learn and svm_rank_classify executables.
type SVMRank struct {
	LearnPath    string
	ClassifyPath string
	C            float64
	logger       *slog.Logger
}

func NewSVMRank(learnPath, classifyPath string, c float64) *SVMRank {
	return &SVMRank{
		LearnPath:    learnPath,
		ClassifyPath: classifyPath,
		C:            c,
		logger:       slog.Default().With("component", "svm-rank"),
	}
}

func (s *SVMRank) Train(ctx context.Context, featureFile, modelFile string) error {
	return s.run(ctx, s.LearnPath, "-c", strconv.FormatFloat(s.C, 'g', -1, 64), featureFile, modelFile)
}

func (s *SVMRank) Classify(ctx context.Context, featureFile, modelFile, scoreFile string) error {
	return s.run(ctx, s.ClassifyPath, featureFile, modelFile, scoreFile)
}

// run waits for the tool while capturing its output so a full pipe cannot
// stall it.
func (s *SVMRank) run(ctx context.Context, path string, args ...string) error {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		s.logger.Error("ranker tool failed", "path", path, "output", out.String(), "error", err)
		return fmt.Errorf("running %s: %w", path, err)
	}
	s.logger.Debug("ranker tool finished", "path", path, "output_bytes", out.Len())
	return nil
}

var _ Ranker = (*SVMRank)(nil)
