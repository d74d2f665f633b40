package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stageportal/internal/domain/application"
)

// Invoker runs the scoring routine for one CV.
type Invoker interface {
	Score(ctx context.Context, domaine, cvPath string) (application.ScoringResult, error)
}

// CommandInvoker executes an external scorer that takes a single JSON
// argument and prints a JSON report.
type CommandInvoker struct {
	command string
	args    []string
	env     []string
	timeout time.Duration
}

func NewCommandInvoker(commandLine string, timeout time.Duration) (*CommandInvoker, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("scorer command is empty")
	}
	return &CommandInvoker{command: fields[0], args: fields[1:], timeout: timeout}, nil
}

type scorerInput struct {
	Domaine string `json:"domaine"`
	CVPath  string `json:"cv_path"`
}

func (i *CommandInvoker) Score(ctx context.Context, domaine, cvPath string) (application.ScoringResult, error) {
	payload, err := json.Marshal(scorerInput{Domaine: domaine, CVPath: cvPath})
	if err != nil {
		return application.ScoringResult{}, err
	}
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	args := append(append([]string{}, i.args...), string(payload))
	cmd := exec.CommandContext(ctx, i.command, args...)
	if len(i.env) > 0 {
		cmd.Env = append(os.Environ(), i.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return application.ScoringResult{}, fmt.Errorf("scorer timed out after %s", i.timeout)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return application.ScoringResult{}, fmt.Errorf("scorer interrupted: %w", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return application.ScoringResult{}, fmt.Errorf("scorer failed: %w: %s", err, truncate(detail, 512))
	}
	return ParseOutput(stdout.Bytes())
}

// ParseOutput validates the scorer report shape.
func ParseOutput(out []byte) (application.ScoringResult, error) {
	out = bytes.TrimSpace(out)
	if !gjson.ValidBytes(out) {
		return application.ScoringResult{}, fmt.Errorf("scorer output is not JSON: %s", truncate(string(out), 128))
	}
	score := gjson.GetBytes(out, "score")
	if score.Type != gjson.Number {
		return application.ScoringResult{}, errors.New("scorer output has no numeric score")
	}
	experience := gjson.GetBytes(out, "experience")
	if experience.Type != gjson.Number || experience.Float() != float64(experience.Int()) {
		return application.ScoringResult{}, errors.New("scorer output has no integer experience")
	}
	skills := gjson.GetBytes(out, "skills")
	if !skills.IsArray() {
		return application.ScoringResult{}, errors.New("scorer output has no skills list")
	}
	result := application.ScoringResult{
		Score:      score.Float(),
		Experience: int(experience.Int()),
		Skills:     make([]string, 0, len(skills.Array())),
	}
	for _, skill := range skills.Array() {
		result.Skills = append(result.Skills, skill.String())
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
