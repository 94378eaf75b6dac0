// Package judge is the HTTP client for the external code-execution service.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/scoring"
)

const defaultTimeout = 30 * time.Second

// Client implements scoring.Judge against a judge service exposing
// POST {base}/v1/submissions.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a judge client. timeout <= 0 uses the default.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "judge_client").Logger(),
	}
}

type submitRequest struct {
	Code      string     `json:"code"`
	Language  string     `json:"language"`
	TestCases []testCase `json:"test_cases"`
}

type testCase struct {
	Input       string `json:"input"`
	ExpectedOut string `json:"expected_out"`
}

type submitResponse struct {
	Verdict     model.Verdict `json:"verdict"`
	TestsPassed int           `json:"tests_passed"`
	TestsTotal  int           `json:"tests_total"`
	Score       *float64      `json:"score,omitempty"`
}

// Submit implements scoring.Judge. Transport failures and judge-side 5xx are
// reported as ErrJudgeUnavailable — a distinct condition from a failing
// verdict, which arrives as a normal response body. A 4xx is
// ErrJudgeRejected: the submission itself is unjudgeable and retries are
// pointless.
func (c *Client) Submit(ctx context.Context, code, language string, testCases []model.TestCase) (*scoring.Judgement, error) {
	reqBody := submitRequest{
		Code:      code,
		Language:  language,
		TestCases: make([]testCase, 0, len(testCases)),
	}
	for _, tc := range testCases {
		reqBody.TestCases = append(reqBody.TestCases, testCase{
			Input:       tc.Input,
			ExpectedOut: tc.ExpectedOut,
		})
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal judge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/submissions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scoring.ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: judge returned %d", scoring.ErrJudgeUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", scoring.ErrJudgeRejected, resp.StatusCode)
	}

	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode judge response: %w", err)
	}

	return &scoring.Judgement{
		Verdict:     body.Verdict,
		TestsPassed: body.TestsPassed,
		TestsTotal:  body.TestsTotal,
		Score:       body.Score,
	}, nil
}
