package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/scoring"
)

func TestSubmitDecodesJudgement(t *testing.T) {
	var gotPath string
	var gotBody submitRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(submitResponse{
			Verdict:     model.VerdictAccepted,
			TestsPassed: 3,
			TestsTotal:  3,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zerolog.Nop())
	j, err := c.Submit(context.Background(), "code", "go", []model.TestCase{
		{Input: "1", ExpectedOut: "2"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if gotPath != "/v1/submissions" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotBody.Language != "go" || len(gotBody.TestCases) != 1 {
		t.Fatalf("request = %+v", gotBody)
	}
	if j.Verdict != model.VerdictAccepted || j.TestsPassed != 3 {
		t.Fatalf("judgement = %+v", j)
	}
	if j.Score != nil {
		t.Fatal("absent score must decode to nil")
	}
}

func TestSubmitServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zerolog.Nop())
	_, err := c.Submit(context.Background(), "code", "go", nil)
	if !errors.Is(err, scoring.ErrJudgeUnavailable) {
		t.Fatalf("err = %v, want ErrJudgeUnavailable", err)
	}
}

func TestSubmitTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, time.Second, zerolog.Nop())
	_, err := c.Submit(context.Background(), "code", "go", nil)
	if !errors.Is(err, scoring.ErrJudgeUnavailable) {
		t.Fatalf("err = %v, want ErrJudgeUnavailable", err)
	}
}

func TestSubmitClientErrorIsPermanentRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zerolog.Nop())
	_, err := c.Submit(context.Background(), "code", "go", nil)
	if !errors.Is(err, scoring.ErrJudgeRejected) {
		t.Fatalf("err = %v, want ErrJudgeRejected", err)
	}
	if errors.Is(err, scoring.ErrJudgeUnavailable) {
		t.Fatal("a judge-side rejection must not be reported as an outage")
	}
}
