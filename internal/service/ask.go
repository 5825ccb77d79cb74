package service

import (
	"context"
	"strings"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/roach88/geoff/internal/catalog"
	"github.com/roach88/geoff/internal/examples"
	"github.com/roach88/geoff/internal/llm"
	"github.com/roach88/geoff/internal/store"
)

// minTables is the number of keyword matches below which every table is
// offered to the model.
const minTables = 1

// attempt is the outcome of one generate-compile-execute round. feedback is
// what the next prompt shows as the previous output: the compiled SQL, or
// the raw plan text when compilation failed.
type attempt struct {
	plan     string
	feedback string
	sql      string
	err      error
}

// Ask answers a natural-language question.
//
// Up to retries+1 attempts are made. When all fail, the response carries
// the last SQL and error with CodeExhausted and the returned error is nil.
// A non-nil error means the question could not be attempted at all: the
// generator is missing or unreachable, or ctx was canceled.
func (s *Service) Ask(ctx context.Context, question string) (*Response, error) {
	if strings.TrimSpace(question) == "" {
		return nil, &Error{Code: CodePlanInvalid, Message: "question is empty"}
	}
	if s.gen == nil {
		return nil, &Error{Code: CodeUnavailable, Message: "no plan generator configured"}
	}

	tables := s.catalog.SelectTables(question, minTables)
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	input := llm.PromptInput{
		Question: question,
		Schema:   catalog.Prompt(tables),
		Examples: examples.Prompt(s.examples.Relevant(names, s.maxExamples)),
	}
	s.log.Debug("tables selected", zap.String("question", question), zap.Strings("tables", names))

	var (
		history []attempt
		resp    *Response
	)
	err := retry.Do(
		func() error {
			a, r, err := s.try(ctx, input)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return retry.Unrecoverable(ctxErr)
				}
				if IsUnavailable(err) {
					return retry.Unrecoverable(err)
				}
			}
			history = append(history, a)
			if err != nil {
				input.Previous = &llm.Previous{SQL: a.feedback, Error: causeMessage(err)}
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.retries+1)),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Info("attempt failed",
				zap.Uint("attempt", n+1),
				zap.String("code", string(CodeOf(err))),
				zap.Error(err),
			)
		}),
	)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if IsUnavailable(err) {
			return nil, err
		}
		last := history[len(history)-1]
		resp = &Response{
			SQL:   last.sql,
			Error: causeMessage(err),
			Code:  CodeExhausted,
		}
	}

	resp.ID = s.ids.NewID()
	resp.Attempts = len(history)
	s.record(ctx, question, resp, history)
	return resp, nil
}

// try runs one attempt. The returned attempt is always populated so the
// caller can record it and build feedback from it.
func (s *Service) try(ctx context.Context, input llm.PromptInput) (attempt, *Response, error) {
	raw, err := s.gen.Generate(ctx, llm.BuildPrompt(input))
	if err != nil {
		return attempt{}, nil, newError(CodeUnavailable, err)
	}

	planJSON, err := llm.ExtractPlan(raw)
	if err != nil {
		a := attempt{plan: raw, feedback: raw, err: err}
		return a, nil, newError(CodeGeneration, err)
	}
	a := attempt{plan: string(planJSON), feedback: string(planJSON)}

	stmts, err := s.Compile(planJSON)
	if err != nil {
		a.err = err
		return a, nil, err
	}
	a.sql = joinSQL(stmts)
	a.feedback = a.sql

	lays, err := s.Execute(ctx, stmts)
	if err != nil {
		a.err = err
		return a, nil, err
	}
	return a, &Response{SQL: a.sql, Statements: stmts, Layers: lays}, nil
}

// record stores the question in history. Failures are logged only.
func (s *Service) record(ctx context.Context, question string, resp *Response, history []attempt) {
	if s.history == nil {
		return
	}

	q := store.Query{
		ID:         resp.ID,
		Question:   question,
		Status:     store.StatusOK,
		SQL:        resp.SQL,
		Error:      resp.Error,
		LayerCount: len(resp.Layers),
		CreatedAt:  s.clock.Now(),
	}
	if resp.Failed() {
		q.Status = store.StatusFailed
	}

	attempts := make([]store.Attempt, len(history))
	for i, a := range history {
		attempts[i] = store.Attempt{Plan: a.plan, SQL: a.sql}
		if a.err != nil {
			attempts[i].Error = causeMessage(a.err)
		}
	}

	if err := s.history.RecordQuery(context.WithoutCancel(ctx), q, attempts); err != nil {
		s.log.Warn("failed to record query", zap.String("id", q.ID), zap.Error(err))
	}
}
