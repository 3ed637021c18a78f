// Package query answers user questions over the indexed corpus and
// records every attempt in the interaction log.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docuquery/backend/internal/ai"
	"github.com/docuquery/backend/internal/models"
)

// Error kinds for a failed question. Callers map these to user-facing
// responses; the detailed cause stays in the server log.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyResponse     = errors.New("empty response")
	ErrMalformedResponse = errors.New("malformed response")
)

// InteractionLog records question attempts. Append failures must not
// affect the answer returned to the user.
type InteractionLog interface {
	AppendInteraction(ctx context.Context, entry *models.InteractionEntry) error
}

// Engine runs the ask flow: validate, answer, decode, log.
type Engine struct {
	answerer ai.Answerer
	log      InteractionLog
	logger   *zap.Logger
}

// NewEngine creates a query engine.
func NewEngine(answerer ai.Answerer, log InteractionLog, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		answerer: answerer,
		log:      log,
		logger:   logger.With(zap.String("component", "query")),
	}
}

// Ask answers question on behalf of principal. Every attempt, success or
// failure, is appended to the interaction log. Returned errors wrap one of
// the package error kinds; the message attached to the wrapped error is
// internal detail and must not be shown to the user.
func (e *Engine) Ask(ctx context.Context, principal, question string) (*models.Answer, error) {
	log := e.logger.With(zap.String("principal", principal))

	if strings.TrimSpace(question) == "" {
		log.Warn("rejected question", zap.String("reason", "question must not be empty"))
		e.record(ctx, principal, question, nil, "question must not be empty")
		return nil, fmt.Errorf("%w: question must not be empty", ErrInvalidInput)
	}

	payload, err := e.answerer.Answer(ctx, question)
	if err != nil {
		log.Error("answer generation failed", zap.Error(err))
		e.record(ctx, principal, question, nil, err.Error())
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}
	if len(payload) == 0 {
		log.Warn("model returned no content")
		e.record(ctx, principal, question, nil, "model returned no content")
		return nil, fmt.Errorf("%w: model returned no content", ErrEmptyResponse)
	}

	var answer models.Answer
	if err := json.Unmarshal(payload, &answer); err != nil {
		log.Error("undecodable model response",
			zap.Error(err),
			zap.ByteString("payload", payload))
		e.record(ctx, principal, question, nil, fmt.Sprintf("undecodable model response: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	e.record(ctx, principal, question, payload, "")
	log.Info("question answered", zap.Int("sources", len(answer.Sources)))
	return &answer, nil
}

// record appends one interaction-log row. Logging is best effort: a
// failed append is reported in the server log and otherwise swallowed.
func (e *Engine) record(ctx context.Context, principal, question string, response []byte, errorMessage string) {
	entry := &models.InteractionEntry{
		Principal:    principal,
		Question:     question,
		AskedAt:      time.Now().UTC(),
		Success:      errorMessage == "",
		Response:     string(response),
		ErrorMessage: errorMessage,
	}
	if err := e.log.AppendInteraction(ctx, entry); err != nil {
		e.logger.Error("failed to append interaction log", zap.Error(err))
	}
}
