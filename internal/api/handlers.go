package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/docuquery/backend/internal/index"
	"github.com/docuquery/backend/internal/models"
	"github.com/docuquery/backend/internal/query"
)

// Ingestor runs the document ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, fileName string, r io.Reader, progress func(string)) error
	Remove(ctx context.Context, fileName string, progress func(string)) error
}

// Asker answers questions over the indexed corpus.
type Asker interface {
	Ask(ctx context.Context, principal, question string) (*models.Answer, error)
}

// DocumentCatalog exposes the read side of the document index.
type DocumentCatalog interface {
	ListFileNames(ctx context.Context) ([]string, error)
	GetText(ctx context.Context, fileName string) (string, error)
	GetDocumentState(ctx context.Context, fileName string) (*models.DocumentState, error)
}

// HistoryStore exposes the interaction log read side.
type HistoryStore interface {
	QueryInteractions(ctx context.Context, principal string, start, end time.Time) ([]models.InteractionEntry, error)
}

// Pinger reports whether the index database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles API requests.
type Handler struct {
	ingestor Ingestor
	asker    Asker
	catalog  DocumentCatalog
	history  HistoryStore
	pinger   Pinger
	logger   *zap.Logger
	version  string
}

// NewHandler creates a new API handler. pinger may be nil, in which case
// health reports only process liveness.
func NewHandler(ingestor Ingestor, asker Asker, catalog DocumentCatalog, history HistoryStore, pinger Pinger, logger *zap.Logger, version string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		ingestor: ingestor,
		asker:    asker,
		catalog:  catalog,
		history:  history,
		pinger:   pinger,
		logger:   logger.With(zap.String("component", "api")),
		version:  version,
	}
}

// HandleHealth returns server health status, including index reachability.
func (h *Handler) HandleHealth(c echo.Context) error {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request().Context()); err != nil {
			h.logger.Error("index unreachable", zap.Error(err))
			return NewServiceUnavailableError("index unavailable")
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleIngest accepts a multipart file upload and runs the full ingestion
// pipeline, streaming one plain-text progress line per completed step.
// The pipeline runs on a context detached from the request: a client
// disconnect mid-stream must not abort a half-finished rebuild.
func (h *Handler) HandleIngest(c echo.Context) error {
	fileName := c.Param("fileName")
	if fileName == "" {
		return NewBadRequestError("file name is required", nil)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("multipart field 'file' is required", err)
	}
	src, err := fileHeader.Open()
	if err != nil {
		return NewBadRequestError("failed to open uploaded file", err)
	}
	defer src.Close()

	h.streamHeaders(c)

	err = h.ingestor.Ingest(context.WithoutCancel(c.Request().Context()), fileName, src, func(line string) {
		h.streamLine(c, line)
	})
	if err != nil {
		h.logger.Error("ingestion failed",
			zap.String("file", fileName),
			zap.Error(err))
		h.streamLine(c, fmt.Sprintf("error: %v", err))
	}
	return nil
}

// HandleRemove deletes a document, its chunks, and its staged blob,
// streaming progress the same way ingestion does. Removing an absent
// document is a successful no-op.
func (h *Handler) HandleRemove(c echo.Context) error {
	fileName := c.Param("fileName")
	if fileName == "" {
		return NewBadRequestError("file name is required", nil)
	}

	h.streamHeaders(c)

	err := h.ingestor.Remove(context.WithoutCancel(c.Request().Context()), fileName, func(line string) {
		h.streamLine(c, line)
	})
	if err != nil {
		h.logger.Error("removal failed",
			zap.String("file", fileName),
			zap.Error(err))
		h.streamLine(c, fmt.Sprintf("error: %v", err))
	}
	return nil
}

// HandleListDocuments returns the names of all known documents.
func (h *Handler) HandleListDocuments(c echo.Context) error {
	files, err := h.catalog.ListFileNames(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list documents", err)
	}
	if files == nil {
		files = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"files": files,
	})
}

// HandleGetText returns the full extracted text of one document.
func (h *Handler) HandleGetText(c echo.Context) error {
	fileName := c.Param("fileName")
	text, err := h.catalog.GetText(c.Request().Context(), fileName)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return NewNotFoundError("document", fileName)
		}
		return NewInternalError("failed to load document text", err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"fileName": fileName,
		"text":     text,
	})
}

// HandleGetStatus returns the processing state of one document.
func (h *Handler) HandleGetStatus(c echo.Context) error {
	fileName := c.Param("fileName")
	state, err := h.catalog.GetDocumentState(c.Request().Context(), fileName)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return NewNotFoundError("document", fileName)
		}
		return NewInternalError("failed to load document status", err)
	}
	return c.JSON(http.StatusOK, state)
}

// HandleAsk answers a question over the indexed corpus. Failures map to a
// generic user-facing message; the detailed cause only reaches the server
// log and the interaction log.
func (h *Handler) HandleAsk(c echo.Context) error {
	var req struct {
		Question string `json:"question"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	answer, err := h.asker.Ask(c.Request().Context(), Principal(c), req.Question)
	if err != nil {
		if errors.Is(err, query.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "question must not be empty"})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to generate an answer, please try again"})
	}

	return c.JSON(http.StatusOK, answer)
}

// HandleHistory returns interaction-log entries within a time window,
// newest first, capped at 100 rows. Administrators see all askers;
// everyone else sees only their own history.
func (h *Handler) HandleHistory(admins AdminChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		start, err := parseTimeParam(c.QueryParam("start"), time.Time{})
		if err != nil {
			return NewBadRequestError("invalid 'start' timestamp, want RFC 3339", err)
		}
		end, err := parseTimeParam(c.QueryParam("end"), time.Now().UTC())
		if err != nil {
			return NewBadRequestError("invalid 'end' timestamp, want RFC 3339", err)
		}

		principal := Principal(c)
		if admins.IsAdmin(principal) {
			principal = ""
		}

		rows, err := h.history.QueryInteractions(c.Request().Context(), principal, start, end)
		if err != nil {
			return NewInternalError("failed to query history", err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"rows": rows,
		})
	}
}

func (h *Handler) streamHeaders(c echo.Context) {
	c.Response().Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
}

func (h *Handler) streamLine(c echo.Context, line string) {
	fmt.Fprintf(c.Response(), "%s\n", line)
	c.Response().Flush()
}

func parseTimeParam(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, value)
}
