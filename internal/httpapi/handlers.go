package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"replacechain/internal/tabular"
	"replacechain/pkg/domain"
)

// Handlers adapts a Service to gin.
type Handlers struct {
	svc    Service
	logger *slog.Logger
	now    func() time.Time
}

// NewHandlers returns handlers serving svc.
func NewHandlers(svc Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handlers{
		svc:    svc,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleAddReplacement handles POST /v1/replacements.
//
// Response:
//
//	200 OK: domain.ReplaceOutcome (Applied=false when the date is older than the set's)
//	400 Bad Request: missing names or unparseable date
//	500 Internal Server Error: the state could not be persisted
func (h *Handlers) HandleAddReplacement(c *gin.Context) {
	logger := h.requestLogger(c, "HandleAddReplacement")

	var req ReplacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	date, err := h.requestDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_DATE"})
		return
	}

	out, err := h.svc.AddReplacement(c.Request.Context(),
		tabular.NormalizeName(req.Old), tabular.NormalizeName(req.New), date)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("replacement recorded", "old", req.Old, "new", req.New, "applied", out.Applied)
	c.JSON(http.StatusOK, out)
}

// HandleBulkLoad handles POST /v1/replacements/bulk. The body is CSV, JSON
// or YAML according to Content-Type; CSV is assumed otherwise.
func (h *Handlers) HandleBulkLoad(c *gin.Context) {
	logger := h.requestLogger(c, "HandleBulkLoad")

	records, err := tabular.ReadReplacements(c.Request.Body, tabular.ReadOptions{
		Format: formatFromContentType(c.ContentType()),
		Now:    func() time.Time { return h.now().Truncate(24 * time.Hour) },
	})
	if err != nil {
		logger.Warn("invalid bulk body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	res, err := h.svc.BulkLoad(c.Request.Context(), records, nil)
	if err != nil {
		status, code := classify(err)
		logger.Error("bulk load stopped", "processed", res.Processed, "error", err)
		c.JSON(status, BulkResponse{BulkResult: res, Error: err.Error(), Code: code})
		return
	}
	logger.Info("bulk load finished", "processed", res.Processed, "applied", res.Applied, "refused", res.Refused)
	c.JSON(http.StatusOK, BulkResponse{BulkResult: res})
}

// HandleListProducts handles GET /v1/products.
func (h *Handlers) HandleListProducts(c *gin.Context) {
	products := h.svc.ListProducts()
	c.JSON(http.StatusOK, ProductsResponse{Products: products, Count: len(products)})
}

// HandleLatest handles GET /v1/products/:name/latest and GET /v1/latest?name=,
// the latter for names containing a slash. Unknown products are answered
// with 200 and found=false; the name passes through as latest.
func (h *Handlers) HandleLatest(c *gin.Context) {
	raw := c.Param("name")
	if raw == "" {
		raw = c.Query("name")
	}
	name := tabular.NormalizeName(raw)
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: domain.ErrEmptyProductName.Error(), Code: "EMPTY_NAME"})
		return
	}
	c.JSON(http.StatusOK, h.svc.Resolve(c.Request.Context(), name))
}

// HandleMappings handles GET /v1/mappings?format=csv|json|yaml. JSON is the
// default.
func (h *Handlers) HandleMappings(c *gin.Context) {
	format, err := tabular.ParseFormat(c.DefaultQuery("format", string(tabular.FormatJSON)))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_FORMAT"})
		return
	}
	rows := h.svc.Mappings(c.Request.Context(), nil)
	c.Status(http.StatusOK)
	c.Header("Content-Type", format.ContentType())
	if err := tabular.WriteMappings(c.Writer, format, rows); err != nil {
		h.requestLogger(c, "HandleMappings").Error("write mappings", "error", err)
	}
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Products: len(h.svc.ListProducts())})
}

func (h *Handlers) requestDate(raw string) (time.Time, error) {
	if raw == "" {
		return h.now().Truncate(24 * time.Hour), nil
	}
	return tabular.ParseDate(raw)
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

func classify(err error) (int, string) {
	var persist *domain.PersistError
	switch {
	case errors.Is(err, domain.ErrEmptyProductName):
		return http.StatusBadRequest, "EMPTY_NAME"
	case errors.As(err, &persist):
		return http.StatusInternalServerError, "PERSIST_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func formatFromContentType(ct string) tabular.Format {
	switch ct {
	case "application/json":
		return tabular.FormatJSON
	case "application/yaml", "application/x-yaml", "text/yaml":
		return tabular.FormatYAML
	default:
		return tabular.FormatCSV
	}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
