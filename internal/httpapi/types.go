package httpapi

import (
	"context"
	"time"

	"replacechain/pkg/domain"
)

// Service is the subset of the replacement manager exposed over HTTP.
// *core.Manager satisfies it.
type Service interface {
	AddReplacement(ctx context.Context, oldName, newName string, date time.Time) (domain.ReplaceOutcome, error)
	BulkLoad(ctx context.Context, records []domain.Replacement, progress domain.ProgressFunc) (domain.BulkResult, error)
	Resolve(ctx context.Context, name string) domain.Resolution
	ListProducts() []string
	Mappings(ctx context.Context, progress domain.ProgressFunc) []domain.Mapping
}

// ReplacementRequest is the body of POST /v1/replacements.
type ReplacementRequest struct {
	// Old is the product being replaced.
	Old string `json:"old" binding:"required"`

	// New is the product replacing it.
	New string `json:"new" binding:"required"`

	// Date accepts YYYY-MM-DD or RFC 3339. Empty means today (UTC).
	Date string `json:"date,omitempty"`
}

// ProductsResponse is the body of GET /v1/products.
type ProductsResponse struct {
	Products []string `json:"products"`
	Count    int      `json:"count"`
}

// BulkResponse is the body of POST /v1/replacements/bulk.
type BulkResponse struct {
	domain.BulkResult
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Products int    `json:"products"`
}

// ErrorResponse is returned for every non-2xx answer.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}
