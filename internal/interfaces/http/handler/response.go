package handler

import "github.com/erp/bcsync/internal/interfaces/http/dto"

// APIResponse is the typed form of dto.Response used in swagger annotations
// and when decoding responses in tests
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse documents the failure envelope
type ErrorResponse struct {
	Success bool          `json:"success" example:"false"`
	Error   dto.ErrorInfo `json:"error"`
}
