package dto

import "time"

// DefaultPageSize applies when a list request names no page_size.
const DefaultPageSize = 20

// Response is the envelope of every JSON body the API writes.
// Exactly one of Data and Error is set.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Details   map[string]any     `json:"details,omitempty"`
	Fields    []ValidationDetail `json:"fields,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta describes the page a list response holds.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// ListRequest holds the paging and ordering query parameters shared by list endpoints.
type ListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=created_at updated_at total pending_amount status"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta wraps one page of a list. A non-positive
// pageSize is reported as DefaultPageSize.
func NewSuccessResponseWithMeta(data any, total int64, page, pageSize int) Response {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	size := int64(pageSize)
	return Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: int((total + size - 1) / size),
		},
	}
}

func NewErrorResponse(code, message string) Response {
	return newError(code, message, "")
}

func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return newError(code, message, requestID)
}

// NewDetailedErrorResponse attaches the structured details of a domain error,
// such as the pending and attempted amounts of a rejected payment.
func NewDetailedErrorResponse(code, message, requestID string, details map[string]any) Response {
	resp := newError(code, message, requestID)
	if len(details) > 0 {
		resp.Error.Details = details
	}
	return resp
}

func NewValidationErrorResponse(message, requestID string, fields []ValidationDetail) Response {
	resp := newError(ErrCodeValidation, message, requestID)
	resp.Error.Fields = fields
	return resp
}

func newError(code, message, requestID string) Response {
	return Response{Error: &ErrorInfo{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}}
}
