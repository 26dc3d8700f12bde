package utils

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Admin list paging bounds.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Response is the JSON body of every admin and health endpoint. Webhook
// replies use the SMS provider's own format instead.
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

// ErrorInfo carries a machine-readable code such as INVALID_SIGNATURE.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta ties a response to the request_id in the access log.
type Meta struct {
	RequestID  string      `json:"requestId"`
	Timestamp  string      `json:"timestamp"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes one page of a report listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Page is a requested page of a listing.
type Page struct {
	Number int
	Limit  int
}

// Offset is the number of rows before the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// PageFromQuery reads ?page= and ?limit=, falling back to the first page of
// DefaultPageLimit rows and capping limit at MaxPageLimit.
func PageFromQuery(c *gin.Context) Page {
	p := Page{Number: 1, Limit: DefaultPageLimit}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxPageLimit)
	}
	return p
}

// Success writes data in the envelope.
func Success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Success: true,
		Code:    code,
		Message: message,
		Data:    data,
		Meta:    newMeta(c, nil),
	})
}

// SuccessWithPagination writes one page of a listing of total rows.
func SuccessWithPagination(c *gin.Context, code int, message string, data interface{}, page Page, total int) {
	c.JSON(code, Response{
		Success: true,
		Code:    code,
		Message: message,
		Data:    data,
		Meta: newMeta(c, &Pagination{
			Page:       page.Number,
			Limit:      page.Limit,
			TotalItems: total,
			TotalPages: (total + page.Limit - 1) / page.Limit,
		}),
	})
}

// Error writes an error envelope with errCode.
func Error(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, Response{
		Success: false,
		Code:    code,
		Message: message,
		Error: &ErrorInfo{
			Code:    errCode,
			Message: message,
		},
		Meta: newMeta(c, nil),
	})
}

func newMeta(c *gin.Context, p *Pagination) Meta {
	id := c.GetString("request_id")
	if id == "" {
		id = uuid.New().String()[:8]
	}
	return Meta{
		RequestID:  id,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Pagination: p,
	}
}
