package response

import (
	"errors"
	"net/http"

	"billexpress/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 账本业务错误码
const (
	CodeNonZeroBalance    = 1001
	CodeDefaultAccount    = 1002
	CodeInvalidTransfer   = 1003
	CodeInvalidAmount     = 1004
	CodeInsufficientFunds = 1005
	CodeConcurrentUpdate  = 1006
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

// errorCodes 每种账本错误对应的业务码和 HTTP 状态
var errorCodes = []struct {
	err    error
	code   int
	status int
}{
	{service.ErrValidation, CodeParamError, http.StatusBadRequest},
	{service.ErrNotFound, CodeNotFound, http.StatusNotFound},
	{service.ErrForbidden, CodeForbidden, http.StatusForbidden},
	{service.ErrNonZeroBalance, CodeNonZeroBalance, http.StatusConflict},
	{service.ErrDefaultAccount, CodeDefaultAccount, http.StatusConflict},
	{service.ErrInvalidTransfer, CodeInvalidTransfer, http.StatusBadRequest},
	{service.ErrInvalidAmount, CodeInvalidAmount, http.StatusBadRequest},
	{service.ErrInsufficientFunds, CodeInsufficientFunds, http.StatusUnprocessableEntity},
	{service.ErrConcurrentUpdate, CodeConcurrentUpdate, http.StatusConflict},
}

// Classify 返回错误对应的业务码和 HTTP 状态，未知错误按服务器错误处理
func Classify(err error) (code, status int) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code, e.status
		}
	}
	return CodeServerError, http.StatusInternalServerError
}

// FromError 把服务层错误写成统一响应
func FromError(c *gin.Context, err error) {
	code, status := Classify(err)
	message := err.Error()
	if code == CodeServerError {
		message = "服务器内部错误"
	}
	Error(c, status, code, message)
}
