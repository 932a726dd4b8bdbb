package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"billexpress/internal/service"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err        error
		wantCode   int
		wantStatus int
	}{
		{fmt.Errorf("%w: 缺少 userId", service.ErrValidation), CodeParamError, http.StatusBadRequest},
		{service.ErrNotFound, CodeNotFound, http.StatusNotFound},
		{service.ErrForbidden, CodeForbidden, http.StatusForbidden},
		{service.ErrNonZeroBalance, CodeNonZeroBalance, http.StatusConflict},
		{service.ErrDefaultAccount, CodeDefaultAccount, http.StatusConflict},
		{service.ErrInvalidTransfer, CodeInvalidTransfer, http.StatusBadRequest},
		{service.ErrInvalidAmount, CodeInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("%w: 可用余额 10", service.ErrInsufficientFunds), CodeInsufficientFunds, http.StatusUnprocessableEntity},
		{service.ErrConcurrentUpdate, CodeConcurrentUpdate, http.StatusConflict},
		{errors.New("connection refused"), CodeServerError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, status := Classify(tc.err)
		if code != tc.wantCode || status != tc.wantStatus {
			t.Errorf("Classify(%v) = (%d, %d), want (%d, %d)", tc.err, code, status, tc.wantCode, tc.wantStatus)
		}
	}
}
