package common_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/common"
)

type sample struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

func TestDecodeAndValidateReportsFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","quantity":0}`))
	var dst sample
	err := common.DecodeAndValidate(req, &dst)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "required", details["sample.name"])
	require.Equal(t, "gt=0", details["sample.quantity"])
}

func TestDecodeAndValidateRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","quantity":1,"extra":true}`))
	var dst sample
	err := common.DecodeAndValidate(req, &dst)
	require.Error(t, err)
	require.Equal(t, "invalid JSON body", err.(*common.AppError).Message)
}

func TestWriteErrorUsesAppErrorShape(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, errors.New("missing")))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"order not found"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	common.WriteError(rr, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestInMemoryEmailRecords(t *testing.T) {
	mail := &common.InMemoryEmail{}
	require.NoError(t, mail.Send("a@example.com", "hi", "body"))
	require.Len(t, mail.Sent(), 1)
	require.Equal(t, 3, common.AtoiDefault(" 3 ", 1))
	require.Equal(t, 1, common.AtoiDefault("x", 1))
}
