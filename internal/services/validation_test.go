package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid payment request", func(t *testing.T) {
		valid := recordPaymentRequest{
			ReservationID:  "res_123",
			AmountCents:    15000,
			Method:         "card",
			IdempotencyKey: "front-desk-20260830-01",
		}

		err := vh.ValidateStruct(&valid)
		assert.NoError(t, err)
	})

	t.Run("missing required fields", func(t *testing.T) {
		invalid := recordPaymentRequest{
			Method: "card",
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3) // ReservationID, AmountCents, IdempotencyKey
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		invalid := recordPaymentRequest{
			ReservationID:  "res_123",
			AmountCents:    -500,
			Method:         "cash",
			IdempotencyKey: "key-1",
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "AmountCents", validationErrors[0].Field())
		assert.Equal(t, "gt", validationErrors[0].Tag())
	})

	t.Run("unknown payment method rejected", func(t *testing.T) {
		invalid := recordPaymentRequest{
			ReservationID:  "res_123",
			AmountCents:    15000,
			Method:         "barter",
			IdempotencyKey: "key-1",
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Method", validationErrors[0].Field())
		assert.Equal(t, "oneof", validationErrors[0].Tag())
	})

	t.Run("refund destination validated", func(t *testing.T) {
		invalid := recordRefundRequest{
			ReservationID: "res_123",
			AmountCents:   5000,
			Destination:   "carrier-pigeon",
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Destination", validationErrors[0].Field())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		invalid := recordPaymentRequest{
			AmountCents: -1,
			Method:      "barter",
		}

		validationErr := vh.ValidateStruct(&invalid)
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.NotNil(t, response.Details)
		assert.Contains(t, response.Details, "ReservationID")
		assert.Contains(t, response.Details, "AmountCents")
		assert.Contains(t, response.Details, "Method")
	})

	t.Run("conflict error", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Payment already being processed", http.StatusConflict, nil)

		assert.Equal(t, http.StatusConflict, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Payment already being processed", response.Error)
	})

	t.Run("unauthorized error", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Unauthorized access", http.StatusUnauthorized, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Unauthorized access", response.Error)
	})
}

func TestNewValidationHelper(t *testing.T) {
	vh := NewValidationHelper()
	assert.NotNil(t, vh)
	assert.NotNil(t, vh.validator)
}
