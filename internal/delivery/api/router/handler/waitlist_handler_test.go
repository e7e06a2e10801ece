package handler

import (
	"net/http"
	"testing"

	"showup/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWaitlistHandler_Join(t *testing.T) {
	h := newAPIHarness(t)
	waitlistUC := &mockWaitlistUsecase{}
	t.Cleanup(func() { waitlistUC.AssertExpectations(t) })
	h.e.POST("/api/waitlist", NewWaitlistHandler(waitlistUC).Join)

	waitlistUC.On("Join", mock.Anything, mock.MatchedBy(func(in *usecase.JoinWaitlistInput) bool {
		return in.Email == "Quinn@Example.com" && in.Name == "Quinn" && in.IPAddress != ""
	})).Return(nil).Once()

	rec := h.do(t, http.MethodPost, "/api/waitlist", map[string]string{"email": "Quinn@Example.com", "name": "Quinn"}, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data map[string]any
	decodeData(t, rec, &data)
	assert.Equal(t, true, data["success"])

	rec = h.do(t, http.MethodPost, "/api/waitlist", map[string]string{"name": "No Email"}, "")
	assertAPIError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED", "email is required")
}
