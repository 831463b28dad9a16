package apierr

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapsKnownKinds(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, Status(KindValidation))
	assert.Equal(t, http.StatusTooManyRequests, Status(KindRateLimited))
	assert.Equal(t, http.StatusServiceUnavailable, Status(KindDependencyUnavailable))
}

func TestStatusDefaultsToInternalForUnknownKind(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Status(Kind("made_up")))
}

func TestEnvelopeOmitsMessage(t *testing.T) {
	e := New(KindValidation, CodeInvalidQuery, "query too long", "req-1")
	env := e.Envelope()
	assert.Equal(t, KindValidation, env.Error)
	assert.Equal(t, CodeInvalidQuery, env.Code)
	assert.Equal(t, "req-1", env.RequestID)
	assert.Equal(t, "query too long", e.Error())
}
