package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/plan-it/planit/internal/domain"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestWriteDomainError_NotFoundNamesOffendingLine(t *testing.T) {
	lineID := uuid.New()
	err := errors.Wrapf(domain.ErrNotFound, "line %s", lineID)

	rec := httptest.NewRecorder()
	writeDomainError(rec, err)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, decodeError(t, rec), lineID.String())
}

func TestWriteDomainError_CapacityKeepsFullMessage(t *testing.T) {
	err := &domain.CapacityError{EventID: uuid.New(), EventTitle: "Jazz Night", Remaining: 1}

	rec := httptest.NewRecorder()
	writeDomainError(rec, err)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeError(t, rec), "Jazz Night")
	require.Contains(t, decodeError(t, rec), "Available spots: 1")
}

func TestWriteDomainError_ConflictKeepsWrappedReason(t *testing.T) {
	err := errors.Wrap(domain.ErrConflict, "cannot set maxAttendees to 1")

	rec := httptest.NewRecorder()
	writeDomainError(rec, err)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, decodeError(t, rec), "cannot set maxAttendees to 1")
}

func TestWriteDomainError_SerializationFailureAsksForRetry(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, domain.ErrSerializationFailure)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "conflict, try again", decodeError(t, rec))
}
