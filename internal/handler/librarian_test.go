package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-reservation/internal/service"
)

func TestBorrowingTransitions(t *testing.T) {
	h := NewLibrarianHandler(&fakeLending{})
	cases := []struct {
		name   string
		msg    string
		status string
	}{
		{"approve", "Borrowing approved successfully", "APPROVED"},
		{"reject", "Borrowing rejected successfully", "REJECTED"},
		{"return", "Book returned successfully", "RETURNED"},
	}
	for _, tc := range cases {
		c, rec := newTestCtx(http.MethodPatch, "/", "")
		withParam(c, "borrowingId", "4")
		var err error
		switch tc.name {
		case "approve":
			err = h.ApproveBorrowing(c)
		case "reject":
			err = h.RejectBorrowing(c)
		case "return":
			err = h.ReturnBorrowing(c)
		}
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code, tc.name)
		body := decode(t, rec)
		assert.Equal(t, tc.msg, body["message"])
		assert.Equal(t, tc.status, body["borrowing"].(map[string]any)["status"])
	}
}

func TestApproveBorrowingInvalidState(t *testing.T) {
	h := NewLibrarianHandler(&fakeLending{err: svcErr(service.KindInvalidState, "Borrowing request is not pending")})
	c, rec := newTestCtx(http.MethodPatch, "/", "")
	withParam(c, "borrowingId", "4")
	require.NoError(t, h.ApproveBorrowing(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Borrowing request is not pending", decode(t, rec)["error"])
}

func TestReturnMissingBorrowingIs400(t *testing.T) {
	h := NewLibrarianHandler(&fakeLending{err: svcErr(service.KindNotFound, "Borrowing not found")})
	c, rec := newTestCtx(http.MethodPatch, "/", "")
	withParam(c, "borrowingId", "4")
	require.NoError(t, h.ReturnBorrowing(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationDecisions(t *testing.T) {
	lending := &fakeLending{}
	h := NewLibrarianHandler(lending)

	c, rec := newTestCtx(http.MethodPatch, "/", "")
	withParam(c, "reservationId", "6")
	require.NoError(t, h.ApproveReservation(c))
	assert.Equal(t, "ACTIVE", decode(t, rec)["reservation"].(map[string]any)["status"])
	assert.Equal(t, uint64(6), lending.gotID)

	c, rec = newTestCtx(http.MethodPatch, "/", "")
	withParam(c, "reservationId", "6")
	require.NoError(t, h.RejectReservation(c))
	assert.Equal(t, "Reservation rejected successfully", decode(t, rec)["message"])

	c, rec = newTestCtx(http.MethodPatch, "/", "")
	withParam(c, "reservationId", "-1")
	require.NoError(t, h.RejectReservation(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOverdueReturnsCount(t *testing.T) {
	h := NewLibrarianHandler(&fakeLending{swept: 3})
	c, rec := newTestCtx(http.MethodPost, "/", "")
	require.NoError(t, h.UpdateOverdue(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["count"])
}

func TestLibrarianQueues(t *testing.T) {
	h := NewLibrarianHandler(&fakeLending{})
	for _, fn := range []func() (int, string){
		func() (int, string) {
			c, rec := newTestCtx(http.MethodGet, "/", "")
			require.NoError(t, h.PendingBorrowings(c))
			return rec.Code, rec.Body.String()
		},
		func() (int, string) {
			c, rec := newTestCtx(http.MethodGet, "/", "")
			require.NoError(t, h.ActiveBorrowings(c))
			return rec.Code, rec.Body.String()
		},
		func() (int, string) {
			c, rec := newTestCtx(http.MethodGet, "/", "")
			require.NoError(t, h.PendingReservations(c))
			return rec.Code, rec.Body.String()
		},
	} {
		code, body := fn()
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, byte('['), body[0])
	}
}
