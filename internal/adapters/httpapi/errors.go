package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type HTTPError struct {
	Error string `json:"error" example:"there is no goal with this id"`
	// Reason is the machine readable rejection or normalization reason.
	Reason string `json:"reason,omitempty" example:"UnparseableDate"`
}

var statuses = []struct {
	err    error
	status int
}{
	{domain.ErrNoMatch, http.StatusUnprocessableEntity},
	{domain.ErrInvalidPayload, http.StatusBadRequest},
	{domain.ErrNothingToUndo, http.StatusNotFound},
	{domain.ErrGoalNotFound, http.StatusNotFound},
	{domain.ErrExpenseNotFound, http.StatusNotFound},
	{domain.ErrConcurrentModification, http.StatusConflict},
	{domain.ErrSchemaMismatch, http.StatusServiceUnavailable},
	{domain.ErrExtractionUnavailable, http.StatusBadGateway},
	{domain.ErrActorNotAllowed, http.StatusForbidden},
}

// Handler writes err with the status code matching its kind.
func Handler(c *gin.Context, err error) {
	var (
		rejected *domain.Rejected
		norm     *domain.NormalizationError
	)

	switch {
	case errors.As(err, &rejected):
		c.JSON(http.StatusBadRequest, HTTPError{Error: err.Error(), Reason: string(rejected.Reason)})
		return
	case errors.As(err, &norm):
		c.JSON(http.StatusUnprocessableEntity, HTTPError{Error: err.Error(), Reason: string(norm.Reason)})
		return
	}

	for _, s := range statuses {
		if errors.Is(err, s.err) {
			c.JSON(s.status, HTTPError{Error: err.Error()})
			return
		}
	}

	log.Error().Str("request-id", requestid.Get(c)).Msgf("%T: %v", err, err.Error())
	c.JSON(http.StatusInternalServerError, HTTPError{
		Error: fmt.Sprintf("An error occurred on the server during your request. The request id is '%v'", requestid.Get(c)),
	})
}
