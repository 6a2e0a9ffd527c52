package api

import (
	"net/http"

	"github.com/example/transfer-core/internal/bank"
	"github.com/example/transfer-core/internal/security"
)

// writeBankError maps a domain error to its HTTP status. Internal
// errors get a generic message; everything else is safe to surface.
func writeBankError(w http.ResponseWriter, r *http.Request, err error) {
	switch bank.Classify(err) {
	case bank.KindValidation:
		security.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
	case bank.KindNotFound:
		security.WriteJSONError(w, r, http.StatusNotFound, err.Error())
	case bank.KindBusinessRule:
		security.WriteJSONError(w, r, http.StatusUnprocessableEntity, err.Error())
	case bank.KindRateUnavailable:
		security.WriteJSONError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal error")
	}
}
