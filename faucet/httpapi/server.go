// Package httpapi is the thin HTTP adapter over the faucet core: two
// routes, mapped directly onto faucet.Queue.Push and the faucet's
// status (spec §4.F).
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/EspressoSystems/faucet/faucet"
	"github.com/EspressoSystems/faucet/log"
)

// healthResponse is the body of GET /healthcheck.
type healthResponse struct {
	Status string `json:"status"`
}

// errorResponse is the body returned on any non-2xx response.
type errorResponse struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// maxRequestBody bounds the size of a request_fee_assets body; a
// recipient public key is a small, fixed-size encoding, so anything
// larger is necessarily malformed.
const maxRequestBody = 4096

// NewHandler builds the HTTP handler serving prefix + "/healthcheck"
// and prefix + "/request_fee_assets" against state. prefix may be empty.
func NewHandler(prefix string, state *faucet.State) http.Handler {
	router := httprouter.New()
	router.GET(prefix+"/healthcheck", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		healthcheck(w, state)
	})
	router.POST(prefix+"/request_fee_assets", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		requestFeeAssets(w, r, state)
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

// healthcheck always answers 200, so a load balancer does not
// terminate the instance while it is still bootstrapping (spec §4.F).
func healthcheck(w http.ResponseWriter, state *faucet.State) {
	writeJSON(w, http.StatusOK, healthResponse{Status: state.Status().String()})
}

func requestFeeAssets(w http.ResponseWriter, r *http.Request, state *faucet.State) {
	if state.Status() != faucet.StatusAvailable {
		writeError(w, http.StatusServiceUnavailable, faucet.ErrUnavailableErr)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, faucet.ErrBadRequest("failed to read request body"))
		return
	}
	if len(body) == 0 || len(body) > maxRequestBody {
		writeError(w, http.StatusBadRequest, faucet.ErrBadRequest("request body is empty or too large"))
		return
	}

	key := faucet.NewRecipient(body)
	if err := state.Queue.Push(key); err != nil {
		if ferr, ok := err.(*faucet.Error); ok {
			writeError(w, statusFor(ferr), ferr)
			return
		}
		log.Error("unexpected error pushing request", "err", err)
		writeError(w, http.StatusInternalServerError, faucet.ErrInternal(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func statusFor(err *faucet.Error) int {
	switch err.Tag {
	case "QueueFull":
		return http.StatusServiceUnavailable
	case "AlreadyInQueue":
		return http.StatusConflict
	case "BadRequest":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err *faucet.Error) {
	writeJSON(w, status, errorResponse{Tag: err.Tag, Message: err.Message})
}
