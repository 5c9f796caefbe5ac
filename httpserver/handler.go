package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ruteri/gateway-network-client/api"
	"github.com/ruteri/gateway-network-client/interfaces"
	"github.com/ruteri/gateway-network-client/network"
	"github.com/ruteri/gateway-network-client/token"
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler serves read-only views of gatekeeper networks and gateway tokens.
type Handler struct {
	dir    *network.Directory
	tokens *token.Manager
	log    *slog.Logger
}

// NewHandler creates an explorer handler. It never submits transactions.
func NewHandler(dir *network.Directory, tokens *token.Manager, log *slog.Logger) *Handler {
	return &Handler{
		dir:    dir,
		tokens: tokens,
		log:    log,
	}
}

// HandleGetNetwork returns the record of a network.
//
// URL format: GET /api/v1/networks/{name}
func (h *Handler) HandleGetNetwork(w http.ResponseWriter, r *http.Request) {
	name, err := networkName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	record, err := h.dir.GetNetworkByName(r.Context(), name)
	if err != nil {
		h.log.Debug("Failed to read network", "network", name, "err", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, record)
}

// HandleListGatekeepers returns the gatekeepers of a network.
//
// URL format: GET /api/v1/networks/{name}/gatekeepers
func (h *Handler) HandleListGatekeepers(w http.ResponseWriter, r *http.Request) {
	name, err := networkName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Resolve first so an unknown network is reported as not found, whatever
	// the ledger answers for the list itself.
	if _, err := h.dir.GetNetworkID(r.Context(), name); err != nil {
		h.writeError(w, err)
		return
	}
	gatekeepers, err := h.dir.GetGatekeepersOnNetwork(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, &api.GatekeepersResponse{Network: name, Gatekeepers: gatekeepers})
}

// HandleIsGatekeeper reports whether an address is a gatekeeper of a network.
//
// URL format: GET /api/v1/networks/{name}/gatekeepers/{address}
func (h *Handler) HandleIsGatekeeper(w http.ResponseWriter, r *http.Request) {
	name, err := networkName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	addr, err := interfaces.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}

	if _, err := h.dir.GetNetworkID(r.Context(), name); err != nil {
		h.writeError(w, err)
		return
	}
	ok, err := h.dir.IsGatekeeper(r.Context(), name, addr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, &api.MembershipResponse{Network: name, Address: addr, Gatekeeper: ok})
}

// HandleGetToken returns the token of an owner on a network together with the
// ledger's verification verdict.
//
// URL format: GET /api/v1/networks/{name}/tokens/{owner}
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	name, err := networkName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	owner, err := interfaces.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}

	tok, err := h.tokens.GetToken(r.Context(), owner, name)
	if err != nil {
		h.log.Debug("Failed to read token", "network", name, "owner", owner.Hex(), "err", err)
		h.writeError(w, err)
		return
	}
	valid, err := h.tokens.Verify(r.Context(), owner, name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, &api.TokenResponse{Token: tok, Valid: valid})
}

// networkName reads the name path parameter. chi matches on the raw path when
// it differs from the decoded one, in which case the parameter is still escaped.
func networkName(r *http.Request) (interfaces.NetworkName, error) {
	raw := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		var err error
		if raw, err = url.PathUnescape(raw); err != nil {
			return "", &RequestError{StatusCode: http.StatusBadRequest, Err: err}
		}
	}
	name := interfaces.NetworkName(raw)
	if _, err := interfaces.EncodeNetworkName(name); err != nil {
		return "", &RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}
	return name, nil
}

// statusCode maps client errors to HTTP status codes.
func statusCode(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case errors.Is(err, interfaces.ErrNetworkNotFound), errors.Is(err, interfaces.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrInvalidName), errors.Is(err, interfaces.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrTransport), errors.Is(err, interfaces.ErrTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err, "status", code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(&api.ErrorResponse{Kind: api.ErrorKind(err), Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
