package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hivemachines/account-provisioner/interfaces"
	"github.com/hivemachines/account-provisioner/metrics"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler processes the gateway's public API requests. It owns no business
// logic; requests are decoded, handed to the provisioner or machine checker
// and their outcomes mapped to HTTP responses.
type Handler struct {
	provisioner interfaces.Provisioner
	machines    interfaces.MachineChecker
	log         *slog.Logger
}

// NewHandler creates a Handler. machines may be nil, in which case the
// standalone ownership endpoint reports an unavailable collaborator.
func NewHandler(provisioner interfaces.Provisioner, machines interfaces.MachineChecker, log *slog.Logger) *Handler {
	return &Handler{
		provisioner: provisioner,
		machines:    machines,
		log:         log,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type createAccountResponse struct {
	Success bool                   `json:"success"`
	Result  json.RawMessage        `json:"result"`
	Keys    interfaces.AccountKeys `json:"keys"`
}

type checkMachineRequest struct {
	Address string `json:"address"`
}

type checkMachineResponse struct {
	OwnsBTCMachine bool `json:"ownsBTCMachine"`
}

// HandleCreateAccount serves POST /create-account.
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req interfaces.ProvisioningRequest
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, interfaces.ErrInvalidRequest.Error())
		return
	}

	result, err := h.provisioner.Provision(r.Context(), req)
	if err != nil {
		if interfaces.IsUserError(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
		} else {
			h.log.Error("Provisioning failed", "err", err)
			h.writeError(w, http.StatusInternalServerError, interfaces.ErrExternalService.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, createAccountResponse{
		Success: true,
		Result:  result.Receipt,
		Keys:    result.Credentials.PrivateKeys(),
	})
}

// HandleCheckMachine serves POST /check-btc-machine.
func (h *Handler) HandleCheckMachine(w http.ResponseWriter, r *http.Request) {
	var req checkMachineRequest
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil || req.Address == "" {
		h.writeError(w, http.StatusBadRequest, "Address is required")
		return
	}

	metrics.MachineChecks.Inc()

	if h.machines == nil {
		h.writeError(w, http.StatusInternalServerError, "machine registry not configured")
		return
	}

	owns, err := h.machines.OwnsMachine(r.Context(), interfaces.BTCAddress(req.Address))
	if err != nil {
		h.log.Error("Machine ownership lookup failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, interfaces.ErrExternalService.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, checkMachineResponse{OwnsBTCMachine: owns})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Failed to write response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
