// Package credentials - HTTP handlers for credential management API
package credentials

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/api"
	"github.com/google/uuid"
)

// Handler provides HTTP handlers for operational credential management:
// committee provider API keys and the accounting API's refresh token.
// These endpoints are operator tooling, not part of the Ingress API surface
// in §4.1 — they exist so a deployment can rotate keys without a redeploy.
type Handler struct {
	store *Store
}

// NewHandler creates a new credential handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers credential API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/credentials/status", h.handleStatus)
	mux.HandleFunc("POST /api/v1/credentials/{provider}", h.handleStoreAPIKey)
	mux.HandleFunc("DELETE /api/v1/credentials/{provider}", h.handleDeleteAPIKey)
	mux.HandleFunc("POST /api/v1/credentials/accounting/refresh-token", h.handleStoreAccountingToken)
}

func getOperatorID(r *http.Request) string {
	if id := r.Header.Get("X-Operator-ID"); id != "" {
		return id
	}
	return "default-operator"
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	operatorID := getOperatorID(r)

	statuses, err := h.store.GetStatus(r.Context(), operatorID)
	if err != nil {
		api.WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statuses)
}

// APIKeyRequest represents an API-key storage request for a committee provider.
type APIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

var apiKeyProviders = map[string]ProviderType{
	"openai":    ProviderOpenAI,
	"anthropic": ProviderAnthropic,
	"google":    ProviderGoogle,
	"deepseek":  ProviderDeepSeek,
	"xai":       ProviderXAI,
}

func (h *Handler) handleStoreAPIKey(w http.ResponseWriter, r *http.Request) {
	provider, ok := apiKeyProviders[r.PathValue("provider")]
	if !ok {
		api.WriteNotFound(w, "unknown provider")
		return
	}

	var req APIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.APIKey == "" {
		api.WriteBadRequest(w, "apiKey is required")
		return
	}

	cred := &Credential{
		ID:          uuid.New().String(),
		OperatorID:  getOperatorID(r),
		Provider:    provider,
		TokenType:   TokenTypeApiKey,
		AccessToken: req.APIKey,
	}

	if err := h.store.SaveCredential(r.Context(), cred); err != nil {
		api.WriteInternal(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	provider, ok := apiKeyProviders[r.PathValue("provider")]
	if !ok {
		api.WriteNotFound(w, "unknown provider")
		return
	}

	if err := h.store.DeleteCredential(r.Context(), getOperatorID(r), provider); err != nil {
		api.WriteInternal(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshTokenRequest seeds the accounting API's OAuth refresh token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) handleStoreAccountingToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		api.WriteBadRequest(w, "refreshToken is required")
		return
	}

	cred := &Credential{
		ID:           uuid.New().String(),
		OperatorID:   getOperatorID(r),
		Provider:     ProviderAccounting,
		TokenType:    TokenTypeBearer,
		RefreshToken: req.RefreshToken,
	}

	if err := h.store.SaveCredential(r.Context(), cred); err != nil {
		slog.Error("failed to save accounting refresh token", "error", err)
		api.WriteInternal(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
