package registry

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/contexthub-project/contexthub/internal/api"
	"github.com/contexthub-project/contexthub/internal/memory"
	"github.com/contexthub-project/contexthub/internal/permission"
	"github.com/contexthub-project/contexthub/internal/provider"
	"github.com/contexthub-project/contexthub/internal/result"
	"github.com/contexthub-project/contexthub/internal/writeback"
)

// Handler exposes the registry over HTTP.
type Handler struct {
	reg      *Registry
	factory  *provider.Factory
	validate *validator.Validate
}

func NewHandler(reg *Registry, factory *provider.Factory) *Handler {
	return &Handler{
		reg:      reg,
		factory:  factory,
		validate: validator.New(),
	}
}

type registerProviderRequest struct {
	Record            provider.Record `json:"record" validate:"required"`
	Domain            string          `json:"domain" validate:"required,min=1,max=255"`
	Writable          bool            `json:"writable"`
	AllowedAgentTypes []string        `json:"allowed_agent_types,omitempty"`
	// Memories seeds a fixed in-memory source. Absent, the provider reads
	// from the shared key-value store.
	Memories []memory.Memory `json:"memories,omitempty" validate:"omitempty,dive"`
}

type contextQueryRequest struct {
	ProviderID string         `json:"provider_id,omitempty"`
	Options    memory.Options `json:"options"`
}

type provideContextRequest struct {
	ProviderID string                 `json:"provider_id,omitempty"`
	Context    writeback.AgentContext `json:"context" validate:"required"`
	Options    writeback.PutOptions   `json:"options"`
}

type contributeMemoryRequest struct {
	ProviderID string          `json:"provider_id,omitempty"`
	Source     string          `json:"source" validate:"required,min=1"`
	Memories   []memory.Memory `json:"memories" validate:"required,min=1,dive"`
}

type permissionRequest struct {
	ProviderID string `json:"provider_id,omitempty"`
	AppID      string `json:"app_id" validate:"required,min=1"`
	AppName    string `json:"app_name,omitempty"`
	Domain     string `json:"domain,omitempty"`
	WantRead   bool   `json:"want_read"`
	WantWrite  bool   `json:"want_write"`
}

type revokePermissionRequest struct {
	ProviderID string `json:"provider_id,omitempty"`
	Domain     string `json:"domain,omitempty"`
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.reg.Providers())
}

func (h *Handler) RegisterProvider(w http.ResponseWriter, r *http.Request) {
	var req registerProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	var src provider.Source
	if len(req.Memories) > 0 {
		src = &provider.StaticSource{Memories: req.Memories}
	}

	p := h.factory.Build(provider.Definition{
		Record:            req.Record,
		Domain:            req.Domain,
		Writable:          req.Writable,
		AllowedAgentTypes: req.AllowedAgentTypes,
		Source:            src,
	})
	h.reg.Register(r.Context(), p)

	api.JSON(w, http.StatusCreated, p.Record())
}

func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	p, ok := h.reg.Provider(providerID)
	if !ok {
		api.HandleError(w, api.NewNotFoundError("provider not registered"))
		return
	}
	api.JSON(w, http.StatusOK, p.Record())
}

func (h *Handler) UnregisterProvider(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	if !h.reg.Unregister(r.Context(), providerID) {
		api.HandleError(w, api.NewNotFoundError("provider not registered"))
		return
	}
	api.JSONMessage(w, http.StatusOK, "provider unregistered")
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.reg.Status(r.Context()))
}

func (h *Handler) Installation(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.reg.Installation())
}

func (h *Handler) QueryContext(w http.ResponseWriter, r *http.Request) {
	var req contextQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req.Options); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	res := h.reg.GetContext(r.Context(), req.Options, req.ProviderID)
	api.JSONRaw(w, statusFor(res.Success, res.Error), res)
}

func (h *Handler) AggregateContext(w http.ResponseWriter, r *http.Request) {
	var req contextQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req.Options); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	res := h.reg.GetAggregatedContext(r.Context(), req.Options)
	api.JSONRaw(w, statusFor(res.Success, res.Error), res)
}

func (h *Handler) ProvideContext(w http.ResponseWriter, r *http.Request) {
	var req provideContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	res := h.reg.ProvideContext(r.Context(), req.Context, req.Options, req.ProviderID)
	api.JSONRaw(w, writeStatus(res), res)
}

func (h *Handler) ContributeMemory(w http.ResponseWriter, r *http.Request) {
	var req contributeMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	res := h.reg.ContributeMemory(r.Context(), req.Memories, req.Source, req.ProviderID)
	api.JSONRaw(w, writeStatus(res), res)
}

// GetPermissions answers "is permission granted" for a provider (the
// first-registered one when provider_id is absent) and domain. Unknown
// providers read as not granted rather than an error.
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider_id")
	domain := r.URL.Query().Get("domain")
	granted := h.reg.Granted(r.Context(), providerID, domain)
	api.JSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (h *Handler) RequestPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	res, err := h.reg.RequestPermission(r.Context(), permission.AppInfo{
		AppID:     req.AppID,
		AppName:   req.AppName,
		Domain:    req.Domain,
		WantRead:  req.WantRead,
		WantWrite: req.WantWrite,
	}, req.ProviderID)
	if err != nil {
		slog.Error("requesting permission", "provider_id", req.ProviderID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, res)
}

func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	var req revokePermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	revoked, err := h.reg.RevokePermission(r.Context(), req.ProviderID, req.Domain)
	if err != nil {
		slog.Error("revoking permission", "provider_id", req.ProviderID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

func statusFor(success bool, err *result.Error) int {
	if success {
		return http.StatusOK
	}
	if err == nil {
		return http.StatusInternalServerError
	}
	return api.StatusForCode(err.Code)
}

func writeStatus(res provider.WriteResult) int {
	if res.Success {
		return http.StatusCreated
	}
	if res.Error == nil {
		return http.StatusInternalServerError
	}
	return api.StatusForCode(res.Error.Code)
}
