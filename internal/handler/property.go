// Package handler contains HTTP handlers for the Fixlens API.
//
// This file implements property management endpoints. Property creation is
// the capacity-limited operation; the service rejects it when the tier's
// slot count is exhausted.
//
// Routes handled:
//   - POST   /api/properties      -> Create
//   - GET    /api/properties      -> List
//   - GET    /api/properties/{id} -> GetByID
//   - DELETE /api/properties/{id} -> Delete
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fixlens/fixlens/internal/auth"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/service"
	"github.com/google/uuid"
)

// PropertyHandler handles property management HTTP requests.
type PropertyHandler struct {
	properties service.PropertyService
	logger     *slog.Logger
}

// NewPropertyHandler creates a new PropertyHandler.
func NewPropertyHandler(properties service.PropertyService, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		logger:     logger,
	}
}

// RegisterRoutes registers property routes on the provided mux.
// All routes require an authenticated user.
func (h *PropertyHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/properties", requireUser(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/properties", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/properties/{id}", requireUser(http.HandlerFunc(h.GetByID)))
	mux.Handle("DELETE /api/properties/{id}", requireUser(http.HandlerFunc(h.Delete)))
}

// PropertyResponse is the public representation of a property.
type PropertyResponse struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func propertyResponse(p *domain.Property) PropertyResponse {
	return PropertyResponse{
		ID:        p.ID.String(),
		Label:     p.Label,
		Address:   p.Address,
		CreatedAt: p.CreatedAt,
	}
}

type createPropertyRequest struct {
	Label   string `json:"label"`
	Address string `json:"address,omitempty"`
}

// Create registers a new property against the user's capacity allowance.
func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req createPropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	property, err := h.properties.Create(r.Context(), domain.CreatePropertyParams{
		UserID:  user.ID,
		Label:   req.Label,
		Address: req.Address,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"property": propertyResponse(property)})
}

// List returns the user's properties.
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	properties, err := h.properties.List(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]PropertyResponse, 0, len(properties))
	for i := range properties {
		items = append(items, propertyResponse(&properties[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"properties": items})
}

// GetByID returns a single property owned by the user.
func (h *PropertyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("PropertyHandler.GetByID", "Invalid property ID"))
		return
	}

	property, err := h.properties.GetByID(r.Context(), id, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"property": propertyResponse(property)})
}

// Delete removes a property and frees its capacity slot.
func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("PropertyHandler.Delete", "Invalid property ID"))
		return
	}

	if err := h.properties.Delete(r.Context(), id, user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
