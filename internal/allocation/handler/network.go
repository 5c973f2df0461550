package handler

import (
	"net/http"

	"leadrouter_backend/internal/allocation/network"
	"leadrouter_backend/internal/allocation/transport"
	"leadrouter_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) CreateCompany(c *gin.Context) {
	var req transport.CreateCompanyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	company, err := h.svc.Network.CreateCompany(c.Request.Context(), req.Name)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToCompanyResponse(company))
}

func (h *Handler) CreateStore(c *gin.Context) {
	var req transport.CreateStoreRequest
	if !h.bindJSON(c, &req) {
		return
	}

	store, err := h.svc.Network.CreateStore(c.Request.Context(), req.CompanyID, req.Name)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToStoreResponse(store))
}

func (h *Handler) GetStore(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	store, err := h.svc.Network.GetStore(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToStoreResponse(store))
}

func (h *Handler) DeleteStore(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Network.DeleteStore(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListLocations(c *gin.Context) {
	storeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	locs, err := h.svc.Network.ListStoreLocations(c.Request.Context(), storeID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLocationResponses(locs))
}

func (h *Handler) CreateLocation(c *gin.Context) {
	h.saveLocation(c, nil, http.StatusCreated)
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	locationID, ok := pathID(c, "locationId")
	if !ok {
		return
	}
	h.saveLocation(c, &locationID, http.StatusOK)
}

func (h *Handler) saveLocation(c *gin.Context, locationID *uuid.UUID, status int) {
	storeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.SaveLocationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	loc, err := h.svc.Network.SaveLocation(c.Request.Context(), network.LocationInput{
		ID:               locationID,
		StoreID:          storeID,
		Name:             req.Name,
		Latitude:         *req.Latitude,
		Longitude:        *req.Longitude,
		CoverageRadiusKm: req.CoverageRadiusKm,
		IsMain:           req.IsMain,
		IsActive:         req.IsActive,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, status, transport.ToLocationResponse(loc))
}

func (h *Handler) DeleteLocation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Network.DeleteLocation(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RegisterContract(c *gin.Context) {
	var req transport.RegisterContractRequest
	if !h.bindJSON(c, &req) {
		return
	}

	contract, err := h.svc.Network.RegisterContract(c.Request.Context(), req.Input())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToContractResponse(network.NewContractView(contract)))
}

func (h *Handler) GetContract(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.svc.Network.GetContract(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToContractResponse(view))
}

func (h *Handler) DeleteContract(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Network.DeleteContract(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}
