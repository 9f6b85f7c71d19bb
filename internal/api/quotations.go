package api

import (
	"net/http"

	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createQuotationRequest(c *gin.Context) {
	var in service.CreateQuotationRequestInput
	if !bind(c, &in) {
		return
	}
	req, err := h.quotations.CreateQuotationRequest(c.Request.Context(), callerFrom(c).ID, &in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, req, "quotation request created")
}

func (h *Handler) listCustomerRequests(c *gin.Context) {
	reqs, err := h.quotations.ListCustomerRequests(c.Request.Context(), callerFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, reqs, "")
}

func (h *Handler) getQuotationRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, err := h.quotations.GetQuotationRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, req, "")
}

func (h *Handler) getQuotationRequestItems(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.quotations.GetQuotationRequestItems(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, items, "")
}

type hasRespondedResponse struct {
	QuotationRequestID int64 `json:"quotation_request_id"`
	HasResponded       bool  `json:"has_responded"`
}

func (h *Handler) hasResponded(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	responded, err := h.quotations.HasDistributorResponded(c.Request.Context(), id, callerFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, hasRespondedResponse{QuotationRequestID: id, HasResponded: responded}, "")
}

func (h *Handler) getMyResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.quotations.GetDistributorResponse(c.Request.Context(), id, callerFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, resp, "")
}

func (h *Handler) getComparison(c *gin.Context) {
	id, ok := pathID(c, "requestId")
	if !ok {
		return
	}
	comparison, err := h.quotations.GetQuotationComparison(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, comparison, "")
}

func (h *Handler) listDistributorRequests(c *gin.Context) {
	views, err := h.quotations.ListDistributorRequests(c.Request.Context(), callerFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, views, "")
}

func (h *Handler) submitQuotationResponse(c *gin.Context) {
	var in service.SubmitQuotationResponseInput
	if !bind(c, &in) {
		return
	}
	resp, err := h.quotations.SubmitQuotationResponse(c.Request.Context(), callerFrom(c).ID, &in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, resp, "quotation response submitted")
}

func (h *Handler) getQuotationResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.quotations.GetQuotationResponse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, resp, "")
}

func (h *Handler) updateQuotationResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in service.UpdateQuotationResponseInput
	if !bind(c, &in) {
		return
	}
	resp, err := h.quotations.UpdateQuotationResponse(c.Request.Context(), id, callerFrom(c).ID, &in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, resp, "quotation response updated")
}

func (h *Handler) acceptQuotation(c *gin.Context) {
	var in service.AcceptQuotationInput
	if !bind(c, &in) {
		return
	}
	order, err := h.quotations.AcceptQuotation(c.Request.Context(), in.QuotationResponseID, callerFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, order, "quotation accepted, order created")
}

func (h *Handler) cancelQuotationRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.quotations.CancelQuotationRequest(c.Request.Context(), id, callerFrom(c).ID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "quotation request cancelled")
}
