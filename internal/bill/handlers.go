package bill

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/erp-billing/internal/billing"
	"github.com/noah-isme/erp-billing/internal/common"
)

const maxBodyBytes = 1 << 20

// Handler exposes bill endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the bill endpoints. limitInvoice wraps the invoice routes and
// may be nil.
func (h *Handler) Routes(r chi.Router, limitInvoice func(http.Handler) http.Handler) {
	r.Post("/bills/price", h.Price)
	r.Get("/bills", h.List)
	r.Post("/bills", h.Create)
	r.Get("/bills/{id}", h.Get)
	r.Put("/bills/{id}", h.Update)
	r.Delete("/bills/{id}", h.Delete)
	r.Group(func(r chi.Router) {
		if limitInvoice != nil {
			r.Use(limitInvoice)
		}
		r.Get("/bills/{id}/invoice", h.Invoice)
		r.Get("/bills/{id}/invoice.pdf", h.InvoicePDF)
	})
}

// Price handles POST /api/v1/bills/price.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, h.service.Price(r.Context(), draft))
}

// List handles GET /api/v1/bills.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), common.ParsePageQuery(r, 20, 100))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, page)
}

// Get handles GET /api/v1/bills/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, b)
}

// Create handles POST /api/v1/bills.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	saved, err := h.service.Create(r.Context(), draft)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if saved.ID != "" {
		w.Header().Set("Location", "/api/v1/bills/"+saved.ID)
	}
	common.JSON(w, http.StatusCreated, saved)
}

// Update handles PUT /api/v1/bills/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	saved, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, saved)
}

// Delete handles DELETE /api/v1/bills/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invoice handles GET /api/v1/bills/{id}/invoice.
func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Invoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, doc)
}

// InvoicePDF handles GET /api/v1/bills/{id}/invoice.pdf.
func (h *Handler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	data, doc, err := h.service.InvoicePDF(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	disposition := "inline"
	if strings.EqualFold(r.URL.Query().Get("download"), "true") {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.InvoiceNumber + ".pdf"}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (billing.Bill, bool) {
	var draft billing.Bill
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&draft); err != nil {
		common.WriteError(w, common.BadRequest("invalid request body", err))
		return billing.Bill{}, false
	}
	return draft, true
}
