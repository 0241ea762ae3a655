package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marketfront/cart-service/internal/cart/application"
	"github.com/marketfront/cart-service/internal/cart/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Handler exposes the pricing ledger over JSON. Money crosses this boundary
// as decimals with two fractional digits; everything below is integer cents.
type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("cart-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/carts", h.createCart)
	r.Get("/carts/{cartID}", h.getCart)
	r.Post("/carts/{cartID}/items", h.addOrUpdateLine)
	r.Delete("/carts/{cartID}/items/{lineID}", h.removeLine)
	r.Put("/carts/{cartID}/adjustments", h.setAdjustments)
	r.Post("/carts/{cartID}/recompute", h.recomputeTotals)

	return r
}

type createCartReq struct {
	CustomerID string `json:"customerId"`
}

type addLineReq struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type adjustmentsReq struct {
	TaxAmount      float64 `json:"taxAmount"`
	ShippingAmount float64 `json:"shippingAmount"`
	DiscountAmount float64 `json:"discountAmount"`
}

type totalsResp struct {
	Subtotal       float64 `json:"subtotal"`
	TaxAmount      float64 `json:"taxAmount"`
	ShippingAmount float64 `json:"shippingAmount"`
	DiscountAmount float64 `json:"discountAmount"`
	TotalAmount    float64 `json:"totalAmount"`
}

type lineItemResp struct {
	ID          string  `json:"id"`
	CartID      string  `json:"cartId"`
	ProductID   string  `json:"productId"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
	ProductName string  `json:"productName"`
	ProductSKU  string  `json:"productSku"`
	StoreID     string  `json:"storeId"`
}

type cartResp struct {
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`
	Status     string `json:"status"`
	totalsResp
	Items []lineItemResp `json:"items"`
}

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCart")
	defer span.End()

	var req createCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &application.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	cart, err := h.service.CreateCart(ctx, req.CustomerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toCartResp(cart))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCart")
	defer span.End()

	cart, err := h.service.GetCart(ctx, chi.URLParam(r, "cartID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCartResp(cart))
}

func (h *Handler) addOrUpdateLine(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddOrUpdateLine")
	defer span.End()

	var req addLineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &application.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if req.UnitPrice < 0 {
		h.writeError(w, &application.ValidationError{Field: "unitPrice", Reason: "must not be negative"})
		return
	}

	item, totals, err := h.service.AddOrUpdateLine(ctx, chi.URLParam(r, "cartID"), req.ProductID, req.Quantity, domain.ToCents(req.UnitPrice))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"item":   toLineItemResp(item),
		"totals": toTotalsResp(totals),
	})
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RemoveLine")
	defer span.End()

	totals, err := h.service.RemoveLine(ctx, chi.URLParam(r, "cartID"), chi.URLParam(r, "lineID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"totals": toTotalsResp(totals),
	})
}

func (h *Handler) setAdjustments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SetAdjustments")
	defer span.End()

	var req adjustmentsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &application.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	totals, err := h.service.SetAdjustments(ctx, chi.URLParam(r, "cartID"), domain.Adjustments{
		TaxCents:      domain.ToCents(req.TaxAmount),
		ShippingCents: domain.ToCents(req.ShippingAmount),
		DiscountCents: domain.ToCents(req.DiscountAmount),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTotalsResp(totals))
}

func (h *Handler) recomputeTotals(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RecomputeTotals")
	defer span.End()

	totals, err := h.service.RecomputeTotals(ctx, chi.URLParam(r, "cartID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTotalsResp(totals))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("write response failed", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *application.ValidationError
	var serr *application.StoreError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, application.ErrCartNotFound),
		errors.Is(err, application.ErrProductNotFound),
		errors.Is(err, application.ErrLineNotFound):
		status = http.StatusNotFound
	case errors.As(err, &serr):
		h.log.Error("store failure", "op", serr.Op, "err", serr.Err)
		status = http.StatusBadGateway
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func toTotalsResp(t domain.CartTotals) totalsResp {
	return totalsResp{
		Subtotal:       domain.FromCents(t.SubtotalCents),
		TaxAmount:      domain.FromCents(t.TaxCents),
		ShippingAmount: domain.FromCents(t.ShippingCents),
		DiscountAmount: domain.FromCents(t.DiscountCents),
		TotalAmount:    domain.FromCents(t.TotalCents),
	}
}

func toLineItemResp(it domain.LineItem) lineItemResp {
	return lineItemResp{
		ID:          it.ID,
		CartID:      it.CartID,
		ProductID:   it.ProductID,
		Quantity:    it.Quantity,
		UnitPrice:   domain.FromCents(it.UnitPriceCents),
		TotalPrice:  domain.FromCents(it.TotalPriceCents),
		ProductName: it.ProductName,
		ProductSKU:  it.ProductSKU,
		StoreID:     it.StoreID,
	}
}

func toCartResp(c domain.Cart) cartResp {
	items := make([]lineItemResp, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, toLineItemResp(it))
	}
	return cartResp{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		Status:     string(c.Status),
		totalsResp: totalsResp{
			Subtotal:       domain.FromCents(c.SubtotalCents),
			TaxAmount:      domain.FromCents(c.TaxCents),
			ShippingAmount: domain.FromCents(c.ShippingCents),
			DiscountAmount: domain.FromCents(c.DiscountCents),
			TotalAmount:    domain.FromCents(c.TotalCents),
		},
		Items: items,
	}
}
