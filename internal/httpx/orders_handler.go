package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopcore/storefront-orders/internal/orders"
	"github.com/shopcore/storefront-orders/internal/redisx"
)

type OrdersHandler struct {
	Service *orders.Service
	Redis   *redis.Client
	Log     *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Get("/orders/pending/count", h.pendingCount)
}

type itemReq struct {
	ProductID     string `json:"product_id"`
	Quantity      *int   `json:"quantity"` // nil means 1
	PriceCents    int    `json:"price_cents"`
	SelectedColor string `json:"selected_color"`
	SelectedSize  string `json:"selected_size"`
}

type createOrderReq struct {
	UserID                   string    `json:"user_id"`
	ShippingAddress          string    `json:"shipping_address"`
	CustomerName             string    `json:"customer_name"`
	Phone                    string    `json:"phone"`
	Email                    string    `json:"email"`
	PaymentMethod            string    `json:"payment_method"`
	PaymentInfo              string    `json:"payment_info"`
	CouponCode               string    `json:"coupon_code"`
	Items                    []itemReq `json:"items"`
	TotalCents               int       `json:"total_cents"`
	DiscountCents            int       `json:"discount_cents"`
	TaxCents                 int       `json:"tax_cents"`
	NetTotalCents            int       `json:"net_total_cents"`
	DeliveryChargeCents      int       `json:"delivery_charge_cents"`
	ExtraDeliveryChargeCents int       `json:"extra_delivery_charge_cents"`
}

type updateStatusReq struct {
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	PaymentInfo   string `json:"payment_info"`
}

type itemResp struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	PriceCents    int    `json:"price_cents"`
	SelectedColor string `json:"selected_color,omitempty"`
	SelectedSize  string `json:"selected_size,omitempty"`
}

type orderResp struct {
	ID                       string     `json:"id"`
	UserID                   string     `json:"user_id,omitempty"`
	Status                   string     `json:"status"`
	StockDeducted            bool       `json:"stock_deducted"`
	TotalCents               int        `json:"total_cents"`
	DiscountCents            int        `json:"discount_cents"`
	TaxCents                 int        `json:"tax_cents"`
	NetTotalCents            int        `json:"net_total_cents"`
	DeliveryChargeCents      int        `json:"delivery_charge_cents"`
	ExtraDeliveryChargeCents int        `json:"extra_delivery_charge_cents"`
	CustomerName             string     `json:"customer_name,omitempty"`
	Phone                    string     `json:"phone,omitempty"`
	Email                    string     `json:"email,omitempty"`
	ShippingAddress          string     `json:"shipping_address"`
	PaymentMethod            string     `json:"payment_method"`
	CouponCode               string     `json:"coupon_code,omitempty"`
	Items                    []itemResp `json:"items"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

func toOrderResp(o orders.Order, items []orders.OrderItem) orderResp {
	out := orderResp{
		ID:                       o.ID,
		UserID:                   o.UserID,
		Status:                   string(o.Status),
		StockDeducted:            o.StockDeducted,
		TotalCents:               o.TotalCents,
		DiscountCents:            o.DiscountCents,
		TaxCents:                 o.TaxCents,
		NetTotalCents:            o.NetTotalCents,
		DeliveryChargeCents:      o.DeliveryChargeCents,
		ExtraDeliveryChargeCents: o.ExtraDeliveryChargeCents,
		CustomerName:             o.CustomerName,
		Phone:                    o.Phone,
		Email:                    o.Email,
		ShippingAddress:          o.ShippingAddress,
		PaymentMethod:            o.PaymentMethod,
		CouponCode:               o.CouponCode,
		Items:                    make([]itemResp, 0, len(items)),
		CreatedAt:                o.CreatedAt,
		UpdatedAt:                o.UpdatedAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, itemResp{
			ProductID:     it.ProductID,
			Quantity:      it.Qty,
			PriceCents:    it.PriceCents,
			SelectedColor: it.SelectedColor,
			SelectedSize:  it.SelectedSize,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	var invalid *orders.InvalidOrderDataError
	var notFound *orders.ProductNotFoundError
	var insufficient *orders.InsufficientStockError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code": "INVALID_ORDER_DATA", "error": invalid.Error(),
		})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"code": "PRODUCT_NOT_FOUND", "error": notFound.Error(), "product_id": notFound.ProductID,
		})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]string{
			"code": "INSUFFICIENT_STOCK", "error": insufficient.Error(),
			"product_id": insufficient.ProductID, "product_name": insufficient.ProductName,
		})
	case errors.Is(err, orders.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"code": "ORDER_NOT_FOUND", "error": err.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code": "INVALID_ORDER_DATA", "error": "invalid json",
		})
		return
	}

	in := orders.CreateOrderInput{
		UserID:                   req.UserID,
		TotalCents:               req.TotalCents,
		DiscountCents:            req.DiscountCents,
		TaxCents:                 req.TaxCents,
		DeliveryChargeCents:      req.DeliveryChargeCents,
		ExtraDeliveryChargeCents: req.ExtraDeliveryChargeCents,
		NetTotalCents:            req.NetTotalCents,
		CustomerName:             req.CustomerName,
		Phone:                    req.Phone,
		Email:                    req.Email,
		ShippingAddress:          req.ShippingAddress,
		PaymentMethod:            req.PaymentMethod,
		PaymentInfo:              req.PaymentInfo,
		CouponCode:               req.CouponCode,
	}
	for _, it := range req.Items {
		qty := 1
		if it.Quantity != nil {
			// explicit values pass through untouched; the validator
			// rejects non-positive ones instead of coercing silently
			qty = *it.Quantity
		}
		in.Items = append(in.Items, orders.ItemInput{
			ProductID:     it.ProductID,
			Qty:           qty,
			PriceCents:    it.PriceCents,
			SelectedColor: it.SelectedColor,
			SelectedSize:  it.SelectedSize,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, items, err := h.Service.CreateOrder(ctx, in)
	if err != nil {
		recordOrderCreated("rejected")
		writeErr(w, err)
		return
	}
	recordOrderCreated("created")

	h.cacheOrder(ctx, order, items)
	h.invalidatePendingCount(ctx)

	writeJSON(w, http.StatusCreated, toOrderResp(order, items))
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code": "INVALID_ORDER_DATA", "error": "invalid json",
		})
		return
	}
	status, ok := orders.ParseStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code": "INVALID_ORDER_DATA", "error": fmt.Sprintf("unknown status %q", req.Status),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Service.UpdateStatus(ctx, orderID, status, req.PaymentMethod, req.PaymentInfo)
	if err != nil {
		writeErr(w, err)
		return
	}

	items, _ := h.fetchItems(ctx, order.ID)
	h.cacheOrder(ctx, order, items)
	h.invalidatePendingCount(ctx)

	writeJSON(w, http.StatusOK, toOrderResp(order, items))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first, DB as fallback
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.cacheGet(ctx, key); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	order, items, err := h.Service.GetOrder(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheOrder(ctx, order, items)
	writeJSON(w, http.StatusOK, toOrderResp(order, items))
}

func (h *OrdersHandler) pendingCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if s, err := h.cacheGet(ctx, redisx.KeyPendingCount); err == nil && s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			writeJSON(w, http.StatusOK, map[string]int{"pending": n})
			return
		}
	}

	n, err := h.Service.PendingCount(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, redisx.KeyPendingCount, strconv.Itoa(n), redisx.TTLPendingCount).Err()
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": n})
}

func (h *OrdersHandler) fetchItems(ctx context.Context, orderID string) ([]orders.OrderItem, error) {
	_, items, err := h.Service.GetOrder(ctx, orderID)
	return items, err
}

// cacheGet returns "" when no cache is configured.
func (h *OrdersHandler) cacheGet(ctx context.Context, key string) (string, error) {
	if h.Redis == nil {
		return "", nil
	}
	return h.Redis.Get(ctx, key).Result()
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o orders.Order, items []orders.OrderItem) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(toOrderResp(o, items))
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Debug("order cache set failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (h *OrdersHandler) invalidatePendingCount(ctx context.Context) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, redisx.KeyPendingCount).Err()
}
