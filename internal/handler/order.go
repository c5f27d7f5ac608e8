package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/order"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) error {
	var req order.CheckoutRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "address":
			req.Address, err = d.Str()
		case "phone":
			req.Phone, err = d.Str()
		case "paymentMethod":
			req.PaymentMethod, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	o, err := h.orders.Checkout(r.Context(), principal(r), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *o) })
	return nil
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) error {
	list, err := h.orders.ListMine(r.Context(), principal(r))
	if err != nil {
		return err
	}
	writeOrders(w, list)
	return nil
}

func (h *Handler) getMyOrder(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	o, err := h.orders.GetMine(r.Context(), principal(r), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *o) })
	return nil
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) error {
	list, err := h.orders.ListAll(r.Context(), principal(r))
	if err != nil {
		return err
	}
	writeOrders(w, list)
	return nil
}

func (h *Handler) getAnyOrder(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	o, err := h.orders.Get(r.Context(), principal(r), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *o) })
	return nil
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var raw string
	err = decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		raw, err = d.Str()
		return err
	})
	if err != nil {
		return err
	}
	if raw == "" {
		return apperr.Invalid("status is required")
	}
	status, err := order.ParseStatus(raw)
	if err != nil {
		return err
	}

	o, err := h.orders.UpdateStatus(r.Context(), principal(r), id, status)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *o) })
	return nil
}

func writeOrders(w http.ResponseWriter, list []order.Order) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, o := range list {
				encodeOrder(e, o)
			}
		})
	})
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Int64(o.UserID) })
		e.Field("userName", func(e *jx.Encoder) { e.Str(o.UserName) })
		e.Field("totalAmount", func(e *jx.Encoder) { encodeMoney(e, o.TotalAmount) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("paymentStatus", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		e.Field("address", func(e *jx.Encoder) { e.Str(o.Address) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(o.Phone) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeOrderItem(e, it)
				}
			})
		})
	})
}

func encodeOrderItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("productId", func(e *jx.Encoder) {
			if it.ProductID == nil {
				e.Null()
				return
			}
			e.Int64(*it.ProductID)
		})
		e.Field("productName", func(e *jx.Encoder) { e.Str(it.ProductName) })
		e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, it.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, it.Total()) })
	})
}
