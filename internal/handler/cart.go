package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/cart"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) error {
	v, err := h.carts.View(r.Context(), principal(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(v.CartID) })
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, it := range v.Items {
						h.encodeCartItem(e, it)
					}
				})
			})
			e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, v.Subtotal) })
			e.Field("total", func(e *jx.Encoder) { encodeMoney(e, v.Total) })
		})
	})
	return nil
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) error {
	var (
		productID  int64
		quantity   int
		hasProduct bool
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			productID, err = d.Int64()
			hasProduct = true
		case "quantity":
			quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	if !hasProduct {
		return apperr.Invalid("productId is required")
	}

	it, err := h.carts.AddItem(r.Context(), principal(r), productID, quantity)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCartItem(e, *it) })
	return nil
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var quantity int
	err = decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		quantity, err = d.Int()
		return err
	})
	if err != nil {
		return err
	}

	it, err := h.carts.UpdateItem(r.Context(), principal(r), id, quantity)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCartItem(e, *it) })
	return nil
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := h.carts.RemoveItem(r.Context(), principal(r), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) error {
	if err := h.carts.Clear(r.Context(), principal(r)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) encodeCartItem(e *jx.Encoder, it cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("product", func(e *jx.Encoder) { h.encodeProduct(e, it.Product) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("itemTotal", func(e *jx.Encoder) { encodeMoney(e, it.Total()) })
	})
}
