package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/banner"
	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/product"
)

// --- Products ---

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) error {
	f, err := parseProductFilter(r)
	if err != nil {
		return err
	}
	page, err := h.products.List(r.Context(), f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("content", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, p := range page.Content {
						h.encodeProduct(e, p)
					}
				})
			})
			e.Field("totalElements", func(e *jx.Encoder) { e.Int(page.TotalElements) })
			e.Field("totalPages", func(e *jx.Encoder) { e.Int(page.TotalPages) })
			e.Field("size", func(e *jx.Encoder) { e.Int(page.Size) })
			e.Field("number", func(e *jx.Encoder) { e.Int(page.Number) })
		})
	})
	return nil
}

func parseProductFilter(r *http.Request) (product.Filter, error) {
	q := r.URL.Query()
	f := product.Filter{Search: q.Get("search")}

	ints := []struct {
		name string
		dst  *int
	}{
		{"page", &f.Page},
		{"size", &f.Size},
	}
	for _, p := range ints {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, apperr.Invalid("invalid %s %q", p.name, v)
			}
			*p.dst = n
		}
	}
	if v := q.Get("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, apperr.Invalid("invalid category %q", v)
		}
		f.CategoryID = id
	}
	for name, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		if v := q.Get(name); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return f, apperr.Invalid("invalid %s %q", name, v)
			}
			*dst = &d
		}
	}
	return f, nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
	return nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) error {
	in, err := decodeProductInput(r)
	if err != nil {
		return err
	}
	p, err := h.products.Create(r.Context(), principal(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
	return nil
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	in, err := decodeProductInput(r)
	if err != nil {
		return err
	}
	p, err := h.products.Update(r.Context(), principal(r), id, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
	return nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := h.products.Delete(r.Context(), principal(r), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func decodeProductInput(r *http.Request) (product.Input, error) {
	var in product.Input
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			in.Name, err = d.Str()
		case "description":
			in.Description, err = d.Str()
		case "price":
			in.Price, err = decodeDecimal(d)
		case "stock":
			in.Stock, err = d.Int()
		case "imageUrl":
			in.ImageURL, err = d.Str()
		case "categoryId":
			in.CategoryID, err = decodeOptInt64(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(h.imageURL(p.ImageURL)) })
		e.Field("category", func(e *jx.Encoder) {
			if p.Category == nil {
				e.Null()
				return
			}
			encodeCategory(e, *p.Category)
		})
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, p.UpdatedAt) })
	})
}

// --- Categories ---

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) error {
	list, err := h.categories.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range list {
				encodeCategory(e, c)
			}
		})
	})
	return nil
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	c, err := h.categories.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCategory(e, *c) })
	return nil
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) error {
	name, err := decodeCategoryName(r)
	if err != nil {
		return err
	}
	c, err := h.categories.Create(r.Context(), principal(r), name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCategory(e, *c) })
	return nil
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	name, err := decodeCategoryName(r)
	if err != nil {
		return err
	}
	c, err := h.categories.Update(r.Context(), principal(r), id, name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCategory(e, *c) })
	return nil
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := h.categories.Delete(r.Context(), principal(r), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func decodeCategoryName(r *http.Request) (string, error) {
	var name string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "name" {
			return d.Skip()
		}
		var err error
		name, err = d.Str()
		return err
	})
	return name, err
}

func encodeCategory(e *jx.Encoder, c category.Category) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
	})
}

// --- Hero banners ---

func (h *Handler) listActiveBanners(w http.ResponseWriter, r *http.Request) error {
	list, err := h.banners.ListActive(r.Context())
	if err != nil {
		return err
	}
	h.writeBanners(w, list)
	return nil
}

func (h *Handler) listAllBanners(w http.ResponseWriter, r *http.Request) error {
	list, err := h.banners.ListAll(r.Context(), principal(r))
	if err != nil {
		return err
	}
	h.writeBanners(w, list)
	return nil
}

func (h *Handler) getBanner(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	b, err := h.banners.Get(r.Context(), principal(r), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeBanner(e, *b) })
	return nil
}

func (h *Handler) createBanner(w http.ResponseWriter, r *http.Request) error {
	in, err := decodeBannerInput(r)
	if err != nil {
		return err
	}
	b, err := h.banners.Create(r.Context(), principal(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeBanner(e, *b) })
	return nil
}

func (h *Handler) updateBanner(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	in, err := decodeBannerInput(r)
	if err != nil {
		return err
	}
	b, err := h.banners.Update(r.Context(), principal(r), id, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeBanner(e, *b) })
	return nil
}

func (h *Handler) deleteBanner(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := h.banners.Delete(r.Context(), principal(r), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func decodeBannerInput(r *http.Request) (banner.Input, error) {
	var in banner.Input
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "imageUrl":
			in.ImageURL, err = d.Str()
		case "title":
			in.Title, err = d.Str()
		case "subtitle":
			in.Subtitle, err = d.Str()
		case "displayOrder":
			in.DisplayOrder, err = decodeOptInt(d)
		case "isActive":
			in.Active, err = decodeOptBool(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func (h *Handler) writeBanners(w http.ResponseWriter, list []banner.Banner) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, b := range list {
				h.encodeBanner(e, b)
			}
		})
	})
}

func (h *Handler) encodeBanner(e *jx.Encoder, b banner.Banner) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(b.ID) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(h.imageURL(b.ImageURL)) })
		e.Field("title", func(e *jx.Encoder) { e.Str(b.Title) })
		e.Field("subtitle", func(e *jx.Encoder) { e.Str(b.Subtitle) })
		e.Field("displayOrder", func(e *jx.Encoder) { e.Int(b.DisplayOrder) })
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(b.Active) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, b.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, b.UpdatedAt) })
	})
}
