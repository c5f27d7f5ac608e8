package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encode(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeObject reads a JSON object from the request body and calls field
// for every key. Unknown keys must be skipped by field.
func decodeObject(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	d := jx.Decode(io.LimitReader(r.Body, maxBodySize), 512)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if err := field(d, string(key)); err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Invalid("malformed request body: %s", err)
}

// decodeDecimal accepts a JSON number or string and parses it exactly.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.New("expected number or string")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, apperr.Invalid("invalid decimal %q", raw)
	}
	return v, nil
}

// decodeOptInt decodes an integer or null. Null yields nil.
func decodeOptInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptBool(d *jx.Decoder) (*bool, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Bool()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// encodeMoney writes a fixed-point amount with two decimals.
func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeError(e *jx.Encoder, status int, msg string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
}
