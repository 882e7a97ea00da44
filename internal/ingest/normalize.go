package ingest

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

type Classification string

const (
	ShapeNativeBatch     Classification = "native_batch"
	ShapePlatformProduct Classification = "platform_product"
	ShapeUnrecognized    Classification = "unrecognized"
)

var (
	ErrMalformedBody       = errors.New("request body is not valid JSON")
	ErrProductsMissing     = errors.New("products field is required")
	ErrProductsNotArray    = errors.New("products must be an array")
	ErrProductItemNotValid = errors.New("product item must be an object")
)

// Candidate is one normalized product plus any issues found while parsing
// it. Ref names the item in rejection messages.
type Candidate struct {
	Ref     string
	Product domain.CanonicalProduct
	Issues  []ValidationIssue
}

type Normalizer struct {
	DefaultCategory string
	DefaultCurrency string
}

// Normalize classifies body and converts it into candidates in input order.
// An unrecognized shape yields no candidates and no error unless the
// channel policy expects a products field.
func (n Normalizer) Normalize(body []byte, channel domain.SourceChannel) (Classification, []Candidate, error) {
	policy := PolicyFor(channel)

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		if policy.ExpectProducts {
			return ShapeUnrecognized, nil, ErrProductsMissing
		}
		return ShapeUnrecognized, nil, nil
	}

	if trimmed[0] == '[' {
		if policy.ExpectProducts {
			return ShapeUnrecognized, nil, ErrProductsMissing
		}
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return ShapeUnrecognized, nil, ErrMalformedBody
		}
		return ShapeNativeBatch, n.normalizeBatch(items, policy), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return ShapeUnrecognized, nil, ErrMalformedBody
	}

	if raw, ok := obj["products"]; ok {
		var items []json.RawMessage
		if isJSONArray(raw) && json.Unmarshal(raw, &items) == nil {
			return ShapeNativeBatch, n.normalizeBatch(items, policy), nil
		}
		if policy.ExpectProducts {
			return ShapeUnrecognized, nil, ErrProductsNotArray
		}
	} else if policy.ExpectProducts {
		return ShapeUnrecognized, nil, ErrProductsMissing
	}

	if looksLikePlatformProduct(obj) {
		c, err := n.normalizePlatformProduct(trimmed, policy)
		if err != nil {
			return ShapeUnrecognized, nil, ErrMalformedBody
		}
		return ShapePlatformProduct, []Candidate{c}, nil
	}

	return ShapeUnrecognized, nil, nil
}

func isJSONArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
