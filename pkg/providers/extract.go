package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldExtractor returns an Extractor reading the integer at the given JSON object path.
func FieldExtractor(path ...string) Extractor {
	return func(raw []byte) (int64, error) {
		doc, err := decodeJSON(raw)
		if err != nil {
			return 0, err
		}
		v, err := lookupPath(doc, path)
		if err != nil {
			return 0, err
		}
		return toInt64(v, strings.Join(path, "."))
	}
}

// SumExtractor returns an Extractor that walks listPath to an array and sums
// the integer found at itemPath inside each element.
func SumExtractor(listPath, itemPath []string) Extractor {
	return func(raw []byte) (int64, error) {
		doc, err := decodeJSON(raw)
		if err != nil {
			return 0, err
		}
		v, err := lookupPath(doc, listPath)
		if err != nil {
			return 0, err
		}
		items, ok := v.([]any)
		if !ok {
			return 0, fmt.Errorf("field %q is not a list", strings.Join(listPath, "."))
		}

		var total int64
		for i, item := range items {
			fv, err := lookupPath(item, itemPath)
			if err != nil {
				return 0, fmt.Errorf("item %d: %w", i, err)
			}
			n, err := toInt64(fv, strings.Join(itemPath, "."))
			if err != nil {
				return 0, fmt.Errorf("item %d: %w", i, err)
			}
			if n > math.MaxInt64-total {
				return 0, fmt.Errorf("sum of %q overflows at item %d", strings.Join(itemPath, "."), i)
			}
			total += n
		}
		return total, nil
	}
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json payload: %w", err)
	}
	return doc, nil
}

func lookupPath(doc any, path []string) (any, error) {
	cur := doc
	for i, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q is not an object", strings.Join(path[:i], "."))
		}
		next, ok := obj[key]
		if !ok || next == nil {
			return nil, fmt.Errorf("missing field %q", strings.Join(path[:i+1], "."))
		}
		cur = next
	}
	return cur, nil
}

func toInt64(v any, field string) (int64, error) {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case string:
		s = strings.TrimSpace(val)
	default:
		return 0, fmt.Errorf("field %q is not numeric (got %T)", field, v)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	switch {
	case err == nil:
	case errors.Is(err, strconv.ErrRange):
		return 0, fmt.Errorf("field %q is out of range (got %q)", field, s)
	default:
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("field %q is not numeric (got %q)", field, s)
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("field %q is out of range (got %q)", field, s)
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("field %q is negative (got %q)", field, s)
	}
	return n, nil
}
