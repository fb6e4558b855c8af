package model

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxUserIDLength bounds a canonical user id.
const MaxUserIDLength = 128

const objectIDLength = 24

// NormalizeUserID maps every accepted user id representation onto one
// canonical string. Both ledgers store and query only this form.
func NormalizeUserID(v any) (string, error) {
	switch id := v.(type) {
	case nil:
		return "", invalidf("user id is required")
	case string:
		return normalizeString(id)
	case []byte:
		return normalizeString(string(id))
	case json.Number:
		return normalizeNumber(id.String())
	case float64:
		return normalizeFloat(id)
	case float32:
		return normalizeFloat(float64(id))
	case int:
		return strconv.FormatInt(int64(id), 10), nil
	case int32:
		return strconv.FormatInt(int64(id), 10), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case uint:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint64:
		return strconv.FormatUint(id, 10), nil
	case map[string]any:
		if oid, ok := id["$oid"]; ok {
			return NormalizeUserID(oid)
		}
		return "", invalidf("unsupported user id document")
	case map[string]string:
		if oid, ok := id["$oid"]; ok {
			return normalizeString(oid)
		}
		return "", invalidf("unsupported user id document")
	case fmt.Stringer:
		if isNilValue(id) {
			return "", invalidf("user id is required")
		}
		return normalizeString(id.String())
	}
	return "", invalidf("unsupported user id type %T", v)
}

// isNilValue reports a typed nil hidden in an interface.
func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func normalizeString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalidf("user id is required")
	}
	if len(s) > MaxUserIDLength {
		return "", invalidf("user id longer than %d characters", MaxUserIDLength)
	}
	if isObjectID(s) {
		return strings.ToLower(s), nil
	}
	if len(s) == 36 || len(s) == 38 || len(s) == 45 {
		if u, err := uuid.Parse(s); err == nil {
			return u.String(), nil
		}
	}
	return s, nil
}

func normalizeNumber(s string) (string, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", invalidf("malformed numeric user id %q", s)
	}
	return normalizeFloat(f)
}

func normalizeFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return "", invalidf("numeric user id must be an integer")
	}
	return strconv.FormatInt(int64(f), 10), nil
}

func isObjectID(s string) bool {
	if len(s) != objectIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
