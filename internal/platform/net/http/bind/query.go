package bind

import (
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	perr "bazaar/internal/platform/errors"

	"github.com/go-playground/validator/v10"
)

// ParseQuery decodes URL query parameters into T by `query` struct tags,
// validates the result, and maps failures to project errors. Absent
// parameters leave the zero value in place so handlers can apply defaults
func ParseQuery[T any](r *http.Request) (T, error) {
	var dst T
	if err := decodeQuery(&dst, r.URL.Query()); err != nil {
		return dst, err
	}

	if err := Get().Validator.Struct(dst); err != nil {
		var zero T
		if inv, ok := err.(*validator.InvalidValidationError); ok {
			return zero, perr.Newf(perr.ErrorCodeValidation, "validation error: %v", inv)
		}
		_, msg := ValidationFieldAndMessage(err)
		return zero, perr.Newf(perr.ErrorCodeValidation, "%s", msg)
	}
	return dst, nil
}

// decodeQuery walks exported struct fields tagged `query` and assigns the
// matching parameter. Supported kinds: string, bool, ints, floats, and
// pointers to those
func decodeQuery(dst any, vals url.Values) error {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("query")
		if name == "" || name == "-" || !field.IsExported() {
			continue
		}
		if !vals.Has(name) {
			continue
		}
		raw := vals.Get(name)
		if raw == "" {
			continue
		}
		if err := assign(v.Field(i), raw); err != nil {
			return perr.Newf(perr.ErrorCodeValidation, "parameter %q: %s", name, err.Error())
		}
	}
	return nil
}

func assign(fv reflect.Value, raw string) error {
	if fv.Kind() == reflect.Pointer {
		p := reflect.New(fv.Type().Elem())
		if err := assign(p.Elem(), raw); err != nil {
			return err
		}
		fv.Set(p)
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	default:
		return perr.Newf(perr.ErrorCodeValidation, "unsupported parameter type %s", fv.Kind())
	}
	return nil
}
