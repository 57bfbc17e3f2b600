package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

var timeType = reflect.TypeOf(time.Time{})

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := jsonName(f)
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// decodeObject decodes raw into target one field at a time so that every
// type error is reported instead of only the first. It returns the set of
// keys that were present in the payload.
func decodeObject(raw []byte, target any, path string, requireAll bool, errs *ValidationError) map[string]bool {
	field := path
	if field == "" {
		field = "body"
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		errs.add(field, "must be a JSON object")
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		errs.add(field, "must be a JSON object")
		return nil
	}

	rv := reflect.ValueOf(target).Elem()
	rt := rv.Type()
	known := make(map[string]int, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if name := jsonName(f); name != "" {
			known[name] = i
		}
	}

	present := make(map[string]bool, len(fields))
	for key, value := range fields {
		fieldPath := joinPath(path, key)
		idx, ok := known[key]
		if !ok {
			errs.add(fieldPath, "is not allowed")
			continue
		}
		present[key] = true

		sf := rt.Field(idx)
		fv := rv.Field(idx)
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			if sf.Tag.Get("schema") != "nullable" {
				errs.add(fieldPath, "must not be null")
			}
			continue
		}

		elem := sf.Type
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() == reflect.Struct && elem != timeType {
			nested := reflect.New(elem)
			decodeObject(value, nested.Interface(), fieldPath, true, errs)
			if sf.Type.Kind() == reflect.Pointer {
				fv.Set(nested)
			} else {
				fv.Set(nested.Elem())
			}
			continue
		}

		dst := reflect.New(sf.Type)
		if err := json.Unmarshal(value, dst.Interface()); err != nil {
			errs.add(fieldPath, "must be "+describe(sf.Type))
			continue
		}
		fv.Set(dst.Elem())
	}

	if requireAll {
		for key := range known {
			if !present[key] {
				errs.add(joinPath(path, key), "is required")
			}
		}
	}
	return present
}

func describe(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return "an RFC 3339 timestamp"
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			return "an array of strings"
		}
		return "an array"
	}
	return "a valid value"
}

// check runs struct validation and folds the result into errs.
func check(v any, errs *ValidationError) {
	err := validate.Struct(v)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.add("body", "is invalid")
		return
	}
	for _, fe := range verrs {
		errs.add(namespace(fe.Namespace()), message(fe))
	}
}

// namespace drops the leading struct type name from a validator namespace.
func namespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		switch fe.Kind() {
		case reflect.Slice:
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		case reflect.String:
			return "must not be empty"
		}
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return fmt.Sprintf("failed the %s rule", fe.Tag())
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

// normalizeIDs trims ids and drops duplicates, keeping first occurrences.
func normalizeIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, id)
	}
	return out
}
