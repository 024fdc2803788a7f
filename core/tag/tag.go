// Package tag fills zero-valued struct fields from `default:"..."` tags.
package tag

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrTargetMustBePointer = errors.New("target must be a pointer")
	ErrTargetIsNil         = errors.New("target is nil")
	ErrUnsupportedType     = errors.New("unsupported type")
	ErrMaxDepthExceeded    = errors.New("max recursion depth exceeded")
)

const (
	tagName  = "default"
	maxDepth = 32
)

// FieldError reports which field could not take its default.
type FieldError struct {
	Path  string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q (default %q): %v", e.Path, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ApplyDefaults sets default values on the zero fields of the struct target
// points to. Nested structs, pointers to structs, existing slice elements and
// struct map values are visited too, so a config section that was only
// partially written in a file still ends up complete.
//
//	type Config struct {
//	    Addr    string        `default:":8080"`
//	    Timeout time.Duration `default:"5s"`
//	}
func ApplyDefaults(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer {
		return ErrTargetMustBePointer
	}
	if v.IsNil() {
		return ErrTargetIsNil
	}
	if v.Elem().Kind() != reflect.Struct {
		return ErrUnsupportedType
	}
	return applyStruct(v.Elem(), "", 0)
}

func applyStruct(v reflect.Value, path string, depth int) error {
	if depth >= maxDepth {
		return ErrMaxDepthExceeded
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		fieldPath := field.Name
		if path != "" {
			fieldPath = path + "." + field.Name
		}
		if err := applyField(fv, field.Tag.Get(tagName), fieldPath, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func applyField(v reflect.Value, def, path string, depth int) error {
	switch v.Kind() {
	case reflect.Struct:
		return applyStruct(v, path, depth)

	case reflect.Pointer:
		if v.Type().Elem().Kind() != reflect.Struct {
			if v.IsNil() && def != "" {
				v.Set(reflect.New(v.Type().Elem()))
				return setValue(v.Elem(), def, path)
			}
			return nil
		}
		if v.IsNil() {
			if def == "" {
				return nil
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		return applyStruct(v.Elem(), path, depth)

	case reflect.Slice:
		if v.Len() > 0 {
			for i := 0; i < v.Len(); i++ {
				elem := v.Index(i)
				if elem.Kind() == reflect.Pointer && !elem.IsNil() {
					elem = elem.Elem()
				}
				if elem.Kind() == reflect.Struct {
					if err := applyStruct(elem, fmt.Sprintf("%s[%d]", path, i), depth); err != nil {
						return err
					}
				}
			}
			return nil
		}

	case reflect.Map:
		if v.Len() > 0 && v.Type().Elem().Kind() == reflect.Struct {
			iter := v.MapRange()
			for iter.Next() {
				elem := reflect.New(v.Type().Elem()).Elem()
				elem.Set(iter.Value())
				if err := applyStruct(elem, fmt.Sprintf("%s[%v]", path, iter.Key()), depth); err != nil {
					return err
				}
				v.SetMapIndex(iter.Key(), elem)
			}
			return nil
		}
	}

	if def == "" || !v.IsZero() {
		return nil
	}
	return setValue(v, def, path)
}

func setValue(v reflect.Value, def, path string) error {
	if err := parse(v, def); err != nil {
		return &FieldError{Path: path, Value: def, Err: err}
	}
	return nil
}
