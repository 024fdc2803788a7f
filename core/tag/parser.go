package tag

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/kochabx/portal/core/util/convert"
)

var durationType = reflect.TypeFor[time.Duration]()

// parse converts str into v. Slices are comma separated, maps are
// "k:v,k:v" pairs.
func parse(v reflect.Value, str string) error {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(str))
		}
	}

	str = strings.TrimSpace(str)
	switch v.Kind() {
	case reflect.String:
		v.SetString(str)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Type() == durationType {
			d, err := time.ParseDuration(str)
			if err != nil {
				return err
			}
			v.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(str, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(str, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(str, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)

	case reflect.Bool:
		b, err := convert.ParseBool(str)
		if err != nil {
			return err
		}
		v.SetBool(b)

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			v.SetBytes([]byte(str))
			return nil
		}
		if str == "" {
			v.Set(reflect.MakeSlice(v.Type(), 0, 0))
			return nil
		}
		parts := strings.Split(str, ",")
		slice := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := parse(slice.Index(i), part); err != nil {
				return err
			}
		}
		v.Set(slice)

	case reflect.Map:
		m := reflect.MakeMap(v.Type())
		for pair := range strings.SplitSeq(str, ",") {
			k, val, ok := strings.Cut(pair, ":")
			if !ok {
				continue
			}
			key := reflect.New(v.Type().Key()).Elem()
			if err := parse(key, k); err != nil {
				return err
			}
			elem := reflect.New(v.Type().Elem()).Elem()
			if err := parse(elem, val); err != nil {
				return err
			}
			m.SetMapIndex(key, elem)
		}
		v.Set(m)

	default:
		return ErrUnsupportedType
	}
	return nil
}
