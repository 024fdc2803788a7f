package config

import (
	"errors"
	"path"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kochabx/portal/core/tag"
	"github.com/kochabx/portal/core/validator"
	kerrors "github.com/kochabx/portal/errors"
)

// FileLoader loads configuration from a file plus environment overrides.
type FileLoader struct {
	viper     *viper.Viper
	validate  validator.Validator
	name      string
	paths     []string
	envPrefix string
	optional  bool
}

func NewFileLoader(name string, paths []string, v *viper.Viper, validate validator.Validator) *FileLoader {
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	ext := path.Ext(name)
	v.SetConfigName(strings.TrimSuffix(name, ext))
	v.SetConfigType(strings.TrimPrefix(ext, "."))

	return &FileLoader{
		viper:    v,
		paths:    paths,
		name:     name,
		validate: validate,
	}
}

// Load applies tag defaults, then the file, then the environment, and
// validates the result.
func (l *FileLoader) Load(target any) error {
	if err := tag.ApplyDefaults(target); err != nil {
		return kerrors.Internal("failed to apply defaults: %v", err)
	}

	l.viper.SetEnvPrefix(l.envPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about
	for _, key := range keys(reflect.TypeOf(target), "") {
		_ = l.viper.BindEnv(key)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !l.optional || !errors.As(err, &notFound) {
			return kerrors.NotFound("config file not found: %v", err)
		}
	}

	if err := l.viper.Unmarshal(target); err != nil {
		return kerrors.Internal("config parse error: %v", err)
	}

	if l.validate != nil {
		if err := l.validate.Struct(target); err != nil {
			return kerrors.BadRequest("config validation failed: %v", err).WithCause(err)
		}
	}
	return nil
}

func (l *FileLoader) Watch(callback func()) error {
	if l.viper.ConfigFileUsed() == "" {
		return nil
	}
	l.viper.OnConfigChange(func(fsnotify.Event) {
		if callback != nil {
			callback()
		}
	})
	l.viper.WatchConfig()
	return nil
}

// keys lists the dotted mapstructure paths of every leaf field of t.
func keys(t reflect.Type, prefix string) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := name
		if strings.Contains(opts, "squash") {
			key = strings.TrimSuffix(prefix, ".")
		} else if prefix != "" {
			key = prefix + name
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.String() != "time.Time" {
			p := key + "."
			if key == "" {
				p = ""
			}
			out = append(out, keys(ft, p)...)
			continue
		}
		out = append(out, key)
	}
	return out
}
