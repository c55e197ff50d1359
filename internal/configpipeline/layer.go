package configpipeline

import (
	"context"
	"maps"
	"strings"

	"github.com/spf13/viper"
)

// Layer is one configuration source.
type Layer interface {
	Name() string
	Read(ctx context.Context) (map[string]string, error)
}

// Source places a layer in the pipeline. An optional source that cannot be
// read contributes nothing instead of failing the merge.
type Source struct {
	Layer    Layer
	Optional bool
}

func canonicalKey(key string) string {
	return strings.ToUpper(key)
}

type propertiesFile struct {
	path string
}

// PropertiesFile reads a Java-style .properties file.
func PropertiesFile(path string) Layer {
	return &propertiesFile{path: path}
}

func (l *propertiesFile) Name() string {
	return "file:" + l.path
}

func (l *propertiesFile) Read(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("properties")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for _, key := range v.AllKeys() {
		values[canonicalKey(key)] = v.GetString(key)
	}
	return values, nil
}

type envLayer struct {
	keys []string
}

// Env reads the given keys from environment variables of the same name.
// Unset or empty variables are absent from the layer.
func Env(keys ...string) Layer {
	return &envLayer{keys: keys}
}

func (l *envLayer) Name() string {
	return "env"
}

func (l *envLayer) Read(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	values := make(map[string]string)

	for _, key := range l.keys {
		if err := v.BindEnv(key, canonicalKey(key)); err != nil {
			return nil, err
		}
		if v.IsSet(key) {
			values[canonicalKey(key)] = v.GetString(key)
		}
	}
	return values, nil
}

type static struct {
	name   string
	values map[string]string
}

// Static is a fixed in-memory layer.
func Static(name string, values map[string]string) Layer {
	canonical := make(map[string]string, len(values))
	for key, value := range values {
		canonical[canonicalKey(key)] = value
	}
	return &static{name: name, values: canonical}
}

func (l *static) Name() string {
	return l.name
}

func (l *static) Read(context.Context) (map[string]string, error) {
	return maps.Clone(l.values), nil
}
