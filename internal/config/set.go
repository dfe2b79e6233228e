package config

import (
	"reflect"
	"strings"

	"amazon-orders/internal/amazon/errs"

	"gopkg.in/yaml.v3"
)

// lookupField follows a dotted key through the yaml names of the config fields.
func lookupField(t reflect.Type, key string) (reflect.Type, bool) {
	for _, part := range strings.Split(key, ".") {
		if t.Kind() != reflect.Struct {
			return nil, false
		}
		found := false
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
			if name == part {
				t = field.Type
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return t, true
}

func scalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Set updates one scalar setting by its dotted config name (e.g. cookie_store.kind), the value
// is parsed the way it would be in a yaml file. The config is validated again afterwards.
func (c *Config) Set(key, value string) error {
	t, ok := lookupField(reflect.TypeOf(*c), key)
	if !ok {
		return errs.Configf("unknown setting %q", key)
	}
	if !scalar(t) {
		return errs.Configf("setting %q is not a single value, edit the config file instead", key)
	}

	leaf := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if t.Kind() == reflect.String {
		leaf.Tag = "!!str"
	}
	parts := strings.Split(key, ".")
	node := leaf
	for i := len(parts) - 1; i >= 0; i-- {
		node = &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: parts[i]},
				node,
			},
		}
	}

	updated := *c
	err := node.Decode(&updated)
	if err != nil {
		return errs.Configf("%s: %s", key, err.Error())
	}
	err = updated.Validate()
	if err != nil {
		return err
	}
	*c = updated
	return nil
}
