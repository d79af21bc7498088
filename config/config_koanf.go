package config

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/mitchellh/mapstructure"
)

// ORACLE_STORE_TARGET becomes store.target
func loadEnvironment(k *koanf.Koanf) error {
	return k.Load(env.Provider(EnvConfigPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, EnvConfigPrefix)

		if key == strings.TrimPrefix(ConfigFilePath, EnvConfigPrefix) {
			return ""
		}

		section, rest, found := strings.Cut(key, "_")
		if !found {
			return strings.ToLower(key)
		}

		return strings.ToLower(section) + "." + envKey(rest)
	}), nil)
}

// envKey maps CONNECTION_ATTEMPTS to connectionAttempts
func envKey(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")

	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}

	return strings.Join(parts, "")
}

func loadFile(k *koanf.Koanf, path string) error {
	return k.Load(file.Provider(path), yaml.Parser())
}

func loadDir(path string, k *koanf.Koanf) error {
	return filepath.WalkDir(path, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == filePath {
			return nil
		}

		// Ignore non YAML files
		if !strings.HasSuffix(filePath, ".yml") && !strings.HasSuffix(filePath, ".yaml") {
			return nil
		}

		// Ignore non regular files (directories, sockets, etc.)
		if !d.Type().IsRegular() {
			return nil
		}

		return loadFile(k, filePath)
	})
}

func unmarshalKoanf(k *koanf.Koanf, cfg *Config) error {
	return k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "yaml",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       composeDecodeHookFunc(),
			Result:           cfg,
			WeaklyTypedInput: true,
			ZeroFields:       true,
			TagName:          "yaml",
		},
	})
}

func composeDecodeHookFunc() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapToSliceHookFunc(),
		upstreamTypeHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// mapToSliceHookFunc converts maps with numeric keys (from environment variables) to slices
func mapToSliceHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.Map || t.Kind() != reflect.Slice {
			return data, nil
		}

		unboxed, ok := data.(map[string]interface{})
		if ok && unboxed != nil {
			if res, ok := extract(unboxed); ok {
				return res, nil
			}
		}

		return data, nil
	}
}

func extract(in map[string]interface{}) ([]interface{}, bool) {
	keys := make([]int, 0, len(in))
	intmap := make(map[int]interface{}, len(in))

	for k, v := range in {
		ik, err := strconv.Atoi(k)
		if err != nil {
			return nil, false
		}

		keys = append(keys, ik)
		intmap[ik] = v
	}

	sort.Ints(keys)

	res := make([]interface{}, 0, len(in))
	for _, k := range keys {
		res = append(res, intmap[k])
	}

	return res, true
}

func upstreamTypeHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() == reflect.String && t == reflect.TypeOf(Upstream{}) {
			return ParseUpstream(data.(string))
		}

		return data, nil
	}
}
