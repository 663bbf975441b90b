package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ConfigSource represents a source of configuration values
type ConfigSource interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetBool(key string) (bool, bool)
}

// EnvSource implements ConfigSource for environment variables
type EnvSource struct{}

func (e *EnvSource) GetString(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (e *EnvSource) GetInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i, true
	}
	return 0, false
}

func (e *EnvSource) GetBool(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b, true
	}
	return false, false
}

// FlagSource implements ConfigSource for command-line flags
type FlagSource struct {
	values map[string]interface{}
}

func NewFlagSource() *FlagSource {
	return &FlagSource{values: make(map[string]interface{})}
}

func (f *FlagSource) Set(key string, value interface{}) {
	f.values[key] = value
}

func (f *FlagSource) GetString(key string) (string, bool) {
	if value, exists := f.values[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func (f *FlagSource) GetInt(key string) (int, bool) {
	if value, exists := f.values[key]; exists {
		if i, ok := value.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetBool(key string) (bool, bool) {
	if value, exists := f.values[key]; exists {
		if b, ok := value.(bool); ok {
			return b, true
		}
	}
	return false, false
}

// FileSource implements ConfigSource over an optional YAML config file
// read through viper. Keys map to lower-case file entries without the
// FLAGSYNC_ prefix (FLAGSYNC_CLIENT_KEY -> client_key).
type FileSource struct {
	v *viper.Viper
}

// NewFileSource looks for flagsync.yaml in the working directory and
// ./config. A missing file is fine; the source just resolves nothing.
func NewFileSource() *FileSource {
	v := viper.New()
	v.SetConfigName("flagsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		return &FileSource{}
	}
	return &FileSource{v: v}
}

func fileKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, "FLAGSYNC_"))
}

func (f *FileSource) GetString(key string) (string, bool) {
	if f.v == nil || !f.v.IsSet(fileKey(key)) {
		return "", false
	}
	return f.v.GetString(fileKey(key)), true
}

func (f *FileSource) GetInt(key string) (int, bool) {
	if f.v == nil || !f.v.IsSet(fileKey(key)) {
		return 0, false
	}
	return f.v.GetInt(fileKey(key)), true
}

func (f *FileSource) GetBool(key string) (bool, bool) {
	if f.v == nil || !f.v.IsSet(fileKey(key)) {
		return false, false
	}
	return f.v.GetBool(fileKey(key)), true
}
