package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix marks environment overrides: OTPGATE_DATABASE_URL replaces
// database.url.
const EnvPrefix = "OTPGATE"

var ErrConfigType = errors.New("config type is required")

// Viper implements Config on github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// NewViper reads the file at pathFile and watches it. Edits are picked up
// live, which is how maintenance endpoints are toggled without a restart.
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()
	v.SetConfigFile(filepath.Clean(pathFile))
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config reloaded", "path", e.Name, "op", e.Op.String())
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes reads configuration of configType ("yaml", "json", ...)
// from memory.
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrConfigType
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func (c *Viper) GetBool(key string) bool { return c.v.GetBool(key) }
func (c *Viper) GetString(key string) string { return c.v.GetString(key) }
func (c *Viper) GetInt(key string) int { return c.v.GetInt(key) }
func (c *Viper) GetInt32(key string) int32 { return c.v.GetInt32(key) }
func (c *Viper) GetUint16(key string) uint16 { return cast.ToUint16(c.v.Get(key)) }
func (c *Viper) GetFloat64(key string) float64 { return c.v.GetFloat64(key) }

func (c *Viper) GetMillisecond(key string) time.Duration {
	return time.Duration(c.v.GetInt64(key)) * time.Millisecond
}

func (c *Viper) GetSecond(key string) time.Duration {
	return time.Duration(c.v.GetInt64(key)) * time.Second
}

func (c *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.v.GetString(key)))
	if err != nil {
		return nil
	}
	return data
}

func (c *Viper) GetArray(key string) []string {
	var items []string
	switch raw := c.v.Get(key).(type) {
	case nil:
	case string:
		items = strings.Split(raw, ",")
	default:
		items = cast.ToStringSlice(raw)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Viper) GetMap(key string) map[string]string {
	raw, ok := c.v.Get(key).(string)
	if !ok {
		return c.v.GetStringMapString(key)
	}

	m := make(map[string]string)
	for pair := range strings.SplitSeq(raw, ",") {
		if k, v, found := strings.Cut(pair, ":"); found {
			m[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return m
}

// Close is a no-op. The file watcher lives as long as the process.
func (c *Viper) Close() error { return nil }
