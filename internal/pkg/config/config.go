// Package config reads typed settings by dotted key, e.g. "modules.oath.store".
// Missing keys read as the zero value; callers apply their own defaults.
package config

import (
	"io"
	"time"
)

type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetUint16(key string) uint16
	GetFloat64(key string) float64

	// GetMillisecond and GetSecond read an integer count of the unit.
	GetMillisecond(key string) time.Duration
	GetSecond(key string) time.Duration

	// GetBinary decodes a base64 value. Invalid input reads as nil.
	GetBinary(key string) []byte

	// GetArray accepts a native list or a comma separated string, so
	// environment overrides can replace lists.
	GetArray(key string) []string

	// GetMap accepts a native map or "k1:v1,k2:v2".
	GetMap(key string) map[string]string
}
