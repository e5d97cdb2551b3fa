package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
app:
  strict_mode: true
  server:
    public_port: 8443
    base_path: /api
    maintenance: ""
modules:
  oath:
    default_expiry_ms: 120000
certkey:
  timeout_seconds: 30
cors:
  origins: "https://a.example, https://b.example"
  headers: "a:1,b:2"
crypto:
  sealer:
    secret: c2VjcmV0
instrument:
  log_mask_fields:
    - secret
    - " "
    - signature
`

func TestViper_FromBytes(t *testing.T) {
	// Arrange
	cfg, err := NewViperFromBytes("yaml", []byte(testYAML))
	require.NoError(t, err)

	// Act & Assert
	assert.True(t, cfg.GetBool("app.strict_mode"))
	assert.Equal(t, uint16(8443), cfg.GetUint16("app.server.public_port"))
	assert.Equal(t, "/api", cfg.GetString("app.server.base_path"))
	assert.Equal(t, 120*time.Second, cfg.GetMillisecond("modules.oath.default_expiry_ms"))
	assert.Equal(t, 30*time.Second, cfg.GetSecond("certkey.timeout_seconds"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.GetArray("cors.origins"))
	assert.Equal(t, []string{}, cfg.GetArray("app.server.maintenance"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, cfg.GetMap("cors.headers"))
	assert.Equal(t, []byte("secret"), cfg.GetBinary("crypto.sealer.secret"))
	assert.NoError(t, cfg.Close())
}

func TestViper_EnvOverride(t *testing.T) {
	t.Setenv("OTPGATE_APP_SERVER_BASE_PATH", "/v2")

	cfg, err := NewViperFromBytes("yaml", []byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, "/v2", cfg.GetString("app.server.base_path"))
}

func TestViper_GetArray(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"secret", "signature"}, cfg.GetArray("instrument.log_mask_fields"))
	assert.Equal(t, []string{}, cfg.GetArray("missing.key"))

	t.Setenv("OTPGATE_INSTRUMENT_LOG_MASK_FIELDS", "password, pin")
	cfg, err = NewViperFromBytes("yaml", []byte(testYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"password", "pin"}, cfg.GetArray("instrument.log_mask_fields"))
}

func TestNewViperFromBytes_RequiresType(t *testing.T) {
	_, err := NewViperFromBytes(" ", []byte(testYAML))

	assert.ErrorIs(t, err, ErrConfigType)
}
