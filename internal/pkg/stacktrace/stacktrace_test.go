package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/otpgate/internal/pkg/router.middlewareRecoverer.func1.1()
	/src/otpgate/internal/pkg/router/middleware_recover.go:28 +0x45
github.com/shandysiswandi/otpgate/internal/oath/usecase.(*Usecase).ResolveAuthRequest(...)
	/src/otpgate/internal/oath/usecase/auth_request_resolve.go:61
`)

	assert.Equal(t, []string{
		"internal/pkg/router/middleware_recover.go:28",
		"internal/oath/usecase/auth_request_resolve.go:61",
	}, InternalPaths(stack))
	assert.Empty(t, InternalPaths(nil))
}
