package main

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/app"
)

// @title           OTP Gate API
// @version         1.0
// @description     OTP Gate issues OCRA authentication requests to enrolled devices and reports their outcome to relying apps.
// @contact.name    Contact Support
// @contact.url     https://github.com/shandysiswandi/otpgate
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
func main() {
	application := app.New()
	<-application.Start()

	ctx, cancel := context.WithTimeout(context.Background(), application.ShutdownTimeout())
	defer cancel()

	application.Stop(ctx)
}
