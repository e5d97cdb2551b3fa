// Package otp implements the OCRA challenge/response algorithm (RFC 6287)
// used to verify one-time passwords computed by the authenticator app.
//
// Question encoding keeps a historical quirk: the hex form of the question
// has its leading '0' characters stripped before it is right-padded to 128
// bytes. Authenticators in the field compute codes this way, so it must not
// be "fixed".
package otp
