// Package entity holds the OATH domain types: apps, clients, device keys and
// auth requests, plus the side effects their transitions produce.
package entity
