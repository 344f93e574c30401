// Package config defines the client configuration structure.
package config

import "errors"

// ErrReadBytesNotSupported is returned when ReadBytes is called on a
// map provider; koanf uses Read for map-backed providers.
var ErrReadBytesNotSupported = errors.New("config: ReadBytes not supported by map provider")

// mapProvider is a koanf provider backed by a plain map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
