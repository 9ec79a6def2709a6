package server

import "errors"

const defaultMaxUploadBytes = 64 << 20

// Options configures server creation.
type Options struct {
	StorageDir     string
	MaxUploadBytes int64
}

func (o Options) validate() error {
	if o.MaxUploadBytes < 0 {
		return errors.New("max upload bytes must not be negative")
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.MaxUploadBytes == 0 {
		o.MaxUploadBytes = defaultMaxUploadBytes
	}
	return o
}
