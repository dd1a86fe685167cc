// SPDX-License-Identifier: MIT

// Package lookup discovers device addresses from a key/value store.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lightsync/internal/log"
)

var (
	// ErrEmptyValue is returned when a key exists but holds no address.
	ErrEmptyValue = errors.New("lookup returned an empty value")
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("lookup key not found")
)

// Lookup resolves one key to an address.
type Lookup interface {
	Get(ctx context.Context, key string) (string, error)
}

// Addresses resolves every key in order and collects the values that
// succeeded. Failures are logged and skipped. The error is non-nil only when
// no key produced an address.
func Addresses(ctx context.Context, l Lookup, keys []string) ([]string, error) {
	var out []string
	var errs []error
	for _, key := range keys {
		addr, err := l.Get(ctx, key)
		if err != nil {
			log.Warnf("Lookup: Resolving %q failed: %v", key, err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		log.Infof("Lookup: %s -> %s", key, addr)
		out = append(out, addr)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func normalize(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ErrEmptyValue
	}
	return v, nil
}
