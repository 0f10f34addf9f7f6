// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "github.com/pkg/errors"

// ErrMalformed is wrapped by every decode failure that is not a name
// decode failure (those wrap ErrMalformedName instead, so callers can
// still errors.Is against a single failure category via IsMalformed).
var ErrMalformed = errors.New("malformed dns message")

func errMalformedData(msg string) error {
	return errors.Wrap(ErrMalformed, msg)
}

// IsMalformed reports whether err is (or wraps) a wire-decode failure,
// whether from a bad name or a bad message/rdata.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrMalformedName)
}
