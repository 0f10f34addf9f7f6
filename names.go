// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdns

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/web0316/netconnector/internal/wire"
)

const localDomain = "local."

// LocalHostFullName forms "<host>.local." from an unqualified host
// label, e.g. "alice" -> "alice.local.".
func LocalHostFullName(host string) (wire.Name, error) {
	if host == "" || strings.ContainsAny(host, ".") || len(host) > 63 {
		return wire.Name{}, errors.WithMessage(ErrInvalidName, host)
	}
	return wire.NewName(host + "." + localDomain)
}

// LocalServiceFullName forms "<service>.local." from a service name of
// the form "_service._proto", e.g. "_foo._tcp" -> "_foo._tcp.local.".
func LocalServiceFullName(service string) (wire.Name, error) {
	if !IsValidServiceName(service) {
		return wire.Name{}, errors.WithMessage(ErrInvalidServiceName, service)
	}
	return wire.NewName(service + "." + localDomain)
}

// LocalInstanceFullName forms "<instance>.<service>.local." from an
// instance label and a service name.
func LocalInstanceFullName(instance, service string) (wire.Name, error) {
	if !IsValidServiceName(service) {
		return wire.Name{}, errors.WithMessage(ErrInvalidServiceName, service)
	}
	if instance == "" || len(instance) > 63 {
		return wire.Name{}, errors.WithMessage(ErrInvalidName, instance)
	}
	return wire.NewName(instance + "." + service + "." + localDomain)
}

// IsValidServiceName reports whether service is of the DNS-SD form
// "_service._tcp" or "_service._udp" (RFC 6763 §7).
func IsValidServiceName(service string) bool {
	parts := strings.Split(service, ".")
	if len(parts) != 2 {
		return false
	}
	if !strings.HasPrefix(parts[0], "_") || len(parts[0]) < 2 {
		return false
	}
	return parts[1] == "_tcp" || parts[1] == "_udp"
}
