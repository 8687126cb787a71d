package adapter

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ForwardSpecification is the parsed form of a "[bind:]lport:host:rport"
// flag argument, the shape shared by `-L`, `-R`, `-U`, and `-V`.
type ForwardSpecification struct {
	BindAddress string
	LocalPort   uint16
	RemoteHost  string
	RemotePort  uint16
}

// ParseForwardSpecification parses a "[bind:]lport:host:rport" argument.
// The argument is split on every colon, so IPv6 literal hosts, bracketed or
// not, yield more than four fields and are rejected.
func ParseForwardSpecification(raw string) (ForwardSpecification, error) {
	fields := strings.Split(raw, ":")

	var bind, lport, host, rport string
	switch len(fields) {
	case 3:
		lport, host, rport = fields[0], fields[1], fields[2]
	case 4:
		bind, lport, host, rport = fields[0], fields[1], fields[2], fields[3]
	default:
		return ForwardSpecification{}, errors.Errorf(
			"invalid forward specification %q: expected [bind:]lport:host:rport", raw)
	}

	localPort, err := strconv.ParseUint(lport, 10, 16)
	if err != nil {
		return ForwardSpecification{}, errors.Wrapf(err, "invalid local port in %q", raw)
	}
	remotePort, err := strconv.ParseUint(rport, 10, 16)
	if err != nil {
		return ForwardSpecification{}, errors.Wrapf(err, "invalid remote port in %q", raw)
	}
	if host == "" {
		return ForwardSpecification{}, errors.Errorf("invalid forward specification %q: missing host", raw)
	}

	return ForwardSpecification{
		BindAddress: bind,
		LocalPort:   uint16(localPort),
		RemoteHost:  host,
		RemotePort:  uint16(remotePort),
	}, nil
}

// ListenSpecification is the parsed form of a "[bind:]port" flag argument,
// the shape shared by `-D`, `-F`, `-X`, and `-Y`.
type ListenSpecification struct {
	BindAddress string
	Port        uint16
}

// ParseListenSpecification parses a "[bind:]port" argument.
func ParseListenSpecification(raw string) (ListenSpecification, error) {
	fields := strings.Split(raw, ":")

	var bind, portField string
	switch len(fields) {
	case 1:
		portField = fields[0]
	case 2:
		bind, portField = fields[0], fields[1]
	default:
		return ListenSpecification{}, errors.Errorf(
			"invalid listen specification %q: expected [bind:]port", raw)
	}

	port, err := strconv.ParseUint(portField, 10, 16)
	if err != nil {
		return ListenSpecification{}, errors.Wrapf(err, "invalid port in %q", raw)
	}

	return ListenSpecification{BindAddress: bind, Port: uint16(port)}, nil
}
