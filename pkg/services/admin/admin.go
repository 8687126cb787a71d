// Package admin documents the admin microservice's place in the registry
// namespace. Unlike every other service, it is not dynamically started via
// a CreateServiceRequest and has no registry.Constructor: the admin fiber is
// connected unconditionally as part of session establishment, and the
// protocol it carries (create/stop/status calls themselves) is implemented
// directly by pkg/control.Endpoint. This package exists only so that
// registry.ServiceAdmin's reservation of id 1 has a home alongside the
// other service packages.
package admin

import "github.com/ssfcore/ssf/pkg/registry"

// ServiceID is the well-known, always-on service identifier for the admin
// microservice.
const ServiceID = registry.ServiceAdmin
