// Package vocab holds the namespaces and field catalogues shared by the
// mediator and provider. Every component receives a Namespaces value at
// construction; nothing in this package is mutable after creation.
package vocab

import (
	"github.com/coolbeans/rdgmed/pkg/store"
)

// Wire namespaces. Providers and mediators must agree on these byte for byte.
const (
	// CottageNamespace is the domain vocabulary for bookings and offerings.
	CottageNamespace = "http://users.jyu.fi/~kumapmxw/cottage-ontology.owl#"

	// ProtocolNamespace carries the structural relations operatesOn,
	// hasMapping and mapsTo.
	ProtocolNamespace = "http://sswapmeet.sswap.info/sswap/"

	// RequestNamespace is used by legacy providers that accept client
	// fields directly instead of a filled template.
	RequestNamespace = "http://example.org/request/"

	// ResourceNamespace is the default base for provider resources.
	ResourceNamespace = "http://127.0.0.1:8000/"
)

// Namespaces is an immutable set of namespace bindings. The zero value is
// not usable; construct with Default or New.
type Namespaces struct {
	term     string
	protocol string
	request  string
	resource string
}

// Default returns the standard namespaces.
func Default() Namespaces {
	return New(CottageNamespace, ProtocolNamespace, RequestNamespace, ResourceNamespace)
}

// New builds a Namespaces value from explicit namespace IRIs.
func New(term, protocol, request, resource string) Namespaces {
	return Namespaces{term: term, protocol: protocol, request: request, resource: resource}
}

// WithResource returns a copy using a different resource base, for providers
// published somewhere other than the default address.
func (ns Namespaces) WithResource(resource string) Namespaces {
	ns.resource = resource
	return ns
}

// TermNamespace returns the domain vocabulary namespace.
func (ns Namespaces) TermNamespace() string { return ns.term }

// ProtocolNamespace returns the protocol namespace.
func (ns Namespaces) ProtocolNamespace() string { return ns.protocol }

// RequestNamespace returns the legacy request namespace.
func (ns Namespaces) RequestNamespace() string { return ns.request }

// ResourceNamespace returns the resource base.
func (ns Namespaces) ResourceNamespace() string { return ns.resource }

// Term returns the vocabulary IRI for a local name.
func (ns Namespaces) Term(local string) store.Term {
	return store.IRI(ns.term + local)
}

// Protocol returns the protocol IRI for a local name.
func (ns Namespaces) Protocol(local string) store.Term {
	return store.IRI(ns.protocol + local)
}

// RequestTerm returns the legacy request IRI for a local name.
func (ns Namespaces) RequestTerm(local string) store.Term {
	return store.IRI(ns.request + local)
}

// Resource returns an IRI under the resource base.
func (ns Namespaces) Resource(local string) store.Term {
	return store.IRI(ns.resource + local)
}

func (ns Namespaces) OperatesOn() store.Term { return ns.Protocol("operatesOn") }
func (ns Namespaces) HasMapping() store.Term { return ns.Protocol("hasMapping") }
func (ns Namespaces) MapsTo() store.Term     { return ns.Protocol("mapsTo") }

// BookingRequestClass is the type of request nodes.
func (ns Namespaces) BookingRequestClass() store.Term { return ns.Term("BookingRequest") }

// CottageClass is the type of offering nodes.
func (ns Namespaces) CottageClass() store.Term { return ns.Term("Cottage") }

// Bind registers the standard prefixes on g for readable serialization.
func (ns Namespaces) Bind(g *store.Graph) {
	g.Bind("cot", ns.term)
	g.Bind("sswap", ns.protocol)
	g.Bind("resource", ns.resource)
	g.Bind("xsd", store.NamespaceXSD)
}
