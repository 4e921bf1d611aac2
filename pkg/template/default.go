package template

import (
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

// Default returns the built-in booking request template: a service that
// operates on a graph mapping one empty BookingRequest node. Every request
// field is present with an empty literal of its declared datatype.
func Default(ns vocab.Namespaces) *store.Graph {
	g := store.NewGraph()
	ns.Bind(g)

	rdfType := store.IRI(store.RDFType)
	service := ns.Resource("CottageBookingService")
	graph := ns.Resource("BookingGraph")
	request := RequestNode(ns)

	triples := []store.Triple{
		store.NewTriple(service, rdfType, ns.Protocol("Resource")),
		store.NewTriple(service, ns.Protocol("name"), store.Literal("Cottage booking service")),
		store.NewTriple(service, ns.OperatesOn(), graph),
		store.NewTriple(graph, rdfType, ns.Protocol("Graph")),
		store.NewTriple(graph, ns.HasMapping(), request),
		store.NewTriple(request, rdfType, ns.BookingRequestClass()),
	}
	for _, field := range vocab.RequestFields {
		triples = append(triples, store.NewTriple(request, ns.Term(field.Name), store.TypedLiteral("", field.Kind.Datatype())))
	}
	_ = g.BulkAdd(triples)
	return g
}

// RequestNode is the BookingRequest node of the built-in template.
func RequestNode(ns vocab.Namespaces) store.Term {
	return ns.Resource("BookingRequest")
}
