// Package store provides an in-memory RDF graph with typed terms, pattern
// lookups, and a Turtle codec.
package store

// Standard W3C namespace URIs.
const (
	// NamespaceRDF is the standard RDF namespace.
	NamespaceRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// NamespaceRDFS is the RDF Schema namespace.
	NamespaceRDFS = "http://www.w3.org/2000/01/rdf-schema#"

	// NamespaceXSD is the XML Schema namespace for datatypes.
	NamespaceXSD = "http://www.w3.org/2001/XMLSchema#"

	// NamespaceOWL is the Web Ontology Language namespace.
	NamespaceOWL = "http://www.w3.org/2002/07/owl#"
)

// Well-known predicates.
const (
	// RDFType is the full IRI of rdf:type.
	RDFType = NamespaceRDF + "type"

	// OWLSameAs asserts that two IRIs denote the same resource.
	OWLSameAs = NamespaceOWL + "sameAs"
)

// XML Schema datatype IRIs used for typed literals.
const (
	XSDString             = NamespaceXSD + "string"
	XSDInt                = NamespaceXSD + "int"
	XSDInteger            = NamespaceXSD + "integer"
	XSDLong               = NamespaceXSD + "long"
	XSDShort              = NamespaceXSD + "short"
	XSDNonNegativeInteger = NamespaceXSD + "nonNegativeInteger"
	XSDPositiveInteger    = NamespaceXSD + "positiveInteger"
	XSDDecimal            = NamespaceXSD + "decimal"
	XSDFloat              = NamespaceXSD + "float"
	XSDDouble             = NamespaceXSD + "double"
	XSDBoolean            = NamespaceXSD + "boolean"
	XSDDate               = NamespaceXSD + "date"
	XSDDateTime           = NamespaceXSD + "dateTime"
)

// IsIntegerDatatype reports whether the datatype IRI is one of the XSD
// integer types.
func IsIntegerDatatype(datatype string) bool {
	switch datatype {
	case XSDInt, XSDInteger, XSDLong, XSDShort, XSDNonNegativeInteger, XSDPositiveInteger:
		return true
	}
	return false
}

// IsNumericDatatype reports whether the datatype IRI is an integer or
// decimal/floating point type.
func IsNumericDatatype(datatype string) bool {
	if IsIntegerDatatype(datatype) {
		return true
	}
	switch datatype {
	case XSDDecimal, XSDFloat, XSDDouble:
		return true
	}
	return false
}

// IsTemporalDatatype reports whether the datatype IRI is xsd:date or
// xsd:dateTime.
func IsTemporalDatatype(datatype string) bool {
	return datatype == XSDDate || datatype == XSDDateTime
}
