package template

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

var (
	// ErrNoRequestNode is returned when a template has no BookingRequest
	// node to fill.
	ErrNoRequestNode = errors.New("template has no booking request node")

	// ErrInvalidValue is returned when a field value cannot be written with
	// the datatype the template declares for it.
	ErrInvalidValue = errors.New("invalid field value")
)

// FieldValue is one submitted form field. Values are applied in order, so a
// later entry for the same name wins.
type FieldValue struct {
	Name  string
	Value string
}

// Builder fills request templates with client field values.
type Builder struct {
	ns     vocab.Namespaces
	fields []vocab.Field
}

// NewBuilder creates a builder for the booking request catalogue.
func NewBuilder(ns vocab.Namespaces) *Builder {
	return &Builder{ns: ns, fields: vocab.RequestFields}
}

// Build returns a copy of the template with every non-empty field value set
// on each BookingRequest node. Each recognized predicate ends up with exactly
// one value per node; empty or absent fields keep their template value.
//
// The written literal takes the datatype of the literal already in the
// template for that predicate. When the template has none, the declared kind
// of the field decides.
func (b *Builder) Build(g *store.Graph, values []FieldValue) (*store.Graph, error) {
	out := g.Clone()

	nodes := out.SubjectsOfType(b.ns.BookingRequestClass())
	if len(nodes) == 0 {
		return nil, ErrNoRequestNode
	}

	for _, node := range nodes {
		for _, fv := range values {
			if fv.Value == "" {
				continue
			}
			predicate := b.ns.Term(fv.Name)
			literal, err := b.literalFor(out, node, predicate, fv)
			if err != nil {
				return nil, err
			}
			if err := out.Set(node, predicate, literal); err != nil {
				return nil, fmt.Errorf("set %s: %w", fv.Name, err)
			}
		}
	}
	return out, nil
}

// BuildDirect builds an invocation graph for providers that publish no
// template. Fields are written under the request namespace on a single
// request:BookingRequest node.
func (b *Builder) BuildDirect(values []FieldValue) (*store.Graph, error) {
	out := store.NewGraph()
	out.Bind("request", b.ns.RequestNamespace())
	out.Bind("xsd", store.NamespaceXSD)

	node := b.ns.RequestTerm("BookingRequest")
	for _, fv := range values {
		if fv.Value == "" {
			continue
		}
		literal, err := typedValue(fv, b.declaredDatatype(fv.Name))
		if err != nil {
			return nil, err
		}
		if err := out.Set(node, b.ns.RequestTerm(fv.Name), literal); err != nil {
			return nil, fmt.Errorf("set %s: %w", fv.Name, err)
		}
	}
	return out, nil
}

func (b *Builder) literalFor(g *store.Graph, node, predicate store.Term, fv FieldValue) (store.Term, error) {
	datatype := b.declaredDatatype(fv.Name)
	for _, existing := range g.Objects(node, predicate) {
		if existing.IsLiteral() {
			datatype = existing.Datatype
			break
		}
	}
	return typedValue(fv, datatype)
}

func (b *Builder) declaredDatatype(name string) string {
	if field, ok := vocab.FieldByName(b.fields, name); ok {
		return field.Kind.Datatype()
	}
	return ""
}

// typedValue checks value against datatype and returns the literal to write.
// A bare date supplied for a dateTime slot is widened to midnight.
func typedValue(fv FieldValue, datatype string) (store.Term, error) {
	value := strings.TrimSpace(fv.Value)

	switch {
	case store.IsIntegerDatatype(datatype):
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return store.Term{}, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, fv.Name, fv.Value)
		}
	case datatype == store.XSDDate:
		if _, err := civil.ParseDate(value); err != nil {
			return store.Term{}, fmt.Errorf("%w: %s=%q is not a date", ErrInvalidValue, fv.Name, fv.Value)
		}
	case datatype == store.XSDDateTime:
		if !strings.Contains(value, "T") {
			if _, err := civil.ParseDate(value); err != nil {
				return store.Term{}, fmt.Errorf("%w: %s=%q is not a date", ErrInvalidValue, fv.Name, fv.Value)
			}
			value += "T00:00:00"
		} else if _, err := civil.ParseDateTime(value); err != nil {
			return store.Term{}, fmt.Errorf("%w: %s=%q is not a date-time", ErrInvalidValue, fv.Name, fv.Value)
		}
	default:
		value = fv.Value
	}
	return store.TypedLiteral(value, datatype), nil
}
