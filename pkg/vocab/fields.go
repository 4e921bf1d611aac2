package vocab

import "github.com/coolbeans/rdgmed/pkg/store"

// Kind is the value type of a field. It picks the datatype used when a
// template gives no literal to copy one from.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindDate
)

// Datatype returns the XSD datatype IRI written for the kind. Strings are
// plain literals.
func (k Kind) Datatype() string {
	switch k {
	case KindInteger:
		return store.XSDInt
	case KindDate:
		return store.XSDDate
	default:
		return ""
	}
}

// Field is one named property of a request or offering.
type Field struct {
	Name  string
	Kind  Kind
	Label string
}

// Request field names, as used in forms and as vocabulary local names.
const (
	FieldBookerName       = "booker_name"
	FieldNumberOfPlaces   = "numberOfPlaces"
	FieldNumberOfBedrooms = "numberOfBedrooms"
	FieldCityName         = "cityName"
	FieldDistanceFromCity = "distanceFromCity"
	FieldDistanceFromLake = "distanceFromLake"
	FieldStartDate        = "startDate"
	FieldDuration         = "duration"
	FieldMaxShiftDays     = "maxShiftDays"
)

// Offering-only field names.
const (
	FieldHasAddress  = "hasAddress"
	FieldHasImageURL = "hasImageURL"
	FieldEndDate     = "endDate"
)

// RequestFields lists the booking request fields in form order.
var RequestFields = []Field{
	{FieldBookerName, KindString, "Name of booker"},
	{FieldNumberOfPlaces, KindInteger, "Number of places (people)"},
	{FieldNumberOfBedrooms, KindInteger, "Number of bedrooms"},
	{FieldCityName, KindString, "City"},
	{FieldDistanceFromCity, KindInteger, "Max distance to city"},
	{FieldDistanceFromLake, KindInteger, "Max distance to lake (m)"},
	{FieldStartDate, KindDate, "Booking start date (yyyy-mm-dd)"},
	{FieldDuration, KindInteger, "Booking duration (days)"},
	{FieldMaxShiftDays, KindInteger, "Max shift days (+/-)"},
}

// OfferingFields lists the properties of an offering in display order.
var OfferingFields = []Field{
	{FieldHasAddress, KindString, "Address"},
	{FieldHasImageURL, KindString, "Image"},
	{FieldCityName, KindString, "City"},
	{FieldDistanceFromCity, KindInteger, "Distance to city"},
	{FieldDistanceFromLake, KindInteger, "Distance to lake"},
	{FieldNumberOfBedrooms, KindInteger, "Number of bedrooms"},
	{FieldNumberOfPlaces, KindInteger, "Number of places"},
	{FieldStartDate, KindDate, "Available from"},
	{FieldEndDate, KindDate, "Available until"},
}

// FieldTable resolves predicate IRIs to field names.
type FieldTable struct {
	byPredicate map[string]Field
}

// NewFieldTable indexes fields under the vocabulary namespace of ns.
func NewFieldTable(ns Namespaces, fields []Field) FieldTable {
	table := FieldTable{byPredicate: make(map[string]Field, len(fields))}
	for _, field := range fields {
		table.byPredicate[ns.Term(field.Name).Value] = field
	}
	return table
}

// Lookup returns the field a predicate stands for.
func (t FieldTable) Lookup(predicate store.Term) (Field, bool) {
	field, ok := t.byPredicate[predicate.Value]
	return field, ok && predicate.IsIRI()
}

// Len returns the number of fields in the table.
func (t FieldTable) Len() int {
	return len(t.byPredicate)
}

// FieldByName finds a field in a catalogue.
func FieldByName(fields []Field, name string) (Field, bool) {
	for _, field := range fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}
