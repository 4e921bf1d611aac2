package provider

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"cloud.google.com/go/civil"

	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

var (
	generatedCities  = []string{"Helsinki", "Jyvaskyla", "Tampere"}
	addressSuffixes  = []string{"Street", "Lane", "Road", "Avenue", "Boulevard", "Circle", "Park"}
	addressMarks     = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	generationCenter = civil.Date{Year: 2023, Month: 7, Day: 1}
)

// GenerateOptions controls GenerateCatalog.
type GenerateOptions struct {
	Count int
	Seed  uint64
	// Center is the date availability periods cluster around.
	Center civil.Date
	// Spread is how many days before or after Center a period may start.
	Spread int
}

// DefaultGenerateOptions returns options for a 40 cottage catalog around
// the summer of 2023.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Count:  40,
		Seed:   1,
		Center: generationCenter,
		Spread: 20,
	}
}

// GenerateCatalog builds a random catalog. The same options always give the
// same graph.
func GenerateCatalog(ns vocab.Namespaces, opts GenerateOptions) *store.Graph {
	if !opts.Center.IsValid() {
		opts.Center = generationCenter
	}
	spread := max(opts.Spread, 0)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	g := store.NewGraph()
	ns.Bind(g)
	rdfType := store.IRI(store.RDFType)
	integer := func(n int) store.Term {
		return store.TypedLiteral(strconv.Itoa(n), store.XSDInt)
	}
	date := func(d civil.Date) store.Term {
		return store.TypedLiteral(d.String(), store.XSDDate)
	}
	between := func(lo, hi int) int {
		return lo + rng.IntN(hi-lo+1)
	}

	for i := 1; i <= opts.Count; i++ {
		node := ns.Resource(fmt.Sprintf("Cottage%d", i))
		city := generatedCities[rng.IntN(len(generatedCities))]
		address := fmt.Sprintf("%s %c %s", city,
			addressMarks[rng.IntN(len(addressMarks))],
			addressSuffixes[rng.IntN(len(addressSuffixes))])
		start := opts.Center.AddDays(between(-spread, spread))
		end := start.AddDays(between(0, 29))

		_ = g.BulkAdd([]store.Triple{
			store.NewTriple(node, rdfType, ns.CottageClass()),
			store.NewTriple(node, ns.Term(vocab.FieldHasAddress), store.Literal(address)),
			store.NewTriple(node, ns.Term(vocab.FieldNumberOfPlaces), integer(between(1, 5))),
			store.NewTriple(node, ns.Term(vocab.FieldNumberOfBedrooms), integer(between(1, 4))),
			store.NewTriple(node, ns.Term(vocab.FieldDistanceFromLake), integer(between(10, 1000))),
			store.NewTriple(node, ns.Term(vocab.FieldCityName), store.Literal(city)),
			store.NewTriple(node, ns.Term(vocab.FieldDistanceFromCity), integer(between(6, 20))),
			store.NewTriple(node, ns.Term(vocab.FieldStartDate), date(start)),
			store.NewTriple(node, ns.Term(vocab.FieldEndDate), date(end)),
			store.NewTriple(node, ns.Term(vocab.FieldHasImageURL),
				store.Literal(fmt.Sprintf("http://example.org/images/cottage%d.jpg", i))),
		})
	}
	return g
}
