package align

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/coolbeans/rdgmed/pkg/store"
)

// ErrAlignmentExists is returned when an alignment file for the same second
// already exists. Existing files are never overwritten.
var ErrAlignmentExists = errors.New("alignment file already exists")

// Selection is one confirmed correspondence between a reference term and a
// candidate term, both given as IRIs.
type Selection struct {
	Reference string
	Candidate string
}

// Persister writes confirmed selections as owl:sameAs triples.
type Persister struct {
	dir string
	now func() time.Time
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithClock sets the time source used to name files.
func WithClock(now func() time.Time) PersisterOption {
	return func(p *Persister) {
		p.now = now
	}
}

// NewPersister creates a persister writing into dir.
func NewPersister(dir string, opts ...PersisterOption) *Persister {
	p := &Persister{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dir returns the directory alignments are written to.
func (p *Persister) Dir() string {
	return p.dir
}

// alignmentSerializer declares owl only; alignment files hold nothing else.
var alignmentSerializer = store.NewTurtleSerializer(
	store.WithoutDefaultPrefixes(),
	store.WithPrefix("owl", store.NamespaceOWL),
)

// Graph returns the sameAs graph for a set of selections. Selections with an
// empty side are skipped.
func Graph(selections []Selection) *store.Graph {
	g := store.NewGraph()
	g.Bind("owl", store.NamespaceOWL)

	sameAs := store.IRI(store.OWLSameAs)
	for _, sel := range selections {
		if sel.Reference == "" || sel.Candidate == "" {
			continue
		}
		_ = g.Add(store.IRI(sel.Reference), sameAs, store.IRI(sel.Candidate))
	}
	return g
}

// Save writes the selections to alignment-YYYYMMDD-HHMMSS.ttl in the
// persister's directory and returns the file path. Two saves within the same
// second collide and the second returns ErrAlignmentExists.
func (p *Persister) Save(selections []Selection) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create alignment dir: %w", err)
	}

	name := fmt.Sprintf("alignment-%s.ttl", p.now().Format("20060102-150405"))
	path := filepath.Join(p.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrAlignmentExists, path)
		}
		return "", fmt.Errorf("create alignment file: %w", err)
	}

	if _, err := f.WriteString(alignmentSerializer.Serialize(Graph(selections))); err != nil {
		f.Close()
		return "", fmt.Errorf("write alignment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close alignment file: %w", err)
	}
	return path, nil
}
