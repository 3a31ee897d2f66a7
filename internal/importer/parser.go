package importer

import (
	"slices"
	"sort"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

// Parser extracts raw statement records from one bank's documents.
// Implementations are stateless and keep document order.
type Parser interface {
	Bank() string
	Formats() []document.Format
	Parse(doc *document.Document) ([]model.RawRecord, error)
}

// Registry holds parsers keyed by bank identifier.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate bank.
func (r *Registry) Register(p Parser) {
	key := strings.ToUpper(p.Bank())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser bank: " + key)
	}
	r.parsers[key] = p
}

// Resolve returns the parser for bank, case-insensitively.
func (r *Registry) Resolve(bank string) (Parser, error) {
	p, ok := r.parsers[strings.ToUpper(strings.TrimSpace(bank))]
	if !ok {
		return nil, &model.UnsupportedBankError{Bank: bank}
	}
	return p, nil
}

// Banks returns the registered bank identifiers, sorted.
func (r *Registry) Banks() []string {
	banks := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		banks = append(banks, k)
	}
	sort.Strings(banks)
	return banks
}

// Supports reports whether p can read documents of format f.
func Supports(p Parser, f document.Format) bool {
	return slices.Contains(p.Formats(), f)
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&InterParser{})
	r.Register(&NubankParser{})
	r.Register(&SicrediParser{})
	r.Register(&ItauParser{})
	r.Register(&BBParser{})
	r.Register(&SantanderParser{})
	r.Register(&BTGParser{})
	return r
}

// number assigns row positions in document order.
func number(records []model.RawRecord) []model.RawRecord {
	for i := range records {
		records[i].Row = i + 1
	}
	return records
}
