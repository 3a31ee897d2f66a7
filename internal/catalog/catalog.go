// Package catalog holds the financial categories a transaction can be
// reconciled against.
package catalog

import (
	"fmt"
	"os"
	"strings"
)

// Category is a financial category.
type Category struct {
	Code   string `yaml:"code" json:"code"`
	Name   string `yaml:"name" json:"name"`
	Active bool   `yaml:"active" json:"active"`
}

// Service provides in-memory lookup over the categories.
type Service struct {
	categories []Category
	byCode     map[string]Category
}

// NewService creates a Service from a slice of categories. Codes are matched
// case-insensitively.
func NewService(categories []Category) *Service {
	byCode := make(map[string]Category, len(categories))
	for _, c := range categories {
		byCode[strings.ToUpper(c.Code)] = c
	}
	return &Service{categories: categories, byCode: byCode}
}

// Load reads a categories CSV file and returns a Service.
func Load(path string) (*Service, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening categories: %w", err)
	}
	defer f.Close()

	cats, err := ReadCategories(f)
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	return NewService(cats), nil
}

// All returns all categories.
func (s *Service) All() []Category {
	return s.categories
}

// Get returns a category by code.
func (s *Service) Get(code string) (Category, bool) {
	c, ok := s.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Exists reports whether an active category with this code exists.
func (s *Service) Exists(code string) bool {
	c, ok := s.Get(code)
	return ok && c.Active
}

// DefaultCategories returns the categories a new installation starts with.
func DefaultCategories() []Category {
	return []Category{
		{Code: "RECEITA_SERVICOS", Name: "Receita de serviços", Active: true},
		{Code: "REEMBOLSO_CLIENTE", Name: "Reembolso de cliente", Active: true},
		{Code: "ADIANTAMENTO", Name: "Adiantamento de cliente", Active: true},
		{Code: "IMPOSTOS", Name: "Impostos e taxas", Active: true},
		{Code: "TARIFAS", Name: "Tarifas bancárias", Active: true},
		{Code: "FORNECEDORES", Name: "Pagamento a fornecedores", Active: true},
		{Code: "FRETE", Name: "Frete e despacho", Active: true},
		{Code: "TRANSFERENCIA", Name: "Transferência entre contas", Active: true},
	}
}
