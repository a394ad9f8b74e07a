package entity

import (
	"github.com/shopspring/decimal"

	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
)

// Product is a sellable item. It holds a non-owning reference to exactly one
// Category; the reference can be repointed but never cleared.
type Product struct {
	Identity
	name        string
	price       decimal.Decimal
	description *string
	imageURL    string
	category    *Category
}

// ProductOption sets optional Product fields at construction.
type ProductOption func(*Product)

// WithDescription attaches free-text description.
func WithDescription(description string) ProductOption {
	return func(p *Product) {
		d := description
		p.description = &d
	}
}

// WithImageURL attaches a previously uploaded image.
func WithImageURL(url string) ProductOption {
	return func(p *Product) { p.imageURL = url }
}

// NewProduct is the only validated way to build a new Product.
func NewProduct(name string, price decimal.Decimal, category *Category, opts ...ProductOption) (*Product, error) {
	if err := requirePresent(name, "product name", "nome do produto não pode ser nulo ou vazio"); err != nil {
		return nil, err
	}
	if err := requireCategory(category); err != nil {
		return nil, err
	}
	if err := requirePrice(price); err != nil {
		return nil, err
	}
	p := &Product{name: name, price: price, category: category}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RestoreProduct rebuilds a persisted Product, running the same invariants.
func RestoreProduct(id int64, name string, price decimal.Decimal, category *Category, opts ...ProductOption) (*Product, error) {
	p, err := NewProduct(name, price, category, opts...)
	if err != nil {
		return nil, err
	}
	p.AssignID(id)
	return p, nil
}

func (p *Product) Kind() Kind { return KindProduct }

func (p *Product) Name() string { return p.name }

func (p *Product) Price() decimal.Decimal { return p.price }

func (p *Product) Category() *Category { return p.category }

func (p *Product) ImageURL() string { return p.imageURL }

// Description returns the description and whether one is set.
func (p *Product) Description() (string, bool) {
	if p.description == nil {
		return "", false
	}
	return *p.description, true
}

func (p *Product) Rename(newName string) error {
	if err := requirePresent(newName, "new product name", "o novo nome do produto não pode ser nulo ou vazio"); err != nil {
		return err
	}
	p.name = newName
	return nil
}

func (p *Product) Reprice(newPrice decimal.Decimal) error {
	if err := requirePrice(newPrice); err != nil {
		return err
	}
	p.price = newPrice
	return nil
}

func (p *Product) Recategorize(newCategory *Category) error {
	if err := requireCategory(newCategory); err != nil {
		return err
	}
	p.category = newCategory
	return nil
}

// Describe replaces the description; nil clears it.
func (p *Product) Describe(description *string) {
	if description == nil {
		p.description = nil
		return
	}
	d := *description
	p.description = &d
}

func (p *Product) SetImageURL(url string) {
	p.imageURL = url
}

// maxPrice is the first value that no longer fits NUMERIC(12,2).
var maxPrice = decimal.New(1, 10)

func requirePrice(price decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return apperr.NewValidation("price", "o preço não pode ser negativo")
	case !price.Equal(price.Truncate(2)):
		return apperr.NewValidation("price", "o preço aceita no máximo duas casas decimais")
	case price.GreaterThanOrEqual(maxPrice):
		return apperr.NewValidation("price", "o preço excede o valor máximo permitido")
	}
	return nil
}

func requireCategory(category *Category) error {
	if category == nil {
		return apperr.NewValidation("category", "a categoria é obrigatória")
	}
	return nil
}
