package entity

// Category groups products. Its name is unique across categories; uniqueness
// is enforced by the store at commit time, not here.
type Category struct {
	Identity
	name string
}

// NewCategory is the only validated way to build a new Category.
func NewCategory(name string) (*Category, error) {
	if err := requirePresent(name, "category name", "nome da categoria não pode ser nulo ou vazio"); err != nil {
		return nil, err
	}
	return &Category{name: name}, nil
}

// RestoreCategory rebuilds a persisted Category, running the same invariants.
func RestoreCategory(id int64, name string) (*Category, error) {
	c, err := NewCategory(name)
	if err != nil {
		return nil, err
	}
	c.AssignID(id)
	return c, nil
}

func (c *Category) Kind() Kind { return KindCategory }

func (c *Category) Name() string { return c.name }

// Rename replaces the name, leaving it untouched when newName is blank.
func (c *Category) Rename(newName string) error {
	if err := requirePresent(newName, "new category name", "o novo nome da categoria não pode ser nulo ou vazio"); err != nil {
		return err
	}
	c.name = newName
	return nil
}
