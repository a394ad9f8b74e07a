package apperr

// Classifier turns persistence-gateway commit failures into taxonomy errors.
// IsDuplicate recognises the store's unique-constraint signal; it is the only
// inspection of low-level detail the core performs.
type Classifier struct {
	IsDuplicate func(error) bool
}

// Classify maps err for the given entity:
//   - nil stays nil
//   - an already classified *Error is returned unchanged
//   - a duplicate-key signal becomes Duplicate
//   - anything else becomes Unexpected, keeping the cause for logs
func (c Classifier) Classify(err error, entity Entity) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if c.IsDuplicate != nil && c.IsDuplicate(err) {
		return NewDuplicate(entity)
	}
	return NewUnexpected(entity, err)
}
