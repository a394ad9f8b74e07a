package entity

// Kind identifies an aggregate type.
type Kind string

const (
	KindUser     Kind = "user"
	KindCategory Kind = "category"
	KindProduct  Kind = "product"
)

// Aggregate is implemented by User, Category and Product so the persistence
// gateway can stage them without knowing their fields.
type Aggregate interface {
	Kind() Kind
	ID() int64
	AssignID(id int64)
}

// Identity is the opaque numeric id assigned by the gateway on commit.
// A zero id means the aggregate has not been persisted yet.
type Identity struct {
	id int64
}

func (i *Identity) ID() int64 { return i.id }

func (i *Identity) IsPending() bool { return i.id == 0 }

// AssignID sets the id once; later calls are ignored.
func (i *Identity) AssignID(id int64) {
	if i.id == 0 {
		i.id = id
	}
}
