package entity

// User is a registered customer. Handle is the login name and is unique
// across users; the store enforces that at commit time.
//
// Credential is stored and compared as given. Hashing is opt-in at the
// application layer (CREDENTIAL_SCHEME); by default it is plaintext, which is
// a known weakness of this system.
type User struct {
	Identity
	name       string
	handle     string
	credential string
}

// NewUser is the only validated way to build a new User.
func NewUser(displayName, credential, handle string) (*User, error) {
	if err := requirePresent(displayName, "user name", "nome do usuário não pode ser nulo ou vazio"); err != nil {
		return nil, err
	}
	if err := requirePresent(credential, "credential", "senha não pode ser nula ou vazia"); err != nil {
		return nil, err
	}
	if err := requirePresent(handle, "handle", "username não pode ser nulo ou vazio"); err != nil {
		return nil, err
	}
	return &User{name: displayName, credential: credential, handle: handle}, nil
}

// RestoreUser rebuilds a persisted User, running the same invariants.
func RestoreUser(id int64, displayName, credential, handle string) (*User, error) {
	u, err := NewUser(displayName, credential, handle)
	if err != nil {
		return nil, err
	}
	u.AssignID(id)
	return u, nil
}

func (u *User) Kind() Kind { return KindUser }

func (u *User) Name() string { return u.name }

func (u *User) Handle() string { return u.handle }

func (u *User) Credential() string { return u.credential }
