package model

// Namespace is the client-chosen partition key. It scopes storage and delivery
// and carries no identity: anyone who knows it can read and write it.
type Namespace string

// Validate rejects only the empty namespace.
func (n Namespace) Validate() error {
	if n == "" {
		return &ClientInputError{Msg: "namespace must not be empty"}
	}
	return nil
}

func (n Namespace) String() string { return string(n) }
