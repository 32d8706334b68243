package cli

import "fmt"

type badIDError struct {
	kind  string
	value string
}

func (e badIDError) Error() string {
	return fmt.Sprintf("invalid %s id: %q", e.kind, e.value)
}

func errBadID(kind, value string) error {
	return badIDError{kind: kind, value: value}
}
