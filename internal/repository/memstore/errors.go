package memstore

import "fmt"

type duplicateKeyError struct {
	constraint string
}

func (e *duplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key value violates unique constraint %q", e.constraint)
}

type foreignKeyError struct {
	constraint string
}

func (e *foreignKeyError) Error() string {
	return fmt.Sprintf("insert violates foreign key constraint %q", e.constraint)
}
