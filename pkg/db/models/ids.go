package models

import "github.com/google/uuid"

// assignID gives rows a uuid before insert so sqlite and Postgres behave alike.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
