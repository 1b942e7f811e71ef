package models

import "github.com/google/uuid"

// ensureID vergibt eine UUID, falls der Aufrufer keine ID gesetzt hat.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
