package capture

import (
	"Mansoor88-6/session-replay/internal/models"
)

// Source produces captured events. Start hands the source an emit
// function; the source calls it for every captured event until Stop.
type Source interface {
	Start(emit func(models.EventRecord)) error
	Stop() error
}
