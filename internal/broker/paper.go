package broker

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PaperBroker accepts every order without touching a live account. Used
// when live trading is disabled; the engine's bookkeeping runs unchanged.
type PaperBroker struct{}

func NewPaperBroker() *PaperBroker {
	log.Info().Msg("📝 Paper broker active - orders are simulated")
	return &PaperBroker{}
}

func (p *PaperBroker) SubmitOrder(_ context.Context, side Side, size int) (string, error) {
	id := "paper-" + uuid.NewString()
	log.Info().
		Str("order_id", id).
		Str("side", side.String()).
		Int("size", size).
		Msg("Paper order accepted")
	return id, nil
}
