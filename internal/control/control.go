package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"snipewatch/internal/tracker"
	"snipewatch/pkg/config"
)

const ActionSwitchTarget = "switch_target"

// Command is a message read from the control queue.
type Command struct {
	Action  string `json:"action"`
	Address string `json:"address"`
}

// Switcher is satisfied by *tracker.Controller.
type Switcher interface {
	SwitchTarget(ctx context.Context, address, source string) error
}

// Handler turns control messages into controller calls.
type Handler struct {
	switcher Switcher
}

func NewHandler(s Switcher) *Handler {
	return &Handler{switcher: s}
}

// Handle has the config.Consumer handler signature. Messages that can never
// succeed are wrapped in config.ErrDiscard.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return fmt.Errorf("%w: invalid control message: %v", config.ErrDiscard, err)
	}

	switch cmd.Action {
	case ActionSwitchTarget:
		err := h.switcher.SwitchTarget(ctx, cmd.Address, tracker.SourceControl)
		if errors.Is(err, tracker.ErrInvalidAddress) {
			return fmt.Errorf("%w: %v", config.ErrDiscard, err)
		}
		if err != nil {
			return err
		}
		log.WithField("address", cmd.Address).Info("Control command applied")
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", config.ErrDiscard, cmd.Action)
	}
}
