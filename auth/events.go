package auth

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/cmskit/clientlogin/domain"
)

// ProfilesTable is the table name carried on emitted events so external
// subscribers can locate the backing records.
const ProfilesTable = "profiles"

// LogDispatcher is the default EventDispatcher: it records login/logout
// events in the structured log. Host applications replace it with their own
// subscriber wiring.
type LogDispatcher struct{}

// Dispatch implements domain.EventDispatcher.
func (d *LogDispatcher) Dispatch(_ context.Context, event domain.Event) error {
	logger := log.Info().
		Str("event", string(event.Type)).
		Str("table", event.Table).
		Time("at", event.At)
	if event.Profile != nil {
		logger = logger.
			Str("provider", event.Profile.Provider).
			Str("resourceOwnerID", event.Profile.ResourceOwnerID).
			Str("guid", event.Profile.GUID)
	}
	logger.Msg("Authentication event")
	return nil
}

var _ domain.EventDispatcher = (*LogDispatcher)(nil)
