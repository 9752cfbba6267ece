package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/tmuras/teamctl/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.InitTests()
	log.Info().Str("test", t.Name()).Msg("start")
}
