package runtime

import (
	"time"

	"github.com/rs/zerolog"
)

// traceFn logs entry and exit of an executor operation at trace level. Use as
// defer traceFn(logger, "name", id)().
func traceFn(logger zerolog.Logger, name string, id uint32) func() {
	if logger.GetLevel() > zerolog.TraceLevel {
		return func() {}
	}
	start := time.Now()
	logger.Trace().Str("op", name).Uint32("id", id).Msg("enter")
	return func() {
		logger.Trace().Str("op", name).Uint32("id", id).Dur("took", time.Since(start)).Msg("exit")
	}
}
