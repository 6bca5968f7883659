package main

import (
	"strings"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx/fxevent"
)

// zerologEventLogger routes fx lifecycle events to the global zerolog logger.
type zerologEventLogger struct{}

func (l *zerologEventLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("module", "fx").Str("callee", e.FunctionName).Msg("OnStart hook failed")
			return
		}
		log.Debug().Str("module", "fx").Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("OnStart hook executed")
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("module", "fx").Str("callee", e.FunctionName).Msg("OnStop hook failed")
			return
		}
		log.Debug().Str("module", "fx").Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("OnStop hook executed")
	case *fxevent.Provided:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("module", "fx").Str("constructor", e.ConstructorName).Msg("provide failed")
			return
		}
		log.Debug().Str("module", "fx").Str("constructor", e.ConstructorName).Str("types", strings.Join(e.OutputTypeNames, ",")).Msg("provided")
	case *fxevent.Invoked:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("module", "fx").Str("function", e.FunctionName).Msg("invoke failed")
		}
	case *fxevent.Started:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("module", "fx").Msg("start failed")
			return
		}
		log.Info().Str("module", "fx").Msg("started")
	case *fxevent.Stopping:
		log.Info().Str("module", "fx").Str("signal", e.Signal.String()).Msg("received signal")
	case *fxevent.Stopped:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("module", "fx").Msg("stop failed")
		}
	case *fxevent.RolledBack:
		log.Error().Err(e.Err).Str("module", "fx").Msg("start failed, rolled back")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("module", "fx").Msg("custom logger initialization failed")
		}
	}
}
