package sources

import (
	"qbank/internal/logger"
	"qbank/internal/plugin"
)

// DefaultRegistry registers every built-in source not disabled in the configuration.
func DefaultRegistry(env *plugin.Env, log *logger.Logger) *plugin.Registry {
	if log == nil {
		log = logger.Discard()
	}

	reg := plugin.NewRegistry(log)

	for _, p := range []plugin.Plugin{
		NewEnamed(env),
		NewEnare(env),
		NewRevalida(env),
		NewUSP(env),
		NewSusSP(env),
	} {
		if env.Config.Source(p.Info().ID).Disabled {
			log.Debug("source disabled", "plugin", p.Info().ID)

			continue
		}

		reg.Register(p)
	}

	return reg
}
