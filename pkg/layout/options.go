package layout

import (
	"context"

	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/perrors"
	"github.com/fplayout/fplayout/pkg/plugin"
)

// builtInOptions lists the engine's own recognised options, independent of anything a plugin declares.
func builtInOptions() []plugin.OptionDecl {
	return []plugin.OptionDecl{
		{Name: pconfig.OptionVersionConvergence, Required: false, Persistent: true, Default: string(pconfig.FirstProcessed)},
	}
}

// initPluginOptions runs the 5-step option reconciliation: overlay
// extraOptions onto config.options, enumerate recognised options from
// built-ins plus every discovered plugin, enforce required options, drop
// or reject options no recognised option claims, and fold persistent
// overrides back into the config.
func (l *ProvisioningLayout[F]) initPluginOptions(ctx context.Context, extraOptions map[string]string, cleanupConfigOptions bool) error {
	recognised := make(map[string]plugin.OptionDecl)
	for _, d := range builtInOptions() {
		recognised[d.Name] = d
	}
	if l.deps.Plugins != nil {
		collect := func(id, producer string, opts []plugin.OptionDecl) error {
			for _, d := range opts {
				recognised[d.Name] = d
			}
			return nil
		}
		if err := l.deps.Plugins.VisitPlugins(ctx, plugin.KindFeaturePack, collect); err != nil {
			return err
		}
		if err := l.deps.Plugins.VisitPlugins(ctx, plugin.KindPatch, collect); err != nil {
			return err
		}
	}

	configOptions := l.config.Options()
	effective := make(map[string]string, len(configOptions)+len(extraOptions))
	for k, v := range configOptions {
		effective[k] = v
	}
	for k, v := range extraOptions {
		effective[k] = v
	}

	for name, decl := range recognised {
		if decl.Required {
			if _, ok := effective[name]; !ok {
				return perrors.New(perrors.ReasonPluginOptionRequired, "required option is not set").WithDetail("option", name)
			}
		}
	}

	var unrecognised []string
	for name := range effective {
		if _, ok := recognised[name]; ok {
			continue
		}
		if cleanupConfigOptions {
			continue
		}
		unrecognised = append(unrecognised, name)
	}
	if len(unrecognised) > 0 {
		return perrors.PluginOptionsNotRecognised(unrecognised)
	}

	builder := pconfig.From(l.config)
	for name, decl := range recognised {
		overrideValue, overridden := extraOptions[name]
		if !overridden {
			continue
		}
		if decl.Persistent {
			builder.SetOption(name, overrideValue)
			continue
		}
		configValue, inConfig := configOptions[name]
		if inConfig && configValue == overrideValue {
			continue
		}
		builder.RemoveOption(name)
	}
	if cleanupConfigOptions {
		for name := range configOptions {
			if _, ok := recognised[name]; !ok {
				builder.RemoveOption(name)
			}
		}
	}
	l.config = builder.Build()
	return nil
}
