package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/previewsim/internal/provider"
	"github.com/srg/previewsim/internal/subscription"
	"github.com/srg/previewsim/pkg/config"
	"github.com/srg/previewsim/pkg/facade"
	"github.com/srg/previewsim/pkg/mocks"
)

// simulator is the fully wired runtime one command works against
type simulator struct {
	cfg        *config.Config
	logger     *logrus.Logger
	catalog    *provider.Catalog
	script     *provider.Script
	facade     *facade.Facade
	namespaces map[string]*facade.Namespace
	printer    *printer
}

// loadConfig reads --config when given and applies --output
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		cfg.OutputFormat = output
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newSimulator wires config, logging, providers, registry and namespaces
func newSimulator(cmd *cobra.Command) (*simulator, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, "verbose", cfg)
	if err != nil {
		return nil, err
	}

	journal, err := facade.NewJournal(cfg.JournalSize)
	if err != nil {
		return nil, err
	}

	script := provider.NewScript(logger)
	for api, path := range cfg.Scripts {
		if err := script.DefineFile(api, path); err != nil {
			script.Close()
			return nil, err
		}
	}

	catalog := provider.NewCatalog()
	registry := subscription.NewRegistry(logger, subscription.WithDefaultInterval(cfg.DefaultInterval))
	f := facade.New(logger, provider.Chain(script, catalog), registry, facade.WithJournal(journal))

	sim := &simulator{
		cfg:        cfg,
		logger:     logger,
		catalog:    catalog,
		script:     script,
		facade:     f,
		namespaces: make(map[string]*facade.Namespace),
		printer:    newPrinter(cmd.OutOrStdout(), cfg.OutputFormat),
	}

	installers := mocks.Installers()
	names := cfg.Namespaces
	if len(names) == 0 {
		for name := range installers {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		install, ok := installers[name]
		if !ok {
			sim.Close()
			return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, name)
		}
		sim.namespaces[name] = install(f, catalog, cfg.DefaultInterval)
	}

	logger.WithFields(logrus.Fields{
		"namespaces": strings.Join(names, ","),
		"scripts":    len(cfg.Scripts),
		"interval":   cfg.DefaultInterval,
	}).Debug("Simulator ready")

	return sim, nil
}

// namespace looks up an installed namespace
func (s *simulator) namespace(name string) (*facade.Namespace, error) {
	ns, ok := s.namespaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, name)
	}
	return ns, nil
}

// apis returns every API the simulator can answer for namespace, sorted
func (s *simulator) apis(namespace string) []string {
	prefix := namespace + "."
	seen := make(map[string]struct{})
	for _, api := range append(s.catalog.APIs(), s.script.APIs()...) {
		if strings.HasPrefix(api, prefix) {
			seen[strings.TrimPrefix(api, prefix)] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for api := range seen {
		out = append(out, api)
	}
	sort.Strings(out)
	return out
}

// Close stops every stream and releases the Lua state
func (s *simulator) Close() {
	s.facade.Close()
	s.script.Close()
}
