// Package runtime assembles the whole system from configuration: the
// testbed, the backend clients, the tool registry, the sub-agents, and
// the router on top.
package runtime

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/automateyournetwork/netagent/pkg/agent"
	"github.com/automateyournetwork/netagent/pkg/cmdb"
	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/inventory"
	"github.com/automateyournetwork/netagent/pkg/logger"
	"github.com/automateyournetwork/netagent/pkg/mailer"
	"github.com/automateyournetwork/netagent/pkg/poller"
	"github.com/automateyournetwork/netagent/pkg/reasoner"
	"github.com/automateyournetwork/netagent/pkg/router"
	"github.com/automateyournetwork/netagent/pkg/session"
	"github.com/automateyournetwork/netagent/pkg/ticketing"
	"github.com/automateyournetwork/netagent/pkg/tools"
)

// Runtime is the fully wired system.
type Runtime struct {
	config  *config.Config
	testbed *inventory.Testbed
	router  *router.Router
}

// Option adjusts runtime construction.
type Option func(*options)

type options struct {
	transportFactory session.TransportFactory
	clock            poller.Clock
	reasoner         reasoner.Reasoner
	describer        reasoner.Describer
}

// WithTransportFactory supplies the device transport. There is no
// built-in transport; deployments wire in SSH, telnet, or a simulator.
func WithTransportFactory(factory session.TransportFactory) Option {
	return func(o *options) { o.transportFactory = factory }
}

// WithClock overrides the poller clock.
func WithClock(clock poller.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithReasoner overrides the configured reasoning provider.
func WithReasoner(r reasoner.Reasoner, d reasoner.Describer) Option {
	return func(o *options) {
		o.reasoner = r
		o.describer = d
	}
}

// New builds a runtime from validated configuration. Every agent's tool
// subset is checked here; a config referencing an unknown tool never
// starts.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	o := &options{clock: poller.NewRealClock()}
	for _, opt := range opts {
		opt(o)
	}
	if o.transportFactory == nil {
		o.transportFactory = unwiredTransportFactory
	}

	testbed, err := inventory.Load(cfg.Inventory)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	var propose reasoner.Reasoner = o.reasoner
	var describe reasoner.Describer = o.describer
	if propose == nil {
		provider, err := reasoner.New(cfg.Reasoner)
		if err != nil {
			return nil, fmt.Errorf("runtime: %w", err)
		}
		propose = provider
		describe = provider
	}

	manager := session.NewManager(testbed, o.transportFactory, cfg.Session.CommandTimeout)
	installPoller := poller.New(cfg.Install.Attempts, cfg.Install.Interval, cfg.Install.ProbeTimeout, o.clock)

	registry := tools.NewToolRegistry()
	deviceTools := tools.NewDeviceTools(testbed, manager, installPoller, cfg.Install)
	cmdbTools := tools.NewCMDBTools(cmdb.NewClient(cfg.CMDB))
	ticketTools := tools.NewTicketTools(ticketing.NewClient(cfg.Ticketing))

	for _, tool := range []tools.Tool{
		deviceTools.Structured(),
		deviceTools.Raw(),
		cmdbTools.Get(),
		cmdbTools.Create(),
		cmdbTools.Delete(),
		ticketTools.Get(),
		ticketTools.Create(),
		ticketTools.Update(),
		tools.NewDescribeImageTool(describe),
		tools.NewSendEmailTool(mailer.New(cfg.Mailer)),
	} {
		if err := registry.RegisterTool(tool); err != nil {
			return nil, fmt.Errorf("runtime: %w", err)
		}
	}

	engine := agent.NewEngine(registry, propose)

	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	agents := make([]*agent.SubAgent, 0, len(names))
	for _, name := range names {
		sub, err := agent.NewSubAgent(name, cfg.Agents[name], registry)
		if err != nil {
			return nil, fmt.Errorf("runtime: %w", err)
		}
		if cfg.Agents[name].Device != "" {
			if _, err := testbed.Get(cfg.Agents[name].Device); err != nil {
				return nil, fmt.Errorf("runtime: agent '%s': %w", name, err)
			}
		}
		agents = append(agents, sub)
	}

	rt, err := router.New(cfg.Router, engine, propose, describe, agents)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	logger.Info("Runtime assembled", "agents", len(agents), "devices", len(testbed.Devices), "tools", registry.Count())
	return &Runtime{config: cfg, testbed: testbed, router: rt}, nil
}

// Router exposes the request entry point.
func (r *Runtime) Router() *router.Router {
	return r.router
}

// Testbed exposes the loaded inventory.
func (r *Runtime) Testbed() *inventory.Testbed {
	return r.testbed
}

func unwiredTransportFactory(device *inventory.Device) session.Transport {
	return unwiredTransport{device: device}
}

// unwiredTransport is what a runtime gets when no transport was
// configured. Every connect fails with an actionable message instead of
// a nil panic deep in a session.
type unwiredTransport struct {
	device *inventory.Device
}

func (t unwiredTransport) Connect(ctx context.Context) error {
	return fmt.Errorf("no device transport configured for %s; wire one in with runtime.WithTransportFactory", t.device.Name)
}

func (t unwiredTransport) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	return "", fmt.Errorf("no device transport configured")
}

func (t unwiredTransport) Disconnect() error {
	return nil
}
