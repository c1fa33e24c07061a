// Package orchestrator ties every other package together into the
// single entry point the CLI drives: it resolves jail start/stop
// order from the dependency graph, provisions each jail's filesystem,
// wires up networking and port forwarding, runs lifecycle hooks, and
// keeps the jail/health/restart subsystems in sync as jails come up
// and down.
package orchestrator

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"blackship/bulkhead"
	blackerr "blackship/errors"
	"blackship/jail"
	"blackship/logging"
	"blackship/manifest"
	"blackship/network"
	"blackship/sickbay"
	"blackship/warden"
	"blackship/zfs"
)

type ipAllocation struct {
	network string
	addr    string
}

// Fleet owns every running jail's lifecycle for one loaded manifest.
type Fleet struct {
	config manifest.Config

	graph *dependencyGraph

	zfsManager *zfs.Manager
	bulkhead   *bulkhead.Manager
	allocator  *network.Allocator

	mu             sync.Mutex
	instances      map[string]*jail.Instance
	allocatedIPs   map[string]ipAllocation
	vnetSetups     map[string]*network.Setup
	checkers       map[string]*sickbay.Checker
	checkerCancels map[string]context.CancelFunc

	verbose bool

	startLimiter *rate.Limiter
	probeSem     *semaphore.Weighted

	warden *warden.Warden
}

// maxConcurrentProbes bounds how many Sickbay health checks may run at
// once across the whole fleet, so a large fleet's tickers firing close
// together don't pile up dozens of concurrent `jail.Exec`/host-command
// invocations.
const maxConcurrentProbes = 8

// New builds a Fleet from a loaded manifest, initializing the ZFS base
// dataset (if enabled) and the IP pools declared by its networks.
func New(config manifest.Config) (*Fleet, error) {
	graph := newDependencyGraph()
	for _, j := range config.Jails {
		graph.addNode(j.Name)
	}
	for _, j := range config.Jails {
		for _, dep := range j.DependsOn {
			graph.addEdge(dep, j.Name)
		}
	}
	if _, err := graph.topoSort(); err != nil {
		return nil, err
	}

	var zfsManager *zfs.Manager
	if config.Global.ZFSEnabled {
		if config.Global.Zpool == "" {
			return nil, blackerr.New(blackerr.ErrConfigValidation, "create fleet", "ZFS enabled but no zpool configured")
		}
		zfsManager = zfs.New(config.Global.Zpool, config.Global.Dataset)
		if err := zfsManager.Init(); err != nil {
			return nil, err
		}
	}

	allocator := network.NewAllocator()
	for _, n := range config.Networks {
		subnet, err := netip.ParsePrefix(n.Subnet)
		if err != nil {
			return nil, blackerr.New(blackerr.ErrNetwork, "create fleet",
				fmt.Sprintf("invalid subnet %q for network %q: %s", n.Subnet, n.Name, err))
		}

		var pool *network.Pool
		if n.Gateway != "" {
			gw, err := netip.ParseAddr(n.Gateway)
			if err != nil {
				return nil, blackerr.New(blackerr.ErrNetwork, "create fleet", "invalid gateway for network "+n.Name)
			}
			pool, err = network.NewPoolWithGateway(subnet, gw)
			if err != nil {
				return nil, err
			}
		} else {
			pool, err = network.NewPool(subnet)
			if err != nil {
				return nil, err
			}
		}
		allocator.AddPool(n.Name, pool)
	}

	return &Fleet{
		config:       config,
		graph:        graph,
		zfsManager:   zfsManager,
		bulkhead:     bulkhead.NewManager(),
		allocator:    allocator,
		instances:    make(map[string]*jail.Instance),
		allocatedIPs: make(map[string]ipAllocation),
		vnetSetups:   make(map[string]*network.Setup),
		checkers:       make(map[string]*sickbay.Checker),
		checkerCancels: make(map[string]context.CancelFunc),
		startLimiter:   rate.NewLimiter(rate.Limit(1.0), int(config.Global.RateLimit.JailStartCapacity)),
		probeSem:       semaphore.NewWeighted(maxConcurrentProbes),
	}, nil
}

// Verbose toggles verbose logging for subsequent operations.
func (f *Fleet) Verbose(verbose bool) *Fleet {
	f.verbose = verbose
	return f
}

// SetWarden attaches a Warden to receive jail lifecycle notifications.
// The Warden's RestartFunc should be bound to f.RestartJail.
func (f *Fleet) SetWarden(w *warden.Warden) {
	f.warden = w
}

// StartOrder returns jail service names in dependency order.
func (f *Fleet) StartOrder() ([]string, error) {
	return f.graph.topoSort()
}

// StopOrder returns jail service names in reverse dependency order.
func (f *Fleet) StopOrder() ([]string, error) {
	order, err := f.StartOrder()
	if err != nil {
		return nil, err
	}
	reversed := make([]string, len(order))
	for i, name := range order {
		reversed[len(order)-1-i] = name
	}
	return reversed, nil
}

// Up starts every jail, or just name and its dependencies if given.
// Jails whose dependencies are already satisfied within the requested
// scope start concurrently, one dependency wave at a time.
func (f *Fleet) Up(name string) error {
	names, err := f.resolveStartSet(name)
	if err != nil {
		return err
	}
	included := make(map[string]bool, len(names))
	for _, n := range names {
		included[n] = true
	}

	levels, err := f.graph.topoLevels()
	if err != nil {
		return err
	}

	for _, level := range levels {
		g, _ := errgroup.WithContext(context.Background())
		for _, n := range level {
			if !included[n] {
				continue
			}
			n := n
			g.Go(func() error {
				return f.startJail(n)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Down stops every jail, or just name and its dependents if given.
func (f *Fleet) Down(name string) error {
	names, err := f.resolveStopSet(name)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := f.stopJail(n); err != nil {
			return err
		}
	}
	return nil
}

// Restart stops then starts the given scope.
func (f *Fleet) Restart(name string) error {
	if err := f.Down(name); err != nil {
		return err
	}
	return f.Up(name)
}

// RestartJail stops and starts a single jail, recovering it out of the
// Failed state first. This is the function the Warden calls back into.
func (f *Fleet) RestartJail(name string) error {
	logger := logging.WithJail(logging.Default(), name)
	logger.Info("orchestrator: restarting jail")

	f.mu.Lock()
	if inst, ok := f.instances[name]; ok && inst.State() == jail.Failed {
		inst.Recover()
	}
	f.mu.Unlock()

	if _, err := jail.GetID(f.fullName(name)); err == nil {
		if err := f.stopJail(name); err != nil {
			return err
		}
	}
	return f.startJail(name)
}

func (f *Fleet) resolveStartSet(name string) ([]string, error) {
	if name == "" {
		return f.StartOrder()
	}
	return f.dependenciesOf(name)
}

func (f *Fleet) resolveStopSet(name string) ([]string, error) {
	if name == "" {
		return f.StopOrder()
	}
	return f.dependentsOf(name)
}

// dependenciesOf returns name and every jail it transitively depends
// on, in start order.
func (f *Fleet) dependenciesOf(name string) ([]string, error) {
	order, err := f.StartOrder()
	if err != nil {
		return nil, err
	}
	if _, ok := f.graph.index[name]; !ok {
		return nil, blackerr.New(blackerr.ErrJailNotFound, "resolve dependencies", name)
	}
	needed := map[string]bool{name: true}
	for i := len(order) - 1; i >= 0; i-- {
		for _, dependent := range f.graph.edges[order[i]] {
			if needed[dependent] {
				needed[order[i]] = true
			}
		}
	}
	var names []string
	for _, n := range order {
		if needed[n] {
			names = append(names, n)
		}
	}
	return names, nil
}

// dependentsOf returns name and every jail that transitively depends
// on it, in stop order.
func (f *Fleet) dependentsOf(name string) ([]string, error) {
	order, err := f.StopOrder()
	if err != nil {
		return nil, err
	}
	if _, ok := f.graph.index[name]; !ok {
		return nil, blackerr.New(blackerr.ErrJailNotFound, "resolve dependents", name)
	}
	needed := map[string]bool{name: true}
	for i := len(order) - 1; i >= 0; i-- {
		if needed[order[i]] {
			for _, dependent := range f.graph.edges[order[i]] {
				needed[dependent] = true
			}
		}
	}
	var names []string
	for _, n := range order {
		if needed[n] {
			names = append(names, n)
		}
	}
	return names, nil
}

func (f *Fleet) fullName(serviceName string) string {
	return f.config.JailName(serviceName)
}

// Check validates the loaded configuration and reports the resolved
// start order, ZFS status, and jail path existence.
func (f *Fleet) Check() (CheckReport, error) {
	order, err := f.StartOrder()
	if err != nil {
		return CheckReport{}, err
	}

	report := CheckReport{
		StartOrder: order,
		ZFSEnabled: f.zfsManager != nil,
	}
	for _, j := range f.config.Jails {
		path := j.EffectivePath(f.config.Global, f.fullName(j.Name))
		_, statErr := os.Stat(path)
		report.JailPaths = append(report.JailPaths, JailPathStatus{
			Name:   j.Name,
			Path:   path,
			Exists: statErr == nil,
		})
	}
	return report, nil
}

// CheckReport is the structured result of Check.
type CheckReport struct {
	StartOrder []string
	ZFSEnabled bool
	JailPaths  []JailPathStatus
}

// JailPathStatus reports whether a jail's effective path currently exists.
type JailPathStatus struct {
	Name   string
	Path   string
	Exists bool
}

// JailStatus is one jail's reported state for Ps.
type JailStatus struct {
	Name  string
	State string
	Jid   int
	HasID bool
	IP    string
	Path  string
}

// Ps reports the current state of every configured jail.
func (f *Fleet) Ps() []JailStatus {
	var out []JailStatus
	for _, j := range f.config.Jails {
		full := f.fullName(j.Name)

		var status JailStatus
		status.Name = j.Name
		status.Path = j.EffectivePath(f.config.Global, full)

		f.mu.Lock()
		inst, tracked := f.instances[j.Name]
		f.mu.Unlock()

		if tracked {
			status.State = inst.State().String()
			if jid, ok := inst.Jid(); ok {
				status.Jid = jid
				status.HasID = true
			}
		} else if jid, err := jail.GetID(full); err == nil {
			status.State = "running"
			status.Jid = jid
			status.HasID = true
		} else {
			status.State = "stopped"
		}

		if j.Network != nil && j.Network.IP != "" {
			status.IP = j.Network.IP
		}
		out = append(out, status)
	}
	return out
}

func (f *Fleet) waitForStartSlot() error {
	if f.startLimiter == nil {
		return nil
	}
	if err := f.startLimiter.Wait(context.Background()); err != nil {
		return blackerr.Wrap(err, blackerr.ErrJailOperation, "wait for start slot")
	}
	return nil
}

// Bulkhead returns the Fleet's port-forward manager, for CLI verbs
// that manage forwards directly (expose/unexpose/ports).
func (f *Fleet) Bulkhead() *bulkhead.Manager {
	return f.bulkhead
}

// Config returns the loaded manifest backing this Fleet.
func (f *Fleet) Config() manifest.Config {
	return f.config
}

// FullName exposes the service-name-to-kernel-name mapping for CLI verbs.
func (f *Fleet) FullName(serviceName string) string {
	return f.fullName(serviceName)
}

// ResolveJailIP returns the jail's current IP address: its allocated
// pool IP if one was auto-assigned, its configured static IP otherwise.
func (f *Fleet) ResolveJailIP(name string) (netip.Addr, error) {
	f.mu.Lock()
	allocated, ok := f.allocatedIPs[name]
	f.mu.Unlock()
	if ok {
		return netip.ParseAddr(allocated.addr)
	}

	jailDef, ok := f.config.GetJail(name)
	if !ok {
		return netip.Addr{}, blackerr.New(blackerr.ErrJailNotFound, "resolve jail ip", name)
	}
	if jailDef.Network == nil || jailDef.Network.IP == "" {
		return netip.Addr{}, blackerr.New(blackerr.ErrNetwork, "resolve jail ip", name+" has no IP configured")
	}
	return netip.ParseAddr(jailDef.Network.IP)
}

// HealthStatuses reports the last known health Status for every jail
// with an active checker.
func (f *Fleet) HealthStatuses() map[string]sickbay.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]sickbay.Status, len(f.checkers))
	for name, checker := range f.checkers {
		out[name] = checker.Status()
	}
	return out
}
