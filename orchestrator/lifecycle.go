package orchestrator

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	blackerr "blackship/errors"
	"blackship/hooks"
	"blackship/jail"
	"blackship/logging"
	"blackship/manifest"
	"blackship/network"
	"blackship/provision"
	"blackship/sickbay"
	"blackship/warden"
)

// startJail provisions, networks, and creates a single jail, rolling
// back every resource it allocated if any step fails partway through.
func (f *Fleet) startJail(name string) error {
	if err := f.waitForStartSlot(); err != nil {
		return err
	}

	jailDef, ok := f.config.GetJail(name)
	if !ok {
		return blackerr.New(blackerr.ErrJailNotFound, "start jail", name)
	}
	full := f.fullName(name)
	logger := logging.WithJail(logging.Default(), full)

	if _, err := jail.GetID(full); err == nil {
		return blackerr.New(blackerr.ErrJailAlreadyRunning, "start jail", full)
	}

	path, createdDataset, err := f.resolveJailPath(*jailDef, name, full)
	if err != nil {
		return err
	}

	if jailDef.Network != nil {
		if err := f.configureDNS(path, jailDef.Network.DNS); err != nil {
			f.rollbackDataset(name, createdDataset)
			return err
		}
	}

	effectiveIP, allocated, err := f.resolveIP(*jailDef)
	if err != nil {
		f.rollbackDataset(name, createdDataset)
		return err
	}

	hookRunner := hooks.NewRunner(jailDef.Hooks)
	hookCtx := hooks.NewContext(full, path)
	if effectiveIP != "" {
		hookCtx = hookCtx.WithIP(effectiveIP)
	}

	if err := hookRunner.ExecutePhase(context.Background(), hooks.PreStart, hookCtx, logger.Warn); err != nil {
		f.releaseIP(allocated)
		f.rollbackDataset(name, createdDataset)
		return err
	}

	isVnet := jailDef.Network != nil && jailDef.Network.Vnet

	var vnetSetup *network.Setup
	if isVnet {
		vnetSetup, err = f.createVnetSetup(name, *jailDef, effectiveIP)
		if err != nil {
			f.releaseIP(allocated)
			f.rollbackDataset(name, createdDataset)
			return err
		}
	}

	params, err := f.buildParams(*jailDef, full, isVnet, effectiveIP)
	if err != nil {
		f.cleanupVnet(vnetSetup)
		f.releaseIP(allocated)
		f.rollbackDataset(name, createdDataset)
		return err
	}

	logger.Info("orchestrator: starting jail")
	jid, err := jail.Create(path, params)
	if err != nil {
		logger.Error("orchestrator: failed to create jail", "error", err)
		f.cleanupVnet(vnetSetup)
		f.releaseIP(allocated)
		f.rollbackDataset(name, createdDataset)

		f.mu.Lock()
		inst := jail.NewInstance(full, path)
		inst.Start()
		inst.Fail()
		f.instances[name] = inst
		f.mu.Unlock()

		if f.warden != nil {
			f.warden.Notify(warden.EventJailFailed, name)
		}
		return err
	}
	logger.Info("orchestrator: jail started", "jid", jid)

	if vnetSetup != nil {
		if err := vnetSetup.AttachToJail(jid); err != nil {
			logger.Warn("orchestrator: failed to attach VNET to jail, networking may not work", "error", err)
		}
		f.mu.Lock()
		f.vnetSetups[name] = vnetSetup
		f.mu.Unlock()
	}

	hookCtx = hookCtx.WithJid(jid)
	if err := hookRunner.ExecutePhase(context.Background(), hooks.PostStart, hookCtx, logger.Warn); err != nil {
		logger.Warn("orchestrator: post_start hook failed, jail is running but may be misconfigured", "error", err)
	}

	f.mu.Lock()
	inst := jail.NewInstance(full, path)
	inst.Start()
	inst.Started(jid)
	f.instances[name] = inst
	if allocated != nil {
		f.allocatedIPs[name] = *allocated
	}
	f.mu.Unlock()

	if jailDef.HealthCheck.Enabled {
		f.startChecker(name, full, jid, jailDef.HealthCheck)
	}

	if f.warden != nil {
		f.warden.Notify(warden.EventJailStarted, name)
	}
	return nil
}

// resolveJailPath determines the jail's root path, auto-provisioning a
// ZFS dataset and/or a release clone if the path doesn't exist yet.
func (f *Fleet) resolveJailPath(jailDef manifest.JailDef, name, full string) (path string, createdDataset bool, err error) {
	if f.zfsManager != nil && jailDef.Path == "" {
		exists, err := f.zfsManager.DatasetExists(f.zfsManager.JailDataset(full))
		if err != nil {
			return "", false, err
		}
		if exists {
			path = f.zfsManager.JailPath(full)
		} else {
			path, err = f.zfsManager.CreateJailDataset(full)
			if err != nil {
				return "", false, err
			}
			createdDataset = true
		}
	} else {
		path = jailDef.EffectivePath(f.config.Global, full)
	}

	if dirExists(path) {
		return path, createdDataset, nil
	}

	if jailDef.Release == "" {
		f.rollbackDataset(name, createdDataset)
		return "", false, blackerr.New(blackerr.ErrJailPathNotFound, "start jail", path)
	}

	releasePath := filepath.Join(f.config.Global.ReleasesDir, jailDef.Release)
	if !dirExists(releasePath) {
		f.rollbackDataset(name, createdDataset)
		return "", false, blackerr.New(blackerr.ErrRelease, "start jail",
			fmt.Sprintf("release %q not found at %s, run 'blackship bootstrap %s' first", jailDef.Release, releasePath, jailDef.Release))
	}

	logging.Default().Info("orchestrator: provisioning jail from release", "jail", full, "release", jailDef.Release)
	if err := provision.CloneRelease(releasePath, path); err != nil {
		os.RemoveAll(path)
		f.rollbackDataset(name, createdDataset)
		return "", false, err
	}
	return path, createdDataset, nil
}

func (f *Fleet) rollbackDataset(name string, created bool) {
	if created && f.zfsManager != nil {
		if err := f.zfsManager.DestroyJailDataset(f.fullName(name)); err != nil {
			logging.Default().Warn("orchestrator: failed to roll back zfs dataset", "jail", name, "error", err)
		}
	}
}

// resolveIP determines the jail's effective IP: a static IP (reserved
// in its network pools), or an auto-allocated one from the jail's
// first attached network, or none.
func (f *Fleet) resolveIP(jailDef manifest.JailDef) (string, *ipAllocation, error) {
	if jailDef.Network == nil {
		return "", nil, nil
	}

	if jailDef.Network.IP != "" {
		addr, err := netip.ParseAddr(jailDef.Network.IP)
		if err == nil {
			for _, netName := range jailDef.Network.Networks {
				if pool := f.allocator.Pool(netName); pool != nil {
					pool.AllocateSpecific(addr)
				}
			}
		}
		return jailDef.Network.IP, nil, nil
	}

	if len(jailDef.Network.Networks) == 0 {
		return "", nil, nil
	}

	netName := jailDef.Network.Networks[0]
	addr, err := f.allocator.Allocate(netName)
	if err != nil {
		return "", nil, err
	}
	if f.verbose {
		logging.Default().Info("orchestrator: auto-allocated IP", "ip", addr, "network", netName)
	}
	return addr.String(), &ipAllocation{network: netName, addr: addr.String()}, nil
}

func (f *Fleet) releaseIP(allocated *ipAllocation) {
	if allocated == nil {
		return
	}
	addr, err := netip.ParseAddr(allocated.addr)
	if err != nil {
		return
	}
	f.allocator.Release(allocated.network, addr)
}

func (f *Fleet) createVnetSetup(name string, jailDef manifest.JailDef, effectiveIP string) (*network.Setup, error) {
	if jailDef.Network.Bridge == "" {
		return nil, blackerr.New(blackerr.ErrNetwork, "start jail", "VNET jail '"+name+"' requires a bridge configuration")
	}

	ipConfig := jailDef.Network.IPCidr
	if ipConfig == "" && jailDef.Network.IP != "" {
		ipConfig = jailDef.Network.IP + "/24"
	}
	if ipConfig == "" && effectiveIP != "" {
		ipConfig = effectiveIP + "/24"
	}
	if ipConfig == "" {
		ipConfig = "0.0.0.0/0"
	}

	gateway := jailDef.Network.Gateway
	if gateway == "" {
		gateway = "10.0.0.1"
	}

	config := network.Config{
		Bridge:     jailDef.Network.Bridge,
		IP:         ipConfig,
		Gateway:    gateway,
		MacAddress: jailDef.Network.MacAddress,
		VlanID:     jailDef.Network.VlanID,
	}

	setup, err := network.CreateSetup(name, config)
	if err != nil {
		return nil, err
	}
	if f.verbose {
		logging.Default().Info("orchestrator: created VNET epair", "jail_interface", setup.JailInterface(), "bridge", jailDef.Network.Bridge)
	}
	return setup, nil
}

func (f *Fleet) cleanupVnet(setup *network.Setup) {
	if setup == nil {
		return
	}
	if err := setup.Cleanup(); err != nil {
		logging.Default().Warn("orchestrator: failed to clean up VNET setup", "error", err)
	}
}

func (f *Fleet) buildParams(jailDef manifest.JailDef, full string, isVnet bool, effectiveIP string) (map[string]jail.ParamValue, error) {
	params := map[string]jail.ParamValue{
		"name": jail.StringParam(full),
	}
	if jailDef.Hostname != "" {
		params["host.hostname"] = jail.StringParam(jailDef.Hostname)
	}

	switch {
	case isVnet:
		params["vnet"] = jail.StringParam("new")
	case effectiveIP != "":
		addr, err := netip.ParseAddr(effectiveIP)
		if err != nil {
			return nil, blackerr.New(blackerr.ErrConfigValidation, "build jail params", "invalid IP "+effectiveIP)
		}
		if addr.Is4() {
			params["ip4.addr"] = jail.IPv4Param(net.IP(addr.AsSlice()))
		} else {
			params["ip6.addr"] = jail.IPv6Param(net.IP(addr.AsSlice()))
		}
	}

	for key, raw := range jailDef.Params {
		val, err := jail.ParamValueFromAny(raw)
		if err != nil {
			return nil, err
		}
		params[key] = val
	}

	return params, nil
}

// configureDNS writes or copies etc/resolv.conf inside a jail's path
// before it starts.
func (f *Fleet) configureDNS(jailPath string, dns manifest.DnsConfig) error {
	resolvPath := filepath.Join(jailPath, "etc", "resolv.conf")

	if dns.IsInherit() {
		content, err := os.ReadFile("/etc/resolv.conf")
		if err != nil {
			return blackerr.Wrap(err, blackerr.ErrJailOperation, "read host resolv.conf")
		}
		if err := os.WriteFile(resolvPath, content, 0o644); err != nil {
			return blackerr.Wrap(err, blackerr.ErrJailOperation, "copy resolv.conf")
		}
		return nil
	}

	content := dns.ToResolvConf()
	if content == "" {
		return nil
	}
	if err := os.WriteFile(resolvPath, []byte(content), 0o644); err != nil {
		return blackerr.Wrap(err, blackerr.ErrJailOperation, "write resolv.conf")
	}
	return nil
}

// healthPollInterval is how often a running Checker is polled. Each
// configured Check still gates its own real cadence internally via its
// start_period and rate limiter, so this only needs to be short enough
// not to add meaningful latency to the shortest configured interval.
const healthPollInterval = 5 * time.Second

func (f *Fleet) startChecker(name, full string, jid int, config sickbay.Config) {
	var recovery sickbay.Recovery = noopRecovery{}
	if f.warden != nil {
		recovery = f.warden
	}
	checker := sickbay.NewChecker(full, config, recovery)
	ctx, cancel := context.WithCancel(context.Background())

	f.mu.Lock()
	f.checkers[name] = checker
	f.checkerCancels[name] = cancel
	f.mu.Unlock()

	go func() {
		ticker := time.NewTicker(healthPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := f.probeSem.Acquire(ctx, 1); err != nil {
					continue
				}
				checker.Run(ctx, jid)
				f.probeSem.Release(1)
			}
		}
	}()
}

type noopRecovery struct{}

func (noopRecovery) Recover(string, int, sickbay.Action) error { return nil }

// stopJail runs pre_stop hooks inside the jail, removes it, runs
// post_stop hooks on the host, and releases every resource start_jail
// allocated for it.
func (f *Fleet) stopJail(name string) error {
	full := f.fullName(name)
	logger := logging.WithJail(logging.Default(), full)

	jid, err := jail.GetID(full)
	if err != nil {
		return blackerr.New(blackerr.ErrJailNotRunning, "stop jail", full)
	}

	jailDef, hasDef := f.config.GetJail(name)
	var path string
	if hasDef {
		path = jailDef.EffectivePath(f.config.Global, full)
	}

	if hasDef {
		hookRunner := hooks.NewRunner(jailDef.Hooks)
		hookCtx := hooks.NewContext(full, path).WithJid(jid)
		if jailDef.Network != nil && jailDef.Network.IP != "" {
			hookCtx = hookCtx.WithIP(jailDef.Network.IP)
		}
		if err := hookRunner.ExecutePhase(context.Background(), hooks.PreStop, hookCtx, logger.Warn); err != nil {
			return err
		}

		logger.Info("orchestrator: stopping jail")
		if err := jail.Remove(jid); err != nil {
			return err
		}
		logger.Info("orchestrator: jail stopped")

		postCtx := hooks.NewContext(full, path)
		if err := hookRunner.ExecutePhase(context.Background(), hooks.PostStop, postCtx, logger.Warn); err != nil {
			return err
		}
	} else {
		logger.Info("orchestrator: stopping jail")
		if err := jail.Remove(jid); err != nil {
			return err
		}
		logger.Info("orchestrator: jail stopped")
	}

	f.mu.Lock()
	if inst, ok := f.instances[name]; ok {
		inst.Stop()
		inst.Stopped()
	}
	if cancel, ok := f.checkerCancels[name]; ok {
		cancel()
		delete(f.checkerCancels, name)
		delete(f.checkers, name)
	}
	vnetSetup := f.vnetSetups[name]
	delete(f.vnetSetups, name)
	allocated, hadAllocation := f.allocatedIPs[name]
	delete(f.allocatedIPs, name)
	f.mu.Unlock()

	if vnetSetup != nil {
		if err := vnetSetup.Cleanup(); err != nil {
			logger.Warn("orchestrator: failed to clean up VNET setup", "error", err)
		}
	}
	if hadAllocation {
		f.releaseIP(&allocated)
		if f.verbose {
			logger.Info("orchestrator: released IP back to network", "network", allocated.network, "ip", allocated.addr)
		}
	}

	if f.warden != nil {
		f.warden.Notify(warden.EventJailStopped, name)
	}
	return nil
}

// Cleanup force-removes any leftover resources from a partially
// started jail: the kernel jail itself (if present), its ZFS dataset,
// its VNET epair, and its allocated IP. With force set, failures at
// each step are logged and skipped rather than aborting the cleanup.
func (f *Fleet) Cleanup(name string, force bool) error {
	full := f.fullName(name)
	logger := logging.WithJail(logging.Default(), full)
	logger.Info("orchestrator: cleaning up jail")

	jailDef, hasDef := f.config.GetJail(name)

	if jid, err := jail.GetID(full); err == nil {
		if err := jail.Remove(jid); err != nil {
			if !force {
				return err
			}
			logger.Warn("orchestrator: failed to remove jail during cleanup", "error", err)
		}
	}

	if f.zfsManager != nil && hasDef && jailDef.Path == "" {
		if err := f.zfsManager.DestroyJailDataset(full); err != nil {
			if !force {
				return err
			}
			logger.Warn("orchestrator: failed to destroy zfs dataset during cleanup", "error", err)
		}
	}

	f.mu.Lock()
	delete(f.instances, name)
	vnetSetup := f.vnetSetups[name]
	delete(f.vnetSetups, name)
	allocated, hadAllocation := f.allocatedIPs[name]
	delete(f.allocatedIPs, name)
	f.mu.Unlock()

	if vnetSetup != nil {
		if err := vnetSetup.Cleanup(); err != nil {
			if !force {
				return err
			}
			logger.Warn("orchestrator: failed to clean up VNET setup during cleanup", "error", err)
		}
	}
	if hadAllocation {
		f.releaseIP(&allocated)
	}

	logger.Info("orchestrator: cleanup complete")
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
