// Package zfs manages the ZFS datasets that back jail root filesystems.
// Each jail gets its own dataset under pool/base/jails/<name>, which
// gives every jail independent snapshots, clones and quotas without
// blackship having to reimplement any of that itself.
package zfs

import (
	"os/exec"
	"strings"

	blackerr "blackship/errors"
)

// Manager creates and destroys per-jail datasets under a fixed base
// dataset: <pool>/<base>/jails/<name>.
type Manager struct {
	pool        string
	baseDataset string
}

// New returns a Manager rooted at pool/base.
func New(pool, base string) *Manager {
	return &Manager{pool: pool, baseDataset: pool + "/" + base}
}

// JailsDataset is the parent dataset all per-jail datasets live under.
func (m *Manager) JailsDataset() string {
	return m.baseDataset + "/jails"
}

// JailDataset is the dataset for a single jail.
func (m *Manager) JailDataset(name string) string {
	return m.JailsDataset() + "/" + name
}

// JailPath is the filesystem mountpoint of a jail's dataset.
func (m *Manager) JailPath(name string) string {
	return "/" + m.JailDataset(name)
}

// Init creates the base and jails datasets if they don't already exist.
func (m *Manager) Init() error {
	for _, dataset := range []string{m.baseDataset, m.JailsDataset()} {
		exists, err := m.DatasetExists(dataset)
		if err != nil {
			return err
		}
		if !exists {
			if err := m.CreateDataset(dataset); err != nil {
				return err
			}
		}
	}
	return nil
}

// DatasetExists reports whether dataset is present in the pool.
func (m *Manager) DatasetExists(dataset string) (bool, error) {
	cmd := exec.Command("zfs", "list", "-H", "-o", "name", dataset)
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, blackerr.New(blackerr.ErrRelease, "check zfs dataset", err.Error())
	}
	return true, nil
}

// CreateDataset creates dataset (and any missing parents) with
// lz4 compression.
func (m *Manager) CreateDataset(dataset string) error {
	out, err := exec.Command("zfs", "create", "-p", "-o", "compression=lz4", dataset).CombinedOutput()
	if err != nil {
		return blackerr.New(blackerr.ErrRelease, "create zfs dataset", strings.TrimSpace(string(out)))
	}
	return nil
}

// CreateJailDataset creates the dataset for name and returns its
// mountpoint. It fails if the dataset already exists.
func (m *Manager) CreateJailDataset(name string) (string, error) {
	dataset := m.JailDataset(name)

	exists, err := m.DatasetExists(dataset)
	if err != nil {
		return "", err
	}
	if exists {
		return "", blackerr.New(blackerr.ErrRelease, "create jail dataset", "dataset '"+dataset+"' already exists")
	}

	if err := m.CreateDataset(dataset); err != nil {
		return "", err
	}
	return m.JailPath(name), nil
}

// DestroyJailDataset recursively destroys a jail's dataset. It is a
// no-op if the dataset is already gone.
func (m *Manager) DestroyJailDataset(name string) error {
	dataset := m.JailDataset(name)

	exists, err := m.DatasetExists(dataset)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	out, err := exec.Command("zfs", "destroy", "-r", dataset).CombinedOutput()
	if err != nil {
		return blackerr.New(blackerr.ErrRelease, "destroy zfs dataset", strings.TrimSpace(string(out)))
	}
	return nil
}

// GetProperty reads a single ZFS property value off dataset.
func (m *Manager) GetProperty(dataset, property string) (string, error) {
	out, err := exec.Command("zfs", "get", "-H", "-o", "value", property, dataset).Output()
	if err != nil {
		return "", blackerr.New(blackerr.ErrRelease, "get zfs property", "property '"+property+"' on '"+dataset+"'")
	}
	return strings.TrimSpace(string(out)), nil
}

// SetProperty sets a single ZFS property on dataset.
func (m *Manager) SetProperty(dataset, property, value string) error {
	out, err := exec.Command("zfs", "set", property+"="+value, dataset).CombinedOutput()
	if err != nil {
		return blackerr.New(blackerr.ErrRelease, "set zfs property", strings.TrimSpace(string(out)))
	}
	return nil
}
