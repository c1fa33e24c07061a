// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Config/manifest errors.
var (
	// ErrConfigNotFound indicates the manifest file does not exist.
	ErrConfigNotFound = &JailError{
		Kind:   ErrConfigRead,
		Detail: "manifest not found",
	}

	// ErrDuplicateJail indicates two jails share the same name.
	ErrDuplicateJail = &JailError{
		Kind:   ErrConfigValidation,
		Detail: "duplicate jail name",
	}

	// ErrSelfDependency indicates a jail depends on itself.
	ErrSelfDependency = &JailError{
		Kind:   ErrConfigValidation,
		Detail: "jail cannot depend on itself",
	}

	// ErrZfsNotEnabled indicates zfs.dataset was used without zfs.enabled.
	ErrZfsNotEnabled = &JailError{
		Kind:   ErrConfigValidation,
		Detail: "zfs is not enabled but a zpool-relative path was requested",
	}

	// ErrCyclicDependency indicates the jail dependency graph is not a DAG.
	ErrCyclicDependency = &JailError{
		Kind:   ErrConfigValidation,
		Detail: "cyclic dependency detected",
	}
)

// Jail lifecycle errors.
var (
	// ErrJailNotFoundSentinel indicates the jail is not defined in the manifest.
	ErrJailNotFoundSentinel = &JailError{
		Kind:   ErrJailNotFound,
		Detail: "jail not found",
	}

	// ErrJailAlreadyRunningSentinel indicates jail_getid succeeded unexpectedly.
	ErrJailAlreadyRunningSentinel = &JailError{
		Kind:   ErrJailAlreadyRunning,
		Detail: "jail is already running",
	}

	// ErrJailNotRunningSentinel indicates the jail has no live jid.
	ErrJailNotRunningSentinel = &JailError{
		Kind:   ErrJailNotRunning,
		Detail: "jail is not running",
	}
)

// Syscall errors.
var (
	// ErrJailSetFailed indicates the jail_set(2) syscall returned an error.
	ErrJailSetFailed = &JailError{
		Kind:   ErrSyscall,
		Detail: "jail_set failed",
	}

	// ErrJailGetFailed indicates the jail_get(2) syscall returned an error.
	ErrJailGetFailed = &JailError{
		Kind:   ErrSyscall,
		Detail: "jail_get failed",
	}

	// ErrJailRemoveFailed indicates the jail_remove(2) syscall returned an error.
	ErrJailRemoveFailed = &JailError{
		Kind:   ErrSyscall,
		Detail: "jail_remove failed",
	}

	// ErrJailAttachFailed indicates the jail_attach(2) syscall returned an error.
	ErrJailAttachFailed = &JailError{
		Kind:   ErrSyscall,
		Detail: "jail_attach failed",
	}
)

// Network errors.
var (
	// ErrBridgeAlreadyExistsSentinel indicates the named bridge already exists.
	ErrBridgeAlreadyExistsSentinel = &JailError{
		Kind:   ErrBridgeAlreadyExists,
		Detail: "bridge already exists",
	}

	// ErrInterfaceNotFoundSentinel indicates the named interface does not exist.
	ErrInterfaceNotFoundSentinel = &JailError{
		Kind:   ErrInterfaceNotFound,
		Detail: "interface not found",
	}

	// ErrInterfaceNameTooLong indicates a name exceeds IF_NAMESIZE-1.
	ErrInterfaceNameTooLong = &JailError{
		Kind:   ErrNetwork,
		Detail: "interface name exceeds IF_NAMESIZE-1",
	}

	// ErrNoAvailableAddresses indicates an IP pool is exhausted.
	ErrNoAvailableAddresses = &JailError{
		Kind:   ErrNetwork,
		Detail: "no available addresses in pool",
	}

	// ErrAddressAlreadyAllocated indicates allocate_specific found the address taken.
	ErrAddressAlreadyAllocated = &JailError{
		Kind:   ErrNetwork,
		Detail: "address is already allocated",
	}

	// ErrAddressOutOfSubnet indicates an address does not belong to the pool's subnet.
	ErrAddressOutOfSubnet = &JailError{
		Kind:   ErrNetwork,
		Detail: "address is not in subnet",
	}

	// ErrNetworkPoolNotFound indicates a named network has no configured pool.
	ErrNetworkPoolNotFound = &JailError{
		Kind:   ErrNetwork,
		Detail: "network pool not found",
	}
)

// Hook errors.
var (
	// ErrHookFailedSentinel indicates a hook exited non-zero under on_failure=abort.
	ErrHookFailedSentinel = &JailError{
		Kind:   ErrHookFailed,
		Detail: "hook failed",
	}

	// ErrHookTimeoutSentinel indicates a hook exceeded its timeout.
	ErrHookTimeoutSentinel = &JailError{
		Kind:   ErrHookTimeout,
		Detail: "hook timed out",
	}
)

// Health errors.
var (
	// ErrHealthCheckFailedSentinel indicates a health probe command failed.
	ErrHealthCheckFailedSentinel = &JailError{
		Kind:   ErrHealthCheckFailed,
		Detail: "health check failed",
	}
)
