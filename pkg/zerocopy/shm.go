package zerocopy

// ShmRegion is the capability interface over a System V shared-memory
// segment. Concrete attachment is platform-specific (see shm_linux.go
// / shm_other.go), following the same interface-first pattern
// periph.io/x/conn/v3 uses for hardware buses: the gateway state
// machine below only ever talks to this interface.
type ShmRegion interface {
	// Bytes returns the attached region as a byte slice of cfg.MemRegionSz.
	Bytes() []byte
	// Detach releases the attachment. Idempotent.
	Detach() error
}

// AttachFunc is the package's attach seam: Attach calls it to obtain
// the ShmRegion backing a Config. It defaults to the platform's real
// SysV attacher (shm_linux.go / shm_other.go) but is an exported var
// so other packages' tests can install an in-process fake region —
// the same capability-interface-substitution pattern pkg/memif.Transport
// uses for its own tests, applied here since ZeroCopyConnection's
// tests live outside this package.
var AttachFunc = attachSysV
