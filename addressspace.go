package kthread

// AddressSpaceActivator is the out-of-scope collaborator from spec §1:
// "Optional user-process address-space activation hook", invoked from
// scheduleTail (spec §4.3) so a newly-scheduled thread's page tables (or
// equivalent) become active before it runs. Kernel-only threads have
// nothing to activate; the default is a no-op.
type AddressSpaceActivator interface {
	Activate(t *ThreadBlock)
}

type noopAddressSpace struct{}

// NewAddressSpaceActivator returns the default, no-op
// AddressSpaceActivator.
func NewAddressSpaceActivator() AddressSpaceActivator { return noopAddressSpace{} }

func (noopAddressSpace) Activate(*ThreadBlock) {}
