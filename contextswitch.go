package kthread

// ContextSwitch is the out-of-scope collaborator from spec §1: "Low-level
// CPU context switch primitive (takes two thread handles, saves/restores
// registers, returns the previously-running thread)".
//
// A hosted Go process has no registers or native stacks to swap, so the
// default implementation realizes the same contract with goroutines: every
// ThreadBlock's body runs on its own goroutine, permanently parked on a
// one-slot "resume" channel except for the instant it is actually
// current. Switch wakes `to` by sending it the thread that is about to
// stop running (`self`), then blocks `self`'s own goroutine on its own
// resume channel — which is exactly the Go-idiomatic analogue of a
// register save/restore on a uniprocessor that never runs two thread
// bodies at once: the calling stack frame simply stays suspended until
// some later Switch call names `self` as `to` again, at which point this
// call returns with whichever thread ran in the interim, mirroring the
// native primitive's "returns the previously-running thread" contract.
type ContextSwitch interface {
	// Switch gives the CPU to `to` and blocks until it is given back to
	// `self`, returning the thread that was running immediately
	// beforehand. A thread's very first resume is received by
	// launchThread rather than returned by Switch, and likewise carries
	// the thread that switched to it.
	Switch(self, to *ThreadBlock) (prev *ThreadBlock)
}

// goroutineSwitch is the default ContextSwitch.
type goroutineSwitch struct{}

// NewContextSwitch returns the default ContextSwitch.
func NewContextSwitch() ContextSwitch { return goroutineSwitch{} }

func (goroutineSwitch) Switch(self, to *ThreadBlock) *ThreadBlock {
	to.resumeCh <- self
	return <-self.resumeCh
}
