package fieldmark

import (
	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/orchestrator"
)

// Capability is a named, stateless unit of work the engine can schedule.
// Implementations must be safe for concurrent use and should honor ctx
// cancellation where they block. Execute never needs to recover panics;
// the engine turns them into failed Results.
type Capability = capability.Capability

// StateObserver receives a deep copy of the engine state after every
// change, in order.
type StateObserver = orchestrator.Subscriber

// CapabilityFunc adapts a plain function into a Capability.
type CapabilityFunc = capability.Func
