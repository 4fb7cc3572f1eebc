// Package workflow runs article generation as a state machine.
//
// A workflow advances pending → researching → outlining → writing → editing →
// completed, and may enter failed from any non-terminal status. The Engine
// persists every snapshot to a Store and hands it to a Publisher before the
// next stage begins, so pollers only ever observe forward progress. Stage
// errors and panics end the workflow in failed with a readable message.
package workflow
