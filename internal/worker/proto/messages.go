package proto

import "reflect"

// ReloadNotice is sent by the supervisor to an outgoing cohort just
// before CHANNEL_TERMINATE during a SIGHUP reconfigure (spec.md §4.2
// "reload" row), so a worker that cares why it's exiting can log the
// reason instead of just observing TERMINATE.
type ReloadNotice struct {
	Reason string
}

// StatsReport is sent by a worker back to the supervisor on its own
// heartbeat tick, exercising SendExternal in the worker->master
// direction as well.
type StatsReport struct {
	Slot        int
	ActiveTasks int
}

// Core is the TagMap for the two application-level messages the core
// itself sends over the external-payload extension point. Application
// code embedding this module is free to build its own TagMap with its
// own tag numbering; these two tags are only meaningful between this
// package's Encode/Decode calls.
var Core = NewTagMap(map[uint8]reflect.Type{
	1: reflect.TypeOf(ReloadNotice{}),
	2: reflect.TypeOf(StatsReport{}),
})
