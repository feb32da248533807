// Package session wires a watch.Watcher, a watch.Schedule and a render
// pipeline into one viewer session.
//
// A session moves between four states:
//
//	Idle      --Open(path)-->  Loading
//	Loading   --render ok-->   Watching   (schedule started)
//	Loading   --failure-->     Idle       (display cleared)
//	Watching  --tick+change--> Reloading
//	Reloading --render ok-->   Watching   (baseline advanced)
//	Reloading --failure-->     Watching   (baseline kept, retried next tick)
//
// All session state is owned by the goroutine running [Session.Run]. Other
// goroutines submit open-file requests through [Session.Request].
package session
