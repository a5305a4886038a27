// Package bootstrap starts and stops the container's backend systems.
//
// Systems are declared as an ordered list of (id, Startable) entries.
// Each system's Start receives the map of every system started before
// it, so later systems can depend on earlier ones. Teardown runs in
// exact reverse start order on every exit path: normal shutdown, a
// body error, and partial startup failure alike.
//
// Example Usage:
//
//	err := bootstrap.Run(log, []bootstrap.Entry{
//	    {ID: "store", System: storeSystem},
//	    {ID: "http", System: httpSystem},
//	}, func(running bootstrap.Systems) error {
//	    return serveUntilSignal(running)
//	})
package bootstrap
