// Package ecgsync provides an embeddable client for an ECG review server.
//
// A Client owns one Transport (the persistent connection) and one
// ecg.Store (the observable cache of recordings) and wires them together.
// Build it once at startup and pass it, or its Store, to consumers.
//
// # Basic Usage
//
//	client, err := ecgsync.New(ecgsync.Config{ServerURL: "http://localhost:9090"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Stop()
//
//	store := client.Store()
//	_ = store.WaitUntil(ctx, store.ListReady)
//	for _, rec := range store.Records() {
//	    fmt.Println(rec.ID, rec.Timestamp)
//	}
//
// # Event Handling
//
// Implement [EventHandler] (embed [BaseEventHandler] for no-op defaults) and
// pass it with [WithEventHandler] to observe lifecycle transitions,
// connection events and store changes. Handlers run synchronously on the
// goroutine that produced the event and should return quickly.
//
// # Lifecycle States
//
// A Client is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. It crashes when the transport gives up
// reconnecting. A Client connects once; after Stop, build a new one.
package ecgsync
