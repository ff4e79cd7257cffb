// Package ecg implements the client-side cache of ECG recordings.
//
// A Store mirrors the recording list, the annotation taxonomy and the common
// annotations held by the server. It listens to transport events, reconciles
// its records against every list snapshot, loads signal payloads lazily on
// first read and applies annotation changes optimistically.
//
// Every effect of a request becomes visible through Subscribe once the
// matching response arrives; operations never return server data directly.
//
//	store := ecg.NewStore(tr, logger)
//	cancel := store.Subscribe(func(c ecg.Change) {
//		if c.Kind == ecg.ChangeRecordUpdated {
//			rec, _ := store.Peek(c.ID)
//			render(rec)
//		}
//	})
//	defer cancel()
package ecg
