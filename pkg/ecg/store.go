package ecg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/ecgsync/pkg/log"
	"github.com/bft-labs/ecgsync/pkg/transport"
)

// ErrRecordNotFound is returned for operations on an id that is not cached.
var ErrRecordNotFound = errors.New("ecg: record not found")

// Bus is the part of the transport the Store depends on.
type Bus interface {
	transport.Subscriber
	Unsubscribe(sub transport.Subscription)
	Send(event transport.Event, data interface{}) error
	Ready() bool
}

type observer struct {
	id uint64
	fn func(Change)
}

// Store is the observable cache of recordings and annotation metadata.
// It is safe for concurrent use.
type Store struct {
	bus    Bus
	logger log.Logger
	routes []transport.Subscription

	mu            sync.Mutex
	records       map[string]*Record
	order         []string
	taxonomy      []AnnotationGroup
	common        []string
	archiving     bool
	listReady     bool
	taxonomyReady bool
	syncPending   bool

	obsMu     sync.Mutex
	observers []observer
	nextObsID uint64
}

// NewStore creates a Store and registers its handlers on bus. The store
// requests the initial data on every connect while it holds no records.
func NewStore(bus Bus, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	s := &Store{
		bus:      bus,
		logger:   log.With(logger, log.String("component", "store")),
		records:  make(map[string]*Record),
		taxonomy: []AnnotationGroup{},
		common:   []string{},
	}
	s.routes = s.register()
	if bus.Ready() {
		s.EnsureSynced()
	}
	return s
}

// register installs the route table: one typed handler per inbound event.
func (s *Store) register() []transport.Subscription {
	return []transport.Subscription{
		s.bus.Subscribe(transport.EventConnect, func(json.RawMessage, transport.Meta) {
			s.EnsureSynced()
		}),
		s.bus.Subscribe(transport.EventDisconnect, func(json.RawMessage, transport.Meta) {
			s.onDisconnect()
		}),
		transport.Handle(s.bus, EventGotList, s.onGotList, s.onDecodeError),
		transport.Handle(s.bus, EventGotAnnotationList, s.onGotAnnotationList, s.onDecodeError),
		transport.Handle(s.bus, EventGotCommonAnnotationList, s.onGotCommonAnnotationList, s.onDecodeError),
		transport.Handle(s.bus, EventGotItemData, s.onGotItemData, s.onDecodeError),
		transport.Handle(s.bus, EventError, s.onServerError, s.onDecodeError),
		s.bus.Subscribe(EventServerReady, func(json.RawMessage, transport.Meta) {
			s.logger.Info("server ready")
		}),
	}
}

// Close removes the store's handlers from the bus.
func (s *Store) Close() {
	for _, sub := range s.routes {
		s.bus.Unsubscribe(sub)
	}
	s.routes = nil
}

// Subscribe registers fn to be called after every change. Observers run
// outside the store lock and may call back into the store. The returned
// function removes the observer.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.obsMu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			defer s.obsMu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.obsMu.Lock()
	obs := append([]observer(nil), s.observers...)
	s.obsMu.Unlock()

	for _, c := range changes {
		for _, o := range obs {
			o.fn(c)
		}
	}
}

// WaitUntil blocks until cond returns true or ctx ends. cond is evaluated
// immediately and after every change.
func (s *Store) WaitUntil(ctx context.Context, cond func() bool) error {
	wake := make(chan struct{}, 1)
	cancel := s.Subscribe(func(Change) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

// EnsureSynced requests the list, the taxonomy and the common annotations
// when the bus is connected, the cache holds no records and no sync is
// outstanding. Otherwise it does nothing.
func (s *Store) EnsureSynced() {
	if !s.bus.Ready() {
		return
	}

	s.mu.Lock()
	if len(s.records) > 0 || s.syncPending {
		s.mu.Unlock()
		return
	}
	s.syncPending = true
	s.mu.Unlock()

	if err := s.requestSync(); err != nil {
		s.logger.Warn("sync request dropped", log.Err(err))
		s.mu.Lock()
		s.syncPending = false
		s.mu.Unlock()
	}
}

// Refresh requests the list, the taxonomy and the common annotations
// regardless of the cache contents.
func (s *Store) Refresh() error {
	return s.requestSync()
}

func (s *Store) requestSync() error {
	s.logger.Debug("requesting sync")
	return errors.Join(
		s.bus.Send(EventGetList, nil),
		s.bus.Send(EventGetAnnotationList, nil),
		s.bus.Send(EventGetCommonAnnotationList, nil),
	)
}

// Get returns a copy of the record and starts loading its signal when it
// is absent. The payload arrives later as a ChangeRecordUpdated.
func (s *Store) Get(id string) (Record, bool) {
	if err := s.Fetch(id); err != nil && !errors.Is(err, ErrRecordNotFound) {
		s.logger.Debug("payload request dropped", log.String("id", id), log.Err(err))
	}
	return s.Peek(id)
}

// Peek returns a copy of the record without loading its signal.
func (s *Store) Peek(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// Fetch requests the signal of a record. At most one request per record
// is outstanding; Fetch is a no-op while one is pending or once the signal
// is loaded. When the request cannot be sent the record returns to the
// unloaded state.
func (s *Store) Fetch(id string) error {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return ErrRecordNotFound
	}
	if r.Loaded() || r.WaitingData {
		s.mu.Unlock()
		return nil
	}
	r.WaitingData = true
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeRecordUpdated, ID: id})

	err := s.bus.Send(EventGetItemData, itemRequest{ID: id})
	if err == nil {
		return nil
	}

	s.mu.Lock()
	reset := false
	if r, ok := s.records[id]; ok && r.WaitingData && !r.Loaded() {
		r.WaitingData = false
		reset = true
	}
	s.mu.Unlock()
	if reset {
		s.notify(Change{Kind: ChangeRecordUpdated, ID: id})
	}
	return fmt.Errorf("ecg: fetch %s: %w", id, err)
}

// SetAnnotation replaces the annotation of a record locally and then
// notifies the server. The local change is kept even when the
// notification cannot be sent.
func (s *Store) SetAnnotation(id string, keys []string) error {
	annotation := append([]string{}, keys...)

	s.mu.Lock()
	r, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return ErrRecordNotFound
	}
	r.Annotation = annotation
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeRecordUpdated, ID: id})

	req := setAnnotationRequest{ID: id, Annotation: append([]string{}, annotation...)}
	if err := s.bus.Send(EventSetAnnotation, req); err != nil {
		s.logger.Warn("annotation not sent", log.String("id", id), log.Err(err))
		return fmt.Errorf("ecg: set annotation %s: %w", id, err)
	}
	return nil
}

// Archive asks the server to archive the annotated recordings. Archiving
// reports true until the next list snapshot arrives.
func (s *Store) Archive() error {
	s.mu.Lock()
	changed := !s.archiving
	s.archiving = true
	s.mu.Unlock()
	if changed {
		s.notify(Change{Kind: ChangeArchiving})
	}

	if err := s.bus.Send(EventDumpSignals, nil); err != nil {
		s.logger.Warn("archive request not sent", log.Err(err))
		return fmt.Errorf("ecg: archive: %w", err)
	}
	return nil
}

// Records returns copies of all records in snapshot order.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].clone())
	}
	return out
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Taxonomy returns the annotation groups in server order.
func (s *Store) Taxonomy() []AnnotationGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneGroups(s.taxonomy)
}

// AnnotationKeys returns every valid annotation key.
func (s *Store) AnnotationKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for _, g := range s.taxonomy {
		keys = append(keys, g.Keys()...)
	}
	return keys
}

// IsKnownAnnotation reports whether key belongs to the taxonomy.
func (s *Store) IsKnownAnnotation(key string) bool {
	for _, k := range s.AnnotationKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// CommonAnnotations returns the frequently used keys in server order.
func (s *Store) CommonAnnotations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.common...)
}

// Archiving reports whether an archive request awaits the next list.
func (s *Store) Archiving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archiving
}

// ListReady reports whether at least one list snapshot was received.
func (s *Store) ListReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listReady
}

// TaxonomyReady reports whether the taxonomy was received.
func (s *Store) TaxonomyReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxonomyReady
}

// onGotList reconciles the cache with a list snapshot: unknown ids are
// created, ids missing from the snapshot are deleted and existing records
// keep their payload.
func (s *Store) onGotList(items []listItem, _ transport.Meta) {
	var changes []Change

	s.mu.Lock()
	seen := make(map[string]struct{}, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		order = append(order, it.ID)

		r, ok := s.records[it.ID]
		if !ok {
			r = newRecord(it.ID)
			it.mergeInto(r)
			s.records[it.ID] = r
			changes = append(changes, Change{Kind: ChangeRecordAdded, ID: it.ID})
			continue
		}
		if it.mergeInto(r) {
			changes = append(changes, Change{Kind: ChangeRecordUpdated, ID: it.ID})
		}
	}
	for _, id := range s.order {
		if _, ok := seen[id]; !ok {
			delete(s.records, id)
			changes = append(changes, Change{Kind: ChangeRecordRemoved, ID: id})
		}
	}
	s.order = order
	s.syncPending = false
	s.listReady = true
	if s.archiving {
		s.archiving = false
		changes = append(changes, Change{Kind: ChangeArchiving})
	}
	s.mu.Unlock()

	s.logger.Debug("list reconciled", log.Int("records", len(order)))
	s.notify(append(changes, Change{Kind: ChangeListReady})...)
}

func (s *Store) onGotAnnotationList(groups []AnnotationGroup, _ transport.Meta) {
	s.mu.Lock()
	s.taxonomy = cloneGroups(groups)
	s.taxonomyReady = true
	s.mu.Unlock()

	s.logger.Debug("taxonomy received", log.Int("groups", len(groups)))
	s.notify(Change{Kind: ChangeTaxonomy})
}

func (s *Store) onGotCommonAnnotationList(c commonAnnotations, _ transport.Meta) {
	s.mu.Lock()
	s.common = append([]string{}, c.Annotations...)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeCommonAnnotations})
}

func (s *Store) onGotItemData(d itemData, _ transport.Meta) {
	s.mu.Lock()
	r, ok := s.records[d.ID]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("payload for unknown record ignored", log.String("id", d.ID))
		return
	}
	d.applyTo(r)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRecordUpdated, ID: d.ID})
}

func (s *Store) onServerError(msg string, _ transport.Meta) {
	s.logger.Warn("server reported an error", log.String("message", msg))
	s.notify(Change{Kind: ChangeServerError, Err: &ServerError{Message: msg}})
}

// onDisconnect forgets an outstanding sync; its responses will not arrive.
func (s *Store) onDisconnect() {
	s.mu.Lock()
	s.syncPending = false
	s.mu.Unlock()
}

func (s *Store) onDecodeError(event transport.Event, err error) {
	s.logger.Warn("dropping undecodable payload",
		log.String("event", string(event)),
		log.Err(err),
	)
}
