package tests

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trips/internal/client"
	"trips/internal/domain"
	"trips/internal/redis"
	"trips/internal/repository"
	"trips/internal/stream"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	GetError    error
	UpdateError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip seeds a trip into the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip.Clone()
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip.Clone()
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return trip.Clone(), nil
}

func (m *MockTripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[trip.ID]; !ok {
		return repository.ErrNotFound
	}
	m.trips[trip.ID] = trip.Clone()
	return nil
}

func (m *MockTripRepository) ListByRiderID(ctx context.Context, riderID string, limit int) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Trip
	for _, trip := range m.trips {
		if trip.RiderID == riderID {
			out = append(out, trip.Clone())
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockTripRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, trip := range m.trips {
		if trip.DriverID == driverID && !trip.IsTerminal() {
			return trip.Clone(), nil
		}
	}
	return nil, nil
}

// ──────────────────────────────────────────────
// MOCK AUDIT REPOSITORY
// ──────────────────────────────────────────────

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	mu      sync.RWMutex
	entries []*repository.AuditEntry

	AppendCallCount int32
	AppendError     error
}

// NewMockAuditRepository creates a new mock audit repository.
func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *repository.AuditEntry) error {
	atomic.AddInt32(&m.AppendCallCount, 1)
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockAuditRepository) ListByTripID(ctx context.Context, tripID string) ([]*repository.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*repository.AuditEntry
	for _, e := range m.entries {
		if e.TripID == tripID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK PIN STORE
// ──────────────────────────────────────────────

// MockPinStore mimics the Redis PIN store, including the attempt counter and
// the three-strikes block.
type MockPinStore struct {
	mu       sync.Mutex
	pins     map[string]string
	attempts map[string]int
	blocked  map[string]bool

	SetPinCallCount int32
	SetPinError     error
	ValidateError   error
}

// NewMockPinStore creates a new mock PIN store.
func NewMockPinStore() *MockPinStore {
	return &MockPinStore{
		pins:     make(map[string]string),
		attempts: make(map[string]int),
		blocked:  make(map[string]bool),
	}
}

// Pin returns the stored PIN for a trip, if any.
func (m *MockPinStore) Pin(tripID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin, ok := m.pins[tripID]
	return pin, ok
}

func (m *MockPinStore) SetPin(ctx context.Context, tripID, pin string, ttl time.Duration) error {
	atomic.AddInt32(&m.SetPinCallCount, 1)
	if m.SetPinError != nil {
		return m.SetPinError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins[tripID] = pin
	m.attempts[tripID] = 0
	m.blocked[tripID] = false
	return nil
}

func (m *MockPinStore) ValidatePin(ctx context.Context, tripID, pin string) (bool, error) {
	if m.ValidateError != nil {
		return false, m.ValidateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocked[tripID] {
		return false, redis.ErrPinBlocked
	}
	stored, ok := m.pins[tripID]
	if !ok {
		return false, redis.ErrPinNotFound
	}
	if stored != pin {
		m.attempts[tripID]++
		if m.attempts[tripID] >= 3 {
			m.blocked[tripID] = true
		}
		return false, nil
	}
	m.attempts[tripID] = 0
	return true, nil
}

func (m *MockPinStore) ClearPin(ctx context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pins, tripID)
	delete(m.attempts, tripID)
	delete(m.blocked, tripID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK TIMER STORE
// ──────────────────────────────────────────────

// MockTimerStore mimics the Redis timer keys. An offer-expiry key that was
// never set (or was expired via ExpireOffer) reads as expired; no-show keys
// read as not triggered when absent.
type MockTimerStore struct {
	mu           sync.Mutex
	offers       map[string]bool
	riderNoShow  map[string]bool
	driverNoShow map[string]bool

	SetOfferCallCount int32
	SetOfferError     error
	NoShowError       error
}

// NewMockTimerStore creates a new mock timer store.
func NewMockTimerStore() *MockTimerStore {
	return &MockTimerStore{
		offers:       make(map[string]bool),
		riderNoShow:  make(map[string]bool),
		driverNoShow: make(map[string]bool),
	}
}

// ExpireOffer drops the offer-expiry key, simulating TTL expiry.
func (m *MockTimerStore) ExpireOffer(tripID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.offers, tripID)
}

// HasRiderNoShow reports whether the rider-no-show key is armed.
func (m *MockTimerStore) HasRiderNoShow(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.riderNoShow[tripID]
}

// HasDriverNoShow reports whether the driver-no-show key is armed.
func (m *MockTimerStore) HasDriverNoShow(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driverNoShow[tripID]
}

func (m *MockTimerStore) SetOfferExpiry(ctx context.Context, tripID string, d time.Duration) error {
	atomic.AddInt32(&m.SetOfferCallCount, 1)
	if m.SetOfferError != nil {
		return m.SetOfferError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[tripID] = true
	return nil
}

func (m *MockTimerStore) SetRiderNoShow(ctx context.Context, tripID string, d time.Duration) error {
	if m.NoShowError != nil {
		return m.NoShowError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riderNoShow[tripID] = true
	return nil
}

func (m *MockTimerStore) SetDriverNoShow(ctx context.Context, tripID string, d time.Duration) error {
	if m.NoShowError != nil {
		return m.NoShowError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driverNoShow[tripID] = true
	return nil
}

func (m *MockTimerStore) IsOfferExpired(ctx context.Context, tripID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.offers[tripID], nil
}

func (m *MockTimerStore) IsRiderNoShow(ctx context.Context, tripID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return false, nil
}

func (m *MockTimerStore) IsDriverNoShow(ctx context.Context, tripID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return false, nil
}

func (m *MockTimerStore) ClearNoShow(ctx context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.riderNoShow, tripID)
	delete(m.driverNoShow, tripID)
	return nil
}

func (m *MockTimerStore) ClearAll(ctx context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.offers, tripID)
	delete(m.riderNoShow, tripID)
	delete(m.driverNoShow, tripID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK TRIP CACHE
// ──────────────────────────────────────────────

// MockTripCache is a mock implementation of the trip-state cache.
type MockTripCache struct {
	mu     sync.RWMutex
	states map[string]*redis.CachedTripState

	GetCallCount        int32
	SetCallCount        int32
	InvalidateCallCount int32
	GetError            error
	SetError            error
}

// NewMockTripCache creates a new mock trip cache.
func NewMockTripCache() *MockTripCache {
	return &MockTripCache{
		states: make(map[string]*redis.CachedTripState),
	}
}

func (m *MockTripCache) GetTripState(ctx context.Context, tripID string) (*redis.CachedTripState, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[tripID], nil
}

// Cached reports whether a state projection is held for the trip.
func (m *MockTripCache) Cached(tripID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[tripID]
	return ok
}

func (m *MockTripCache) SetTripState(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[trip.ID] = &redis.CachedTripState{
		ID:       trip.ID,
		RiderID:  trip.RiderID,
		DriverID: trip.DriverID,
		Status:   string(trip.Status),
		City:     trip.City,
	}
	return nil
}

func (m *MockTripCache) InvalidateTrip(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, tripID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK IDEMPOTENCY STORE
// ──────────────────────────────────────────────

// MockIdempotencyStore is a mock implementation of the idempotency key
// store. A reserved key reads back as in flight until filled or released.
type MockIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string][]byte
	pending   map[string]bool

	ReserveCallCount int32
	SetCallCount     int32
	ReleaseCallCount int32
	GetError         error
	ReserveError     error
}

// NewMockIdempotencyStore creates a new mock idempotency store.
func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		responses: make(map[string][]byte),
		pending:   make(map[string]bool),
	}
}

func (m *MockIdempotencyStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[key] {
		return nil, redis.ErrInFlight
	}
	return m.responses[key], nil
}

func (m *MockIdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	atomic.AddInt32(&m.ReserveCallCount, 1)
	if m.ReserveError != nil {
		return false, m.ReserveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[key] || m.responses[key] != nil {
		return false, nil
	}
	m.pending[key] = true
	return true, nil
}

func (m *MockIdempotencyStore) SetResponse(ctx context.Context, key string, response []byte) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	m.responses[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	delete(m.responses, key)
	return nil
}

// MarkInFlight reserves key directly, simulating a concurrent duplicate
// that is still executing.
func (m *MockIdempotencyStore) MarkInFlight(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[key] = true
}

// Stored returns the cached response bytes for key, if any.
func (m *MockIdempotencyStore) Stored(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.responses[key]
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// PublishedEvent pairs an event with the stream it was appended to.
type PublishedEvent struct {
	Stream string
	Event  stream.Event
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, streamName string, ev stream.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Stream: streamName, Event: ev})
	return nil
}

// Events returns a copy of all recorded events.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// CountByType returns how many events of the given type were published.
func (m *MockPublisher) CountByType(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, ev := range m.events {
		if ev.Event.Type == eventType {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// MOCK DOWNSTREAM CLIENTS
// ──────────────────────────────────────────────

// MockGeoClient is a mock implementation of the geo client.
type MockGeoClient struct {
	mu sync.Mutex

	// EtaPairs is returned for every Eta call.
	EtaPairs []client.EtaPair
	EtaError error
	H3Error  error

	EtaCallCount int32
}

// NewMockGeoClient creates a geo mock with a short, in-radius default ETA.
func NewMockGeoClient() *MockGeoClient {
	return &MockGeoClient{
		EtaPairs: []client.EtaPair{{DurationSec: 240, DistanceM: 50}},
	}
}

// SetEta replaces the pair returned by subsequent Eta calls.
func (m *MockGeoClient) SetEta(durationSec, distanceM float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EtaPairs = []client.EtaPair{{DurationSec: durationSec, DistanceM: distanceM}}
}

func (m *MockGeoClient) Eta(ctx context.Context, req client.EtaRequest) (*client.EtaResponse, error) {
	atomic.AddInt32(&m.EtaCallCount, 1)
	if m.EtaError != nil {
		return nil, m.EtaError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pairs := make([]client.EtaPair, len(m.EtaPairs))
	copy(pairs, m.EtaPairs)
	return &client.EtaResponse{Engine: "mock", Pairs: pairs}, nil
}

func (m *MockGeoClient) Route(ctx context.Context, req client.RouteRequest) (*client.RouteResponse, error) {
	return &client.RouteResponse{Polyline: "mock", DistanceM: 1000, DurationSec: 120}, nil
}

func (m *MockGeoClient) H3Encode(ctx context.Context, ops []client.H3Op) ([]client.H3Result, error) {
	if m.H3Error != nil {
		return nil, m.H3Error
	}
	out := make([]client.H3Result, len(ops))
	for i, op := range ops {
		out[i] = client.H3Result{Index: fmt.Sprintf("89%07.0f%07.0f", (op.Lat+90)*1000, (op.Lng+180)*1000)}
	}
	return out, nil
}

// MockPricingClient is a mock implementation of the pricing client.
type MockPricingClient struct {
	QuoteResponse    *client.QuoteResponse
	FinalizeResponse *client.FinalizeResponse
	QuoteError       error
	FinalizeError    error

	FinalizeCallCount int32
}

// NewMockPricingClient creates a pricing mock with sensible defaults.
func NewMockPricingClient() *MockPricingClient {
	return &MockPricingClient{
		QuoteResponse: &client.QuoteResponse{
			QuoteID:       "quote-1",
			Currency:      "USD",
			EstimateTotal: 12.50,
			Breakdown:     map[string]float64{"base": 3.00, "distance": 7.50, "time": 2.00},
			Zone:          "downtown",
		},
		FinalizeResponse: &client.FinalizeResponse{
			TotalFinal:         14.25,
			Taxes:              1.25,
			SurgeUsed:          1.0,
			PricingRuleVersion: "v42",
			Breakdown:          map[string]float64{"base": 3.00, "distance": 8.75, "time": 2.50},
		},
	}
}

func (m *MockPricingClient) Quote(ctx context.Context, req client.QuoteRequest) (*client.QuoteResponse, error) {
	if m.QuoteError != nil {
		return nil, m.QuoteError
	}
	return m.QuoteResponse, nil
}

func (m *MockPricingClient) Finalize(ctx context.Context, req client.FinalizeRequest) (*client.FinalizeResponse, error) {
	atomic.AddInt32(&m.FinalizeCallCount, 1)
	if m.FinalizeError != nil {
		return nil, m.FinalizeError
	}
	return m.FinalizeResponse, nil
}

// MockPaymentsClient is a mock implementation of the payments client.
type MockPaymentsClient struct {
	mu       sync.Mutex
	statuses map[string]string

	CreateIntentError error
	GetIntentError    error

	CreateIntentCallCount int32
	LastIntentAmount      float64
}

// NewMockPaymentsClient creates a payments mock whose intents start as
// "requires_capture".
func NewMockPaymentsClient() *MockPaymentsClient {
	return &MockPaymentsClient{
		statuses: make(map[string]string),
	}
}

// SetIntentStatus overrides the status of a payment intent.
func (m *MockPaymentsClient) SetIntentStatus(paymentIntentID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[paymentIntentID] = status
}

func (m *MockPaymentsClient) CreateIntent(ctx context.Context, req client.CreateIntentRequest) (*client.CreateIntentResponse, error) {
	atomic.AddInt32(&m.CreateIntentCallCount, 1)
	if m.CreateIntentError != nil {
		return nil, m.CreateIntentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("pi_%s", req.TripID)
	m.statuses[id] = "requires_capture"
	m.LastIntentAmount = req.Amount
	return &client.CreateIntentResponse{PaymentIntentID: id, Status: "requires_capture"}, nil
}

func (m *MockPaymentsClient) GetIntent(ctx context.Context, paymentIntentID string) (*client.IntentStatus, error) {
	if m.GetIntentError != nil {
		return nil, m.GetIntentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[paymentIntentID]
	if !ok {
		status = "requires_capture"
	}
	return &client.IntentStatus{PaymentIntentID: paymentIntentID, Status: status}, nil
}

// MockPresenceClient is a mock implementation of the presence client.
type MockPresenceClient struct {
	mu       sync.Mutex
	sessions map[string]*client.SessionResponse

	GetSessionError error
}

// NewMockPresenceClient creates a new mock presence client.
func NewMockPresenceClient() *MockPresenceClient {
	return &MockPresenceClient{
		sessions: make(map[string]*client.SessionResponse),
	}
}

// SetSession sets the presence snapshot for a driver.
func (m *MockPresenceClient) SetSession(driverID string, session *client.SessionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[driverID] = session
}

func (m *MockPresenceClient) GetSession(ctx context.Context, driverID string) (*client.SessionResponse, error) {
	if m.GetSessionError != nil {
		return nil, m.GetSessionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[driverID]; ok {
		return session, nil
	}
	return &client.SessionResponse{Online: false}, nil
}
