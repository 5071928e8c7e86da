package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/liberta/backend/internal/domain/carrier"
	"github.com/liberta/backend/internal/domain/order"
)

// fakeCarrierClient serves canned shipments per credential index
type fakeCarrierClient struct {
	mu sync.Mutex
	// bulk holds the bulk fetch response per credential index
	bulk map[int][]carrier.Shipment
	// byRef holds per-reference responses per credential index
	byRef map[int]map[string]carrier.Shipment
	// bulkErr forces a bulk fetch failure for a credential index
	bulkErr map[int]error
	// refErr forces a per-reference failure for a credential index
	refErr map[int]error

	refCalls []string // "index:reference" in call order
}

func newFakeCarrierClient() *fakeCarrierClient {
	return &fakeCarrierClient{
		bulk:    make(map[int][]carrier.Shipment),
		byRef:   make(map[int]map[string]carrier.Shipment),
		bulkErr: make(map[int]error),
		refErr:  make(map[int]error),
	}
}

func (c *fakeCarrierClient) Code() carrier.Code { return carrier.CodeSendit }

func (c *fakeCarrierClient) FetchShipments(_ context.Context, cred carrier.Credential, _ int) ([]carrier.Shipment, error) {
	if err := c.bulkErr[cred.Index]; err != nil {
		return nil, err
	}
	return c.bulk[cred.Index], nil
}

func (c *fakeCarrierClient) FetchByReference(_ context.Context, cred carrier.Credential, reference string) (*carrier.Shipment, error) {
	c.mu.Lock()
	c.refCalls = append(c.refCalls, fmt.Sprintf("%d:%s", cred.Index, reference))
	c.mu.Unlock()

	if err := c.refErr[cred.Index]; err != nil {
		return nil, err
	}
	if shipment, ok := c.byRef[cred.Index][reference]; ok {
		return &shipment, nil
	}
	return nil, carrier.ErrNotFound
}

var testStatusLabels = map[int]string{
	30: carrier.StatusCreated,
	35: carrier.StatusInTransit,
	41: carrier.StatusDelivered,
	50: carrier.StatusCancelled,
}

func (c *fakeCarrierClient) MapStatus(code int) string {
	if label, ok := testStatusLabels[code]; ok {
		return label
	}
	return carrier.UnknownLabel(code)
}

func (c *fakeCarrierClient) TestConnection(context.Context, carrier.Credential) error {
	return nil
}

func (c *fakeCarrierClient) SyncTrackingNumbers(context.Context, carrier.Credential, []string) (map[string]string, error) {
	return nil, nil
}

func (c *fakeCarrierClient) setByRef(credIndex int, shipment carrier.Shipment) {
	if c.byRef[credIndex] == nil {
		c.byRef[credIndex] = make(map[string]carrier.Shipment)
	}
	c.byRef[credIndex][shipment.Reference] = shipment
}

func (c *fakeCarrierClient) referenceCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.refCalls))
	copy(out, c.refCalls)
	return out
}

func factoryFor(client carrier.Client) carrier.Factory {
	return func(code carrier.Code) (carrier.Client, error) {
		if code != carrier.CodeSendit {
			return nil, carrier.ErrUnknownCode
		}
		return client, nil
	}
}

// fakeOrderStore is an in-memory order.Repository for reconciliation tests
type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
	// applied counts shipping writes actually performed
	applied int
}

func newFakeOrderStore(orders ...*order.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: make(map[uuid.UUID]*order.Order)}
	for _, o := range orders {
		copied := *o
		s.orders[o.ID] = &copied
	}
	return s
}

func (s *fakeOrderStore) FindByStoreAndNativeID(_ context.Context, storeID string, nativeID int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.StoreID == storeID && o.NativeID == nativeID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *fakeOrderStore) FindByReference(_ context.Context, reference string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Reference == reference {
			copied := *o
			return &copied, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *fakeOrderStore) FindNeedingRefresh(_ context.Context, terminalStatuses []string, limit int) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	terminal := make(map[string]bool, len(terminalStatuses))
	for _, label := range terminalStatuses {
		terminal[label] = true
	}

	var out []order.Order
	for _, o := range s.orders {
		if o.ShippingStatus != nil && terminal[*o.ShippingStatus] {
			continue
		}
		out = append(out, *o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeOrderStore) FindByReferences(_ context.Context, references []string) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(references))
	for _, ref := range references {
		wanted[ref] = true
	}

	var out []order.Order
	for _, o := range s.orders {
		if wanted[o.Reference] {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *fakeOrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *o
	s.orders[o.ID] = &copied
	return nil
}

func (s *fakeOrderStore) ApplyShippingUpdates(_ context.Context, updates []order.ShippingUpdate) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failures []error
	for _, u := range updates {
		o, ok := s.orders[u.OrderID]
		if !ok {
			failures = append(failures, order.ErrOrderNotFound)
			continue
		}
		status := u.ShippingStatus
		o.ShippingStatus = &status
		if u.ShipmentID != nil {
			o.ShipmentID = u.ShipmentID
		}
		if u.TrackingNumber != nil {
			o.TrackingNumber = u.TrackingNumber
		}
		if u.ForceDelivered {
			o.Status = order.StatusDelivered
		}
		s.applied++
	}
	return failures
}

func (s *fakeOrderStore) HighestNativeID(context.Context, string) (int64, error) {
	return 0, nil
}

func (s *fakeOrderStore) get(id uuid.UUID) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *fakeOrderStore) appliedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// fakeEventStore is an in-memory order.WebhookEventRepository
type fakeEventStore struct {
	mu     sync.Mutex
	events []order.WebhookEvent
}

func (s *fakeEventStore) Record(_ context.Context, event *order.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *fakeEventStore) all() []order.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order.WebhookEvent, len(s.events))
	copy(out, s.events)
	return out
}
