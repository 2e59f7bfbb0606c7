package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// Map-backed fakes for the store interfaces. They mimic the repositories'
// guard semantics (status guards, wallet version checks) so services can be
// exercised without a database.

type fakeOrderStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*models.Order
	shipping map[uuid.UUID]*models.ShippingInfo
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:   make(map[uuid.UUID]*models.Order),
		shipping: make(map[uuid.UUID]*models.ShippingInfo),
	}
}

func (f *fakeOrderStore) put(o *models.Order) { f.orders[o.ID] = o }

func (f *fakeOrderStore) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (f *fakeOrderStore) CreateBuyNow(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
	return nil
}

func (f *fakeOrderStore) guardStatus(id uuid.UUID, from []string, to string) error {
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	for _, s := range from {
		if o.Status == s {
			o.Status = to
			return nil
		}
	}
	return repository.ErrOrderStateConflict
}

func (f *fakeOrderStore) UpdateStatusGuarded(_ context.Context, id uuid.UUID, from []string, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.guardStatus(id, from, to)
}

func (f *fakeOrderStore) Ship(_ context.Context, p repository.ShipParams) (*models.ShippingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guardStatus(p.OrderID, []string{models.OrderStatusPaid}, models.OrderStatusShipped); err != nil {
		return nil, err
	}
	info := &models.ShippingInfo{
		ID:             uuid.New(),
		OrderID:        p.OrderID,
		TrackingNumber: p.TrackingNumber,
		Carrier:        p.Carrier,
		ShippedAt:      p.ShippedAt,
	}
	f.shipping[p.OrderID] = info
	return info, nil
}

func (f *fakeOrderStore) GetShippingInfo(_ context.Context, orderID uuid.UUID) (*models.ShippingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.shipping[orderID]; ok {
		return info, nil
	}
	return nil, repository.ErrShippingNotFound
}

func (f *fakeOrderStore) ListByBuyer(_ context.Context, buyerID uuid.UUID, _, _ int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.BuyerID == buyerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) ListBySeller(_ context.Context, sellerID uuid.UUID, _, _ int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.SellerID == sellerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) FindUnpaidBefore(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusPendingPayment && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeEscrowStore struct {
	mu       sync.Mutex
	wallets  map[uuid.UUID]*models.EscrowWallet
	byUser   map[uuid.UUID]uuid.UUID
	platform uuid.UUID
	txs      map[uuid.UUID]*models.EscrowTransaction // keyed by order ID
	orders   *fakeOrderStore

	// walletConflicts makes the next N wallet writes fail, to exercise the
	// services' optimistic retry loops.
	walletConflicts int
}

func newFakeEscrowStore(orders *fakeOrderStore) *fakeEscrowStore {
	f := &fakeEscrowStore{
		wallets: make(map[uuid.UUID]*models.EscrowWallet),
		byUser:  make(map[uuid.UUID]uuid.UUID),
		txs:     make(map[uuid.UUID]*models.EscrowTransaction),
		orders:  orders,
	}
	platform := &models.EscrowWallet{
		ID:               uuid.New(),
		Balance:          decimal.Zero,
		Currency:         "USD",
		IsPlatformWallet: true,
	}
	f.wallets[platform.ID] = platform
	f.platform = platform.ID
	return f
}

func (f *fakeEscrowStore) GetOrCreateUserWallet(_ context.Context, userID uuid.UUID) (*models.EscrowWallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byUser[userID]; ok {
		cp := *f.wallets[id]
		return &cp, nil
	}
	uid := userID
	w := &models.EscrowWallet{
		ID:       uuid.New(),
		UserID:   &uid,
		Balance:  decimal.Zero,
		Currency: "USD",
	}
	f.wallets[w.ID] = w
	f.byUser[userID] = w.ID
	cp := *w
	return &cp, nil
}

func (f *fakeEscrowStore) GetPlatformWallet(_ context.Context) (*models.EscrowWallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.wallets[f.platform]
	return &cp, nil
}

func (f *fakeEscrowStore) GetTransactionByOrderID(_ context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.txs[orderID]; ok {
		cp := *tx
		return &cp, nil
	}
	return nil, repository.ErrTransactionNotFound
}

func (f *fakeEscrowStore) FindReleasable(_ context.Context, now time.Time) ([]models.EscrowTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EscrowTransaction
	for _, tx := range f.txs {
		if tx.Status == models.EscrowStatusHeld &&
			tx.EscrowReleaseDeadline != nil && tx.EscrowReleaseDeadline.Before(now) {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (f *fakeEscrowStore) checkWalletUpdates(updates []repository.WalletUpdate) error {
	if f.walletConflicts > 0 {
		f.walletConflicts--
		return repository.ErrWalletConflict
	}
	for _, u := range updates {
		w, ok := f.wallets[u.ID]
		if !ok || w.Version != u.Version {
			return repository.ErrWalletConflict
		}
	}
	return nil
}

func (f *fakeEscrowStore) applyWalletUpdates(updates []repository.WalletUpdate) {
	for _, u := range updates {
		w := f.wallets[u.ID]
		w.Balance = u.Balance
		w.Version++
	}
}

func (f *fakeEscrowStore) ApplyPayment(_ context.Context, p repository.ApplyPaymentParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders.mu.Lock()
	defer f.orders.mu.Unlock()

	if _, exists := f.txs[p.OrderID]; exists {
		return repository.ErrTransactionExists
	}
	if err := f.checkWalletUpdates(p.Wallets); err != nil {
		return err
	}
	if err := f.orders.guardStatus(p.OrderID,
		[]string{models.OrderStatusPendingPayment}, models.OrderStatusPaid); err != nil {
		return err
	}

	f.applyWalletUpdates(p.Wallets)
	cp := *p.Transaction
	f.txs[p.OrderID] = &cp
	return nil
}

func (f *fakeEscrowStore) ApplyTransition(_ context.Context, p repository.ApplyTransitionParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders.mu.Lock()
	defer f.orders.mu.Unlock()

	var tx *models.EscrowTransaction
	for _, t := range f.txs {
		if t.ID == p.TransactionID {
			tx = t
			break
		}
	}
	if tx == nil {
		return repository.ErrTransactionNotFound
	}

	allowed := false
	for _, s := range p.FromStatuses {
		if tx.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return repository.ErrEscrowStateConflict
	}
	if err := f.checkWalletUpdates(p.Wallets); err != nil {
		return err
	}
	if err := f.orders.guardStatus(p.OrderID, p.OrderFrom, p.OrderTo); err != nil {
		return err
	}

	tx.Status = p.ToStatus
	if p.ReleasedAt != nil {
		tx.ReleasedAt = p.ReleasedAt
	}
	f.applyWalletUpdates(p.Wallets)
	return nil
}

// totalBalance sums every wallet; the escrow invariant says this only moves
// when a payment deposit injects money.
func (f *fakeEscrowStore) totalBalance() decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for _, w := range f.wallets {
		total = total.Add(w.Balance)
	}
	return total
}

func (f *fakeEscrowStore) balanceOf(userID uuid.UUID) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byUser[userID]; ok {
		return f.wallets[id].Balance
	}
	return decimal.Zero
}

func (f *fakeEscrowStore) platformBalance() decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets[f.platform].Balance
}

type fakeItemStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Item
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[uuid.UUID]*models.Item)}
}

func (f *fakeItemStore) put(i *models.Item) { f.items[i.ID] = i }

func (f *fakeItemStore) Create(_ context.Context, item *models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemStore) GetByID(_ context.Context, id uuid.UUID) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.items[id]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, repository.ErrItemNotFound
}

func (f *fakeItemStore) UpdateStatusGuarded(_ context.Context, id uuid.UUID, from []string, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.items[id]
	if !ok {
		return repository.ErrItemNotFound
	}
	for _, s := range from {
		if i.Status == s {
			i.Status = to
			return nil
		}
	}
	return repository.ErrItemStateConflict
}

func (f *fakeItemStore) ListBySeller(_ context.Context, sellerID uuid.UUID, _, _ int) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Item
	for _, i := range f.items {
		if i.SellerID == sellerID {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (f *fakeItemStore) ListByStatus(_ context.Context, status string, _, _ int) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Item
	for _, i := range f.items {
		if i.Status == status {
			out = append(out, *i)
		}
	}
	return out, nil
}

type fakeAuctionStore struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*models.Auction
	byItem   map[uuid.UUID]uuid.UUID
	orders   *fakeOrderStore
	closed   []repository.CloseParams
}

func newFakeAuctionStore(orders *fakeOrderStore) *fakeAuctionStore {
	return &fakeAuctionStore{
		auctions: make(map[uuid.UUID]*models.Auction),
		byItem:   make(map[uuid.UUID]uuid.UUID),
		orders:   orders,
	}
}

func (f *fakeAuctionStore) put(a *models.Auction) {
	f.auctions[a.ID] = a
	f.byItem[a.ItemID] = a.ID
}

func (f *fakeAuctionStore) Create(_ context.Context, a *models.Auction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(a)
	return nil
}

func (f *fakeAuctionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.auctions[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, repository.ErrAuctionNotFound
}

func (f *fakeAuctionStore) GetByItemID(_ context.Context, itemID uuid.UUID) (*models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byItem[itemID]; ok {
		cp := *f.auctions[id]
		return &cp, nil
	}
	return nil, repository.ErrAuctionNotFound
}

func (f *fakeAuctionStore) FindExpired(_ context.Context, now time.Time) ([]models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Auction
	for _, a := range f.auctions {
		if a.Status == models.AuctionStatusActive && a.EndTime.Before(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAuctionStore) Close(_ context.Context, p repository.CloseParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[p.AuctionID]
	if !ok {
		return repository.ErrAuctionNotFound
	}
	if a.Status != models.AuctionStatusActive {
		return repository.ErrAuctionNotActive
	}
	a.Status = models.AuctionStatusClosed
	a.ClosedAt = &p.ClosedAt
	a.WinnerID = p.WinnerID
	if p.Order != nil {
		f.orders.mu.Lock()
		f.orders.orders[p.Order.ID] = p.Order
		f.orders.mu.Unlock()
	}
	f.closed = append(f.closed, p)
	return nil
}

type fakeBidStore struct {
	mu          sync.Mutex
	bids        map[uuid.UUID]*models.Bid
	proxies     []models.ProxyBid
	auctions    *fakeAuctionStore
	items       *fakeItemStore
	resolutions []repository.ResolutionParams
}

func newFakeBidStore(auctions *fakeAuctionStore, items *fakeItemStore) *fakeBidStore {
	return &fakeBidStore{
		bids:     make(map[uuid.UUID]*models.Bid),
		auctions: auctions,
		items:    items,
	}
}

func (f *fakeBidStore) GetByID(_ context.Context, id uuid.UUID) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bids[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, repository.ErrBidNotFound
}

func (f *fakeBidStore) ListByAuction(_ context.Context, auctionID uuid.UUID, _, _ int) ([]models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBidStore) ListByBidder(_ context.Context, bidderID uuid.UUID, _, _ int) ([]models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Bid
	for _, b := range f.bids {
		if b.BidderID == bidderID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBidStore) FindActiveProxyBids(_ context.Context, auctionID uuid.UUID) ([]models.ProxyBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ProxyBid
	for _, p := range f.proxies {
		if p.AuctionID == auctionID && p.IsActive {
			out = append(out, p)
		}
	}
	// Strongest ceiling first, as the repository query orders them.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].MaxAmount.GreaterThan(out[i].MaxAmount) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeBidStore) ApplyResolution(_ context.Context, p repository.ResolutionParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range p.Bids {
		b := p.Bids[i]
		f.bids[b.ID] = &b
	}

	updated := false
	for i := range f.proxies {
		pb := &f.proxies[i]
		if pb.AuctionID == p.AuctionID && pb.BidderID == p.BidderID {
			if p.ProxyMax.GreaterThan(pb.MaxAmount) {
				pb.MaxAmount = p.ProxyMax
			}
			pb.CurrentAmount = p.NewPrice
			pb.IsActive = true
			updated = true
		}
	}
	if !updated {
		f.proxies = append(f.proxies, models.ProxyBid{
			ID:            uuid.New(),
			AuctionID:     p.AuctionID,
			BidderID:      p.BidderID,
			MaxAmount:     p.ProxyMax,
			CurrentAmount: p.NewPrice,
			IsActive:      true,
		})
	}

	f.auctions.mu.Lock()
	if a, ok := f.auctions.auctions[p.AuctionID]; ok {
		id := p.WinningBid.ID
		winner := p.WinningBid.BidderID
		a.HighestBidID = &id
		a.WinnerID = &winner
		a.BidCount += len(p.Bids)
		a.Status = models.AuctionStatusActive
	}
	f.auctions.mu.Unlock()

	f.items.mu.Lock()
	if i, ok := f.items.items[p.ItemID]; ok {
		i.CurrentPrice = p.NewPrice
	}
	f.items.mu.Unlock()

	f.resolutions = append(f.resolutions, p)
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	busy     bool
	acquires int
	releases int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy || f.held[key] {
		return false
	}
	f.held[key] = true
	f.acquires++
	return true
}

func (f *fakeLocker) AcquireWithRetry(ctx context.Context, key string, _, lease time.Duration) bool {
	return f.Acquire(ctx, key, lease)
}

func (f *fakeLocker) Release(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.releases++
}

type notified struct {
	UserID uuid.UUID
	Kind   string
	Data   map[string]interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notified
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, kind string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notified{UserID: userID, Kind: kind, Data: data})
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.sent {
		out = append(out, n.Kind)
	}
	return out
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeBroadcaster) BroadcastToAuction(_ uuid.UUID, event string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type fakeEscrowLedger struct {
	released []uuid.UUID
	refunded []uuid.UUID
	disputed []uuid.UUID
	fail     error
}

func (f *fakeEscrowLedger) Release(_ context.Context, orderID uuid.UUID) error {
	if f.fail != nil {
		return f.fail
	}
	f.released = append(f.released, orderID)
	return nil
}

func (f *fakeEscrowLedger) Refund(_ context.Context, orderID uuid.UUID) error {
	if f.fail != nil {
		return f.fail
	}
	f.refunded = append(f.refunded, orderID)
	return nil
}

func (f *fakeEscrowLedger) Dispute(_ context.Context, orderID uuid.UUID, _ string) error {
	if f.fail != nil {
		return f.fail
	}
	f.disputed = append(f.disputed, orderID)
	return nil
}
