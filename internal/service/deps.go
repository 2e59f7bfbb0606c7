package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
)

// Store interfaces mirror the repository layer so services stay testable
// without a database. The concrete *repository types satisfy them.

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type ItemStore interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from []string, to string) error
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Item, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]models.Item, error)
}

type AuctionStore interface {
	Create(ctx context.Context, a *models.Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	GetByItemID(ctx context.Context, itemID uuid.UUID) (*models.Auction, error)
	FindExpired(ctx context.Context, now time.Time) ([]models.Auction, error)
	Close(ctx context.Context, p repository.CloseParams) error
}

type BidStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]models.Bid, error)
	ListByBidder(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]models.Bid, error)
	FindActiveProxyBids(ctx context.Context, auctionID uuid.UUID) ([]models.ProxyBid, error)
	ApplyResolution(ctx context.Context, p repository.ResolutionParams) error
}

type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CreateBuyNow(ctx context.Context, o *models.Order) error
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from []string, to string) error
	Ship(ctx context.Context, p repository.ShipParams) (*models.ShippingInfo, error)
	GetShippingInfo(ctx context.Context, orderID uuid.UUID) (*models.ShippingInfo, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error)
	FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type EscrowStore interface {
	GetOrCreateUserWallet(ctx context.Context, userID uuid.UUID) (*models.EscrowWallet, error)
	GetPlatformWallet(ctx context.Context) (*models.EscrowWallet, error)
	GetTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	FindReleasable(ctx context.Context, now time.Time) ([]models.EscrowTransaction, error)
	ApplyPayment(ctx context.Context, p repository.ApplyPaymentParams) error
	ApplyTransition(ctx context.Context, p repository.ApplyTransitionParams) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Locker is the mutual-exclusion primitive auction writes run under.
type Locker interface {
	Acquire(ctx context.Context, key string, lease time.Duration) bool
	AcquireWithRetry(ctx context.Context, key string, wait, lease time.Duration) bool
	Release(ctx context.Context, key string)
}

// AuctionBroadcaster pushes live updates to everyone watching an auction.
type AuctionBroadcaster interface {
	BroadcastToAuction(auctionID uuid.UUID, event string, data interface{})
}

// Notifier delivers a persistent notification to one user. Implementations
// must never fail the calling operation; delivery problems are logged.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, data map[string]interface{})
}

// auctionLockKey is shared by bid placement and auction closing so the two
// paths exclude each other on the same auction.
func auctionLockKey(auctionID uuid.UUID) string {
	return "auction:" + auctionID.String()
}

func mapItemErr(err error) error {
	if errors.Is(err, repository.ErrItemNotFound) {
		return apperror.ErrItemNotFound
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to load item")
}
