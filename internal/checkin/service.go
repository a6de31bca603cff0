package checkin

import (
	"context"
	"time"

	"gym-checkin/internal/logger"
	"gym-checkin/internal/models"
	"gym-checkin/internal/utils"
)

type Store interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	GetVenue(ctx context.Context, venueID string) (*models.Venue, error)
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
	GetActiveSubscription(ctx context.Context, userID string, now time.Time) (*models.Subscription, error)
	CheckInTimes(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error)

	GetCode(ctx context.Context, id string) (*models.CheckInCode, error)
	FindOpenCode(ctx context.Context, venueID, code string, now time.Time) (*models.CheckInCode, error)
	CodeInUse(ctx context.Context, code string, now time.Time) (bool, error)
	ReplaceOpenCode(ctx context.Context, code *models.CheckInCode) ([]models.CheckInCode, error)
	MarkCodeActive(ctx context.Context, id string, now time.Time) (bool, error)
	MarkCodeError(ctx context.Context, id string, now time.Time) (bool, error)
	ConsumeCode(ctx context.Context, codeID string, now time.Time, quotas []models.QuotaWindow, record *models.CheckInRecord, financial *models.FinancialRecord) (bool, error)
	ExpireStaleCodes(ctx context.Context, now time.Time) ([]models.CheckInCode, error)

	GetCheckInRecord(ctx context.Context, id string) (*models.CheckInRecord, error)
	GetCheckInByCode(ctx context.Context, codeID string) (*models.CheckInRecord, error)
}

// CodeReserver holds a code value for its lifetime so concurrent generators
// on other instances do not hand out the same value.
type CodeReserver interface {
	Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, code string) error
}

type StatusPublisher interface {
	Publish(ctx context.Context, event models.StatusEvent) error
}

type EventPublisher interface {
	PublishCodeGenerated(ctx context.Context, event models.CodeGeneratedEvent) error
	PublishCheckInRegistered(ctx context.Context, event models.CheckInRegisteredEvent) error
}

// AccessTokenVerifier resolves a mobile access token to the code and venue it was issued for.
type AccessTokenVerifier interface {
	Verify(token string) (codeID, venueID string, err error)
}

// CheckInService runs the code lifecycle. Reserver, Notifier, Events and Tokens are optional.
type CheckInService struct {
	Store    Store
	Reserver CodeReserver
	Notifier StatusPublisher
	Events   EventPublisher
	Tokens   AccessTokenVerifier
	Logger   *logger.Logger

	CodeTTL         time.Duration
	DefaultLocation *time.Location
	MaxCodeAttempts int

	Now        func() time.Time
	RandomCode func() (string, error)
}

func NewCheckInService(store Store, reserver CodeReserver, notifier StatusPublisher, events EventPublisher, log *logger.Logger, codeTTL time.Duration) *CheckInService {
	return &CheckInService{
		Store:           store,
		Reserver:        reserver,
		Notifier:        notifier,
		Events:          events,
		Logger:          log,
		CodeTTL:         codeTTL,
		DefaultLocation: time.UTC,
		MaxCodeAttempts: 10,
		Now:             time.Now,
		RandomCode:      utils.GenerateAccessCode,
	}
}

func (s *CheckInService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var discardLogger = logger.NewWithWriters(nil, nil)

func (s *CheckInService) log() *logger.Logger {
	if s.Logger == nil {
		return discardLogger
	}
	return s.Logger
}

func (s *CheckInService) codeTTL() time.Duration {
	if s.CodeTTL <= 0 {
		return 5 * time.Minute
	}
	return s.CodeTTL
}

// publishStatus is best effort; the store stays the source of truth.
func (s *CheckInService) publishStatus(ctx context.Context, event models.StatusEvent) {
	if s.Notifier == nil {
		return
	}
	if event.At.IsZero() {
		event.At = s.now()
	}
	if err := s.Notifier.Publish(ctx, event); err != nil {
		s.log().Warn("NOTIFIER", "status publish failed for code "+event.CodeID+": "+err.Error())
	}
}

func (s *CheckInService) releaseReservation(ctx context.Context, code string) {
	if s.Reserver == nil {
		return
	}
	if err := s.Reserver.Release(ctx, code); err != nil {
		s.log().Warn("REDIS", "release of code reservation failed: "+err.Error())
	}
}

func (s *CheckInService) GetCode(ctx context.Context, codeID string) (*models.CheckInCode, error) {
	return s.Store.GetCode(ctx, codeID)
}

func (s *CheckInService) GetCheckInRecord(ctx context.Context, id string) (*models.CheckInRecord, error) {
	return s.Store.GetCheckInRecord(ctx, id)
}

func (s *CheckInService) GetCheckInByCode(ctx context.Context, codeID string) (*models.CheckInRecord, error) {
	return s.Store.GetCheckInByCode(ctx, codeID)
}
