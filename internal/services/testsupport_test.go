package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"
	"gorefer/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestLogger() *logger.Logger {
	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		panic(err)
	}
	return log
}

// memCache is an in-process CacheService. Lock blocks until the key is free,
// which keeps the earning tests deterministic under concurrency.
type memCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	locks map[string]*sync.Mutex
}

func newMemCache() *memCache {
	return &memCache{
		data:  make(map[string][]byte),
		locks: make(map[string]*sync.Mutex),
	}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	raw, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("cache miss: %s", key)
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.data, key)
	}
	c.mu.Unlock()
	return nil
}

func (c *memCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	_, ok := c.data[key]
	c.mu.Unlock()
	return ok, nil
}

func (c *memCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = raw
	return true, nil
}

func (c *memCache) Increment(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if raw, ok := c.data[key]; ok {
		_ = json.Unmarshal(raw, &n)
	}
	n++
	raw, _ := json.Marshal(n)
	c.data[key] = raw
	return n, nil
}

func (c *memCache) Lock(ctx context.Context, key string, expiration time.Duration) (*DistributedLock, error) {
	c.mu.Lock()
	mu, ok := c.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[key] = mu
	}
	c.mu.Unlock()

	mu.Lock()
	return &DistributedLock{Key: key, Expiration: expiration, CreatedAt: time.Now()}, nil
}

func (c *memCache) Unlock(ctx context.Context, lock *DistributedLock) error {
	c.mu.Lock()
	mu, ok := c.locks[lock.Key]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown lock: %s", lock.Key)
	}
	mu.Unlock()
	return nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }

// memReferralRepo mirrors the conditional-update semantics of the MongoDB
// implementation: status transitions only apply while the current status is in
// fromStatuses, and the (affiliate, referred) pair is unique.
type memReferralRepo struct {
	mu        sync.Mutex
	referrals map[primitive.ObjectID]*models.Referral
}

func newMemReferralRepo() *memReferralRepo {
	return &memReferralRepo{referrals: make(map[primitive.ObjectID]*models.Referral)}
}

func (r *memReferralRepo) Create(ctx context.Context, referral *models.Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.referrals {
		if existing.AffiliateID == referral.AffiliateID && existing.ReferredID == referral.ReferredID {
			return fmt.Errorf("%w: referral pair", interfaces.ErrDuplicate)
		}
	}
	referral.ID = primitive.NewObjectID()
	if referral.Status == "" {
		referral.Status = models.ReferralStatusPending
	}
	clone := *referral
	r.referrals[referral.ID] = &clone
	return nil
}

func (r *memReferralRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Referral, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	referral, ok := r.referrals[id]
	if !ok {
		return nil, nil
	}
	clone := *referral
	return &clone, nil
}

func (r *memReferralRepo) GetByPair(ctx context.Context, affiliateID, referredID primitive.ObjectID) (*models.Referral, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, referral := range r.referrals {
		if referral.AffiliateID == affiliateID && referral.ReferredID == referredID {
			clone := *referral
			return &clone, nil
		}
	}
	return nil, nil
}

func statusIn(status models.ReferralStatus, statuses []models.ReferralStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *memReferralRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, fromStatuses []models.ReferralStatus, to models.ReferralStatus, extra map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	referral, ok := r.referrals[id]
	if !ok || !statusIn(referral.Status, fromStatuses) {
		return false, nil
	}
	referral.Status = to
	referral.UpdatedAt = time.Now()
	if v, ok := extra["status_before_suspend"]; ok {
		switch typed := v.(type) {
		case models.ReferralStatus:
			referral.StatusBeforeSuspend = typed
		case string:
			referral.StatusBeforeSuspend = models.ReferralStatus(typed)
		}
	}
	return true, nil
}

func (r *memReferralRepo) ApplyEarning(ctx context.Context, id primitive.ObjectID, fromStatuses []models.ReferralStatus, to models.ReferralStatus, eventID string, grossAmount, commission float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	referral, ok := r.referrals[id]
	if !ok || !statusIn(referral.Status, fromStatuses) || referral.LastEventID == eventID {
		return false, nil
	}
	referral.Status = to
	referral.TotalReferredEarning += grossAmount
	referral.TotalCommission += commission
	referral.LastEventID = eventID
	referral.LastEventCommission = commission
	referral.UpdatedAt = time.Now()
	return true, nil
}

func (r *memReferralRepo) MarkSignupBonusPaid(ctx context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	referral, ok := r.referrals[id]
	if !ok || referral.SignupBonusPaid {
		return false, nil
	}
	referral.SignupBonusPaid = true
	return true, nil
}

func (r *memReferralRepo) MarkTierRewardPaid(ctx context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	referral, ok := r.referrals[id]
	if !ok || referral.TierRewardPaid {
		return false, nil
	}
	referral.TierRewardPaid = true
	return true, nil
}

func (r *memReferralRepo) CountByAffiliateAndStatus(ctx context.Context, affiliateID primitive.ObjectID, statuses []models.ReferralStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, referral := range r.referrals {
		if referral.AffiliateID == affiliateID && statusIn(referral.Status, statuses) {
			count++
		}
	}
	return count, nil
}

func (r *memReferralRepo) ListByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Referral, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Referral
	for _, referral := range r.referrals {
		if referral.AffiliateID == affiliateID {
			clone := *referral
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

// memCodeRepo keys codes by their code string, uppercase, unique.
type memCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*models.AffiliateCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: make(map[string]*models.AffiliateCode)}
}

func (r *memCodeRepo) Create(ctx context.Context, code *models.AffiliateCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[code.Code]; ok {
		return fmt.Errorf("%w: code %s", interfaces.ErrDuplicate, code.Code)
	}
	code.ID = primitive.NewObjectID()
	if code.Status == "" {
		code.Status = models.CodeStatusActive
	}
	clone := *code
	r.codes[code.Code] = &clone
	return nil
}

func (r *memCodeRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AffiliateCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range r.codes {
		if code.ID == id {
			clone := *code
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memCodeRepo) GetByCode(ctx context.Context, code string) (*models.AffiliateCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	found, ok := r.codes[code]
	if !ok {
		return nil, nil
	}
	clone := *found
	return &clone, nil
}

func (r *memCodeRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range r.codes {
		if code.ID == id {
			if status, ok := updates["status"]; ok {
				if typed, ok := status.(models.CodeStatus); ok {
					code.Status = typed
				}
			}
			return nil
		}
	}
	return fmt.Errorf("code not found")
}

func (r *memCodeRepo) GetByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.AffiliateCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AffiliateCode
	for _, code := range r.codes {
		if code.UserID == userID {
			clone := *code
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memCodeRepo) GetPrimaryByUser(ctx context.Context, userID primitive.ObjectID) (*models.AffiliateCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range r.codes {
		if code.UserID == userID && code.CampaignName == "" {
			clone := *code
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memCodeRepo) IncrementCounters(ctx context.Context, id primitive.ObjectID, counters map[string]interface{}) error {
	if id.IsZero() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range r.codes {
		if code.ID != id {
			continue
		}
		for field, delta := range counters {
			switch field {
			case "clicks":
				code.Clicks += toInt64(delta)
			case "signups":
				code.Signups += toInt64(delta)
			case "activated":
				code.Activated += toInt64(delta)
			case "paid":
				code.Paid += toInt64(delta)
			case "ggg_earned":
				code.GGGEarned += toFloat64(delta)
			}
		}
		return nil
	}
	return nil
}

func toInt64(v interface{}) int64 {
	switch typed := v.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	}
	return 0
}

func toFloat64(v interface{}) float64 {
	switch typed := v.(type) {
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case float64:
		return typed
	}
	return 0
}

func (r *memCodeRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.CodeStatus) error {
	return r.Update(ctx, id, map[string]interface{}{"status": status})
}

func (r *memCodeRepo) List(ctx context.Context, params *utils.PaginationParams) ([]*models.AffiliateCode, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AffiliateCode
	for _, code := range r.codes {
		clone := *code
		out = append(out, &clone)
	}
	return out, int64(len(out)), nil
}

type memClickRepo struct {
	mu     sync.Mutex
	clicks []*models.Click
}

func newMemClickRepo() *memClickRepo {
	return &memClickRepo{}
}

func (r *memClickRepo) Create(ctx context.Context, click *models.Click) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	click.ID = primitive.NewObjectID()
	clone := *click
	r.clicks = append(r.clicks, &clone)
	return nil
}

func (r *memClickRepo) GetLatestByCode(ctx context.Context, code string, before time.Time) (*models.Click, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Click
	for _, click := range r.clicks {
		if click.Code != code || !click.ClickedAt.Before(before) {
			continue
		}
		if latest == nil || click.ClickedAt.After(latest.ClickedAt) {
			latest = click
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *memClickRepo) CountByCode(ctx context.Context, code string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, click := range r.clicks {
		if click.Code == code {
			count++
		}
	}
	return count, nil
}

func (r *memClickRepo) ListByCode(ctx context.Context, code string, params *utils.PaginationParams) ([]*models.Click, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Click
	for _, click := range r.clicks {
		if click.Code == code {
			clone := *click
			out = append(out, &clone)
		}
	}
	return out, int64(len(out)), nil
}

type memSettingRepo struct {
	mu      sync.Mutex
	setting *models.AffiliateSetting
}

func newMemSettingRepo() *memSettingRepo {
	return &memSettingRepo{}
}

func (r *memSettingRepo) Get(ctx context.Context) (*models.AffiliateSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setting == nil {
		return nil, nil
	}
	clone := *r.setting
	return &clone, nil
}

func (r *memSettingRepo) Upsert(ctx context.Context, setting *models.AffiliateSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *setting
	r.setting = &clone
	return nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) EnsureExists(ctx context.Context, id primitive.ObjectID, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		user = &models.User{ID: id, Username: username, UserType: models.UserTypeUser, CreatedAt: time.Now()}
		r.users[id] = user
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) SetMultiplierOverride(ctx context.Context, id primitive.ObjectID, ggg, rp *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		user = &models.User{ID: id, UserType: models.UserTypeUser, CreatedAt: time.Now()}
		r.users[id] = user
	}
	user.GGGMultiplierOverride = ggg
	user.RPMultiplierOverride = rp
	return nil
}

// memLedgerRepo enforces idempotency-key uniqueness the way the unique index
// does: a retried credit inserts nothing and reports applied=false.
type memLedgerRepo struct {
	mu      sync.Mutex
	entries map[string]*models.LedgerEntry
	wallets map[primitive.ObjectID]*models.Wallet
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{
		entries: make(map[string]*models.LedgerEntry),
		wallets: make(map[primitive.ObjectID]*models.Wallet),
	}
}

func (r *memLedgerRepo) CreditOnce(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.IdempotencyKey]; ok {
		return false, nil
	}
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()
	clone := *entry
	r.entries[entry.IdempotencyKey] = &clone

	wallet, ok := r.wallets[entry.UserID]
	if !ok {
		wallet = &models.Wallet{ID: primitive.NewObjectID(), UserID: entry.UserID}
		r.wallets[entry.UserID] = wallet
	}
	switch entry.Currency {
	case models.CurrencyRP:
		wallet.RPBalance += entry.Amount
	default:
		wallet.GGGBalance += entry.Amount
	}
	return true, nil
}

func (r *memLedgerRepo) GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	clone := *wallet
	return &clone, nil
}

func (r *memLedgerRepo) ListEntries(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LedgerEntry
	for _, entry := range r.entries {
		if entry.UserID == userID {
			clone := *entry
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memLedgerRepo) entriesOfKind(userID primitive.ObjectID, kind models.CreditKind) []*models.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LedgerEntry
	for _, entry := range r.entries {
		if entry.UserID == userID && entry.Kind == kind {
			clone := *entry
			out = append(out, &clone)
		}
	}
	return out
}

// engineFixture wires the full service graph over in-memory stores.
type engineFixture struct {
	referralRepo *memReferralRepo
	codeRepo     *memCodeRepo
	clickRepo    *memClickRepo
	settingRepo  *memSettingRepo
	userRepo     *memUserRepo
	ledgerRepo   *memLedgerRepo
	cache        *memCache

	settings    SettingsService
	commission  CommissionService
	multipliers MultiplierService
	tiers       TierService
	ledger      LedgerService
	attribution AttributionService
	codes       AffiliateCodeService
	referrals   ReferralService
}

func newEngineFixture() *engineFixture {
	log := newTestLogger()

	f := &engineFixture{
		referralRepo: newMemReferralRepo(),
		codeRepo:     newMemCodeRepo(),
		clickRepo:    newMemClickRepo(),
		settingRepo:  newMemSettingRepo(),
		userRepo:     newMemUserRepo(),
		ledgerRepo:   newMemLedgerRepo(),
		cache:        newMemCache(),
	}

	f.settings = NewSettingsService(f.settingRepo, f.cache, log)
	f.commission = NewCommissionService(f.referralRepo, log)
	f.multipliers = NewMultiplierService(f.userRepo, f.referralRepo, f.settings, log)
	f.tiers = NewTierService(f.referralRepo)
	f.ledger = NewLedgerService(f.ledgerRepo, log)
	f.attribution = NewAttributionService(f.codeRepo, f.clickRepo, f.cache, false, log)
	f.codes = NewAffiliateCodeService(f.codeRepo, f.userRepo, log)
	f.referrals = NewReferralService(
		f.referralRepo,
		f.codeRepo,
		f.attribution,
		f.settings,
		f.commission,
		f.tiers,
		f.ledger,
		NewLogNotifier(log),
		f.cache,
		log,
	)

	return f
}

func testContext() context.Context { return context.Background() }

func newObjectID() primitive.ObjectID { return primitive.NewObjectID() }

// seedReferral inserts a referral in the given status directly into the store.
func seedReferral(t *testing.T, f *engineFixture, affiliateID primitive.ObjectID, status models.ReferralStatus) *models.Referral {
	t.Helper()
	referral := &models.Referral{
		AffiliateID:       affiliateID,
		ReferredID:        primitive.NewObjectID(),
		Code:              "SEEDCODE",
		Status:            status,
		CommissionPercent: 0.10,
		CreatedAt:         time.Now(),
	}
	if err := f.referralRepo.Create(context.Background(), referral); err != nil {
		t.Fatalf("seed referral: %v", err)
	}
	return referral
}

// seedCode installs an active code owned by the given affiliate together with
// a click at the given time.
func (f *engineFixture) seedCode(affiliateID primitive.ObjectID, code string, clickedAt time.Time) {
	_ = f.codeRepo.Create(context.Background(), &models.AffiliateCode{
		UserID: affiliateID,
		Code:   code,
		Status: models.CodeStatusActive,
	})
	_ = f.clickRepo.Create(context.Background(), &models.Click{
		Code:      code,
		ClickedAt: clickedAt,
	})
}
