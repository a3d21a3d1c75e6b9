package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/google/uuid"
)

// memoryDB is a process-local store used with STORAGE_DRIVER=memory and in
// tests. Every read returns a copy so callers cannot mutate stored rows.
type memoryDB struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
	sites map[uuid.UUID]models.Site
	leads map[uuid.UUID]models.EmailLead
	subs  map[uuid.UUID]models.Subscription
	files map[uuid.UUID][]models.GeneratedFile
	now   func() time.Time
}

// NewMemoryStores returns stores backed by one shared in-memory database.
func NewMemoryStores() *Stores {
	m := &memoryDB{
		users: make(map[uuid.UUID]models.User),
		sites: make(map[uuid.UUID]models.Site),
		leads: make(map[uuid.UUID]models.EmailLead),
		subs:  make(map[uuid.UUID]models.Subscription),
		files: make(map[uuid.UUID][]models.GeneratedFile),
		now:   time.Now,
	}
	return &Stores{
		Users:         memUsers{m},
		Sites:         memSites{m},
		Leads:         memLeads{m},
		Subscriptions: memSubs{m},
		Files:         memFiles{m},
	}
}

type memUsers struct{ m *memoryDB }

func (s memUsers) FindOrCreateByEmail(_ context.Context, email, fullName string) (*models.User, bool, error) {
	email = normalizeEmail(email)
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.Email == email {
			return &u, false, nil
		}
	}
	now := s.m.now()
	u := models.User{ID: uuid.New(), Email: email, FullName: fullName, Role: models.RoleUser, CreatedAt: now, UpdatedAt: now}
	s.m.users[u.ID] = u
	return &u, true, nil
}

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, u := range s.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return s.update(id, func(u *models.User) { u.LastLoginAt = &at })
}

func (s memUsers) SetRole(_ context.Context, id uuid.UUID, role string) error {
	return s.update(id, func(u *models.User) { u.Role = role })
}

func (s memUsers) update(id uuid.UUID, fn func(*models.User)) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = s.m.now()
	s.m.users[id] = u
	return nil
}

type memSites struct{ m *memoryDB }

func (s memSites) Create(_ context.Context, site *models.Site) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[site.UserID]; !ok {
		return ErrNotFound
	}
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	if _, exists := s.m.sites[site.ID]; exists {
		return ErrDuplicate
	}
	if site.Status == "" {
		site.Status = models.SiteDraft
	}
	now := s.m.now()
	site.CreatedAt, site.UpdatedAt = now, now
	s.m.sites[site.ID] = *site
	return nil
}

func (s memSites) GetByID(_ context.Context, id uuid.UUID) (*models.Site, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	site, ok := s.m.sites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &site, nil
}

func (s memSites) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Site, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []models.Site
	for _, site := range s.m.sites {
		if site.UserID == userID {
			out = append(out, site)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memSites) CountActiveByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for _, site := range s.m.sites {
		if site.UserID == userID && site.Status != models.SiteArchived {
			n++
		}
	}
	return n, nil
}

func (s memSites) MarkGenerated(_ context.Context, id uuid.UUID, siteURL string, at time.Time) error {
	return s.conditional(id, []models.SiteStatus{models.SiteDraft, models.SiteActive}, func(site *models.Site) {
		site.Status = models.SiteActive
		site.SiteURL = siteURL
		site.GeneratedAt = &at
	})
}

func (s memSites) UpdateStatus(_ context.Context, id uuid.UUID, from []models.SiteStatus, to models.SiteStatus) error {
	return s.conditional(id, from, func(site *models.Site) { site.Status = to })
}

func (s memSites) conditional(id uuid.UUID, from []models.SiteStatus, fn func(*models.Site)) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	site, ok := s.m.sites[id]
	if !ok {
		return ErrNotFound
	}
	for _, st := range from {
		if site.Status == st {
			fn(&site)
			site.UpdatedAt = s.m.now()
			s.m.sites[id] = site
			return nil
		}
	}
	return ErrStatusConflict
}

type memLeads struct{ m *memoryDB }

func (s memLeads) Upsert(_ context.Context, lead *models.EmailLead) (bool, error) {
	lead.Email = normalizeEmail(lead.Email)
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.sites[lead.SiteID]; !ok {
		return false, ErrNotFound
	}
	now := s.m.now()
	for id, existing := range s.m.leads {
		if existing.SiteID == lead.SiteID && existing.Email == lead.Email {
			existing.ConsentMarketing = lead.ConsentMarketing
			existing.ConsentDate = lead.ConsentDate
			existing.UpdatedAt = now
			s.m.leads[id] = existing
			*lead = existing
			return false, nil
		}
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = models.LeadFreeDownload
	}
	lead.CapturedAt, lead.UpdatedAt = now, now
	s.m.leads[lead.ID] = *lead
	return true, nil
}

func (s memLeads) Get(_ context.Context, siteID uuid.UUID, email string) (*models.EmailLead, error) {
	email = normalizeEmail(email)
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, l := range s.m.leads {
		if l.SiteID == siteID && l.Email == email {
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func (s memLeads) ListBySite(_ context.Context, siteID uuid.UUID) ([]models.EmailLead, error) {
	return s.filter(func(l models.EmailLead) bool { return l.SiteID == siteID }), nil
}

func (s memLeads) ListByUser(_ context.Context, userID uuid.UUID) ([]models.EmailLead, error) {
	s.m.mu.RLock()
	owned := make(map[uuid.UUID]bool)
	for id, site := range s.m.sites {
		if site.UserID == userID {
			owned[id] = true
		}
	}
	s.m.mu.RUnlock()
	return s.filter(func(l models.EmailLead) bool { return owned[l.SiteID] }), nil
}

func (s memLeads) ListAll(_ context.Context, limit, offset int) ([]models.EmailLead, int64, error) {
	all := s.filter(func(models.EmailLead) bool { return true })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (s memLeads) filter(keep func(models.EmailLead) bool) []models.EmailLead {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []models.EmailLead
	for _, l := range s.m.leads {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CapturedAt.After(out[j].CapturedAt)
	})
	return out
}

type memSubs struct{ m *memoryDB }

func (s memSubs) Create(_ context.Context, sub *models.Subscription) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[sub.UserID]; !ok {
		return ErrNotFound
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := s.m.now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	s.m.subs[sub.ID] = *sub
	return nil
}

func (s memSubs) GetActiveByUser(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.latest(func(sub models.Subscription) bool {
		return sub.UserID == userID && sub.Status == models.SubscriptionActive
	})
}

func (s memSubs) GetByExternalID(_ context.Context, externalID string) (*models.Subscription, error) {
	return s.latest(func(sub models.Subscription) bool { return sub.ExternalID == externalID })
}

func (s memSubs) latest(match func(models.Subscription) bool) (*models.Subscription, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var best *models.Subscription
	for _, sub := range s.m.subs {
		if !match(sub) {
			continue
		}
		if best == nil || sub.StartedAt.After(best.StartedAt) {
			cp := sub
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (s memSubs) Update(_ context.Context, sub *models.Subscription) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.subs[sub.ID]; !ok {
		return ErrNotFound
	}
	sub.UpdatedAt = s.m.now()
	s.m.subs[sub.ID] = *sub
	return nil
}

func (s memSubs) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for id, sub := range s.m.subs {
		if sub.Status == models.SubscriptionActive && sub.ExpiresAt != nil && sub.ExpiresAt.Before(now) {
			sub.Status = models.SubscriptionExpired
			sub.UpdatedAt = now
			s.m.subs[id] = sub
			n++
		}
	}
	return n, nil
}

type memFiles struct{ m *memoryDB }

func (s memFiles) ReplaceForSite(_ context.Context, siteID uuid.UUID, files []models.GeneratedFile) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.sites[siteID]; !ok {
		return ErrNotFound
	}
	now := s.m.now()
	stored := make([]models.GeneratedFile, len(files))
	for i, f := range files {
		f.SiteID = siteID
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		f.CreatedAt = now
		stored[i] = f
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].FileName < stored[j].FileName })
	s.m.files[siteID] = stored
	return nil
}

func (s memFiles) ListBySite(_ context.Context, siteID uuid.UUID) ([]models.GeneratedFile, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return append([]models.GeneratedFile(nil), s.m.files[siteID]...), nil
}
