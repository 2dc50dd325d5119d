package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/teamtrack/internal/model"
)

// MemoryStore はインメモリの永続化ストア。
// テストと STORE_BACKEND=memory での開発起動に使用する。
// 全リポジトリで単一のロックを共有し、企業作成と所属設定を原子的に扱う。
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*model.User
	companies map[string]*model.Company
	projects  map[string]*model.Project
	sessions  map[string]*model.Session
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*model.User),
		companies: make(map[string]*model.Company),
		projects:  make(map[string]*model.Project),
		sessions:  make(map[string]*model.Session),
	}
}

// Users はユーザーリポジトリとしてのビューを返す。
func (s *MemoryStore) Users() UserRepository { return memoryUserRepo{s} }

// Companies は企業リポジトリとしてのビューを返す。
func (s *MemoryStore) Companies() CompanyRepository { return memoryCompanyRepo{s} }

// Projects はプロジェクトリポジトリとしてのビューを返す。
func (s *MemoryStore) Projects() ProjectRepository { return memoryProjectRepo{s} }

// Sessions はセッションリポジトリとしてのビューを返す。
func (s *MemoryStore) Sessions() SessionRepository { return memorySessionRepo{s} }

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.CompanyID != nil {
		id := *u.CompanyID
		c.CompanyID = &id
	}
	return &c
}

func cloneProject(p *model.Project) *model.Project {
	c := *p
	if p.Description != nil {
		d := *p.Description
		c.Description = &d
	}
	if p.RepositoryURL != nil {
		u := *p.RepositoryURL
		c.RepositoryURL = &u
	}
	return &c
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	if s.TokensInput != nil {
		v := *s.TokensInput
		c.TokensInput = &v
	}
	if s.TokensOutput != nil {
		v := *s.TokensOutput
		c.TokensOutput = &v
	}
	return &c
}

// --- users ---

type memoryUserRepo struct{ s *MemoryStore }

func (r memoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r memoryUserRepo) FindByExternalIdentityID(_ context.Context, externalID string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.ExternalIdentityID == externalID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r memoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ExternalIdentityID == user.ExternalIdentityID {
			return ErrDuplicateExternalIdentity
		}
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r memoryUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	u.Name = user.Name
	u.Role = user.Role
	u.AvatarRef = user.AvatarRef
	u.UpdatedAt = user.UpdatedAt
	return nil
}

func (r memoryUserRepo) SetCompany(_ context.Context, userID string, companyID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if companyID == nil {
		u.CompanyID = nil
	} else {
		id := *companyID
		u.CompanyID = &id
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r memoryUserRepo) ListByCompanyID(_ context.Context, companyID string) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var users []*model.User
	for _, u := range r.s.users {
		if u.IsMemberOf(companyID) {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// --- companies ---

type memoryCompanyRepo struct{ s *MemoryStore }

func (r memoryCompanyRepo) FindByID(_ context.Context, id string) (*model.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r memoryCompanyRepo) FindByInviteCode(_ context.Context, inviteCode string) (*model.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.companies {
		if c.InviteCode == inviteCode {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memoryCompanyRepo) CreateWithOwner(_ context.Context, company *model.Company, ownerUserID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.companies {
		if c.InviteCode == company.InviteCode {
			return ErrDuplicateInviteCode
		}
	}
	owner, ok := r.s.users[ownerUserID]
	if !ok {
		return ErrNotFound
	}
	cp := *company
	r.s.companies[company.ID] = &cp
	id := company.ID
	owner.CompanyID = &id
	owner.UpdatedAt = time.Now()
	return nil
}

// --- projects ---

type memoryProjectRepo struct{ s *MemoryStore }

func (r memoryProjectRepo) FindByID(_ context.Context, id string) (*model.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, nil
	}
	return cloneProject(p), nil
}

func (r memoryProjectRepo) ListByCompanyID(_ context.Context, companyID string) ([]*model.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var projects []*model.Project
	for _, p := range r.s.projects {
		if p.CompanyID == companyID {
			projects = append(projects, cloneProject(p))
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

func (r memoryProjectRepo) Create(_ context.Context, project *model.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.projects[project.ID] = cloneProject(project)
	return nil
}

func (r memoryProjectRepo) Update(_ context.Context, project *model.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[project.ID]
	if !ok {
		return ErrNotFound
	}
	updated := cloneProject(project)
	p.Name = updated.Name
	p.Description = updated.Description
	p.RepositoryURL = updated.RepositoryURL
	p.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r memoryProjectRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.projects, id)
	return nil
}

// --- sessions ---

type memorySessionRepo struct{ s *MemoryStore }

func (r memorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess), nil
}

func (r memorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r memorySessionRepo) Complete(
	_ context.Context,
	id string,
	endTime time.Time,
	tokensInput, tokensOutput int64,
) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !sess.IsActive() {
		return nil, ErrAlreadyCompleted
	}
	end := endTime
	in, out := tokensInput, tokensOutput
	sess.EndTime = &end
	sess.TokensInput = &in
	sess.TokensOutput = &out
	sess.Status = model.SessionStatusCompleted
	return cloneSession(sess), nil
}

func (r memorySessionRepo) ListActiveByUserID(_ context.Context, userID string) ([]*model.Session, error) {
	return r.filter(func(s *model.Session) bool {
		return s.IsActive() && s.UserID == userID
	}, byStartAsc), nil
}

func (r memorySessionRepo) ListActiveByUserIDs(_ context.Context, userIDs []string) ([]*model.Session, error) {
	set := toSet(userIDs)
	return r.filter(func(s *model.Session) bool {
		return s.IsActive() && set[s.UserID]
	}, byStartAsc), nil
}

func (r memorySessionRepo) ListActive(_ context.Context) ([]*model.Session, error) {
	return r.filter(func(s *model.Session) bool {
		return s.IsActive()
	}, byStartAsc), nil
}

func (r memorySessionRepo) ListByUserID(
	_ context.Context,
	userID string,
	cursor *HistoryCursor,
	limit int,
) ([]*model.Session, error) {
	sessions := r.filter(func(s *model.Session) bool {
		if s.UserID != userID {
			return false
		}
		if cursor == nil {
			return true
		}
		if s.StartTime.Equal(cursor.StartTime) {
			return s.ID < cursor.ID
		}
		return s.StartTime.Before(cursor.StartTime)
	}, byStartDesc)
	if limit >= 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (r memorySessionRepo) ListCompletedSince(_ context.Context, userIDs []string, since time.Time) ([]*model.Session, error) {
	set := toSet(userIDs)
	return r.filter(func(s *model.Session) bool {
		return !s.IsActive() && set[s.UserID] && !s.StartTime.Before(since)
	}, byStartDesc), nil
}

func (r memorySessionRepo) filter(keep func(*model.Session) bool, less func(a, b *model.Session) bool) []*model.Session {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var sessions []*model.Session
	for _, sess := range r.s.sessions {
		if keep(sess) {
			sessions = append(sessions, cloneSession(sess))
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return less(sessions[i], sessions[j]) })
	return sessions
}

func byStartAsc(a, b *model.Session) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}
	return a.ID < b.ID
}

func byStartDesc(a, b *model.Session) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.After(b.StartTime)
	}
	return a.ID > b.ID
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// compile-time interface check
var (
	_ UserRepository    = memoryUserRepo{}
	_ CompanyRepository = memoryCompanyRepo{}
	_ ProjectRepository = memoryProjectRepo{}
	_ SessionRepository = memorySessionRepo{}
)
