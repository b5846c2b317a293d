package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bytecopied/backend/internal/model"
	"bytecopied/backend/internal/repository"
	"bytecopied/backend/internal/roster"
	pkgerrors "bytecopied/backend/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // key: user_id
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email || u.EnrollmentNumber == user.EnrollmentNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	user.CreatedAt = time.Now()
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEnrollmentNumber(_ context.Context, enrollment string) (*model.User, error) {
	for _, u := range m.users {
		if u.EnrollmentNumber == enrollment {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	all := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, id, role string) error {
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Role = role
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.users, id)
	return nil
}

// ── Mock SnippetRepository ──

type mockSnippetRepo struct {
	snippets map[string]*model.Snippet
	seq      int
}

func newMockSnippetRepo() *mockSnippetRepo {
	return &mockSnippetRepo{snippets: make(map[string]*model.Snippet)}
}

func (m *mockSnippetRepo) Create(_ context.Context, s *model.Snippet) error {
	if s.SnippetID == "" {
		m.seq++
		s.SnippetID = fmt.Sprintf("snippet-%d", m.seq)
	}
	m.snippets[s.SnippetID] = s
	return nil
}

func (m *mockSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	if s, ok := m.snippets[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSnippetRepo) ListAll(_ context.Context) ([]model.Snippet, error) {
	var result []model.Snippet
	for _, s := range m.snippets {
		result = append(result, *s)
	}
	return result, nil
}

func (m *mockSnippetRepo) ListVisibleTo(_ context.Context, userID string) ([]model.Snippet, error) {
	var result []model.Snippet
	for _, s := range m.snippets {
		if s.CreatedBy == userID || s.IsViewOnly {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSnippetRepo) Update(_ context.Context, s *model.Snippet) error {
	cp := *s
	m.snippets[s.SnippetID] = &cp
	return nil
}

func (m *mockSnippetRepo) Delete(_ context.Context, id string) error {
	delete(m.snippets, id)
	return nil
}

// ── Mock AttendanceSessionRepository ──

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.AttendanceSession
	seq      int
	writes   int // 写操作计数，用于断言"无修改"
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*model.AttendanceSession)}
}

func (m *mockSessionRepo) Create(_ context.Context, s *model.AttendanceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.Section == s.Section && existing.IsActive() && s.IsActive() {
			return gorm.ErrDuplicatedKey
		}
	}
	if s.SessionID == "" {
		m.seq++
		s.SessionID = uuid.NewString()
	}
	cp := *s
	m.sessions[s.SessionID] = &cp
	m.writes++
	return nil
}

func (m *mockSessionRepo) get(id string) (*model.AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*model.AttendanceSession, error) {
	return m.get(id)
}

func (m *mockSessionRepo) GetByIDLocked(_ context.Context, id string, _ string) (*model.AttendanceSession, error) {
	return m.get(id)
}

// activeBySection 测试断言辅助
func (m *mockSessionRepo) activeBySection(section string) (*model.AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Section == section && s.IsActive() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSessionRepo) sorted() []model.AttendanceSession {
	all := make([]model.AttendanceSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	return all
}

func (m *mockSessionRepo) GetLatestActive(_ context.Context) (*model.AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sorted() {
		if s.IsActive() {
			cp := s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSessionRepo) ListRecent(_ context.Context, limit int) ([]model.AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockSessionRepo) CompleteActiveBySection(_ context.Context, section string, endedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.Section == section && s.IsActive() {
			at := endedAt
			s.Status = model.SessionStatusCompleted
			s.EndedAt = &at
			n++
			m.writes++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) Complete(_ context.Context, id string, res repository.SessionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive() {
		return pkgerrors.ErrStateConflict
	}
	at := res.EndedAt
	s.Status = model.SessionStatusCompleted
	s.EndedAt = &at
	s.PresentCount = res.PresentCount
	s.AbsentCount = res.AbsentCount
	s.UnmatchedCount = res.UnmatchedCount
	m.writes++
	return nil
}

// ── Mock AttendanceSubmissionRepository ──

type mockSubmissionRepo struct {
	mu        sync.Mutex
	subs      []model.AttendanceSubmission
	seq       int
	createErr error
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{}
}

func (m *mockSubmissionRepo) Create(_ context.Context, sub *model.AttendanceSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, s := range m.subs {
		if s.SessionID != sub.SessionID {
			continue
		}
		if s.SubmittedBy == sub.SubmittedBy || s.RollNumber == sub.RollNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	if sub.SubmissionID == "" {
		m.seq++
		sub.SubmissionID = fmt.Sprintf("sub-%d", m.seq)
	}
	m.subs = append(m.subs, *sub)
	return nil
}

func (m *mockSubmissionRepo) GetBySessionAndUser(_ context.Context, sessionID, userID string) (*model.AttendanceSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.SessionID == sessionID && s.SubmittedBy == userID {
			cp := s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) GetBySessionAndRoll(_ context.Context, sessionID, roll string) (*model.AttendanceSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.SessionID == sessionID && s.RollNumber == roll {
			cp := s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) ListBySession(_ context.Context, sessionID string) ([]model.AttendanceSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.AttendanceSubmission
	for _, s := range m.subs {
		if s.SessionID == sessionID {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].SubmittedAt.Before(result[j].SubmittedAt) })
	return result, nil
}

func (m *mockSubmissionRepo) CountBySession(_ context.Context, sessionID string) (int64, error) {
	subs, _ := m.ListBySession(context.Background(), sessionID)
	return int64(len(subs)), nil
}

// ── Fake roster ──

type fakeRoster struct {
	mu    sync.Mutex
	rolls map[string][]string
	err   error
	calls int
}

func (f *fakeRoster) Load(_ context.Context, section string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rolls, ok := f.rolls[section]
	if !ok {
		return nil, fmt.Errorf("%w: 班级 %s", roster.ErrRosterUnavailable, section)
	}
	return append([]string(nil), rolls...), nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	courses map[string]*model.Course // key: course_id
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[string]*model.Course)}
}

func (m *mockCourseRepo) conflicts(c *model.Course) bool {
	for _, existing := range m.courses {
		if existing.CourseID != c.CourseID && existing.CreatedBy == c.CreatedBy &&
			existing.CourseCode == c.CourseCode && existing.Section == c.Section {
			return true
		}
	}
	return false
}

func (m *mockCourseRepo) Create(_ context.Context, c *model.Course) error {
	if m.conflicts(c) {
		return gorm.ErrDuplicatedKey
	}
	if c.CourseID == "" {
		c.CourseID = uuid.NewString()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	cp.Timings = append([]model.CourseTiming(nil), c.Timings...)
	m.courses[c.CourseID] = &cp
	return nil
}

func (m *mockCourseRepo) BatchCreate(ctx context.Context, courses []model.Course) error {
	for i := range courses {
		if err := m.Create(ctx, &courses[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	cp.Timings = append([]model.CourseTiming(nil), c.Timings...)
	return &cp, nil
}

func (m *mockCourseRepo) ListByOwner(_ context.Context, userID string) ([]model.Course, error) {
	var list []model.Course
	for _, c := range m.courses {
		if c.CreatedBy == userID {
			list = append(list, *c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CourseCode < list[j].CourseCode })
	return list, nil
}

func (m *mockCourseRepo) ExistsByCodeAndSection(_ context.Context, userID, code, section, excludeID string) (bool, error) {
	return m.conflicts(&model.Course{CourseID: excludeID, CreatedBy: userID, CourseCode: code, Section: section}), nil
}

func (m *mockCourseRepo) Update(_ context.Context, c *model.Course) error {
	if _, ok := m.courses[c.CourseID]; !ok {
		return gorm.ErrRecordNotFound
	}
	if m.conflicts(c) {
		return gorm.ErrDuplicatedKey
	}
	c.UpdatedAt = time.Now()
	cp := *c
	cp.Timings = append([]model.CourseTiming(nil), c.Timings...)
	m.courses[c.CourseID] = &cp
	return nil
}

func (m *mockCourseRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.courses[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.courses, id)
	return nil
}

// ── Fake token blacklist ──

type fakeBlacklist struct {
	revoked map[string]time.Duration
	err     error // 模拟 Redis 不可用
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]time.Duration)}
}

func (f *fakeBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[jti]
	return ok, nil
}
