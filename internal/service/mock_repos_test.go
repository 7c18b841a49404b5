package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/repository"
	pkgerrors "github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/errors"
)

// ── 内存存储 ──
// 四个 mock repo 共享同一份数据，以模拟跨表查询（教师占用需要关联课表与班级）

type memStore struct {
	mu      sync.Mutex
	writeMu sync.Mutex // 模拟 CreateExclusive 的行锁 + advisory lock
	seq     int

	periods    map[string]*model.Period
	timetables map[string]*model.Timetable
	entries    []*model.TimetableEntry

	academicYears map[string]*model.AcademicYear
	classes       map[string]*model.Class
	sections      map[string]*model.Section
	subjects      map[string]*model.Subject
	classSubjects map[string]bool
	teachers      map[string]*model.Teacher

	// bypassGuard 为 true 时 CreateExclusive 跳过 guard，用于模拟唯一索引兜底
	bypassGuard bool
	// beforePeriodWrite 在节次写入前调用，用于模拟检查之后提交的并发写入
	beforePeriodWrite func()
}

func newMemStore() *memStore {
	return &memStore{
		periods:       make(map[string]*model.Period),
		timetables:    make(map[string]*model.Timetable),
		academicYears: make(map[string]*model.AcademicYear),
		classes:       make(map[string]*model.Class),
		sections:      make(map[string]*model.Section),
		subjects:      make(map[string]*model.Subject),
		classSubjects: make(map[string]bool),
		teachers:      make(map[string]*model.Teacher),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

// tick 单调递增的时间戳，保证按创建顺序排序稳定
func (s *memStore) tick() time.Time {
	s.seq++
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
}

func deleted() gorm.DeletedAt {
	return gorm.DeletedAt{Time: time.Now(), Valid: true}
}

func (s *memStore) repo() *repository.Repository {
	return &repository.Repository{
		Period:         &mockPeriodRepo{s: s},
		Timetable:      &mockTimetableRepo{s: s},
		TimetableEntry: &mockEntryRepo{s: s},
		Reference:      &mockReferenceRepo{s: s},
	}
}

// ── Mock PeriodRepository ──

type mockPeriodRepo struct {
	s *memStore
}

func (m *mockPeriodRepo) Create(_ context.Context, period *model.Period) error {
	if hook := m.s.beforePeriodWrite; hook != nil {
		hook()
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.checkExclusion(period); err != nil {
		return err
	}
	if period.PeriodID == "" {
		period.PeriodID = m.s.nextID("period")
	}
	period.CreatedAt = m.s.tick()
	period.UpdatedAt = period.CreatedAt
	p := *period
	m.s.periods[p.PeriodID] = &p
	return nil
}

func (m *mockPeriodRepo) GetByID(_ context.Context, tenantID, branchID, id string) (*model.Period, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.periods[id]
	if !ok || p.DeletedAt.Valid || p.TenantID != tenantID || p.BranchID != branchID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPeriodRepo) ListByBranch(_ context.Context, tenantID, branchID string) ([]model.Period, error) {
	return m.filter(tenantID, branchID, func(*model.Period) bool { return true }), nil
}

func (m *mockPeriodRepo) ListOverlapping(_ context.Context, tenantID, branchID string, start, end model.TimeOfDay, excludeID string) ([]model.Period, error) {
	return m.filter(tenantID, branchID, func(p *model.Period) bool {
		return p.PeriodID != excludeID && p.Overlaps(start, end)
	}), nil
}

func (m *mockPeriodRepo) filter(tenantID, branchID string, keep func(*model.Period) bool) []model.Period {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	result := []model.Period{}
	for _, p := range m.s.periods {
		if p.DeletedAt.Valid || p.TenantID != tenantID || p.BranchID != branchID || !keep(p) {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayOrder != result[j].DisplayOrder {
			return result[i].DisplayOrder < result[j].DisplayOrder
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result
}

func (m *mockPeriodRepo) Update(_ context.Context, period *model.Period) error {
	if hook := m.s.beforePeriodWrite; hook != nil {
		hook()
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.checkExclusion(period); err != nil {
		return err
	}
	p := *period
	p.UpdatedAt = m.s.tick()
	m.s.periods[p.PeriodID] = &p
	return nil
}

// checkExclusion 排他约束 ex_periods_no_overlap；调用方持有 mu
func (m *mockPeriodRepo) checkExclusion(period *model.Period) error {
	for _, p := range m.s.periods {
		if p.DeletedAt.Valid || p.PeriodID == period.PeriodID ||
			p.TenantID != period.TenantID || p.BranchID != period.BranchID {
			continue
		}
		if p.Overlaps(period.StartTime, period.EndTime) {
			return &pgconn.PgError{Code: "23P01", ConstraintName: periodOverlapConstraint}
		}
	}
	return nil
}

func (m *mockPeriodRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.periods[id]; ok {
		p.DeletedAt = deleted()
	}
	return nil
}

func (m *mockPeriodRepo) CountEntryReferences(_ context.Context, periodID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, e := range m.s.entries {
		if !e.DeletedAt.Valid && e.PeriodID == periodID {
			n++
		}
	}
	return n, nil
}

// ── Mock TimetableRepository ──

type mockTimetableRepo struct {
	s *memStore
}

func (m *mockTimetableRepo) Create(_ context.Context, timetable *model.Timetable) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if timetable.TimetableID == "" {
		timetable.TimetableID = m.s.nextID("tt")
	}
	timetable.Version = 1
	timetable.CreatedAt = m.s.tick()
	timetable.UpdatedAt = timetable.CreatedAt
	t := *timetable
	t.Class, t.Section, t.Entries = nil, nil, nil
	m.s.timetables[t.TimetableID] = &t
	return nil
}

func (m *mockTimetableRepo) GetByID(_ context.Context, tenantID, branchID, id string) (*model.Timetable, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.timetables[id]
	if !ok || t.DeletedAt.Valid || t.TenantID != tenantID || t.BranchID != branchID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := m.s.withRelations(t)
	for _, e := range m.s.entries {
		if e.DeletedAt.Valid || e.TimetableID != id {
			continue
		}
		cp.Entries = append(cp.Entries, m.s.entryWithRelations(e))
	}
	return cp, nil
}

func (s *memStore) withRelations(t *model.Timetable) *model.Timetable {
	cp := *t
	cp.Entries = nil
	if c, ok := s.classes[t.ClassID]; ok {
		cc := *c
		cp.Class = &cc
	}
	if sec, ok := s.sections[t.SectionID]; ok {
		sc := *sec
		cp.Section = &sc
	}
	return &cp
}

func (s *memStore) entryWithRelations(e *model.TimetableEntry) model.TimetableEntry {
	cp := *e
	if p, ok := s.periods[e.PeriodID]; ok {
		pc := *p
		cp.Period = &pc
	}
	if sub, ok := s.subjects[e.SubjectID]; ok {
		sc := *sub
		cp.Subject = &sc
	}
	if t, ok := s.teachers[e.TeacherID]; ok {
		tc := *t
		cp.Teacher = &tc
	}
	return cp
}

func (m *mockTimetableRepo) List(_ context.Context, f repository.TimetableFilter) ([]model.Timetable, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Timetable
	for _, t := range m.s.timetables {
		if t.DeletedAt.Valid || t.TenantID != f.TenantID || t.BranchID != f.BranchID {
			continue
		}
		if f.AcademicYearID != "" && t.AcademicYearID != f.AcademicYearID {
			continue
		}
		if f.ClassID != "" && t.ClassID != f.ClassID {
			continue
		}
		if f.SectionID != "" && t.SectionID != f.SectionID {
			continue
		}
		if f.IsActive != nil && t.IsActive != *f.IsActive {
			continue
		}
		all = append(all, *m.s.withRelations(t))
	}
	sortTimetablesDesc(all)

	total := int64(len(all))
	if f.Limit > 0 {
		if f.Offset >= len(all) {
			return []model.Timetable{}, total, nil
		}
		end := f.Offset + f.Limit
		if end > len(all) {
			end = len(all)
		}
		all = all[f.Offset:end]
	}
	return all, total, nil
}

func sortTimetablesDesc(list []model.Timetable) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].EffectiveFrom.Equal(list[j].EffectiveFrom) {
			return list[i].EffectiveFrom.After(list[j].EffectiveFrom)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func (m *mockTimetableRepo) ListActiveByClassSection(_ context.Context, tenantID, branchID, classID, sectionID string) ([]model.Timetable, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Timetable
	for _, t := range m.s.timetables {
		if t.DeletedAt.Valid || !t.IsActive || t.TenantID != tenantID || t.BranchID != branchID ||
			t.ClassID != classID || t.SectionID != sectionID {
			continue
		}
		result = append(result, *t)
	}
	sortTimetablesDesc(result)
	return result, nil
}

func (m *mockTimetableRepo) Update(_ context.Context, timetable *model.Timetable) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.timetables[timetable.TimetableID]
	if !ok || stored.DeletedAt.Valid || stored.Version != timetable.Version {
		return pkgerrors.ErrOptimisticLock
	}
	timetable.Version++
	stored.EffectiveFrom = timetable.EffectiveFrom
	stored.EffectiveTo = timetable.EffectiveTo
	stored.IsActive = timetable.IsActive
	stored.UpdatedBy = timetable.UpdatedBy
	stored.Version = timetable.Version
	stored.UpdatedAt = m.s.tick()
	return nil
}

func (m *mockTimetableRepo) DeleteCascade(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.timetables[id]
	if !ok || t.DeletedAt.Valid {
		return gorm.ErrRecordNotFound
	}
	for _, e := range m.s.entries {
		if e.TimetableID == id && !e.DeletedAt.Valid {
			e.DeletedAt = deleted()
		}
	}
	t.DeletedAt = deleted()
	return nil
}

// ── Mock TimetableEntryRepository ──

type mockEntryRepo struct {
	s *memStore
}

func (m *mockEntryRepo) GetByID(_ context.Context, id string) (*model.TimetableEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.entries {
		if e.EntryID == id && !e.DeletedAt.Valid {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEntryRepo) FindTeacherBooking(_ context.Context, tenantID, branchID, teacherID string, day model.DayOfWeek, periodID, excludeEntryID string) (*model.TeacherBooking, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.entries {
		if e.DeletedAt.Valid || e.EntryID == excludeEntryID ||
			e.TeacherID != teacherID || e.DayOfWeek != day || e.PeriodID != periodID {
			continue
		}
		t, ok := m.s.timetables[e.TimetableID]
		if !ok || t.DeletedAt.Valid || !t.IsActive || t.TenantID != tenantID || t.BranchID != branchID {
			continue
		}
		b := &model.TeacherBooking{
			EntryID:     e.EntryID,
			TimetableID: t.TimetableID,
			ClassID:     t.ClassID,
			SectionID:   t.SectionID,
		}
		if c, ok := m.s.classes[t.ClassID]; ok {
			b.ClassName = c.Name
		}
		if sec, ok := m.s.sections[t.SectionID]; ok {
			b.SectionName = sec.Name
		}
		return b, nil
	}
	return nil, nil
}

func (m *mockEntryRepo) FindSectionBooking(_ context.Context, timetableID string, day model.DayOfWeek, periodID, excludeEntryID string) (*model.SectionBooking, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.entries {
		if e.DeletedAt.Valid || e.EntryID == excludeEntryID ||
			e.TimetableID != timetableID || e.DayOfWeek != day || e.PeriodID != periodID {
			continue
		}
		b := &model.SectionBooking{EntryID: e.EntryID, SubjectID: e.SubjectID}
		if sub, ok := m.s.subjects[e.SubjectID]; ok {
			b.SubjectName = sub.Name
		}
		return b, nil
	}
	return nil, nil
}

func (m *mockEntryRepo) ListByTeacher(_ context.Context, tenantID, branchID, teacherID string) ([]model.TeacherScheduleItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	items := []model.TeacherScheduleItem{}
	for _, e := range m.s.entries {
		if e.DeletedAt.Valid || e.TeacherID != teacherID {
			continue
		}
		t, ok := m.s.timetables[e.TimetableID]
		if !ok || t.DeletedAt.Valid || !t.IsActive || t.TenantID != tenantID || t.BranchID != branchID {
			continue
		}
		rel := m.s.withRelations(t)
		item := model.TeacherScheduleItem{
			Entry:         m.s.entryWithRelations(e),
			EffectiveFrom: t.EffectiveFrom,
			EffectiveTo:   t.EffectiveTo,
		}
		if rel.Class != nil {
			item.ClassName = rel.Class.Name
		}
		if rel.Section != nil {
			item.SectionName = rel.Section.Name
		}
		items = append(items, item)
	}
	repository.SortTeacherSchedule(items)
	return items, nil
}

func (m *mockEntryRepo) CreateExclusive(ctx context.Context, entry *model.TimetableEntry, tenantID, branchID string, guard repository.EntryGuard) error {
	m.s.writeMu.Lock()
	defer m.s.writeMu.Unlock()

	m.s.mu.Lock()
	t, ok := m.s.timetables[entry.TimetableID]
	live := ok && !t.DeletedAt.Valid && t.TenantID == tenantID && t.BranchID == branchID
	bypass := m.s.bypassGuard
	m.s.mu.Unlock()
	if !live {
		return gorm.ErrRecordNotFound
	}

	if guard != nil && !bypass {
		if err := guard(ctx, m); err != nil {
			return err
		}
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	// 部分唯一索引 uq_timetable_entries_section_slot
	for _, e := range m.s.entries {
		if !e.DeletedAt.Valid && e.TimetableID == entry.TimetableID &&
			e.DayOfWeek == entry.DayOfWeek && e.PeriodID == entry.PeriodID {
			return &pgconn.PgError{Code: "23505", ConstraintName: sectionSlotConstraint}
		}
	}
	if entry.EntryID == "" {
		entry.EntryID = m.s.nextID("entry")
	}
	entry.CreatedAt = m.s.tick()
	entry.UpdatedAt = entry.CreatedAt
	cp := *entry
	cp.Period, cp.Subject, cp.Teacher = nil, nil, nil
	m.s.entries = append(m.s.entries, &cp)
	return nil
}

func (m *mockEntryRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.entries {
		if e.EntryID == id && !e.DeletedAt.Valid {
			e.DeletedAt = deleted()
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock ReferenceRepository ──

type mockReferenceRepo struct {
	s *memStore
}

func (m *mockReferenceRepo) AcademicYearExists(_ context.Context, id, tenantID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ay, ok := m.s.academicYears[id]
	return ok && ay.TenantID == tenantID, nil
}

func (m *mockReferenceRepo) GetClass(_ context.Context, id, tenantID, branchID string) (*model.Class, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.classes[id]
	if !ok || c.TenantID != tenantID || c.BranchID != branchID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockReferenceRepo) GetSection(_ context.Context, id, classID string) (*model.Section, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sec, ok := m.s.sections[id]
	if !ok || sec.ClassID != classID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sec
	return &cp, nil
}

func (m *mockReferenceRepo) SubjectExists(_ context.Context, id, tenantID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sub, ok := m.s.subjects[id]
	return ok && sub.TenantID == tenantID, nil
}

func (m *mockReferenceRepo) ClassSubjectExists(_ context.Context, classID, subjectID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.classSubjects[classID+"|"+subjectID], nil
}

func (m *mockReferenceRepo) GetTeacher(_ context.Context, id, tenantID string) (*model.Teacher, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.teachers[id]
	if !ok || t.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

// ── 测试数据 ──

const (
	testTenant  = "tenant-001"
	testBranch  = "branch-001"
	otherBranch = "branch-002"
	testActor   = "admin-001"
	testYear    = "ay-2025"

	classC   = "class-c"
	sectionS = "section-s"
	classD   = "class-d"
	sectionR = "section-r"

	subjectMath    = "subject-math"
	subjectPhysics = "subject-physics"
	subjectChem    = "subject-chem"
	subjectArt     = "subject-art"

	teacherX       = "teacher-x"
	teacherY       = "teacher-y"
	teacherRetired = "teacher-retired"
	teacherRemote  = "teacher-remote"
)

var testScope = Scope{TenantID: testTenant, BranchID: testBranch, ActorID: testActor}

// seedReferences 写入两个班级、四门科目、四名教师
//
//	C-S: Math, Physics    D-R: Chem, Math
//	Art 存在但未分配给任何班级
//	teacherRetired 非在职，teacherRemote 属于其它分校
func (s *memStore) seedReferences() {
	s.academicYears[testYear] = &model.AcademicYear{AcademicYearID: testYear, TenantID: testTenant, Name: "2025-2026"}

	s.classes[classC] = &model.Class{ClassID: classC, TenantID: testTenant, BranchID: testBranch, AcademicYearID: testYear, Name: "C"}
	s.classes[classD] = &model.Class{ClassID: classD, TenantID: testTenant, BranchID: testBranch, AcademicYearID: testYear, Name: "D"}
	s.sections[sectionS] = &model.Section{SectionID: sectionS, ClassID: classC, Name: "S"}
	s.sections[sectionR] = &model.Section{SectionID: sectionR, ClassID: classD, Name: "R"}

	for id, name := range map[string]string{
		subjectMath: "Math", subjectPhysics: "Physics", subjectChem: "Chem", subjectArt: "Art",
	} {
		s.subjects[id] = &model.Subject{SubjectID: id, TenantID: testTenant, Name: name}
	}
	s.classSubjects[classC+"|"+subjectMath] = true
	s.classSubjects[classC+"|"+subjectPhysics] = true
	s.classSubjects[classD+"|"+subjectChem] = true
	s.classSubjects[classD+"|"+subjectMath] = true

	s.teachers[teacherX] = &model.Teacher{TeacherID: teacherX, TenantID: testTenant, BranchID: testBranch, Name: "X", Status: model.TeacherStatusActive}
	s.teachers[teacherY] = &model.Teacher{TeacherID: teacherY, TenantID: testTenant, BranchID: testBranch, Name: "Y", Status: model.TeacherStatusActive}
	s.teachers[teacherRetired] = &model.Teacher{TeacherID: teacherRetired, TenantID: testTenant, BranchID: testBranch, Name: "R", Status: "inactive"}
	s.teachers[teacherRemote] = &model.Teacher{TeacherID: teacherRemote, TenantID: testTenant, BranchID: otherBranch, Name: "Remote", Status: model.TeacherStatusActive}
}

// addPeriod 直接写入节次，绕过重叠检查
func (s *memStore) addPeriod(name, start, end string, order int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("period")
	s.periods[id] = &model.Period{
		PeriodID:     id,
		TenantID:     testTenant,
		BranchID:     testBranch,
		Name:         name,
		StartTime:    model.MustParseTimeOfDay(start),
		EndTime:      model.MustParseTimeOfDay(end),
		DisplayOrder: order,
		Kind:         model.PeriodKindRegular,
	}
	return id
}

// addTimetable 直接写入一张有效课表
func (s *memStore) addTimetable(classID, sectionID string, from time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("tt")
	s.timetables[id] = &model.Timetable{
		TimetableID:    id,
		TenantID:       testTenant,
		BranchID:       testBranch,
		AcademicYearID: testYear,
		ClassID:        classID,
		SectionID:      sectionID,
		EffectiveFrom:  from,
		IsActive:       true,
		VersionedModel: model.VersionedModel{Version: 1},
	}
	return id
}

// liveEntries 返回全部未删除条目的快照
func (s *memStore) liveEntries() []model.TimetableEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.TimetableEntry
	for _, e := range s.entries {
		if !e.DeletedAt.Valid {
			result = append(result, *e)
		}
	}
	return result
}
