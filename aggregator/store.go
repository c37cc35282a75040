package aggregator

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go-sniper/models"
)

// Repository mirrors store mutations to durable storage. A mutation is
// committed in memory only after the repository accepted it.
type Repository interface {
	SaveResult(result models.ScanResult, ws models.Workspace) error
	DeleteResult(id string, ws models.Workspace) error
	SaveWorkspace(ws models.Workspace) error
	DeleteWorkspace(name string) error
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithRepository persists every mutation through repo.
func WithRepository(repo Repository) Option {
	return func(s *Store) {
		s.repo = repo
	}
}

// Store owns every workspace and scan result. All writes go through
// Ingest, Update, Remove, Transition and the workspace operations, and
// each of them recomputes the affected workspace's rollups from source.
type Store struct {
	// mu serializes writers, which covers per-id transitions and
	// per-workspace rollups.
	mu sync.RWMutex

	workspaces map[string]*models.Workspace
	results    map[string]*models.ScanResult
	members    map[string]map[string]struct{} // workspace name -> result ids

	repo Repository
	now  func() time.Time
}

// New returns an empty *Store.
func New(opts ...Option) *Store {
	s := &Store{
		workspaces: make(map[string]*models.Workspace),
		results:    make(map[string]*models.ScanResult),
		members:    make(map[string]map[string]struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest adds a scan result and returns its workspace with fresh rollups.
// Unknown workspaces are created on the fly. Ingesting the exact same
// result twice is a no-op.
func (s *Store) Ingest(result models.ScanResult) (models.Workspace, error) {
	r, err := normalizeResult(result)
	if err != nil {
		return models.Workspace{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.results[r.ID]; ok {
		if reflect.DeepEqual(*existing, r) {
			return *s.workspaces[r.Workspace], nil
		}
		logrus.Warnf("Rejected ingest of result %s: id already taken", r.ID)
		return models.Workspace{}, models.ErrDuplicateResultID.With("result %q already exists in workspace %q", r.ID, existing.Workspace)
	}

	ws := s.nextWorkspace(r.Workspace, &r, "")
	if err := s.persistResult(r, ws); err != nil {
		return models.Workspace{}, err
	}

	s.commitResult(&r, ws)
	logrus.Infof("Ingested result %s (%s, %s) into workspace %s", r.ID, r.Target, r.Status, r.Workspace)
	return ws, nil
}

// Update replaces the findings of a still-running result, for executors
// that stream progress. Status changes go through Transition.
func (s *Store) Update(result models.ScanResult) (models.Workspace, error) {
	r, err := normalizeResult(result)
	if err != nil {
		return models.Workspace{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.results[r.ID]
	if !ok {
		return models.Workspace{}, models.ErrResultNotFound.With("scan result %q not found", r.ID)
	}
	if existing.Workspace != r.Workspace || existing.Target != r.Target {
		return models.Workspace{}, models.ErrIllegalUpdate.With("result %q belongs to %s/%s", r.ID, existing.Workspace, existing.Target)
	}
	if existing.Status != models.StatusRunning || r.Status != models.StatusRunning {
		return models.Workspace{}, models.ErrIllegalTransition.With("cannot update result %q from %s to %s", r.ID, existing.Status, r.Status)
	}

	ws := s.nextWorkspace(r.Workspace, &r, "")
	if err := s.persistResult(r, ws); err != nil {
		return models.Workspace{}, err
	}

	s.commitResult(&r, ws)
	logrus.Debugf("Updated running result %s", r.ID)
	return ws, nil
}

// Remove deletes a result and returns its workspace with fresh rollups.
func (s *Store) Remove(id string) (models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.results[id]
	if !ok {
		return models.Workspace{}, models.ErrResultNotFound.With("scan result %q not found", id)
	}

	ws := s.nextWorkspace(existing.Workspace, nil, id)
	if s.repo != nil {
		if err := s.repo.DeleteResult(id, ws); err != nil {
			return models.Workspace{}, fmt.Errorf("delete result %s: %w", id, err)
		}
	}

	delete(s.results, id)
	delete(s.members[ws.Name], id)
	s.workspaces[ws.Name] = &ws
	logrus.Infof("Removed result %s from workspace %s", id, ws.Name)
	return ws, nil
}

// Transition moves a running result to completed or failed.
func (s *Store) Transition(id string, status models.ScanStatus, endTime *time.Time) (models.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.results[id]
	if !ok {
		return models.ScanResult{}, models.ErrResultNotFound.With("scan result %q not found", id)
	}
	if existing.Status != models.StatusRunning || !status.Terminal() {
		logrus.Warnf("Rejected transition of result %s: %s -> %s", id, existing.Status, status)
		return models.ScanResult{}, models.ErrIllegalTransition.With("cannot move result %q from %s to %s", id, existing.Status, status)
	}
	if endTime == nil || endTime.IsZero() {
		return models.ScanResult{}, models.ErrMissingEndTime
	}

	next := existing.Clone()
	next.Status = status
	if err := setEnd(&next, *endTime); err != nil {
		return models.ScanResult{}, err
	}

	ws := s.nextWorkspace(next.Workspace, &next, "")
	if err := s.persistResult(next, ws); err != nil {
		return models.ScanResult{}, err
	}

	s.commitResult(&next, ws)
	logrus.Infof("Result %s is now %s after %ds", id, status, *next.Duration)
	return next.Clone(), nil
}

// Result returns a single result with its vulnerabilities in severity order.
func (s *Store) Result(id string) (models.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[id]
	if !ok {
		return models.ScanResult{}, models.ErrResultNotFound.With("scan result %q not found", id)
	}
	out := r.Clone()
	out.Vulnerabilities = SeveritySort(out.Vulnerabilities)
	return out, nil
}

// CreateWorkspace registers an empty workspace.
func (s *Store) CreateWorkspace(name, description string) (models.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Workspace{}, models.ErrMissingField.OnField("name").With("workspace name is required")
	}
	if !models.IsSingleToken(name) {
		return models.Workspace{}, models.ErrInvalidWorkspace.OnField("name").With("invalid workspace name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[name]; ok {
		return models.Workspace{}, models.ErrWorkspaceExists.With("workspace %q already exists", name)
	}

	now := s.now().UTC()
	ws := models.Workspace{
		Name:         name,
		Description:  strings.TrimSpace(description),
		Created:      now,
		LastModified: now,
	}
	if s.repo != nil {
		if err := s.repo.SaveWorkspace(ws); err != nil {
			return models.Workspace{}, fmt.Errorf("save workspace %s: %w", name, err)
		}
	}

	s.workspaces[name] = &ws
	s.members[name] = make(map[string]struct{})
	logrus.Infof("Created workspace %s", name)
	return ws, nil
}

// Workspace returns a workspace by name.
func (s *Store) Workspace(name string) (models.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[name]
	if !ok {
		return models.Workspace{}, models.ErrWorkspaceNotFound.With("workspace %q not found", name)
	}
	return *ws, nil
}

// Workspaces returns the workspaces whose name or description contains
// term, case-insensitively, sorted by name. An empty term matches all.
func (s *Store) Workspaces(term string) []models.Workspace {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		if term == "" ||
			strings.Contains(strings.ToLower(ws.Name), term) ||
			strings.Contains(strings.ToLower(ws.Description), term) {
			out = append(out, *ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeletionPrompt describes what deleting the workspace would remove.
// Frontends show it before calling DeleteWorkspace.
func (s *Store) DeletionPrompt(name string) (models.Confirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.workspaces[name]; !ok {
		return models.Confirmation{}, models.ErrWorkspaceNotFound.With("workspace %q not found", name)
	}
	return models.Confirmation{
		Action:        "delete_workspace",
		Target:        name,
		Prompt:        fmt.Sprintf("Are you sure you want to delete workspace %q? This action cannot be undone.", name),
		AffectedScans: len(s.members[name]),
	}, nil
}

// DeleteWorkspace removes a workspace together with its results and
// returns how many results went with it.
func (s *Store) DeleteWorkspace(name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[name]; !ok {
		return 0, models.ErrWorkspaceNotFound.With("workspace %q not found", name)
	}
	if s.repo != nil {
		if err := s.repo.DeleteWorkspace(name); err != nil {
			return 0, fmt.Errorf("delete workspace %s: %w", name, err)
		}
	}

	removed := len(s.members[name])
	for id := range s.members[name] {
		delete(s.results, id)
	}
	delete(s.members, name)
	delete(s.workspaces, name)
	logrus.Infof("Deleted workspace %s with %d results", name, removed)
	return removed, nil
}

// Stats computes the dashboard rollup.
func (s *Store) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := models.Stats{
		TotalScans: len(s.results),
		Workspaces: len(s.workspaces),
	}
	hosts := make(map[string]struct{})
	for _, r := range s.results {
		if r.Status == models.StatusRunning {
			st.ActiveScans++
		}
		st.TotalVulnerabilities += len(r.Vulnerabilities)
		hosts[strings.ToLower(r.Target)] = struct{}{}
		for _, v := range r.Vulnerabilities {
			st.Severities.Add(v.Severity)
		}
	}
	st.HostsScanned = len(hosts)
	return st
}

// Restore replaces the store content with persisted records. Rollups are
// recomputed from the results, timestamps of known workspaces are kept.
func (s *Store) Restore(workspaces []models.Workspace, results []models.ScanResult) error {
	wsByName := make(map[string]*models.Workspace, len(workspaces))
	byID := make(map[string]*models.ScanResult, len(results))
	members := make(map[string]map[string]struct{}, len(workspaces))

	for _, ws := range workspaces {
		ws := ws
		wsByName[ws.Name] = &ws
		members[ws.Name] = make(map[string]struct{})
	}

	for _, in := range results {
		r, err := normalizeResult(in)
		if err != nil {
			return fmt.Errorf("restore result %s: %w", in.ID, err)
		}
		if _, dup := byID[r.ID]; dup {
			return fmt.Errorf("restore result %s: %w", r.ID, models.ErrDuplicateResultID)
		}
		if _, ok := wsByName[r.Workspace]; !ok {
			now := s.now().UTC()
			wsByName[r.Workspace] = &models.Workspace{Name: r.Workspace, Created: now, LastModified: now}
			members[r.Workspace] = make(map[string]struct{})
		}
		byID[r.ID] = &r
		members[r.Workspace][r.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.workspaces, s.results, s.members = wsByName, byID, members
	for name, ws := range s.workspaces {
		*ws = rollup(*ws, s.collect(name, nil, ""))
	}
	logrus.Infof("Restored %d workspaces and %d results", len(s.workspaces), len(s.results))
	return nil
}

// nextWorkspace computes the state the named workspace would have with
// upsert added (or replaced) and drop removed. The store is not modified.
func (s *Store) nextWorkspace(name string, upsert *models.ScanResult, drop string) models.Workspace {
	now := s.now().UTC()

	var ws models.Workspace
	if cur, ok := s.workspaces[name]; ok {
		ws = *cur
	} else {
		ws = models.Workspace{Name: name, Created: now}
	}

	ws = rollup(ws, s.collect(name, upsert, drop))
	ws.LastModified = now
	return ws
}

// collect lists the workspace's results with upsert applied and drop removed.
func (s *Store) collect(name string, upsert *models.ScanResult, drop string) []*models.ScanResult {
	out := make([]*models.ScanResult, 0, len(s.members[name])+1)
	for id := range s.members[name] {
		if id == drop || (upsert != nil && id == upsert.ID) {
			continue
		}
		out = append(out, s.results[id])
	}
	if upsert != nil {
		out = append(out, upsert)
	}
	return out
}

func (s *Store) persistResult(r models.ScanResult, ws models.Workspace) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveResult(r, ws); err != nil {
		return fmt.Errorf("save result %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) commitResult(r *models.ScanResult, ws models.Workspace) {
	s.results[r.ID] = r
	if s.members[ws.Name] == nil {
		s.members[ws.Name] = make(map[string]struct{})
	}
	s.members[ws.Name][r.ID] = struct{}{}
	s.workspaces[ws.Name] = &ws
}

// rollup recomputes the derived counters of ws from results.
func rollup(ws models.Workspace, results []*models.ScanResult) models.Workspace {
	hosts := make(map[string]struct{}, len(results))
	ws.ScanCount = len(results)
	ws.VulnerabilityCount = 0
	for _, r := range results {
		ws.VulnerabilityCount += len(r.Vulnerabilities)
		hosts[strings.ToLower(r.Target)] = struct{}{}
	}
	ws.HostCount = len(hosts)
	return ws
}

// SeveritySort returns the vulnerabilities ordered from most to least
// severe. Equal severities keep their input order.
func SeveritySort(vulns []models.Vulnerability) []models.Vulnerability {
	out := slices.Clone(vulns)
	slices.SortStableFunc(out, func(a, b models.Vulnerability) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})
	return out
}
