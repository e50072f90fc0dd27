package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	authSuccess atomic.Uint64
	authFailure atomic.Uint64
	authError   atomic.Uint64

	permissionAllowed atomic.Uint64
	permissionDenied  atomic.Uint64
	permissionError   atomic.Uint64

	decisionDirect   atomic.Uint64
	decisionFallback atomic.Uint64
	decisionNone     atomic.Uint64
	decisionError    atomic.Uint64

	auditRecorded atomic.Uint64
	auditFailed   atomic.Uint64

	invalidationsLocal  atomic.Uint64
	invalidationsRemote atomic.Uint64

	resolverHits   atomic.Uint64
	resolverMisses atomic.Uint64

	lastIntegrity atomic.Value // *IntegritySnapshot

	fallbackRoles sync.Map // string -> *atomic.Uint64
}

func newStatStore() *statStore {
	store := &statStore{}
	store.lastIntegrity.Store((*IntegritySnapshot)(nil))
	return store
}

func (s *statStore) cloneFallbackRoles() []FallbackRoleSummary {
	roles := []FallbackRoleSummary{}
	s.fallbackRoles.Range(func(key, value any) bool {
		roles = append(roles, FallbackRoleSummary{
			Role:  key.(string),
			Count: value.(*atomic.Uint64).Load(),
		})
		return true
	})
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Count != roles[j].Count {
			return roles[i].Count > roles[j].Count
		}
		return roles[i].Role < roles[j].Role
	})
	return roles
}

func (s *statStore) summary() Summary {
	direct := s.decisionDirect.Load()
	fallback := s.decisionFallback.Load()
	var ratio float64
	if granted := direct + fallback; granted > 0 {
		ratio = float64(fallback) / float64(granted)
	}
	lastIntegrity, _ := s.lastIntegrity.Load().(*IntegritySnapshot)

	return Summary{
		GeneratedAt: time.Now(),
		Auth: AuthSummary{
			Success: s.authSuccess.Load(),
			Failure: s.authFailure.Load(),
			Error:   s.authError.Load(),
		},
		Permissions: PermissionSummary{
			Allowed: s.permissionAllowed.Load(),
			Denied:  s.permissionDenied.Load(),
			Error:   s.permissionError.Load(),
		},
		Decisions: DecisionSummary{
			Direct:        direct,
			Fallback:      fallback,
			None:          s.decisionNone.Load(),
			Error:         s.decisionError.Load(),
			FallbackRatio: ratio,
			FallbackRoles: s.cloneFallbackRoles(),
		},
		Audit: AuditSummary{
			Recorded: s.auditRecorded.Load(),
			Failed:   s.auditFailed.Load(),
		},
		Cache: CacheSummary{
			LocalInvalidations:  s.invalidationsLocal.Load(),
			RemoteInvalidations: s.invalidationsRemote.Load(),
			Hits:                s.resolverHits.Load(),
			Misses:              s.resolverMisses.Load(),
		},
		Integrity: lastIntegrity,
	}
}

func (s *statStore) recordAuth(result string) {
	switch result {
	case "success":
		s.authSuccess.Add(1)
	case "failure":
		s.authFailure.Add(1)
	default:
		s.authError.Add(1)
	}
}

func (s *statStore) recordPermission(result string) {
	switch result {
	case "allowed":
		s.permissionAllowed.Add(1)
	case "denied":
		s.permissionDenied.Add(1)
	default:
		s.permissionError.Add(1)
	}
}

func (s *statStore) recordDecision(path string) {
	switch path {
	case "direct":
		s.decisionDirect.Add(1)
	case "fallback":
		s.decisionFallback.Add(1)
	case "none":
		s.decisionNone.Add(1)
	default:
		s.decisionError.Add(1)
	}
}

func (s *statStore) recordFallbackRole(role string) {
	value, ok := s.fallbackRoles.Load(role)
	if !ok {
		value, _ = s.fallbackRoles.LoadOrStore(role, &atomic.Uint64{})
	}
	value.(*atomic.Uint64).Add(1)
}

func (s *statStore) recordAudit(result string) {
	if result == "success" {
		s.auditRecorded.Add(1)
		return
	}
	s.auditFailed.Add(1)
}

func (s *statStore) recordInvalidation(source string) {
	if source == "remote" {
		s.invalidationsRemote.Add(1)
		return
	}
	s.invalidationsLocal.Add(1)
}

func (s *statStore) recordResolverLookup(outcome string) {
	if outcome == "hit" {
		s.resolverHits.Add(1)
		return
	}
	s.resolverMisses.Add(1)
}

func (s *statStore) recordIntegrity(snapshot IntegritySnapshot) {
	cloned := snapshot
	s.lastIntegrity.Store(&cloned)
}
