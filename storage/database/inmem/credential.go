package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
)

var credentialOrderFields = map[string]func(a, b credential.Credential) int{
	"username":        func(a, b credential.Credential) int { return strings.Compare(a.Username, b.Username) },
	"display_name":    func(a, b credential.Credential) int { return strings.Compare(a.DisplayName, b.DisplayName) },
	"failed_attempts": func(a, b credential.Credential) int { return compareInts(a.FailedAttempts, b.FailedAttempts) },
	"last_login":      func(a, b credential.Credential) int { return compareTimes(a.LastLogin, b.LastLogin) },
	"created_at":      func(a, b credential.Credential) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// default: newest first
var defaultCredentialOrdering = []core.DBOrdering{{Field: "created_at"}, {Field: "username", Ascending: true}}

type credentialRepository struct {
	db *credentialTable
}

var _ credential.Repository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(db *DB) credential.Repository {
	return &credentialRepository{db: db.credential}
}

func (repo *credentialRepository) query() []credential.Credential {
	creds := make([]credential.Credential, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		creds = append(creds, *c)
	}
	return creds
}

func (repo *credentialRepository) CheckUsernameUniqueness(_ context.Context, username string, excluded ...credential.Credential) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	exclIDs := make([]string, 0, len(excluded))
	for _, c := range excluded {
		exclIDs = append(exclIDs, c.ID)
	}
	sort.Strings(exclIDs)

	for _, c := range repo.db.table {
		if c.Username == username && !isExcluded(c.ID, exclIDs) {
			return credential.ErrUsernameExists
		}
	}
	return nil
}

func (repo *credentialRepository) CreateCredential(_ context.Context, cred credential.Credential) (credential.Credential, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, c := range repo.db.table {
		if c.Username == cred.Username {
			return credential.Credential{}, credential.ErrUsernameExists
		}
	}
	cred.Members = cloneStrings(cred.Members)
	repo.db.table[cred.ID] = &cred
	return cred, nil
}

func (repo *credentialRepository) GetCredential(_ context.Context, filter credential.GetFilter) (credential.Credential, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if c, ok := repo.db.table[filter.ID]; ok {
			return *c, nil
		}
		return credential.Credential{}, credential.ErrNotFound
	}
	if filter.Username != "" {
		for _, c := range repo.db.table {
			if c.Username == filter.Username {
				return *c, nil
			}
		}
	}
	return credential.Credential{}, credential.ErrNotFound
}

func (repo *credentialRepository) FilterCredentials(
	_ context.Context,
	filter credential.QueryFilter,
	ordering ...core.DBOrdering,
) ([]credential.Credential, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	creds := make([]credential.Credential, 0)
	for _, c := range repo.query() {
		if filter.Search != "" && !(containsFold(c.Username, filter.Search) || containsFold(c.DisplayName, filter.Search)) {
			continue
		}
		if filter.QuizID != "" && c.QuizID != filter.QuizID {
			continue
		}
		if filter.Kind != "" && c.Kind != filter.Kind {
			continue
		}
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		if filter.Locked != nil && c.Locked != *filter.Locked {
			continue
		}
		creds = append(creds, c)
	}

	if len(ordering) == 0 {
		ordering = defaultCredentialOrdering
	}
	sortBy(creds, ordering, credentialOrderFields)
	return creds, nil
}

func (repo *credentialRepository) UpdateCredential(_ context.Context, cred credential.Credential) (credential.Credential, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save profile fields; the login state has its own method
	orig, ok := repo.db.table[cred.ID]
	if !ok {
		return credential.Credential{}, credential.ErrNotFound
	}
	for _, c := range repo.db.table {
		if c.ID != cred.ID && c.Username == cred.Username {
			return credential.Credential{}, credential.ErrUsernameExists
		}
	}
	if cred.PasswordHash != nil {
		orig.PasswordHash = cred.PasswordHash
	}
	orig.Username = cred.Username
	orig.DisplayName = cred.DisplayName
	orig.Email = cred.Email
	orig.Members = cloneStrings(cred.Members)
	orig.IsActive = cred.IsActive
	orig.UpdatedAt = cred.UpdatedAt
	return *orig, nil
}

func (repo *credentialRepository) SaveLoginState(_ context.Context, cred credential.Credential) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[cred.ID]
	if !ok {
		return credential.ErrNotFound
	}
	orig.FailedAttempts = cred.FailedAttempts
	orig.Locked = cred.Locked
	orig.LockExpiry = cred.LockExpiry
	orig.LastLogin = cred.LastLogin
	return nil
}

func isExcluded(id string, sortedIDs []string) bool {
	idx := sort.SearchStrings(sortedIDs, id)
	return idx < len(sortedIDs) && sortedIDs[idx] == id
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
