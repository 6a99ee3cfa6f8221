package mock

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DefaultState is the state of new issues
const DefaultState = "Submitted"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	ErrConflict = errors.New("already exists")
)

// Store holds the tracker double state in memory
type Store struct {
	mu           sync.RWMutex
	projectShort string

	drafts    map[string]*Issue
	issues    []*Issue          // creation order
	byID      map[string]*Issue // database id and readable id
	users     map[string]*User
	emails    map[string]string // email -> user id
	tokens    map[string]string // token -> user name
	nextDraft int
	nextIssue int
	nextUser  int
}

// NewStore creates an empty store. Readable issue ids use projectShort as prefix.
func NewStore(projectShort string) *Store {
	if projectShort == "" {
		projectShort = DefaultProjectShort
	}
	return &Store{
		projectShort: projectShort,
		drafts:       make(map[string]*Issue),
		byID:         make(map[string]*Issue),
		users:        make(map[string]*User),
		emails:       make(map[string]string),
		tokens:       make(map[string]string),
	}
}

// CreateDraft creates an empty draft and returns its id
func (s *Store) CreateDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDraft++
	id := fmt.Sprintf("68-%d", s.nextDraft)
	s.drafts[id] = &Issue{ID: id}
	return id
}

// UpdateDraft writes content into a draft
func (s *Store) UpdateDraft(id, summary, description, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	d.Summary = summary
	d.Description = description
	d.ProjectID = projectID
	return nil
}

// PromoteDraft turns a draft into an issue. The draft needs a summary.
func (s *Store) PromoteDraft(id string) (Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return Issue{}, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	if strings.TrimSpace(d.Summary) == "" {
		return Issue{}, fmt.Errorf("summary is required: %w", ErrInvalid)
	}
	delete(s.drafts, id)
	return s.addIssue(d.Summary, d.Description, d.ProjectID), nil
}

// CreateIssue creates an issue directly
func (s *Store) CreateIssue(summary, description, projectID string) (Issue, error) {
	if strings.TrimSpace(summary) == "" {
		return Issue{}, fmt.Errorf("summary is required: %w", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addIssue(summary, description, projectID), nil
}

func (s *Store) addIssue(summary, description, projectID string) Issue {
	s.nextIssue++
	issue := &Issue{
		ID:          fmt.Sprintf("2-%d", s.nextIssue),
		IDReadable:  fmt.Sprintf("%s-%d", s.projectShort, s.nextIssue),
		Summary:     summary,
		Description: description,
		ProjectID:   projectID,
		State:       DefaultState,
	}
	s.issues = append(s.issues, issue)
	s.byID[issue.ID] = issue
	s.byID[issue.IDReadable] = issue
	return *issue
}

// Issue returns an issue by database or readable id
func (s *Store) Issue(id string) (Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.byID[id]
	if !ok {
		return Issue{}, false
	}
	return *issue, true
}

// Sorted returns up to top issues matching query, newest first
func (s *Store) Sorted(query string, top int) []Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := parseQuery(query)
	var out []Issue
	for i := len(s.issues) - 1; i >= 0 && (top <= 0 || len(out) < top); i-- {
		if q.matches(s.issues[i]) {
			out = append(out, *s.issues[i])
		}
	}
	return out
}

// Count returns how many issues match query
func (s *Store) Count(query string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := parseQuery(query)
	n := 0
	for _, issue := range s.issues {
		if q.matches(issue) {
			n++
		}
	}
	return n
}

// Issues returns the known issues among ids, in request order
func (s *Store) Issues(ids []string) []Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Issue, 0, len(ids))
	for _, id := range ids {
		if issue, ok := s.byID[id]; ok {
			out = append(out, *issue)
		}
	}
	return out
}

// ApplyCommand runs a command such as "for me State {In Progress}" or
// "comment" against an issue on behalf of caller
func (s *Store) ApplyCommand(issueID, query, comment, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.byID[issueID]
	if !ok {
		return fmt.Errorf("issue %s: %w", issueID, ErrNotFound)
	}

	tokens := tokenize(query)
	if len(tokens) == 0 && comment == "" {
		return fmt.Errorf("empty command: %w", ErrInvalid)
	}

	var assignee, state string
	commented := false
	for i := 0; i < len(tokens); i++ {
		switch strings.ToLower(tokens[i]) {
		case "for":
			if i+1 >= len(tokens) {
				return fmt.Errorf("for needs a user: %w", ErrInvalid)
			}
			i++
			assignee = tokens[i]
			if strings.EqualFold(assignee, "me") {
				assignee = caller
			}
		case "state":
			if i+1 >= len(tokens) {
				return fmt.Errorf("state needs a value: %w", ErrInvalid)
			}
			i++
			state = tokens[i]
		case "comment":
			commented = true
		default:
			return fmt.Errorf("unknown command %q: %w", tokens[i], ErrInvalid)
		}
	}
	if commented && comment == "" {
		return fmt.Errorf("comment text is required: %w", ErrInvalid)
	}

	if assignee != "" {
		issue.Assignee = assignee
	}
	if state != "" {
		issue.State = state
	}
	if comment != "" {
		issue.Comments = append(issue.Comments, comment)
	}
	return nil
}

// CreateUser creates an account. Emails are unique.
func (s *Store) CreateUser(email, name string) (User, error) {
	if email == "" {
		return User{}, fmt.Errorf("email is required: %w", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.emails[key]; ok {
		return User{}, fmt.Errorf("user %s: %w", email, ErrConflict)
	}
	s.nextUser++
	user := &User{ID: fmt.Sprintf("u-%d", s.nextUser), Email: email, Name: name}
	s.users[user.ID] = user
	s.emails[key] = user.ID
	return *user, nil
}

// IssueToken creates a permanent token for a user
func (s *Store) IssueToken(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return "", fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	buf := make([]byte, 12)
	rand.Read(buf)
	token := "perm:" + hex.EncodeToString(buf)
	user.Tokens = append(user.Tokens, token)
	s.tokens[token] = user.Name
	return token, nil
}

// TokenOwner returns the user name a token was issued to
func (s *Store) TokenOwner(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.tokens[token]
	return name, ok
}

// Stats returns the number of stored issues and users
func (s *Store) Stats() (issues, users int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issues), len(s.users)
}

type issueQuery struct {
	words    []string
	assignee string
	state    string
}

// parseQuery understands "assignee: Name", "state: Value" and free words
func parseQuery(query string) issueQuery {
	var q issueQuery
	tokens := tokenize(query)
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if key, ok := strings.CutSuffix(t, ":"); ok && i+1 < len(tokens) {
			i++
			switch strings.ToLower(key) {
			case "assignee":
				q.assignee = tokens[i]
			case "state":
				q.state = tokens[i]
			}
			continue
		}
		q.words = append(q.words, strings.ToLower(t))
	}
	return q
}

func (q issueQuery) matches(issue *Issue) bool {
	if q.assignee != "" && !strings.EqualFold(issue.Assignee, q.assignee) {
		return false
	}
	if q.state != "" && !strings.EqualFold(issue.State, q.state) {
		return false
	}
	text := strings.ToLower(issue.Summary + " " + issue.Description)
	for _, w := range q.words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

// tokenize splits on whitespace, keeping {braced values} together
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	braced := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '{' && !braced:
			flush()
			braced = true
		case r == '}' && braced:
			braced = false
			tokens = append(tokens, cur.String())
			cur.Reset()
		case !braced && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
