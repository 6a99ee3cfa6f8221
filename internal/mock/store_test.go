package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DraftLifecycle(t *testing.T) {
	s := NewStore("")

	id := s.CreateDraft()
	assert.Equal(t, "68-1", id)

	_, err := s.PromoteDraft(id)
	require.ErrorIs(t, err, ErrInvalid, "a draft without summary cannot be promoted")

	require.NoError(t, s.UpdateDraft(id, "Login broken", "Steps to reproduce", "0-0"))
	issue, err := s.PromoteDraft(id)
	require.NoError(t, err)
	assert.Equal(t, "2-1", issue.ID)
	assert.Equal(t, "DEMO-1", issue.IDReadable)
	assert.Equal(t, DefaultState, issue.State)

	_, err = s.PromoteDraft(id)
	assert.ErrorIs(t, err, ErrNotFound, "promoted drafts are removed")
	assert.ErrorIs(t, s.UpdateDraft("68-99", "x", "", ""), ErrNotFound)
}

func TestStore_LookupByEitherID(t *testing.T) {
	s := NewStore("PRJ")
	created, err := s.CreateIssue("Crash on save", "", "0-0")
	require.NoError(t, err)

	byDB, ok := s.Issue(created.ID)
	require.True(t, ok)
	byReadable, ok := s.Issue("PRJ-1")
	require.True(t, ok)
	assert.Equal(t, byDB, byReadable)

	_, ok = s.Issue("PRJ-2")
	assert.False(t, ok)
}

func TestStore_SortedNewestFirst(t *testing.T) {
	s := NewStore("")
	for _, summary := range []string{"alpha bug", "beta bug", "gamma feature"} {
		_, err := s.CreateIssue(summary, "", "0-0")
		require.NoError(t, err)
	}

	all := s.Sorted("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "gamma feature", all[0].Summary)

	top := s.Sorted("", 2)
	assert.Len(t, top, 2)

	bugs := s.Sorted("bug", 10)
	require.Len(t, bugs, 2)
	assert.Equal(t, "beta bug", bugs[0].Summary)
	assert.Equal(t, 2, s.Count("BUG"))
	assert.Equal(t, 0, s.Count("delta"))
}

func TestStore_ApplyCommand(t *testing.T) {
	s := NewStore("")
	issue, err := s.CreateIssue("Timeout", "", "0-0")
	require.NoError(t, err)

	require.NoError(t, s.ApplyCommand(issue.ID, "for me State {In Progress}", "", "alice"))
	got, _ := s.Issue(issue.ID)
	assert.Equal(t, "In Progress", got.State)
	assert.Equal(t, "alice", got.Assignee)

	assert.Equal(t, 1, s.Count("assignee: alice state: {In Progress}"))
	assert.Equal(t, 0, s.Count("state: Fixed"))

	require.NoError(t, s.ApplyCommand(issue.IDReadable, "comment", "looking into it", "alice"))
	got, _ = s.Issue(issue.ID)
	assert.Equal(t, []string{"looking into it"}, got.Comments)

	tests := []struct {
		name    string
		query   string
		comment string
		want    error
	}{
		{"unknown command", "priority Critical", "", ErrInvalid},
		{"state without value", "State", "", ErrInvalid},
		{"comment without text", "comment", "", ErrInvalid},
		{"empty", "", "", ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.ApplyCommand(issue.ID, tt.query, tt.comment, "alice"), tt.want)
		})
	}

	assert.ErrorIs(t, s.ApplyCommand("2-99", "State Fixed", "", "alice"), ErrNotFound)
}

func TestStore_UsersAndTokens(t *testing.T) {
	s := NewStore("")

	user, err := s.CreateUser("ann@example.com", "ann")
	require.NoError(t, err)

	_, err = s.CreateUser("ANN@example.com", "ann2")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.CreateUser("", "nobody")
	assert.ErrorIs(t, err, ErrInvalid)

	token, err := s.IssueToken(user.ID)
	require.NoError(t, err)
	assert.Regexp(t, `^perm:[0-9a-f]{24}$`, token)

	owner, ok := s.TokenOwner(token)
	assert.True(t, ok)
	assert.Equal(t, "ann", owner)

	_, err = s.IssueToken("u-42")
	assert.ErrorIs(t, err, ErrNotFound)

	issues, users := s.Stats()
	assert.Equal(t, 0, issues)
	assert.Equal(t, 1, users)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"for", "me", "State", "In Progress"}, tokenize("for me  State {In Progress}"))
	assert.Equal(t, []string{"state:", "Fixed", "crash"}, tokenize("state: Fixed crash"))
	assert.Nil(t, tokenize("   "))
}
