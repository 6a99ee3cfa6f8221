package fixtures

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeeds(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestLoad_IssueFeeds(t *testing.T) {
	dir := writeFeeds(t, map[string]string{
		TokensFile:       "perm:a\nperm:b\n\n",
		SummariesFile:    "Login fails\n\"Crash, on save\"\n",
		DescriptionsFile: "Cannot log in on mobile\n",
		CommentsFile:     "Reproduced\n",
		QueriesFile:      "#Unresolved\n",
	})

	ds, err := Load(dir, NeedIssues)
	require.NoError(t, err)
	assert.Equal(t, Column{"perm:a", "perm:b"}, ds.Tokens)
	assert.Equal(t, Column{"Login fails", "Crash, on save"}, ds.Summaries)
	assert.Equal(t, Column{"Reproduced"}, ds.Comments)
	assert.Equal(t, Column{"#Unresolved"}, ds.Queries)
	assert.Empty(t, ds.Users)
}

func TestLoad_OptionalFallbacks(t *testing.T) {
	dir := writeFeeds(t, map[string]string{
		TokensFile:       "perm:a\n",
		SummariesFile:    "Login fails\nLogin slow\n",
		DescriptionsFile: "Cannot log in on mobile\n",
		UsersFile:        "jane@example.com,Jane Doe\n",
	})

	ds, err := Load(dir, NeedIssues)
	require.NoError(t, err)
	assert.Equal(t, ds.Descriptions, ds.Comments)
	assert.Equal(t, Column{"assignee: Jane_Doe", "Login", "fails", "slow"}, ds.Queries)
}

func TestLoad_RequiredFeedEmpty(t *testing.T) {
	dir := writeFeeds(t, map[string]string{
		TokensFile:       "\n\n",
		SummariesFile:    "x\n",
		DescriptionsFile: "y\n",
	})

	_, err := Load(dir, NeedIssues)
	require.ErrorIs(t, err, ErrEmptyFixture)
}

func TestLoad_RequiredFeedMissing(t *testing.T) {
	dir := writeFeeds(t, map[string]string{SummariesFile: "x\n"})
	_, err := Load(dir, NeedIssues)
	assert.Error(t, err)
}

func TestLoad_Users(t *testing.T) {
	dir := writeFeeds(t, map[string]string{
		UsersFile: "a@b.com,alice\nc@d.com, Carol King\n",
	})

	ds, err := Load(dir, NeedUsers)
	require.NoError(t, err)
	assert.Equal(t, []User{{"a@b.com", "alice"}, {"c@d.com", "Carol King"}}, ds.Users)
	assert.Nil(t, ds.Tokens)
}

func TestLoad_UsersMissingColumn(t *testing.T) {
	dir := writeFeeds(t, map[string]string{UsersFile: "a@b.com\n"})
	_, err := Load(dir, NeedUsers)
	assert.ErrorContains(t, err, "expected email,name")
}

func TestPick_AlwaysFromColumn(t *testing.T) {
	col := Column{"a", "b", "c"}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		assert.Contains(t, col, col.Pick(rng.Intn))
	}

	single := Column{"only"}
	assert.Equal(t, "only", single.Pick(rng.Intn))
}

func TestGenerateQueries_LimitsRows(t *testing.T) {
	var users []User
	for i := 0; i < 30; i++ {
		users = append(users, User{Name: "A B"})
	}
	queries := GenerateQueries(nil, users)
	assert.Len(t, queries, queryTermRows)
	assert.Equal(t, "assignee: A_B", queries[0])
}
