package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/studiowebux/trackload/internal/tracker"
)

// CreateIssue drafts an issue, fills it in after a pause and promotes it.
// The flow stops silently when the draft has no id or cannot be updated.
func (r *Runner) CreateIssue(ctx context.Context) {
	token := r.pick(r.ds.Tokens)

	draft, ok := r.api.CreateDraft(ctx, token).Get()
	if !ok {
		return
	}

	if !r.sleep(ctx, r.settle) {
		return
	}

	if !r.api.UpdateDraft(ctx, token, draft.ID, r.issueContent()).OK() {
		return
	}

	created := r.api.CreateIssueFromDraft(ctx, token, draft.ID)
	r.verify(ctx, checkIssueCreated, created.Result)
}

// SeedIssue creates one issue directly, without a draft
func (r *Runner) SeedIssue(ctx context.Context) {
	token := r.pick(r.ds.Tokens)
	created := r.api.CreateIssue(ctx, token, r.issueContent())
	r.verify(ctx, checkIssueCreated, created.Result)
}

// UpdateIssue moves a ranked issue to a random state, then comments on it.
// Nothing after the ranked list runs when it is unavailable or empty.
func (r *Runner) UpdateIssue(ctx context.Context) {
	token := r.pick(r.ds.Tokens)

	list, ok := r.api.SortedIssues(ctx, token, r.topN, "").Get()
	if !ok || len(list.Tree) == 0 {
		return
	}
	// drawn from the ranked list, not sampled independently
	issueID := list.Tree[r.intn(len(list.Tree))].ID

	stateCmd := stateCommand(r.states[r.intn(len(r.states))])
	observe(r.api.CommandAssist(ctx, token, stateCmd, issueID))
	changed := r.api.Command(ctx, token, stateCmd, "", issueID)
	r.verify(ctx, checkStateChanged, changed.Result)

	if !r.sleep(ctx, r.settle) {
		return
	}

	observe(r.api.CommandAssist(ctx, token, "comment", issueID))
	commented := r.api.Command(ctx, token, "comment", r.pick(r.ds.Comments), issueID)
	r.verify(ctx, checkCommentAdded, commented.Result)
}

// ViewIssue loads the issue list page, then opens one issue from it
func (r *Runner) ViewIssue(ctx context.Context) {
	token := r.pick(r.ds.Tokens)

	listed := r.api.SortedIssues(ctx, token, r.topN, "")
	observe(r.api.IssuesCount(ctx, token, ""))

	list, ok := listed.Get()
	if !ok {
		return
	}

	fetched := r.api.IssuesGetter(ctx, token, list.IDs())
	r.verify(ctx, checkIssuesFetched, fetched.Result)
	batch, ok := fetched.Get()
	if !ok || len(batch) == 0 {
		return
	}

	if !r.sleep(ctx, r.settle) {
		return
	}

	issue := batch[r.intn(len(batch))]
	id := issue.IDReadable
	if id == "" {
		id = issue.ID
	}
	viewed := r.api.Issue(ctx, token, id)
	r.verify(ctx, checkIssueViewed, viewed.Result)
}

// SearchIssues runs one fixture query through autocompletion and search,
// then loads the details of the matches
func (r *Runner) SearchIssues(ctx context.Context) {
	token := r.pick(r.ds.Tokens)
	query := r.pick(r.ds.Queries)

	observe(r.api.SearchAssist(ctx, token, query))

	searched := r.api.SortedIssues(ctx, token, r.topN, query)
	r.verify(ctx, checkSearch, searched.Result)

	list, ok := searched.Get()
	if !ok || len(list.Tree) == 0 {
		return
	}
	observe(r.api.IssuesGetter(ctx, token, list.IDs()))
}

// CreateUser creates the account for users.csv row iteration and issues it
// a permanent token, which is written to the reporter.
func (r *Runner) CreateUser(ctx context.Context, iteration int) {
	if len(r.ds.Users) == 0 {
		return
	}
	user := r.ds.Users[iteration%len(r.ds.Users)]

	created, ok := r.api.CreateHubUser(ctx, r.adminToken, user.Email, user.Name).Get()
	if !ok {
		return
	}

	issued := r.api.CreatePermanentToken(ctx, r.adminToken, created.ID, user.Name)
	if tok, ok := issued.Get(); ok {
		r.reporter.Token(user.Name, tok.Token)
	} else {
		r.reporter.LogError(true, issued.Result, map[string]string{"user": user.Name})
	}

	r.sleep(ctx, r.settle)
}

func (r *Runner) issueContent() tracker.IssueDraft {
	return tracker.IssueDraft{
		Summary:     fmt.Sprintf("%s %s", r.pick(r.ds.Summaries), r.randomSuffix(3)),
		Description: r.pick(r.ds.Descriptions),
		Project:     tracker.ProjectRef{ID: r.projectID},
	}
}

// stateCommand builds "for me State <state>", bracing multi-word values
func stateCommand(state string) string {
	if strings.ContainsAny(state, " \t") {
		state = "{" + state + "}"
	}
	return "for me State " + state
}
