package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/studiowebux/trackload/internal/types"
)

// Sample names, used as timing threshold tags
const (
	NameDrafts         = "/drafts"
	NameDraft          = "/drafts/{id}"
	NameIssues         = "/issues"
	NameSortedIssues   = "/sortedIssues"
	NameIssuesGetter   = "/issuesGetter"
	NameIssuesCount    = "/issuesGetter/count"
	NameIssue          = "/issues/{id}"
	NameCommandAssist  = "/commands/assist"
	NameCommands       = "/commands"
	NameSearchAssist   = "/search/assist"
	NameUsers          = "/users"
	NamePermanentToken = "/permanenttokens"
)

const (
	apiPrefix    = "/api"
	hubAPIPrefix = "/hub/api/rest"
)

// Doer executes one HTTP call. *executor.Executor satisfies it.
type Doer interface {
	Execute(ctx context.Context, req *types.HttpRequest) *types.RequestResult
}

// Client is a typed client for the tracker REST API. Every method issues
// exactly one call and decodes the response once.
type Client struct {
	baseURL string
	doer    Doer
}

// New creates a Client for baseURL (scheme and host, no trailing slash)
func New(baseURL string, doer Doer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
	}
}

// CreateDraft creates an empty issue draft. Succeeds only when an id is returned.
func (c *Client) CreateDraft(ctx context.Context, token string) Outcome[Draft] {
	res := c.post(ctx, NameDrafts, token, apiPrefix+"/users/me/drafts?fields=id", struct{}{})
	return decode(res, func(d Draft) bool { return d.ID != "" })
}

// UpdateDraft writes summary, description and project into a draft
func (c *Client) UpdateDraft(ctx context.Context, token, draftID string, content IssueDraft) Outcome[Draft] {
	path := fmt.Sprintf("%s/users/me/drafts/%s?fields=id", apiPrefix, url.PathEscape(draftID))
	return decode[Draft](c.post(ctx, NameDraft, token, path, content), nil)
}

// CreateIssueFromDraft promotes a draft to an issue
func (c *Client) CreateIssueFromDraft(ctx context.Context, token, draftID string) Outcome[IssueRef] {
	path := fmt.Sprintf("%s/issues?draftId=%s&fields=id,idReadable", apiPrefix, url.QueryEscape(draftID))
	res := c.post(ctx, NameIssues, token, path, struct{}{})
	return decode(res, func(i IssueRef) bool { return i.IDReadable != "" })
}

// CreateIssue creates an issue directly, without a draft
func (c *Client) CreateIssue(ctx context.Context, token string, content IssueDraft) Outcome[IssueRef] {
	res := c.post(ctx, NameIssues, token, apiPrefix+"/issues?fields=id,idReadable", content)
	return decode(res, func(i IssueRef) bool { return i.IDReadable != "" })
}

// SortedIssues fetches the top n issues in the tracker's default ranking,
// filtered by query (empty for all issues)
func (c *Client) SortedIssues(ctx context.Context, token string, n int, query string) Outcome[SortedIssues] {
	path := fmt.Sprintf("%s/sortedIssues?topRoot=%d&skipRoot=0&flatten=true&query=%s&fields=tree(id)",
		apiPrefix, n, url.QueryEscape(query))
	return decode[SortedIssues](c.get(ctx, NameSortedIssues, token, path), nil)
}

// IssuesGetter fetches details for a batch of issue ids
func (c *Client) IssuesGetter(ctx context.Context, token string, ids []string) Outcome[[]IssueRef] {
	path := apiPrefix + "/issuesGetter?$top=-1&fields=id,idReadable,summary"
	return decode[[]IssueRef](c.post(ctx, NameIssuesGetter, token, path, idRefs(ids)), nil)
}

// IssuesCount requests the issue count for query
func (c *Client) IssuesCount(ctx context.Context, token, query string) Outcome[IssueCount] {
	path := apiPrefix + "/issuesGetter/count?fields=count"
	return decode[IssueCount](c.post(ctx, NameIssuesCount, token, path, countPayload{Query: query}), nil)
}

// Issue fetches the single-issue view by human-readable id (PRJ-123)
func (c *Client) Issue(ctx context.Context, token, idReadable string) Outcome[IssueRef] {
	path := fmt.Sprintf("%s/issues/%s?fields=id,idReadable,summary,description", apiPrefix, url.PathEscape(idReadable))
	res := c.get(ctx, NameIssue, token, path)
	return decode(res, func(i IssueRef) bool { return i.IDReadable != "" })
}

// CommandAssist requests command autocompletion for an issue
func (c *Client) CommandAssist(ctx context.Context, token, query, issueID string) Outcome[Ack] {
	path := apiPrefix + "/commands/assist?fields=caret,query"
	payload := assistPayload{Query: query, Caret: len(query), Issues: idRefs([]string{issueID})}
	return decode[Ack](c.post(ctx, NameCommandAssist, token, path, payload), nil)
}

// Command applies a command to an issue. comment is sent only when non-empty.
func (c *Client) Command(ctx context.Context, token, query, comment, issueID string) Outcome[Ack] {
	payload := commandPayload{Query: query, Comment: comment, Issues: idRefs([]string{issueID})}
	return decode[Ack](c.post(ctx, NameCommands, token, apiPrefix+"/commands", payload), nil)
}

// SearchAssist requests search autocompletion for query
func (c *Client) SearchAssist(ctx context.Context, token, query string) Outcome[Ack] {
	path := apiPrefix + "/search/assist?fields=query,caret"
	return decode[Ack](c.post(ctx, NameSearchAssist, token, path, assistPayload{Query: query, Caret: len(query)}), nil)
}

// CreateHubUser creates an account with a verified email and the default
// password. Succeeds only when an id is returned.
func (c *Client) CreateHubUser(ctx context.Context, token, email, name string) Outcome[HubUser] {
	path := hubAPIPrefix + "/users?failOnPermissionReduce=true&fields=id"
	res := c.post(ctx, NameUsers, token, path, newHubUserPayload(email, name))
	return decode(res, func(u HubUser) bool { return u.ID != "" })
}

// CreatePermanentToken issues a permanent token for userID named after the user
func (c *Client) CreatePermanentToken(ctx context.Context, token, userID, name string) Outcome[PermanentToken] {
	path := fmt.Sprintf("%s/users/%s/permanenttokens/?failOnPermissionReduce=true&fields=token", hubAPIPrefix, url.PathEscape(userID))
	res := c.post(ctx, NamePermanentToken, token, path, newTokenPayload(name))
	return decode(res, func(t PermanentToken) bool { return t.Token != "" })
}

func (c *Client) get(ctx context.Context, name, token, path string) *types.RequestResult {
	return c.doer.Execute(ctx, &types.HttpRequest{
		Name:   name,
		Method: http.MethodGet,
		URL:    c.baseURL + path,
		Token:  token,
	})
}

func (c *Client) post(ctx context.Context, name, token, path string, payload interface{}) *types.RequestResult {
	body, err := json.Marshal(payload)
	if err != nil {
		// payloads are fixed structs and always marshal
		return &types.RequestResult{Name: name, Method: http.MethodPost, URL: c.baseURL + path, Error: err.Error()}
	}
	return c.doer.Execute(ctx, &types.HttpRequest{
		Name:   name,
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Body:   string(body),
		Token:  token,
	})
}
