package tracker

// Fixed identifiers of the demo tracker instance
const (
	DemoProjectID     = "0-0"
	YouTrackServiceID = "1499eb36-a7a4-4759-b300-1b4c0ca0de46"
	HubServiceID      = "0-0-0-0-0"
	DefaultPassword   = "$youtrack123"
)

// Response models. Only the fields the flows read are decoded.

// Draft is an issue draft owned by the current user
type Draft struct {
	ID string `json:"id"`
}

// IssueRef identifies an issue. Ranked lists only fill ID; the bulk getter
// and single-issue view fill the rest.
type IssueRef struct {
	ID          string `json:"id"`
	IDReadable  string `json:"idReadable,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
}

// SortedIssues is the ranked issue list
type SortedIssues struct {
	Tree []IssueRef `json:"tree"`
}

// IDs returns the issue ids in ranking order
func (s SortedIssues) IDs() []string {
	ids := make([]string, 0, len(s.Tree))
	for _, ref := range s.Tree {
		ids = append(ids, ref.ID)
	}
	return ids
}

// IssueCount is the issue-count summary for a query
type IssueCount struct {
	Count int `json:"count"`
}

// HubUser is a created account
type HubUser struct {
	ID string `json:"id"`
}

// PermanentToken is an issued access token
type PermanentToken struct {
	Token string `json:"token"`
}

// Ack is decoded from responses whose body the flows never read
type Ack struct{}

// Request payloads

// IssueDraft is the content written into a draft or a new issue
type IssueDraft struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Project     ProjectRef `json:"project"`
}

// ProjectRef references a project by database id
type ProjectRef struct {
	ID string `json:"id"`
}

type idRef struct {
	ID string `json:"id"`
}

type commandPayload struct {
	Query   string  `json:"query"`
	Comment string  `json:"comment,omitempty"`
	Issues  []idRef `json:"issues"`
}

type assistPayload struct {
	Query  string  `json:"query"`
	Caret  int     `json:"caret"`
	Issues []idRef `json:"issues,omitempty"`
}

type countPayload struct {
	Folder *string `json:"folder"`
	Query  string  `json:"query"`
}

type hubUserPayload struct {
	Details []userDetails `json:"details"`
	Name    string        `json:"name"`
}

type userDetails struct {
	Type                   string        `json:"type"`
	Email                  emailDetails  `json:"email"`
	Password               plainPassword `json:"password"`
	PasswordChangeRequired bool          `json:"passwordChangeRequired"`
}

type emailDetails struct {
	Type     string `json:"type"`
	Verified bool   `json:"verified"`
	Email    string `json:"email"`
}

type plainPassword struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type tokenPayload struct {
	Scope []tokenScope `json:"scope"`
	Name  string       `json:"name"`
}

type tokenScope struct {
	ID    string       `json:"id"`
	Key   string       `json:"key"`
	Label string       `json:"label"`
	Data  scopeService `json:"data"`
}

type scopeService struct {
	Type            string `json:"type"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	ApplicationName string `json:"applicationName"`
}

func newHubUserPayload(email, name string) hubUserPayload {
	return hubUserPayload{
		Details: []userDetails{{
			Type: "EmailuserdetailsJSON",
			Email: emailDetails{
				Type:     "EmailJSON",
				Verified: true,
				Email:    email,
			},
			Password: plainPassword{
				Type:  "PlainpasswordJSON",
				Value: DefaultPassword,
			},
			PasswordChangeRequired: false,
		}},
		Name: name,
	}
}

// newTokenPayload scopes a token to YouTrack and its administration service.
// The administration entry's data id is the YouTrack service id, as the
// Hub instance expects.
func newTokenPayload(name string) tokenPayload {
	return tokenPayload{
		Scope: []tokenScope{
			{
				ID:    YouTrackServiceID,
				Key:   YouTrackServiceID,
				Label: "YouTrack",
				Data: scopeService{
					Type:            "service",
					ID:              YouTrackServiceID,
					Name:            "YouTrack",
					ApplicationName: "YouTrack",
				},
			},
			{
				ID:    HubServiceID,
				Key:   HubServiceID,
				Label: "YouTrack Administration",
				Data: scopeService{
					Type:            "service",
					ID:              YouTrackServiceID,
					Name:            "YouTrack Administration",
					ApplicationName: "Hub",
				},
			},
		},
		Name: name,
	}
}

func idRefs(ids []string) []idRef {
	refs := make([]idRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, idRef{ID: id})
	}
	return refs
}
