package fixtures

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Feed file names inside the feeds directory
const (
	TokensFile       = "tokens.csv"
	SummariesFile    = "summaries.csv"
	DescriptionsFile = "descriptions.csv"
	CommentsFile     = "comments.csv"
	QueriesFile      = "queries.csv"
	UsersFile        = "users.csv"

	// generated query terms are drawn from this many leading rows
	queryTermRows = 20
)

var (
	// ErrEmptyFixture is returned when a required feed has no rows
	ErrEmptyFixture = errors.New("fixture has no rows")
)

// Column is an immutable list of values from one feed
type Column []string

// Pick returns a value chosen by intn, which must return a value in [0, n)
// like rand.Intn. It panics on an empty column, which Load never produces.
func (c Column) Pick(intn func(n int) int) string {
	return c[intn(len(c))]
}

// User is one row of users.csv
type User struct {
	Email string
	Name  string
}

// Dataset is the fixture data shared read-only by every scenario execution
type Dataset struct {
	Tokens       Column
	Summaries    Column
	Descriptions Column
	Comments     Column
	Queries      Column
	Users        []User
}

// Requirement selects which feeds Load must find
type Requirement int

const (
	// NeedIssues requires tokens, summaries and descriptions
	NeedIssues Requirement = 1 << iota
	// NeedUsers requires users.csv
	NeedUsers
)

// Load reads the feeds in dir. Required feeds must exist and be non-empty;
// optional feeds fall back to derived data.
func Load(dir string, need Requirement) (*Dataset, error) {
	ds := &Dataset{}

	if need&NeedUsers != 0 {
		rows, err := readRows(filepath.Join(dir, UsersFile), true)
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			if len(row) < 2 {
				return nil, fmt.Errorf("%s line %d: expected email,name", UsersFile, i+1)
			}
			ds.Users = append(ds.Users, User{Email: strings.TrimSpace(row[0]), Name: strings.TrimSpace(row[1])})
		}
	}

	if need&NeedIssues == 0 {
		return ds, nil
	}

	var err error
	if ds.Tokens, err = readColumn(filepath.Join(dir, TokensFile), true); err != nil {
		return nil, err
	}
	if ds.Summaries, err = readColumn(filepath.Join(dir, SummariesFile), true); err != nil {
		return nil, err
	}
	if ds.Descriptions, err = readColumn(filepath.Join(dir, DescriptionsFile), true); err != nil {
		return nil, err
	}

	if ds.Comments, err = readColumn(filepath.Join(dir, CommentsFile), false); err != nil {
		return nil, err
	}
	if len(ds.Comments) == 0 {
		ds.Comments = ds.Descriptions
	}

	if ds.Queries, err = readColumn(filepath.Join(dir, QueriesFile), false); err != nil {
		return nil, err
	}
	if len(ds.Queries) == 0 {
		users := ds.Users
		if users == nil {
			// users.csv is optional here, only used for assignee queries
			if rows, err := readRows(filepath.Join(dir, UsersFile), false); err == nil {
				for _, row := range rows {
					if len(row) >= 2 {
						users = append(users, User{Email: row[0], Name: strings.TrimSpace(row[1])})
					}
				}
			}
		}
		ds.Queries = GenerateQueries(ds.Summaries, users)
	}

	return ds, nil
}

// GenerateQueries builds search queries from the leading rows of the
// datasets: an assignee query per user and every distinct summary word.
// The result is sorted so generated datasets are reproducible.
func GenerateQueries(summaries Column, users []User) Column {
	var queries Column
	for i, u := range users {
		if i >= queryTermRows {
			break
		}
		queries = append(queries, fmt.Sprintf("assignee: %s", strings.Join(strings.Fields(u.Name), "_")))
	}

	words := make(map[string]struct{})
	for i, s := range summaries {
		if i >= queryTermRows {
			break
		}
		for _, w := range strings.Fields(s) {
			words[w] = struct{}{}
		}
	}
	terms := make([]string, 0, len(words))
	for w := range words {
		terms = append(terms, w)
	}
	sort.Strings(terms)
	return append(queries, terms...)
}

// readColumn returns the first column of every non-blank row
func readColumn(path string, required bool) (Column, error) {
	rows, err := readRows(path, required)
	if err != nil {
		return nil, err
	}
	col := make(Column, 0, len(rows))
	for _, row := range rows {
		col = append(col, row[0])
	}
	return col, nil
}

// readRows parses a header-less CSV file. Rows may have any number of
// columns; blank rows are skipped.
func readRows(path string, required bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		rows = append(rows, record)
	}

	if required && len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFixture)
	}
	return rows, nil
}
