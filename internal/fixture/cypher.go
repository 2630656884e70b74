package fixture

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/model"
)

// ReadCypher reads a Cypher script and splits it into statements
func ReadCypher(fsys fs.FS, path string) ([]string, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return SplitStatements(string(data)), nil
}

// SplitStatements splits a script on semicolons outside string literals
// and drops // comment lines and empty statements. Inside a literal a
// backslash escapes the next character.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
		quote      rune
		escaped    bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		if quote == 0 && strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		for _, r := range line {
			switch {
			case escaped:
				escaped = false
			case quote != 0:
				switch r {
				case '\\':
					escaped = true
				case quote:
					quote = 0
				}
			case r == '\'' || r == '"':
				quote = r
			case r == ';':
				flush()
				continue
			}
			current.WriteRune(r)
		}
		current.WriteByte('\n')
	}
	flush()
	return statements
}

// ImportCypher runs each statement in one transaction; the embedded store
// does not execute free-form Cypher and reports driver.ErrUnsupportedStatement
func ImportCypher(ctx context.Context, drv driver.Driver, statements []string) (model.QueryStatistics, error) {
	var stats model.QueryStatistics

	tx, err := drv.BeginTransaction(ctx, driver.AccessModeWrite)
	if err != nil {
		return stats, err
	}
	for i, text := range statements {
		resp, err := tx.Request(ctx, cypher.RawQuery{Text: text})
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return stats, fmt.Errorf("statement %d: %w (rollback failed: %v)", i+1, err, rbErr)
			}
			return stats, fmt.Errorf("statement %d: %w", i+1, err)
		}
		stats.Add(resp.Statistics)
	}
	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("failed to commit script: %w", err)
	}
	return stats, nil
}
