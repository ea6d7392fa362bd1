// Package importer loads catalog titles from a markdown table:
//
//	| name    | year | category | genre         | description |
//	|---------|------|----------|---------------|-------------|
//	| Solaris | 1972 | Film     | Drama, Sci-Fi | ...         |
//
// Columns are matched by header name; only name and year are required.
// Several genres in one cell are separated by commas. Categories and genres
// that do not exist yet are created with a slug derived from their name.
package importer

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/services"
)

// maxTagLen bounds tag names and slugs.
const maxTagLen = 20

// Row is one title parsed from the table.
type Row struct {
	Line        int
	Name        string
	Year        int
	Category    string
	Genres      []string
	Description string
}

// ParseMarkdown reads the first table in r. Text outside the table and
// separator rows are ignored.
func ParseMarkdown(r io.Reader) ([]Row, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		header map[string]int
		rows   []Row
		line   int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(text, "|") || !strings.HasSuffix(text, "|") {
			if header != nil && text != "" {
				// The table ended.
				break
			}
			continue
		}
		cells := splitRow(text)
		if isSeparator(cells) {
			continue
		}
		if header == nil {
			h, err := parseHeader(cells)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			header = h
			continue
		}
		row, err := parseRow(header, cells)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		row.Line = line
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read markdown")
	}
	if header == nil {
		return nil, errors.New("no table found")
	}
	return rows, nil
}

func splitRow(line string) []string {
	cols := strings.Split(strings.Trim(line, "|"), "|")
	for i, c := range cols {
		cols[i] = strings.TrimSpace(c)
	}
	return cols
}

// isSeparator reports whether every cell is made of dashes and colons only.
func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func parseHeader(cells []string) (map[string]int, error) {
	h := make(map[string]int, len(cells))
	for i, c := range cells {
		name := strings.ToLower(c)
		if name == "genres" {
			name = "genre"
		}
		h[name] = i
	}
	for _, req := range []string{"name", "year"} {
		if _, ok := h[req]; !ok {
			return nil, errors.Errorf("missing %q column", req)
		}
	}
	return h, nil
}

func parseRow(header map[string]int, cells []string) (Row, error) {
	cell := func(name string) string {
		i, ok := header[name]
		if !ok || i >= len(cells) {
			return ""
		}
		return cells[i]
	}

	row := Row{
		Name:        cell("name"),
		Category:    cell("category"),
		Description: cell("description"),
	}
	if row.Name == "" {
		return Row{}, errors.New("empty name")
	}
	year, err := strconv.Atoi(cell("year"))
	if err != nil {
		return Row{}, errors.Errorf("year %q is not a number", cell("year"))
	}
	row.Year = year
	for _, g := range strings.Split(cell("genre"), ",") {
		if g = strings.TrimSpace(g); g != "" {
			row.Genres = append(row.Genres, g)
		}
	}
	return row, nil
}

// Slugify folds s to a lowercase ASCII slug of at most 20 characters:
// accents are dropped and every other run of non-alphanumerics becomes "-".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxTagLen {
		slug = strings.TrimRight(slug[:maxTagLen], "-")
	}
	return slug
}

// CatalogWriter creates categories and genres.
type CatalogWriter interface {
	CreateCategory(ctx context.Context, in services.TagInput) (*domain.Category, error)
	CreateGenre(ctx context.Context, in services.TagInput) (*domain.Genre, error)
}

// TitleWriter creates titles.
type TitleWriter interface {
	Create(ctx context.Context, in services.TitleInput) (*services.TitleView, error)
}

// Report summarizes an import.
type Report struct {
	Titles     int
	Categories int
	Genres     int
	// Skipped holds one error per row rejected by validation.
	Skipped []error
}

// Importer writes parsed rows through the catalog services, so the search
// index and validation rules apply as for API writes.
type Importer struct {
	Catalog CatalogWriter
	Titles  TitleWriter
	Logger  zerolog.Logger
}

// Import creates every row. Rows that fail validation are skipped and
// reported; any other error stops the import.
func (im *Importer) Import(ctx context.Context, rows []Row) (Report, error) {
	var rep Report
	categories := map[string]bool{}
	genres := map[string]bool{}

	for _, row := range rows {
		row := row // per-iteration copy: &row.Year must not alias across rows (go < 1.22)
		in := services.TitleInput{
			Name: row.Name,
			Year: &row.Year,
		}
		if row.Description != "" {
			d := row.Description
			in.Description = &d
		}

		if row.Category != "" {
			slug, created, err := im.ensure(ctx, categories, row.Category, im.createCategory)
			if err != nil {
				return rep, errors.Wrapf(err, "line %d: category %q", row.Line, row.Category)
			}
			if created {
				rep.Categories++
			}
			in.Category = slug
		}
		for _, g := range row.Genres {
			slug, created, err := im.ensure(ctx, genres, g, im.createGenre)
			if err != nil {
				return rep, errors.Wrapf(err, "line %d: genre %q", row.Line, g)
			}
			if created {
				rep.Genres++
			}
			in.Genre = append(in.Genre, slug)
		}

		t, err := im.Titles.Create(ctx, in)
		if errors.Is(err, services.ErrValidation) {
			rep.Skipped = append(rep.Skipped, errors.Wrapf(err, "line %d", row.Line))
			im.Logger.Warn().Int("line", row.Line).Err(err).Msg("row skipped")
			continue
		}
		if err != nil {
			return rep, errors.Wrapf(err, "line %d", row.Line)
		}
		rep.Titles++
		im.Logger.Debug().Int64("title_id", t.ID).Str("name", t.Name).Msg("title imported")
	}
	return rep, nil
}

// ensure creates the tag named name unless seen already holds its slug. An
// existing slug in the store counts as success.
func (im *Importer) ensure(ctx context.Context, seen map[string]bool, name string,
	create func(context.Context, services.TagInput) error) (slug string, created bool, err error) {
	slug = Slugify(name)
	if slug == "" {
		return "", false, errors.New("name has no usable characters for a slug")
	}
	if seen[slug] {
		return slug, false, nil
	}
	err = create(ctx, services.TagInput{Name: truncateRunes(name, maxTagLen), Slug: slug})
	switch {
	case err == nil:
		created = true
	case errors.Is(err, services.ErrDuplicateSlug):
	default:
		return "", false, err
	}
	seen[slug] = true
	return slug, created, nil
}

func (im *Importer) createCategory(ctx context.Context, in services.TagInput) error {
	_, err := im.Catalog.CreateCategory(ctx, in)
	return err
}

func (im *Importer) createGenre(ctx context.Context, in services.TagInput) error {
	_, err := im.Catalog.CreateGenre(ctx, in)
	return err
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
