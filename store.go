package micropub

import (
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// ContentStore is the collaborator that owns content persistence. The
// publish pipeline only depends on this interface; Store is the built-in
// SQLite implementation.
type ContentStore interface {
	// PageExists reports whether the page at path exists. The empty path
	// is the site root and always exists.
	PageExists(path string) (bool, error)
	// SlugTaken reports whether a page (including drafts) with the slug
	// exists under the parent.
	SlugTaken(parent, slug string) (bool, error)
	CreatePage(p NewPage) (*Page, error)
	// AttachFile copies the staged source file into the page's content
	// directory and records its descriptor.
	AttachFile(page *Page, att Attachment, date string) error
	// UpdateFields merges the given fields into the page's content.
	UpdateFields(page *Page, fields Content) error
	// Categories plucks the taxonomy field from the children of parent,
	// split on commas, deduplicated and sorted.
	Categories(parent, taxonomy string) ([]string, error)
}

// NewPage carries everything needed to create a content resource.
type NewPage struct {
	Parent   string
	Slug     string
	Template string
	Status   string
	Language string
	Fields   Content
}

// Page is a stored content resource.
type Page struct {
	Parent   string
	Slug     string
	Template string
	Status   string
	Language string
	Fields   Content
	Created  string
}

// Path returns the page's full path below the site root.
func (p *Page) Path() string {
	if p.Parent == "" {
		return p.Slug
	}
	return p.Parent + "/" + p.Slug
}

// PageFile is a recorded attachment of a page.
type PageFile struct {
	Filename string
	Template string
	Alt      string
	Date     string
}

// Store wraps a SQLite database holding pages and their file descriptors.
// Attached file contents live under contentDir, mirroring the page tree.
type Store struct {
	db         *sql.DB
	contentDir string
}

// NewStore opens (or creates) the SQLite database at dbPath, ensures the
// data and content directories exist, and runs schema migrations.
func NewStore(dbPath, contentDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// WAL plus a busy timeout lets concurrent publish requests wait for
	// the writer instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, contentDir: contentDir}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS pages (
    parent TEXT NOT NULL,
    slug TEXT NOT NULL,
    template TEXT NOT NULL,
    status TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT '',
    fields TEXT NOT NULL,
    created TEXT NOT NULL,
    PRIMARY KEY (parent, slug)
);
CREATE TABLE IF NOT EXISTS files (
    parent TEXT NOT NULL,
    slug TEXT NOT NULL,
    filename TEXT NOT NULL,
    template TEXT NOT NULL,
    alt TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (parent, slug, filename)
);
`)
	return err
}

// PageExists reports whether a page exists at the given path.
func (s *Store) PageExists(p string) (bool, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return true, nil
	}
	parent, slug := splitPath(p)
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pages WHERE parent = ? AND slug = ?`, parent, slug).Scan(&n)
	return n > 0, err
}

// SlugTaken reports whether any page, drafts included, holds the slug
// under the parent.
func (s *Store) SlugTaken(parent, slug string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pages WHERE parent = ? AND slug = ?`, strings.Trim(parent, "/"), slug).Scan(&n)
	return n > 0, err
}

// CreatePage inserts a new page.
func (s *Store) CreatePage(p NewPage) (*Page, error) {
	fields, err := json.Marshal(p.Fields)
	if err != nil {
		return nil, err
	}
	created := p.Fields["date"]
	_, err = s.db.Exec(`INSERT INTO pages (parent, slug, template, status, language, fields, created) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strings.Trim(p.Parent, "/"), p.Slug, p.Template, p.Status, p.Language, string(fields), created)
	if err != nil {
		return nil, err
	}
	return &Page{
		Parent:   strings.Trim(p.Parent, "/"),
		Slug:     p.Slug,
		Template: p.Template,
		Status:   p.Status,
		Language: p.Language,
		Fields:   p.Fields,
		Created:  created,
	}, nil
}

// AttachFile copies the staged file into the page's content directory and
// records the descriptor.
func (s *Store) AttachFile(page *Page, att Attachment, date string) error {
	dir := filepath.Join(s.contentDir, filepath.FromSlash(page.Path()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := copyFile(att.Source, filepath.Join(dir, att.Filename)); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO files (parent, slug, filename, template, alt, date) VALUES (?, ?, ?, ?, ?, ?)`,
		page.Parent, page.Slug, att.Filename, att.Template, att.Alt, date)
	return err
}

// UpdateFields merges fields into the page's stored content.
func (s *Store) UpdateFields(page *Page, fields Content) error {
	for k, v := range fields {
		page.Fields[k] = v
	}
	data, err := json.Marshal(page.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE pages SET fields = ? WHERE parent = ? AND slug = ?`, string(data), page.Parent, page.Slug)
	return err
}

// Categories plucks a comma-separated taxonomy field from the children of
// parent, deduplicated and sorted.
func (s *Store) Categories(parent, taxonomy string) ([]string, error) {
	rows, err := s.db.Query(`SELECT fields FROM pages WHERE parent = ?`, strings.Trim(parent, "/"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var fields Content
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			continue
		}
		for _, v := range strings.Split(fields[taxonomy], ",") {
			if v = strings.TrimSpace(v); v != "" {
				set[v] = struct{}{}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var result []string
	for v := range set {
		result = append(result, v)
	}
	sort.Strings(result)
	return result, nil
}

// GetPage returns the page at the given path, drafts included.
func (s *Store) GetPage(p string) (*Page, error) {
	parent, slug := splitPath(strings.Trim(p, "/"))
	var page Page
	var fields string
	err := s.db.QueryRow(`SELECT parent, slug, template, status, language, fields, created FROM pages WHERE parent = ? AND slug = ?`, parent, slug).
		Scan(&page.Parent, &page.Slug, &page.Template, &page.Status, &page.Language, &fields, &page.Created)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &page.Fields); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListPages returns every page, drafts included, newest first.
func (s *Store) ListPages() ([]Page, error) {
	rows, err := s.db.Query(`SELECT parent, slug, template, status, language, fields, created FROM pages ORDER BY created DESC, slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var page Page
		var fields string
		if err := rows.Scan(&page.Parent, &page.Slug, &page.Template, &page.Status, &page.Language, &fields, &page.Created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &page.Fields); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// ListFiles returns the recorded attachments of a page.
func (s *Store) ListFiles(page *Page) ([]PageFile, error) {
	rows, err := s.db.Query(`SELECT filename, template, alt, date FROM files WHERE parent = ? AND slug = ? ORDER BY filename`, page.Parent, page.Slug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []PageFile
	for rows.Next() {
		var f PageFile
		if err := rows.Scan(&f.Filename, &f.Template, &f.Alt, &f.Date); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func splitPath(p string) (parent, slug string) {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
