package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout matches SQLite's CURRENT_TIMESTAMP so explicit and
// default values sort together.
const timestampLayout = "2006-01-02 15:04:05"

// Injection is one script execution recorded by the web-view bridge.
type Injection struct {
	// ID is the unique identifier of the row.
	ID int64

	// Site is the catalogue site the page belonged to.
	Site string

	// URL is the page URL with query and fragment removed.
	URL string

	// Features are the enabled features the script was generated from.
	Features []string

	// Digest is the SHA3-256 hex digest of the executed script.
	Digest string

	// Timestamp is when the script was executed, in UTC.
	Timestamp time.Time
}

// RecordInjection appends an entry to the injection log. It matches the
// web-view bridge's Recorder interface.
func (d *DB) RecordInjection(ctx context.Context, site, url string, features []string, digest string) error {
	_, err := d.InsertInjection(ctx, &Injection{
		Site:      site,
		URL:       url,
		Features:  features,
		Digest:    digest,
		Timestamp: time.Now(),
	})
	return err
}

// InsertInjection stores inj and returns its new ID. A zero Timestamp is
// replaced by the current time.
func (d *DB) InsertInjection(ctx context.Context, inj *Injection) (int64, error) {
	features := inj.Features
	if features == nil {
		features = []string{}
	}
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize features: %w", err)
	}

	ts := inj.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
	INSERT INTO injections (site, url, features, digest, timestamp)
	VALUES (?, ?, ?, ?, ?)
	`

	result, err := d.db.ExecContext(ctx, query,
		inj.Site, inj.URL, string(featuresJSON), inj.Digest, ts.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to insert injection: %w", err)
	}
	return result.LastInsertId()
}

// History returns the most recent injections, newest first. An empty site
// returns entries for every site. A non-positive limit returns everything.
func (d *DB) History(ctx context.Context, site string, limit int) ([]Injection, error) {
	query := `
	SELECT id, site, url, features, digest, timestamp
	FROM injections
	WHERE (? = '' OR site = ?)
	ORDER BY id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, query, site, site, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get injection history: %w", err)
	}
	defer rows.Close()

	var results []Injection
	for rows.Next() {
		var (
			inj          Injection
			featuresJSON string
			timestamp    string
		)
		if err := rows.Scan(&inj.ID, &inj.Site, &inj.URL, &featuresJSON, &inj.Digest, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan injection: %w", err)
		}
		inj.Timestamp = parseTimestamp(timestamp)
		if err := json.Unmarshal([]byte(featuresJSON), &inj.Features); err != nil {
			inj.Features = nil
		}
		results = append(results, inj)
	}
	return results, rows.Err()
}

// SitesWithHistory returns the sites that have at least one injection.
func (d *DB) SitesWithHistory(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT site FROM injections ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}
