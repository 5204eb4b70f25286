package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rent-radar/internal/domain"
	"rent-radar/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.ListingRepo    = (*Postgres)(nil)
	_ domain.SubscriberRepo = (*Postgres)(nil)
	_ domain.ReferralRepo   = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

const listingColumns = "post_id, title, COALESCE(price,''), COALESCE(neighborhood,''), url, created_at, notified_at"

func scanListing(row pgx.Row) (domain.Listing, error) {
	var (
		l        domain.Listing
		notified sql.NullTime
	)
	if err := row.Scan(&l.PostID, &l.Title, &l.Price, &l.Neighborhood, &l.URL, &l.CreatedAt, &notified); err != nil {
		return domain.Listing{}, err
	}
	if notified.Valid {
		ts := notified.Time
		l.NotifiedAt = &ts
	}
	return l, nil
}

func (p *Postgres) queryListings(query string, args ...any) ([]domain.Listing, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// InsertListing сохраняет объявление, если его ещё нет. false — уже было.
func (p *Postgres) InsertListing(l domain.Listing) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO listings (post_id, title, price, neighborhood, url)
VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5)
ON CONFLICT (post_id) DO NOTHING
`, l.PostID, l.Title, l.Price, l.Neighborhood, l.URL)
	metrics.ObserveNetworkRequest("postgres", "listings_insert", "listings", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListUnnotified возвращает неразосланные объявления в порядке создания.
func (p *Postgres) ListUnnotified(limit int) ([]domain.Listing, error) {
	query := fmt.Sprintf(`
SELECT %s FROM listings
WHERE notified_at IS NULL
ORDER BY id ASC
`, listingColumns)
	start := time.Now()
	var (
		listings []domain.Listing
		err      error
	)
	if limit > 0 {
		listings, err = p.queryListings(query+" LIMIT $1", limit)
	} else {
		listings, err = p.queryListings(query)
	}
	metrics.ObserveNetworkRequest("postgres", "listings_list_unnotified", "listings", start, err)
	return listings, err
}

// MarkNotified проставляет notified_at. Уже отмеченные записи не трогаются,
// повторный вызов с теми же идентификаторами безопасен.
func (p *Postgres) MarkNotified(postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE listings SET notified_at = now()
WHERE post_id = ANY($1) AND notified_at IS NULL
`, postIDs)
	metrics.ObserveNetworkRequest("postgres", "listings_mark_notified", "listings", start, err)
	return err
}

// ListRecent возвращает свежие объявления для витрины.
func (p *Postgres) ListRecent(limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`
SELECT %s FROM listings
ORDER BY created_at DESC
LIMIT $1
`, listingColumns)
	start := time.Now()
	listings, err := p.queryListings(query, limit)
	metrics.ObserveNetworkRequest("postgres", "listings_list_recent", "listings", start, err)
	return listings, err
}

// ListFiltered возвращает объявления по фильтру витрины.
// Цена хранится как произвольный текст; для диапазона из неё вырезаются все
// нецифровые символы, нечисловой остаток исключает запись из выборки.
func (p *Postgres) ListFiltered(f domain.ListingFilter) ([]domain.Listing, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if f.MinPrice != nil {
		args = append(args, *f.MinPrice)
		conditions = append(conditions, fmt.Sprintf(`NULLIF(regexp_replace(price, '\D', '', 'g'), '')::bigint >= $%d`, len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		conditions = append(conditions, fmt.Sprintf(`NULLIF(regexp_replace(price, '\D', '', 'g'), '')::bigint <= $%d`, len(args)))
	}
	if f.Neighborhood != "" {
		args = append(args, f.Neighborhood)
		conditions = append(conditions, fmt.Sprintf(`LOWER(neighborhood) = LOWER($%d)`, len(args)))
	}
	if f.Keyword != "" {
		args = append(args, f.Keyword)
		conditions = append(conditions, fmt.Sprintf(`title ILIKE '%%' || $%d || '%%'`, len(args)))
	}

	where := "TRUE"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT %s FROM listings
WHERE %s
ORDER BY created_at DESC
LIMIT $%d
`, listingColumns, where, len(args))

	start := time.Now()
	listings, err := p.queryListings(query, args...)
	metrics.ObserveNetworkRequest("postgres", "listings_list_filtered", "listings", start, err)
	return listings, err
}

// CountListings считает сохранённые объявления.
func (p *Postgres) CountListings() (int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "listings_count", "listings", start, err)
	return count, err
}

// ListNeighborhoods возвращает районы: при limit > 0 — свежие,
// иначе все по алфавиту.
func (p *Postgres) ListNeighborhoods(limit int) ([]string, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	start := time.Now()
	if limit > 0 {
		rows, err = p.pool.Query(ctx, `
SELECT neighborhood FROM listings
WHERE neighborhood IS NOT NULL AND neighborhood != ''
GROUP BY neighborhood
ORDER BY MAX(created_at) DESC
LIMIT $1
`, limit)
	} else {
		rows, err = p.pool.Query(ctx, `
SELECT DISTINCT neighborhood FROM listings
WHERE neighborhood IS NOT NULL AND neighborhood != ''
ORDER BY neighborhood ASC
`)
	}
	metrics.ObserveNetworkRequest("postgres", "listings_list_neighborhoods", "listings", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hoods []string
	for rows.Next() {
		var hood string
		if err := rows.Scan(&hood); err != nil {
			return nil, err
		}
		hoods = append(hoods, hood)
	}
	return hoods, rows.Err()
}
