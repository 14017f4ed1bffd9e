/*
Package results keeps a history of solver runs in a SQLite database, so convergence studies can
be compared across invocations.
*/
package results

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one solve of a model problem on one mesh.
type Run struct {
	ID         int64
	Problem    string
	Mesh       string
	Degree     int
	NDof       int
	H          float64
	L2Error    float64
	H1Error    sql.NullFloat64
	Iterations int
	CreatedAt  time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path; ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// an in-memory database lives and dies with its connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		problem TEXT NOT NULL,
		mesh TEXT NOT NULL,
		degree INTEGER NOT NULL,
		ndof INTEGER NOT NULL,
		h REAL NOT NULL,
		l2_error REAL NOT NULL,
		h1_error REAL,
		iterations INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_problem ON runs(problem, degree);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores r and sets its ID.
func (s *Store) Insert(ctx context.Context, r *Run) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (problem, mesh, degree, ndof, h, l2_error, h1_error, iterations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Problem, r.Mesh, r.Degree, r.NDof, r.H, r.L2Error, r.H1Error, r.Iterations)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}
	return nil
}

// Runs lists the runs of a problem and degree in insertion order; an empty problem matches all.
func (s *Store) Runs(ctx context.Context, problem string, degree int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, problem, mesh, degree, ndof, h, l2_error, h1_error, iterations, created_at
		FROM runs
		WHERE (? = '' OR problem = ?) AND (? <= 0 OR degree = ?)
		ORDER BY id
	`, problem, problem, degree, degree)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Problem, &r.Mesh, &r.Degree, &r.NDof, &r.H, &r.L2Error,
			&r.H1Error, &r.Iterations, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

func (s *Store) Delete(ctx context.Context, problem string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE problem = ?`, problem)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

/*
ConvergenceOrders returns log(e_k/e_k+1) / log(h_k/h_k+1) between consecutive runs, which should
be sorted from coarse to fine. Pairs with a zero error or equal mesh sizes give NaN.
*/
func ConvergenceOrders(runs []Run) (orders []float64) {
	for k := 0; k+1 < len(runs); k++ {
		var (
			a, b  = runs[k], runs[k+1]
			ratio = math.Log(a.H / b.H)
		)
		if ratio == 0 || a.L2Error <= 0 || b.L2Error <= 0 {
			orders = append(orders, math.NaN())
			continue
		}
		orders = append(orders, math.Log(a.L2Error/b.L2Error)/ratio)
	}
	return
}
