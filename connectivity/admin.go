package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/autofill/horosafe"
)

// Admin edits the routes table. A running Watch picks the edits up.
type Admin struct {
	db *sql.DB
}

// NewAdmin creates an Admin on a database that has Schema applied.
func NewAdmin(db *sql.DB) *Admin {
	return &Admin{db: db}
}

// RouteRow is one row of the routes table.
type RouteRow struct {
	ServiceName string          `json:"service_name"`
	Strategy    string          `json:"strategy"`
	Endpoint    string          `json:"endpoint,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	UpdatedAt   int64           `json:"updated_at"`
}

// ListRoutes returns every route ordered by service name.
func (a *Admin) ListRoutes(ctx context.Context) ([]RouteRow, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT service_name, strategy, COALESCE(endpoint, ''), COALESCE(config, '{}'), updated_at FROM routes ORDER BY service_name`)
	if err != nil {
		return nil, fmt.Errorf("connectivity: list routes: %w", err)
	}
	defer rows.Close()

	var result []RouteRow
	for rows.Next() {
		var r RouteRow
		var cfgStr string
		if err := rows.Scan(&r.ServiceName, &r.Strategy, &r.Endpoint, &cfgStr, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("connectivity: scan route: %w", err)
		}
		r.Config = json.RawMessage(cfgStr)
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetRoute returns the route for serviceName, or nil if there is none.
func (a *Admin) GetRoute(ctx context.Context, serviceName string) (*RouteRow, error) {
	var r RouteRow
	var cfgStr string
	err := a.db.QueryRowContext(ctx,
		`SELECT service_name, strategy, COALESCE(endpoint, ''), COALESCE(config, '{}'), updated_at FROM routes WHERE service_name = ?`,
		serviceName).Scan(&r.ServiceName, &r.Strategy, &r.Endpoint, &cfgStr, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connectivity: get route: %w", err)
	}
	r.Config = json.RawMessage(cfgStr)
	return &r, nil
}

// UpsertRoute inserts or replaces the route for serviceName.
func (a *Admin) UpsertRoute(ctx context.Context, serviceName, strategy, endpoint string, config json.RawMessage) error {
	if err := horosafe.ValidateIdentifier(serviceName); err != nil {
		return fmt.Errorf("connectivity: upsert route: %w", err)
	}
	if config == nil {
		config = json.RawMessage(`{}`)
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO routes (service_name, strategy, endpoint, config)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(service_name) DO UPDATE SET
		     strategy = excluded.strategy,
		     endpoint = excluded.endpoint,
		     config   = excluded.config`,
		serviceName, strategy, endpoint, string(config))
	if err != nil {
		return fmt.Errorf("connectivity: upsert route: %w", err)
	}
	return nil
}

// DeleteRoute removes the route for serviceName. A missing route is
// reported as *ErrServiceNotFound.
func (a *Admin) DeleteRoute(ctx context.Context, serviceName string) error {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM routes WHERE service_name = ?`, serviceName)
	if err != nil {
		return fmt.Errorf("connectivity: delete route: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &ErrServiceNotFound{Service: serviceName}
	}
	return nil
}
