package connectivity

// Schema is the routes table read by Reload.
//
// Strategies:
//   - "local": the handler registered with RegisterLocal.
//   - "http":  POST to endpoint through HTTPFactory.
//   - "noop":  succeed with an empty response (disables a service).
//
// config holds per-route JSON such as {"timeout_ms": 5000}.
const Schema = `
CREATE TABLE IF NOT EXISTS routes (
    service_name TEXT PRIMARY KEY,
    strategy     TEXT NOT NULL CHECK(strategy IN ('local', 'http', 'noop')),
    endpoint     TEXT,
    config       TEXT DEFAULT '{}',
    updated_at   INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TRIGGER IF NOT EXISTS trg_routes_updated_at
AFTER UPDATE ON routes
FOR EACH ROW
BEGIN
    UPDATE routes SET updated_at = strftime('%s', 'now') WHERE service_name = NEW.service_name;
END;
`
