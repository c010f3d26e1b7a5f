package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agent-hr/agenthr/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'draft',
			tags TEXT,
			department TEXT,
			usage_notes TEXT,
			current_version_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS agent_versions (
			version_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			version_number INTEGER NOT NULL,
			parent_version_id TEXT,
			change_type TEXT NOT NULL,
			change_summary TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (agent_id) REFERENCES agents(agent_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_versions_agent ON agent_versions(agent_id, version_number)`,
		`CREATE TABLE IF NOT EXISTS components (
			component_id TEXT PRIMARY KEY,
			version_id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			content TEXT,
			config TEXT,
			source_path TEXT,
			memory_type TEXT,
			FOREIGN KEY (version_id) REFERENCES agent_versions(version_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_components_version ON components(version_id)`,
		`CREATE TABLE IF NOT EXISTS registry_components (
			component_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			content TEXT,
			tags TEXT,
			owner_id TEXT NOT NULL,
			visibility TEXT NOT NULL DEFAULT 'private',
			status TEXT NOT NULL DEFAULT 'draft',
			entitlement_type TEXT NOT NULL DEFAULT 'open',
			version TEXT NOT NULL DEFAULT '1.0.0',
			metadata TEXT,
			published_at DATETIME,
			deprecation_reason TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_id TEXT PRIMARY KEY,
			component_id TEXT NOT NULL,
			version_label TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			content TEXT,
			created_by TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (component_id) REFERENCES registry_components(component_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_component ON snapshots(component_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS grants (
			grant_id TEXT PRIMARY KEY,
			component_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			access_level TEXT NOT NULL DEFAULT 'viewer',
			granted_by TEXT,
			granted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME,
			revoked_at DATETIME,
			FOREIGN KEY (component_id) REFERENCES registry_components(component_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_grants_component_agent ON grants(component_id, agent_id)`,
		`CREATE TABLE IF NOT EXISTS access_requests (
			request_id TEXT PRIMARY KEY,
			component_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			requested_level TEXT NOT NULL,
			requested_by TEXT,
			requested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'pending',
			resolved_by TEXT,
			resolved_at DATETIME,
			denial_reason TEXT,
			FOREIGN KEY (component_id) REFERENCES registry_components(component_id)
		)`,
		`CREATE TABLE IF NOT EXISTS registry_refs (
			ref_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			component_id TEXT NOT NULL,
			added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			added_by TEXT,
			UNIQUE (agent_id, component_id),
			FOREIGN KEY (agent_id) REFERENCES agents(agent_id),
			FOREIGN KEY (component_id) REFERENCES registry_components(component_id)
		)`,
		`CREATE TABLE IF NOT EXISTS deployments (
			deployment_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			version_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			container_id TEXT,
			image_id TEXT,
			port INTEGER,
			error_message TEXT,
			created_by TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at DATETIME,
			stopped_at DATETIME,
			FOREIGN KEY (agent_id) REFERENCES agents(agent_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deployments_agent ON deployments(agent_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(tags)
	return string(data)
}

func unmarshalTags(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw.String), &tags); err != nil {
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// CreateAgent creates a new agent.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (agent_id, name, description, status, tags, department, usage_notes, current_version_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agent.AgentID, agent.Name, agent.Description, agent.Status, marshalTags(agent.Tags),
		agent.Department, agent.UsageNotes, nullStr(agent.CurrentVersionID), agent.CreatedAt, agent.UpdatedAt)
	return err
}

func scanAgent(row interface{ Scan(...interface{}) error }) (*domain.Agent, error) {
	var agent domain.Agent
	var description, tags, department, usageNotes, currentVersionID sql.NullString
	var deletedAt sql.NullTime
	err := row.Scan(&agent.AgentID, &agent.Name, &description, &agent.Status, &tags,
		&department, &usageNotes, &currentVersionID, &agent.CreatedAt, &agent.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	agent.Description = description.String
	agent.Tags = unmarshalTags(tags)
	agent.Department = department.String
	agent.UsageNotes = usageNotes.String
	agent.CurrentVersionID = currentVersionID.String
	if deletedAt.Valid {
		agent.DeletedAt = &deletedAt.Time
	}
	return &agent, nil
}

const agentColumns = `agent_id, name, description, status, tags, department, usage_notes, current_version_id, created_at, updated_at, deleted_at`

// GetAgent retrieves a non-deleted agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE agent_id = ? AND deleted_at IS NULL`, agentID)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// ListAgents lists all non-deleted agents.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// UpdateAgent updates an agent's mutable fields.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, agent *domain.Agent) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET name = ?, description = ?, status = ?, tags = ?, department = ?, usage_notes = ?, updated_at = ?
		 WHERE agent_id = ? AND deleted_at IS NULL`,
		agent.Name, agent.Description, agent.Status, marshalTags(agent.Tags),
		agent.Department, agent.UsageNotes, time.Now(), agent.AgentID)
	return err
}

// SoftDeleteAgent marks an agent as deleted.
func (s *SQLiteStore) SoftDeleteAgent(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET deleted_at = ? WHERE agent_id = ? AND deleted_at IS NULL`,
		time.Now(), agentID)
	return err
}

// SetCurrentVersion points an agent at a version.
func (s *SQLiteStore) SetCurrentVersion(ctx context.Context, agentID, versionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET current_version_id = ?, updated_at = ? WHERE agent_id = ?`,
		versionID, time.Now(), agentID)
	return err
}

// CreateVersion creates a new agent version.
func (s *SQLiteStore) CreateVersion(ctx context.Context, version *domain.AgentVersion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_versions (version_id, agent_id, version_number, parent_version_id, change_type, change_summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		version.VersionID, version.AgentID, version.VersionNumber, nullStr(version.ParentVersionID),
		version.ChangeType, version.ChangeSummary, version.CreatedAt)
	return err
}

// GetVersion retrieves a version by ID.
func (s *SQLiteStore) GetVersion(ctx context.Context, versionID string) (*domain.AgentVersion, error) {
	var v domain.AgentVersion
	var parentVersionID, changeSummary sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT version_id, agent_id, version_number, parent_version_id, change_type, change_summary, created_at
		 FROM agent_versions WHERE version_id = ?`, versionID).
		Scan(&v.VersionID, &v.AgentID, &v.VersionNumber, &parentVersionID, &v.ChangeType, &changeSummary, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.ParentVersionID = parentVersionID.String
	v.ChangeSummary = changeSummary.String
	return &v, nil
}

// ListVersions lists an agent's versions, newest first.
func (s *SQLiteStore) ListVersions(ctx context.Context, agentID string) ([]domain.AgentVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, agent_id, version_number, parent_version_id, change_type, change_summary, created_at
		 FROM agent_versions WHERE agent_id = ? ORDER BY version_number DESC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []domain.AgentVersion
	for rows.Next() {
		var v domain.AgentVersion
		var parentVersionID, changeSummary sql.NullString
		if err := rows.Scan(&v.VersionID, &v.AgentID, &v.VersionNumber, &parentVersionID, &v.ChangeType, &changeSummary, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.ParentVersionID = parentVersionID.String
		v.ChangeSummary = changeSummary.String
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// CreateComponent creates a versioned component.
func (s *SQLiteStore) CreateComponent(ctx context.Context, component *domain.Component) error {
	config := ""
	if component.Config != nil {
		config = string(component.Config)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO components (component_id, version_id, type, name, description, content, config, source_path, memory_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		component.ComponentID, component.VersionID, component.Type, component.Name,
		component.Description, component.Content, config, component.SourcePath, nullStr(string(component.MemoryType)))
	return err
}

// ListComponents lists the components of a version.
func (s *SQLiteStore) ListComponents(ctx context.Context, versionID string) ([]domain.Component, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT component_id, version_id, type, name, description, content, config, source_path, memory_type
		 FROM components WHERE version_id = ? ORDER BY type, name`, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var components []domain.Component
	for rows.Next() {
		var c domain.Component
		var description, content, config, sourcePath, memoryType sql.NullString
		if err := rows.Scan(&c.ComponentID, &c.VersionID, &c.Type, &c.Name, &description, &content, &config, &sourcePath, &memoryType); err != nil {
			return nil, err
		}
		c.Description = description.String
		c.Content = content.String
		if config.Valid && config.String != "" {
			c.Config = json.RawMessage(config.String)
		}
		c.SourcePath = sourcePath.String
		c.MemoryType = domain.MemoryType(memoryType.String)
		components = append(components, c)
	}
	return components, rows.Err()
}

// CreateRegistryComponent creates a shared registry component.
func (s *SQLiteStore) CreateRegistryComponent(ctx context.Context, rc *domain.RegistryComponent) error {
	metadata := ""
	if rc.Metadata != nil {
		metadata = string(rc.Metadata)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_components (component_id, type, name, description, content, tags, owner_id, visibility, status, entitlement_type, version, metadata, published_at, deprecation_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ComponentID, rc.Type, rc.Name, rc.Description, rc.Content, marshalTags(rc.Tags),
		rc.OwnerID, rc.Visibility, rc.Status, rc.Entitlement, rc.Version, metadata,
		nullTime(rc.PublishedAt), rc.DeprecationReason, rc.CreatedAt, rc.UpdatedAt)
	return err
}

const registryColumns = `component_id, type, name, description, content, tags, owner_id, visibility, status, entitlement_type, version, metadata, published_at, deprecation_reason, created_at, updated_at, deleted_at`

func scanRegistryComponent(row interface{ Scan(...interface{}) error }) (*domain.RegistryComponent, error) {
	var rc domain.RegistryComponent
	var description, content, tags, metadata, deprecationReason sql.NullString
	var publishedAt, deletedAt sql.NullTime
	err := row.Scan(&rc.ComponentID, &rc.Type, &rc.Name, &description, &content, &tags,
		&rc.OwnerID, &rc.Visibility, &rc.Status, &rc.Entitlement, &rc.Version, &metadata,
		&publishedAt, &deprecationReason, &rc.CreatedAt, &rc.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	rc.Description = description.String
	rc.Content = content.String
	rc.Tags = unmarshalTags(tags)
	if metadata.Valid && metadata.String != "" {
		rc.Metadata = json.RawMessage(metadata.String)
	}
	if publishedAt.Valid {
		rc.PublishedAt = &publishedAt.Time
	}
	rc.DeprecationReason = deprecationReason.String
	if deletedAt.Valid {
		rc.DeletedAt = &deletedAt.Time
	}
	return &rc, nil
}

// GetRegistryComponent retrieves a non-deleted registry component by ID.
func (s *SQLiteStore) GetRegistryComponent(ctx context.Context, componentID string) (*domain.RegistryComponent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+registryColumns+` FROM registry_components WHERE component_id = ? AND deleted_at IS NULL`, componentID)
	rc, err := scanRegistryComponent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// ListRegistryComponents lists all non-deleted registry components.
func (s *SQLiteStore) ListRegistryComponents(ctx context.Context) ([]domain.RegistryComponent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+registryColumns+` FROM registry_components WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var components []domain.RegistryComponent
	for rows.Next() {
		rc, err := scanRegistryComponent(rows)
		if err != nil {
			return nil, err
		}
		components = append(components, *rc)
	}
	return components, rows.Err()
}

// UpdateRegistryComponent updates a registry component's mutable fields.
func (s *SQLiteStore) UpdateRegistryComponent(ctx context.Context, rc *domain.RegistryComponent) error {
	metadata := ""
	if rc.Metadata != nil {
		metadata = string(rc.Metadata)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE registry_components SET name = ?, description = ?, content = ?, tags = ?, visibility = ?, status = ?, entitlement_type = ?, version = ?, metadata = ?, published_at = ?, deprecation_reason = ?, updated_at = ?
		 WHERE component_id = ? AND deleted_at IS NULL`,
		rc.Name, rc.Description, rc.Content, marshalTags(rc.Tags), rc.Visibility, rc.Status,
		rc.Entitlement, rc.Version, metadata, nullTime(rc.PublishedAt), rc.DeprecationReason,
		time.Now(), rc.ComponentID)
	return err
}

// SoftDeleteRegistryComponent marks a registry component as deleted.
func (s *SQLiteStore) SoftDeleteRegistryComponent(ctx context.Context, componentID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE registry_components SET deleted_at = ? WHERE component_id = ? AND deleted_at IS NULL`,
		time.Now(), componentID)
	return err
}

// CreateSnapshot stores a point-in-time copy of a registry component.
func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, component_id, version_label, name, description, content, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SnapshotID, snap.ComponentID, snap.VersionLabel, snap.Name, snap.Description,
		snap.Content, snap.CreatedBy, snap.CreatedAt)
	return err
}

// ListSnapshots lists a registry component's snapshots, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, componentID string) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id, component_id, version_label, name, description, content, created_by, created_at
		 FROM snapshots WHERE component_id = ? ORDER BY created_at DESC`, componentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		var snap domain.Snapshot
		var description, content, createdBy sql.NullString
		if err := rows.Scan(&snap.SnapshotID, &snap.ComponentID, &snap.VersionLabel, &snap.Name, &description, &content, &createdBy, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snap.Description = description.String
		snap.Content = content.String
		snap.CreatedBy = createdBy.String
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// CreateGrant creates a component access grant.
func (s *SQLiteStore) CreateGrant(ctx context.Context, grant *domain.Grant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grants (grant_id, component_id, agent_id, access_level, granted_by, granted_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		grant.GrantID, grant.ComponentID, grant.AgentID, grant.Level, grant.GrantedBy,
		grant.GrantedAt, nullTime(grant.ExpiresAt))
	return err
}

func scanGrant(row interface{ Scan(...interface{}) error }) (*domain.Grant, error) {
	var g domain.Grant
	var grantedBy sql.NullString
	var expiresAt, revokedAt sql.NullTime
	err := row.Scan(&g.GrantID, &g.ComponentID, &g.AgentID, &g.Level, &grantedBy, &g.GrantedAt, &expiresAt, &revokedAt)
	if err != nil {
		return nil, err
	}
	g.GrantedBy = grantedBy.String
	if expiresAt.Valid {
		g.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		g.RevokedAt = &revokedAt.Time
	}
	return &g, nil
}

// GetActiveGrant returns the newest unrevoked, unexpired grant for a
// component/agent pair, or nil.
func (s *SQLiteStore) GetActiveGrant(ctx context.Context, componentID, agentID string) (*domain.Grant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT grant_id, component_id, agent_id, access_level, granted_by, granted_at, expires_at, revoked_at
		 FROM grants
		 WHERE component_id = ? AND agent_id = ? AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY granted_at DESC LIMIT 1`,
		componentID, agentID, time.Now())
	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListGrants lists all grants on a component, including revoked ones.
func (s *SQLiteStore) ListGrants(ctx context.Context, componentID string) ([]domain.Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT grant_id, component_id, agent_id, access_level, granted_by, granted_at, expires_at, revoked_at
		 FROM grants WHERE component_id = ? ORDER BY granted_at DESC`, componentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []domain.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

// RevokeGrant marks a grant as revoked.
func (s *SQLiteStore) RevokeGrant(ctx context.Context, grantID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE grants SET revoked_at = ? WHERE grant_id = ? AND revoked_at IS NULL`,
		time.Now(), grantID)
	return err
}

// CreateAccessRequest creates a pending access request.
func (s *SQLiteStore) CreateAccessRequest(ctx context.Context, req *domain.AccessRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_requests (request_id, component_id, agent_id, requested_level, requested_by, requested_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.RequestID, req.ComponentID, req.AgentID, req.RequestedLevel, req.RequestedBy,
		req.RequestedAt, req.Status)
	return err
}

func scanAccessRequest(row interface{ Scan(...interface{}) error }) (*domain.AccessRequest, error) {
	var r domain.AccessRequest
	var requestedBy, resolvedBy, denialReason sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&r.RequestID, &r.ComponentID, &r.AgentID, &r.RequestedLevel, &requestedBy,
		&r.RequestedAt, &r.Status, &resolvedBy, &resolvedAt, &denialReason)
	if err != nil {
		return nil, err
	}
	r.RequestedBy = requestedBy.String
	r.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		r.ResolvedAt = &resolvedAt.Time
	}
	r.DenialReason = denialReason.String
	return &r, nil
}

// GetAccessRequest retrieves an access request by ID.
func (s *SQLiteStore) GetAccessRequest(ctx context.Context, requestID string) (*domain.AccessRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_id, component_id, agent_id, requested_level, requested_by, requested_at, status, resolved_by, resolved_at, denial_reason
		 FROM access_requests WHERE request_id = ?`, requestID)
	r, err := scanAccessRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListAccessRequests lists a component's access requests, optionally filtered
// by status.
func (s *SQLiteStore) ListAccessRequests(ctx context.Context, componentID string, status domain.RequestStatus) ([]domain.AccessRequest, error) {
	query := `SELECT request_id, component_id, agent_id, requested_level, requested_by, requested_at, status, resolved_by, resolved_at, denial_reason
		 FROM access_requests WHERE component_id = ?`
	args := []interface{}{componentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.AccessRequest
	for rows.Next() {
		r, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// ResolveAccessRequest resolves a pending access request.
func (s *SQLiteStore) ResolveAccessRequest(ctx context.Context, requestID string, status domain.RequestStatus, resolvedBy, denialReason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE access_requests SET status = ?, resolved_by = ?, resolved_at = ?, denial_reason = ?
		 WHERE request_id = ? AND status = 'pending'`,
		status, resolvedBy, time.Now(), denialReason, requestID)
	return err
}

// CreateRegistryRef links an agent to a registry component.
func (s *SQLiteStore) CreateRegistryRef(ctx context.Context, ref *domain.RegistryRef) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_refs (ref_id, agent_id, component_id, added_at, added_by)
		 VALUES (?, ?, ?, ?, ?)`,
		ref.RefID, ref.AgentID, ref.ComponentID, ref.AddedAt, ref.AddedBy)
	return err
}

// ListRegistryRefs lists an agent's registry component links.
func (s *SQLiteStore) ListRegistryRefs(ctx context.Context, agentID string) ([]domain.RegistryRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref_id, agent_id, component_id, added_at, added_by FROM registry_refs WHERE agent_id = ? ORDER BY added_at`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.RegistryRef
	for rows.Next() {
		var ref domain.RegistryRef
		var addedBy sql.NullString
		if err := rows.Scan(&ref.RefID, &ref.AgentID, &ref.ComponentID, &ref.AddedAt, &addedBy); err != nil {
			return nil, err
		}
		ref.AddedBy = addedBy.String
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// CreateDeployment creates a new deployment record.
func (s *SQLiteStore) CreateDeployment(ctx context.Context, dep *domain.Deployment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (deployment_id, agent_id, version_id, status, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dep.DeploymentID, dep.AgentID, dep.VersionID, dep.Status, dep.CreatedBy, dep.CreatedAt)
	return err
}

const deploymentColumns = `deployment_id, agent_id, version_id, status, container_id, image_id, port, error_message, created_by, created_at, started_at, stopped_at`

func scanDeployment(row interface{ Scan(...interface{}) error }) (*domain.Deployment, error) {
	var d domain.Deployment
	var containerID, imageID, errorMessage, createdBy sql.NullString
	var port sql.NullInt64
	var startedAt, stoppedAt sql.NullTime
	err := row.Scan(&d.DeploymentID, &d.AgentID, &d.VersionID, &d.Status, &containerID,
		&imageID, &port, &errorMessage, &createdBy, &d.CreatedAt, &startedAt, &stoppedAt)
	if err != nil {
		return nil, err
	}
	d.ContainerID = containerID.String
	d.ImageID = imageID.String
	d.Port = int(port.Int64)
	d.ErrorMessage = errorMessage.String
	d.CreatedBy = createdBy.String
	if startedAt.Valid {
		d.StartedAt = &startedAt.Time
	}
	if stoppedAt.Valid {
		d.StoppedAt = &stoppedAt.Time
	}
	return &d, nil
}

// GetDeployment retrieves a deployment by ID.
func (s *SQLiteStore) GetDeployment(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE deployment_id = ?`, deploymentID)
	d, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDeployments lists an agent's deployments, optionally filtered by status.
func (s *SQLiteStore) ListDeployments(ctx context.Context, agentID string, status domain.DeploymentStatus) ([]domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE agent_id = ?`
	args := []interface{}{agentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// ListRunningDeployments lists all running deployments across agents.
func (s *SQLiteStore) ListRunningDeployments(ctx context.Context) ([]domain.Deployment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE status = 'running' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// GetActiveDeployment returns an agent's newest running deployment, or nil.
func (s *SQLiteStore) GetActiveDeployment(ctx context.Context, agentID string) (*domain.Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deploymentColumns+` FROM deployments
		 WHERE agent_id = ? AND status = 'running' ORDER BY created_at DESC LIMIT 1`, agentID)
	d, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDeploymentStatus updates a deployment's status.
func (s *SQLiteStore) UpdateDeploymentStatus(ctx context.Context, deploymentID string, status domain.DeploymentStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = ? WHERE deployment_id = ?`, status, deploymentID)
	return err
}

// UpdateDeploymentStarted records container details when a deployment reaches
// running.
func (s *SQLiteStore) UpdateDeploymentStarted(ctx context.Context, deploymentID, containerID, imageID string, port int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = 'running', container_id = ?, image_id = ?, port = ?, started_at = ? WHERE deployment_id = ?`,
		containerID, imageID, port, time.Now(), deploymentID)
	return err
}

// UpdateDeploymentStopped records the terminal state of a deployment.
func (s *SQLiteStore) UpdateDeploymentStopped(ctx context.Context, deploymentID string, status domain.DeploymentStatus, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = ?, error_message = ?, stopped_at = ? WHERE deployment_id = ?`,
		status, nullStr(errMsg), time.Now(), deploymentID)
	return err
}
