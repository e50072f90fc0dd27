package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeeper/internal/auditctx"
	"github.com/charlesng35/gatekeeper/internal/models"
	"github.com/charlesng35/gatekeeper/internal/monitoring"
	apperrors "github.com/charlesng35/gatekeeper/pkg/errors"
)

// Audit actions written by the authorization services.
const (
	AuditRoleCreate        = "role.create"
	AuditRoleUpdate        = "role.update"
	AuditRoleDelete        = "role.delete"
	AuditRoleSetParent     = "role.set_parent"
	AuditRoleGrant         = "role.grant"
	AuditRoleRevoke        = "role.revoke"
	AuditRoleFromTemplate  = "role.create_from_template"
	AuditAssignmentCreate  = "assignment.create"
	AuditAssignmentDelete  = "assignment.delete"
	AuditPermissionDefine  = "permission.define"
	AuditPermissionDelete  = "permission.delete"
	AuditTemplateCreate    = "template.create"
	AuditTemplateImport    = "template.import"
	AuditTemplateApply     = "template.apply"
	AuditTemplateClone     = "template.clone"
	AuditTemplateFromRole  = "template.export_role"
	AuditTemplateSetActive = "template.set_active"
	AuditTemplateDelete    = "template.delete"
)

// Entity types recorded on audit entries.
const (
	EntityRole       = "role"
	EntityAssignment = "assignment"
	EntityPermission = "permission"
	EntityTemplate   = "template"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// ExportFormat selects the audit export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ParseExportFormat accepts csv or json, case-insensitively.
func ParseExportFormat(value string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(value))) {
	case ExportCSV, "":
		return ExportCSV, nil
	case ExportJSON:
		return ExportJSON, nil
	}
	return "", apperrors.NewValidation("Unsupported export format", map[string]any{"format": value})
}

// AuditRecord describes one mutation to append to the trail. Actor, address
// and reason come from the request context.
type AuditRecord struct {
	Action       string
	EntityType   string
	EntityID     string
	TargetUserID string
	TargetRoleID string
	PermissionID string
	Details      map[string]any
}

// AuditFilters narrows queries and exports. All set fields must match.
type AuditFilters struct {
	Action     string
	EntityType string
	// UserID matches either the actor or the target user.
	UserID   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// AuditListOptions controls pagination for Query.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditPage is one page of entries, newest first.
type AuditPage struct {
	Entries  []models.AuditEntry `json:"entries"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// AuditService appends and reads the authorization audit trail.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Record appends an entry using tx, which must be the transaction carrying the
// mutation. A failure here is returned so the caller rolls the mutation back.
func (s *AuditService) Record(ctx context.Context, tx *gorm.DB, record AuditRecord) (*models.AuditEntry, error) {
	ctx = ensureContext(ctx)
	if tx == nil {
		tx = s.db
	}

	action := strings.TrimSpace(record.Action)
	entityType := strings.TrimSpace(record.EntityType)
	if action == "" || entityType == "" {
		monitoring.RecordAuditWrite(action, "failure")
		return nil, apperrors.NewValidation("Audit action and entity type are required", map[string]any{
			"action":      action,
			"entity_type": entityType,
		})
	}

	entry := models.AuditEntry{
		Action:       action,
		EntityType:   entityType,
		EntityID:     strings.TrimSpace(record.EntityID),
		ActorUserID:  actorID(ctx),
		TargetUserID: strings.TrimSpace(record.TargetUserID),
		TargetRoleID: strings.TrimSpace(record.TargetRoleID),
		PermissionID: strings.TrimSpace(record.PermissionID),
		Timestamp:    time.Now().UTC(),
	}
	if len(record.Details) > 0 {
		entry.Details = datatypes.JSONMap(record.Details)
	}
	if actor, ok := auditctx.FromContext(ctx); ok {
		entry.IPAddress = strings.TrimSpace(actor.IPAddress)
		entry.Reason = strings.TrimSpace(actor.Reason)
	}

	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		monitoring.RecordAuditWrite(action, "failure")
		return nil, fmt.Errorf("audit service: record %s: %w", action, err)
	}
	monitoring.RecordAuditWrite(action, "success")
	return &entry, nil
}

// Query returns a page of entries ordered by timestamp descending.
func (s *AuditService) Query(ctx context.Context, opts AuditListOptions) (AuditPage, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 {
		perPage = defaultAuditPageSize
	}
	if perPage > maxAuditPageSize {
		perPage = maxAuditPageSize
	}

	result := AuditPage{Page: page, PageSize: perPage, Entries: []models.AuditEntry{}}

	query := s.db.WithContext(ctx).Model(&models.AuditEntry{}).Scopes(auditFilterScope(opts.Filters))
	if err := query.Count(&result.Total).Error; err != nil {
		return AuditPage{}, fmt.Errorf("audit service: count entries: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Scopes(auditFilterScope(opts.Filters)).
		Order("timestamp DESC").
		Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&result.Entries).Error; err != nil {
		return AuditPage{}, fmt.Errorf("audit service: list entries: %w", err)
	}
	return result, nil
}

// Export streams every matching entry to w, newest first, reading one row at
// a time from a database cursor. Cancelling ctx stops the stream and returns
// the context error; rows already written stay written.
func (s *AuditService) Export(ctx context.Context, filters AuditFilters, format ExportFormat, w io.Writer) (int, error) {
	ctx = ensureContext(ctx)
	if w == nil {
		return 0, errors.New("audit service: export writer is required")
	}

	var sink auditSink
	switch format {
	case ExportCSV, "":
		sink = newCSVSink(w)
	case ExportJSON:
		sink = newJSONSink(w)
	default:
		return 0, apperrors.NewValidation("Unsupported export format", map[string]any{"format": string(format)})
	}

	rows, err := s.db.WithContext(ctx).
		Model(&models.AuditEntry{}).
		Scopes(auditFilterScope(filters)).
		Order("timestamp DESC").
		Order("id DESC").
		Rows()
	if err != nil {
		return 0, fmt.Errorf("audit service: open export cursor: %w", err)
	}
	defer rows.Close()

	if err := sink.begin(); err != nil {
		return 0, fmt.Errorf("audit service: write export header: %w", err)
	}

	written := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		var entry models.AuditEntry
		if err := s.db.ScanRows(rows, &entry); err != nil {
			return written, fmt.Errorf("audit service: scan export row: %w", err)
		}
		if err := sink.write(entry); err != nil {
			return written, fmt.Errorf("audit service: write export row: %w", err)
		}
		written++
	}
	if err := rows.Err(); err != nil {
		return written, fmt.Errorf("audit service: iterate export rows: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return written, err
	}
	if err := sink.end(); err != nil {
		return written, fmt.Errorf("audit service: finish export: %w", err)
	}
	return written, nil
}

func auditFilterScope(filters AuditFilters) func(*gorm.DB) *gorm.DB {
	return func(query *gorm.DB) *gorm.DB {
		if action := strings.TrimSpace(filters.Action); action != "" {
			query = query.Where("action = ?", action)
		}
		if entityType := strings.TrimSpace(filters.EntityType); entityType != "" {
			query = query.Where("entity_type = ?", entityType)
		}
		if userID := strings.TrimSpace(filters.UserID); userID != "" {
			query = query.Where("(actor_user_id = ? OR target_user_id = ?)", userID, userID)
		}
		if filters.DateFrom != nil {
			query = query.Where("timestamp >= ?", filters.DateFrom.UTC())
		}
		if filters.DateTo != nil {
			query = query.Where("timestamp <= ?", filters.DateTo.UTC())
		}
		return query
	}
}

type auditSink interface {
	begin() error
	write(entry models.AuditEntry) error
	end() error
}

var auditCSVHeader = []string{
	"id", "timestamp", "action", "entity_type", "entity_id", "actor_user_id",
	"target_user_id", "target_role_id", "permission_id", "reason", "ip_address", "details",
}

type csvSink struct {
	w *csv.Writer
}

func newCSVSink(w io.Writer) *csvSink {
	return &csvSink{w: csv.NewWriter(w)}
}

func (s *csvSink) begin() error {
	return s.w.Write(auditCSVHeader)
}

func (s *csvSink) write(entry models.AuditEntry) error {
	details := ""
	if len(entry.Details) > 0 {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		details = string(encoded)
	}
	if err := s.w.Write([]string{
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.ActorUserID,
		entry.TargetUserID,
		entry.TargetRoleID,
		entry.PermissionID,
		entry.Reason,
		entry.IPAddress,
		details,
	}); err != nil {
		return err
	}
	// flush per row so a slow consumer sees progress and a cancelled
	// request leaves nothing buffered
	s.w.Flush()
	return s.w.Error()
}

func (s *csvSink) end() error {
	s.w.Flush()
	return s.w.Error()
}

// jsonSink writes a JSON array one element at a time.
type jsonSink struct {
	w     io.Writer
	first bool
}

func newJSONSink(w io.Writer) *jsonSink {
	return &jsonSink{w: w, first: true}
}

func (s *jsonSink) begin() error {
	_, err := io.WriteString(s.w, "[")
	return err
}

func (s *jsonSink) write(entry models.AuditEntry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if !s.first {
		if _, err := io.WriteString(s.w, ","); err != nil {
			return err
		}
	}
	s.first = false
	_, err = s.w.Write(encoded)
	return err
}

func (s *jsonSink) end() error {
	_, err := io.WriteString(s.w, "]")
	return err
}
