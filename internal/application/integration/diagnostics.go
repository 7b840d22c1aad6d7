package integration

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/telemetry"
)

// Diagnose samples one remote record of the type and compares its field kinds
// against the profile's expected kinds, reporting drift as warnings. Select
// labels that no longer match an option are reported too. Nothing is written.
func (s *SyncService) Diagnose(ctx context.Context, entityType string) (*integration.DiagnosticReport, error) {
	mapper, table, err := s.resolve(entityType)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "diagnose",
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, entityType),
		telemetry.WithAttribute(telemetry.SpanAttrTable, table),
	)
	defer span.End()

	page, err := s.records.ListRecords(ctx, integration.ListRecordsRequest{Table: table, PageSize: 1})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := &integration.DiagnosticReport{EntityType: entityType, Table: table}
	if len(page.Records) == 0 {
		report.Message = fmt.Sprintf("No records found in table '%s'; nothing to check", table)
		return report, nil
	}

	record := page.Records[0]
	report.RecordID = record.ID
	profile := mapper.FieldMapping()

	expected := profile.ExpectedKinds()
	for _, field := range sortedKeys(expected) {
		value, ok := record.Fields[field]
		if !ok {
			continue
		}
		report.CheckedFields++
		if warning := checkKind(field, value, expected[field]); warning != "" {
			report.Warnings = append(report.Warnings, warning)
		}
	}

	for _, m := range profile.PullMappings() {
		if m.Type != integration.ValueTypeSelect {
			continue
		}
		label, ok := record.Fields[m.RemoteName].(string)
		if !ok || label == "" {
			continue
		}
		report.CheckedFields++
		if _, found := m.ValueFor(label); !found {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Field '%s' has option '%s' which has no local mapping", m.RemoteName, label))
		}
	}

	if len(report.Warnings) == 0 {
		report.Message = fmt.Sprintf("Checked %d field(s) on record %s: no type drift detected", report.CheckedFields, record.ID)
	} else {
		report.Message = fmt.Sprintf("Checked %d field(s) on record %s: %d warning(s)", report.CheckedFields, record.ID, len(report.Warnings))
		logger.WithLogger(ctx, s.logger).Warn("Remote schema drift detected",
			zap.String("entity_type", entityType),
			zap.Strings("warnings", report.Warnings),
		)
	}
	return report, nil
}

// TestConnection lists a single record to prove the table is reachable
func (s *SyncService) TestConnection(ctx context.Context, entityType string) (string, error) {
	_, table, err := s.resolve(entityType)
	if err != nil {
		return "", err
	}
	page, err := s.records.ListRecords(ctx, integration.ListRecordsRequest{Table: table, PageSize: 1})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Connection successful: table '%s' is reachable (%d record(s) sampled)", table, len(page.Records)), nil
}

func checkKind(field string, value any, kind integration.RemoteKind) string {
	actual := kindOf(value)
	switch kind {
	case integration.RemoteKindNumber:
		if actual != "number" {
			return fmt.Sprintf("Field '%s' should be a number but is %s", field, actual)
		}
	case integration.RemoteKindInteger:
		if actual != "number" {
			return fmt.Sprintf("Field '%s' should be an integer but is %s", field, actual)
		}
		if f := value.(float64); f != math.Trunc(f) {
			return fmt.Sprintf("Field '%s' should be an integer but has a fractional value", field)
		}
	case integration.RemoteKindBoolean:
		if actual != "boolean" {
			return fmt.Sprintf("Field '%s' should be a checkbox but is %s", field, actual)
		}
	case integration.RemoteKindArray:
		if actual != "array" {
			return fmt.Sprintf("Field '%s' should be a list but is %s", field, actual)
		}
	case integration.RemoteKindCodeString:
		if actual == "number" {
			return fmt.Sprintf("Field '%s' is numeric; leading zeros may be lost", field)
		}
		if actual != "string" {
			return fmt.Sprintf("Field '%s' should be text but is %s", field, actual)
		}
	}
	return ""
}

// kindOf names the JSON kind of a decoded value
func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", value)
}
