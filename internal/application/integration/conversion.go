package integration

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// maxEventValueLen bounds the offending value copied into a degradation event
const maxEventValueLen = 200

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	emailAllowed = regexp.MustCompile("[^a-zA-Z0-9!#$%&'*+/=?^_`{|}~.@-]")
)

// dateLayouts are tried in order when reparsing a date
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday, January 2, 2006",
}

// Converter implements the bidirectional value transforms keyed by a
// mapping's declared type. Malformed input never fails a conversion: it
// degrades to a neutral value and the degradation is reported to the sink.
// Errors are returned only for lookup or media infrastructure failures.
type Converter struct {
	lookups  *LookupResolver
	media    integration.MediaURLResolver
	sink     integration.DegradationSink
	validate *validator.Validate
}

// NewConverter creates a new Converter. lookups and media may be nil, in which
// case lookup and attachment fields degrade to nil.
func NewConverter(sink integration.DegradationSink, lookups *LookupResolver, media integration.MediaURLResolver) *Converter {
	if sink == nil {
		sink = NopDegradationSink{}
	}
	return &Converter{
		lookups:  lookups,
		media:    media,
		sink:     sink,
		validate: validator.New(),
	}
}

// ---------------------------------------------------------------------------
// remote -> local
// ---------------------------------------------------------------------------

// ToLocal converts a remote field value into its local representation.
// A nil result means "leave the local value untouched".
func (c *Converter) ToLocal(ctx context.Context, value any, m integration.FieldMapping) (any, error) {
	switch m.Type {
	case integration.ValueTypeSelect:
		return c.selectToLocal(ctx, value, m), nil
	case integration.ValueTypeMultiSelect:
		return c.multiSelectToLocal(ctx, value, m), nil
	case integration.ValueTypeNumber:
		if value == nil {
			return nil, nil
		}
		if f, ok := parseNumber(value); ok {
			return f, nil
		}
		c.degrade(ctx, m, integration.SyncDirectionPull, value, integration.DegradationNotANumber)
		return 0.0, nil
	case integration.ValueTypeCheckbox:
		return Truthy(value), nil
	case integration.ValueTypePhone:
		if value == nil {
			return nil, nil
		}
		return FormatPhone(scalarString(value)), nil
	case integration.ValueTypeEmail:
		return c.emailToLocal(ctx, value, m), nil
	case integration.ValueTypeURL:
		return c.urlToLocal(ctx, value, m), nil
	case integration.ValueTypeDate:
		return c.dateConvert(ctx, value, m, integration.SyncDirectionPull), nil
	case integration.ValueTypeTime:
		return value, nil
	case integration.ValueTypeLookup:
		if c.lookups == nil {
			return nil, nil
		}
		ids, err := c.lookups.ToLocal(ctx, value, m)
		if err != nil || ids == nil {
			return nil, err
		}
		return ids, nil
	case integration.ValueTypeAttachment:
		return c.attachmentToLocal(ctx, value, m), nil
	default:
		if value == nil {
			return nil, nil
		}
		return SanitizeText(textString(value)), nil
	}
}

func (c *Converter) selectToLocal(ctx context.Context, value any, m integration.FieldMapping) any {
	label, ok := value.(string)
	if !ok || label == "" {
		return value
	}
	if v, found := m.ValueFor(label); found {
		return v
	}
	c.degrade(ctx, m, integration.SyncDirectionPull, value, integration.DegradationUnmatchedOption)
	return label
}

func (c *Converter) multiSelectToLocal(ctx context.Context, value any, m integration.FieldMapping) any {
	items, ok := sequence(value)
	if !ok {
		if value != nil {
			c.degrade(ctx, m, integration.SyncDirectionPull, value, integration.DegradationNotASequence)
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if len(m.Options) > 0 {
			if v, found := m.ValueFor(item); found {
				item = v
			}
		}
		out = append(out, item)
	}
	return out
}

func (c *Converter) emailToLocal(ctx context.Context, value any, m integration.FieldMapping) any {
	if value == nil {
		return nil
	}
	cleaned := emailAllowed.ReplaceAllString(strings.TrimSpace(scalarString(value)), "")
	if cleaned == "" {
		return ""
	}
	if c.validate.Var(cleaned, "email") != nil {
		c.degrade(ctx, m, integration.SyncDirectionPull, value, integration.DegradationInvalidEmail)
		return ""
	}
	return cleaned
}

func (c *Converter) urlToLocal(ctx context.Context, value any, m integration.FieldMapping) any {
	if value == nil {
		return nil
	}
	raw := strings.TrimSpace(scalarString(value))
	if raw == "" {
		return ""
	}
	if c.validate.Var(raw, "url") != nil {
		c.degrade(ctx, m, integration.SyncDirectionPull, value, integration.DegradationInvalidURL)
		return ""
	}
	return raw
}

func (c *Converter) attachmentToLocal(ctx context.Context, value any, m integration.FieldMapping) any {
	if value == nil {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		c.degrade(ctx, m, integration.SyncDirectionPull, value, integration.DegradationNotASequence)
		return []string{}
	}
	urls := make([]string, 0, len(list))
	for _, item := range list {
		switch a := item.(type) {
		case map[string]any:
			if u, ok := a["url"].(string); ok && u != "" {
				urls = append(urls, u)
			}
		case string:
			if a != "" {
				urls = append(urls, a)
			}
		}
	}
	return urls
}

// ---------------------------------------------------------------------------
// local -> remote
// ---------------------------------------------------------------------------

// ToRemote converts a local value into the remote field representation.
// A nil result means the field is omitted from the payload.
func (c *Converter) ToRemote(ctx context.Context, value any, m integration.FieldMapping) (any, error) {
	switch m.Type {
	case integration.ValueTypeSelect:
		s, ok := value.(string)
		if !ok || s == "" {
			return value, nil
		}
		if label, found := m.LabelFor(s); found {
			return label, nil
		}
		c.degrade(ctx, m, integration.SyncDirectionPush, value, integration.DegradationUnmatchedOption)
		return s, nil
	case integration.ValueTypeMultiSelect:
		return c.multiSelectToRemote(ctx, value, m), nil
	case integration.ValueTypeNumber:
		if value == nil {
			return nil, nil
		}
		if f, ok := parseNumber(value); ok {
			return f, nil
		}
		c.degrade(ctx, m, integration.SyncDirectionPush, value, integration.DegradationNotANumber)
		return nil, nil
	case integration.ValueTypeCheckbox:
		return Truthy(value), nil
	case integration.ValueTypePhone:
		if value == nil {
			return nil, nil
		}
		return FormatPhone(scalarString(value)), nil
	case integration.ValueTypeEmail:
		s := strings.TrimSpace(scalarString(value))
		if s == "" {
			return nil, nil
		}
		if c.validate.Var(s, "email") != nil {
			c.degrade(ctx, m, integration.SyncDirectionPush, value, integration.DegradationInvalidEmail)
			return nil, nil
		}
		return s, nil
	case integration.ValueTypeURL:
		s := strings.TrimSpace(scalarString(value))
		if s == "" {
			return nil, nil
		}
		if c.validate.Var(s, "url") != nil {
			c.degrade(ctx, m, integration.SyncDirectionPush, value, integration.DegradationInvalidURL)
			return nil, nil
		}
		return s, nil
	case integration.ValueTypeDate:
		out := c.dateConvert(ctx, value, m, integration.SyncDirectionPush)
		if out == "" {
			return nil, nil
		}
		return out, nil
	case integration.ValueTypeTime:
		return value, nil
	case integration.ValueTypeLookup:
		if c.lookups == nil {
			return nil, nil
		}
		ids, err := c.lookups.ToRemote(ctx, value)
		if err != nil || ids == nil {
			return nil, err
		}
		return ids, nil
	case integration.ValueTypeAttachment:
		return c.attachmentToRemote(ctx, value, m)
	default:
		if value == nil {
			return nil, nil
		}
		return textString(value), nil
	}
}

func (c *Converter) multiSelectToRemote(ctx context.Context, value any, m integration.FieldMapping) []string {
	var items []string
	switch v := value.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	default:
		seq, ok := sequence(value)
		if !ok {
			if value != nil {
				c.degrade(ctx, m, integration.SyncDirectionPush, value, integration.DegradationNotASequence)
			}
			return []string{}
		}
		items = seq
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if label, found := m.LabelFor(item); found {
			item = label
		}
		out = append(out, item)
	}
	return out
}

func (c *Converter) attachmentToRemote(ctx context.Context, value any, m integration.FieldMapping) (any, error) {
	var keys []string
	if s, ok := value.(string); ok {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				keys = append(keys, part)
			}
		}
	} else if seq, ok := sequence(value); ok {
		keys = seq
	}
	if len(keys) == 0 {
		return nil, nil
	}

	attachments := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
			attachments = append(attachments, map[string]any{"url": key})
			continue
		}
		if c.media == nil {
			c.degrade(ctx, m, integration.SyncDirectionPush, key, integration.DegradationUnresolvedMedia)
			continue
		}
		u, err := c.media.ResolveURL(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.degrade(ctx, m, integration.SyncDirectionPush, key, integration.DegradationUnresolvedMedia)
			continue
		}
		attachments = append(attachments, map[string]any{"url": u})
	}
	if len(attachments) == 0 {
		return nil, nil
	}
	return attachments, nil
}

// ---------------------------------------------------------------------------
// shared transforms
// ---------------------------------------------------------------------------

func (c *Converter) dateConvert(ctx context.Context, value any, m integration.FieldMapping, dir integration.SyncDirection) any {
	switch v := value.(type) {
	case nil:
		if dir == integration.SyncDirectionPull {
			return nil
		}
		return ""
	case time.Time:
		return v.Format("2006-01-02")
	}
	raw := strings.TrimSpace(scalarString(value))
	if raw == "" {
		return ""
	}
	if t, ok := ParseDate(raw); ok {
		return t.Format("2006-01-02")
	}
	c.degrade(ctx, m, dir, value, integration.DegradationUnparsableDate)
	return ""
}

// truncateValue cuts s to at most n bytes on a rune boundary and replaces
// invalid UTF-8, so the result can be stored in a text column.
func truncateValue(s string, n int) string {
	if len(s) > n {
		cut := n
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

func (c *Converter) degrade(ctx context.Context, m integration.FieldMapping, dir integration.SyncDirection, value any, reason integration.DegradationReason) {
	scope := scopeFrom(ctx)
	v := truncateValue(fmt.Sprint(value), maxEventValueLen)
	c.sink.Degraded(ctx, integration.DegradationEvent{
		ID:          uuid.New(),
		EntityType:  scope.entityType,
		EntityID:    scope.entityID,
		RecordID:    scope.recordID,
		LocalField:  m.LocalName,
		RemoteField: m.RemoteName,
		ValueType:   m.Type,
		Direction:   dir,
		Value:       v,
		Reason:      reason,
		OccurredAt:  time.Now(),
	})
}

// FormatPhone canonicalizes a phone number: 10 digits become (XXX) XXX-XXXX,
// 11 digits starting with 1 become +1 (XXX) XXX-XXXX, anything else is
// returned unchanged.
func FormatPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	switch {
	case len(d) == 10:
		return fmt.Sprintf("(%s) %s-%s", d[0:3], d[3:6], d[6:])
	case len(d) == 11 && d[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", d[1:4], d[4:7], d[7:])
	default:
		return raw
	}
}

// Truthy coerces a value to boolean
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on", "checked":
			return true
		}
		return false
	case []any:
		return len(v) > 0
	}
	return false
}

// ParseDate reparses a date written in any of the accepted layouts
func ParseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SanitizeText strips markup and control characters and normalizes to NFC
func SanitizeText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(norm.NFC.String(s))
}

// parseNumber reads a float from numbers and numeric strings. Currency
// symbols, thousands separators and spaces are tolerated in strings.
func parseNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case decimal.Decimal:
		return v.InexactFloat64(), true
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(v))
		if cleaned == "" {
			return 0, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	}
	return 0, false
}

// sequence reads a list of scalars as strings
func sequence(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, scalarString(item))
		}
		return out, true
	}
	return nil, false
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// textString flattens lists (e.g. lookup display values) into a comma separated string
func textString(value any) string {
	if seq, ok := sequence(value); ok {
		return strings.Join(seq, ", ")
	}
	return scalarString(value)
}

// isBlank reports whether a local value should be left out of a push payload
func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	case int64:
		return v == 0
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}
