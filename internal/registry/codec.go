package registry

import (
	"fmt"
	"strconv"
	"time"

	"rotapool/internal/model"
)

// Hash field names. Store schema is flat: every value is a string.
const (
	fieldID                   = "id"
	fieldKind                 = "kind"
	fieldStatus               = "status"
	fieldPriority             = "priority"
	fieldRegion               = "region"
	fieldDailyLimit           = "daily_limit"
	fieldMaxConsecutiveErrors = "max_consecutive_errors"
	fieldCreatedAt            = "created_at"
	fieldUsername             = "username"
	fieldEmail                = "email"
	fieldHost                 = "host"
	fieldPort                 = "port"
	fieldPassword             = "password"
	fieldProvider             = "provider"
	fieldMaxConcurrent        = "max_concurrent"

	fieldTotalRequests       = "total_requests"
	fieldSuccessfulRequests  = "successful_requests"
	fieldFailedRequests      = "failed_requests"
	fieldConsecutiveErrors   = "consecutive_errors"
	fieldDailyUsage          = "daily_usage"
	fieldUsageDay            = "usage_day"
	fieldAverageResponseTime = "average_response_time"
	fieldLastUsed            = "last_used"
	fieldLastSuccess         = "last_success"
	fieldLastError           = "last_error"
)

const timeLayout = time.RFC3339Nano

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s: %v", model.ErrMalformedRecord, field, err)
	}
	return &t, nil
}

func parseInt(fields map[string]string, field string) (int64, error) {
	s, ok := fields[field]
	if !ok || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %s: %v", model.ErrMalformedRecord, field, err)
	}
	return v, nil
}

func requireField(fields map[string]string, field string) (string, error) {
	s, ok := fields[field]
	if !ok || s == "" {
		return "", fmt.Errorf("%w: missing field %s", model.ErrMalformedRecord, field)
	}
	return s, nil
}

// EncodeConfig flattens a config into hash fields
func EncodeConfig(cfg *model.ResourceConfig) map[string]string {
	fields := map[string]string{
		fieldID:                   cfg.ID,
		fieldKind:                 string(cfg.Kind),
		fieldStatus:               string(cfg.Status),
		fieldPriority:             string(cfg.Priority),
		fieldRegion:               string(cfg.Region),
		fieldDailyLimit:           strconv.Itoa(cfg.DailyLimit),
		fieldMaxConsecutiveErrors: strconv.Itoa(cfg.MaxConsecutiveErrors),
		fieldCreatedAt:            formatTime(&cfg.CreatedAt),
	}

	switch cfg.Kind {
	case model.KindAccount:
		if cfg.Account != nil {
			fields[fieldUsername] = cfg.Account.Username
			fields[fieldEmail] = cfg.Account.Email
		}
	case model.KindProxy:
		if cfg.Proxy != nil {
			fields[fieldHost] = cfg.Proxy.Host
			fields[fieldPort] = strconv.Itoa(cfg.Proxy.Port)
			fields[fieldUsername] = cfg.Proxy.Username
			fields[fieldPassword] = cfg.Proxy.Password
			fields[fieldProvider] = cfg.Proxy.Provider
			fields[fieldMaxConcurrent] = strconv.Itoa(cfg.Proxy.MaxConcurrent)
		}
	}
	return fields
}

// DecodeConfig rebuilds a config from hash fields. Unknown enum tags and
// unparsable numbers fail with model.ErrMalformedRecord.
func DecodeConfig(fields map[string]string) (*model.ResourceConfig, error) {
	id, err := requireField(fields, fieldID)
	if err != nil {
		return nil, err
	}

	cfg := &model.ResourceConfig{ID: id}

	if cfg.Kind, err = model.ParseKind(fields[fieldKind]); err != nil {
		return nil, err
	}
	if cfg.Status, err = model.ParseStatus(fields[fieldStatus]); err != nil {
		return nil, err
	}
	if cfg.Priority, err = model.ParsePriority(fields[fieldPriority]); err != nil {
		return nil, err
	}
	if cfg.Region, err = model.ParseRegion(fields[fieldRegion]); err != nil {
		return nil, err
	}

	limit, err := parseInt(fields, fieldDailyLimit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: daily_limit must be positive, got %d", model.ErrMalformedRecord, limit)
	}
	cfg.DailyLimit = int(limit)

	maxErrors, err := parseInt(fields, fieldMaxConsecutiveErrors)
	if err != nil {
		return nil, err
	}
	if maxErrors <= 0 {
		return nil, fmt.Errorf("%w: max_consecutive_errors must be positive, got %d", model.ErrMalformedRecord, maxErrors)
	}
	cfg.MaxConsecutiveErrors = int(maxErrors)

	createdAt, err := parseTime(fieldCreatedAt, fields[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	if createdAt != nil {
		cfg.CreatedAt = *createdAt
	}

	switch cfg.Kind {
	case model.KindAccount:
		username, err := requireField(fields, fieldUsername)
		if err != nil {
			return nil, err
		}
		cfg.Account = &model.AccountCredential{
			Username: username,
			Email:    fields[fieldEmail],
		}
	case model.KindProxy:
		host, err := requireField(fields, fieldHost)
		if err != nil {
			return nil, err
		}
		port, err := parseInt(fields, fieldPort)
		if err != nil {
			return nil, err
		}
		if port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: port out of range: %d", model.ErrMalformedRecord, port)
		}
		maxConcurrent, err := parseInt(fields, fieldMaxConcurrent)
		if err != nil {
			return nil, err
		}
		cfg.Proxy = &model.ProxyEndpoint{
			Host:          host,
			Port:          int(port),
			Username:      fields[fieldUsername],
			Password:      fields[fieldPassword],
			Provider:      fields[fieldProvider],
			MaxConcurrent: int(maxConcurrent),
		}
	}

	return cfg, nil
}

// EncodeMetrics flattens metrics into hash fields
func EncodeMetrics(m *model.ResourceMetrics) map[string]string {
	return map[string]string{
		fieldTotalRequests:       strconv.FormatInt(m.TotalRequests, 10),
		fieldSuccessfulRequests:  strconv.FormatInt(m.SuccessfulRequests, 10),
		fieldFailedRequests:      strconv.FormatInt(m.FailedRequests, 10),
		fieldConsecutiveErrors:   strconv.FormatInt(m.ConsecutiveErrors, 10),
		fieldDailyUsage:          strconv.FormatInt(m.DailyUsage, 10),
		fieldUsageDay:            m.UsageDay,
		fieldAverageResponseTime: strconv.FormatFloat(m.AverageResponseTime, 'g', -1, 64),
		fieldLastUsed:            formatTime(m.LastUsed),
		fieldLastSuccess:         formatTime(m.LastSuccess),
		fieldLastError:           m.LastError,
	}
}

// DecodeMetrics rebuilds metrics from hash fields. Absent counters read as zero.
func DecodeMetrics(fields map[string]string) (*model.ResourceMetrics, error) {
	m := &model.ResourceMetrics{
		UsageDay:  fields[fieldUsageDay],
		LastError: fields[fieldLastError],
	}

	counters := []struct {
		field string
		dst   *int64
	}{
		{fieldTotalRequests, &m.TotalRequests},
		{fieldSuccessfulRequests, &m.SuccessfulRequests},
		{fieldFailedRequests, &m.FailedRequests},
		{fieldConsecutiveErrors, &m.ConsecutiveErrors},
		{fieldDailyUsage, &m.DailyUsage},
	}
	for _, c := range counters {
		v, err := parseInt(fields, c.field)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("%w: field %s is negative", model.ErrMalformedRecord, c.field)
		}
		*c.dst = v
	}

	if s := fields[fieldAverageResponseTime]; s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", model.ErrMalformedRecord, fieldAverageResponseTime, err)
		}
		m.AverageResponseTime = v
	}

	var err error
	if m.LastUsed, err = parseTime(fieldLastUsed, fields[fieldLastUsed]); err != nil {
		return nil, err
	}
	if m.LastSuccess, err = parseTime(fieldLastSuccess, fields[fieldLastSuccess]); err != nil {
		return nil, err
	}

	return m, nil
}
