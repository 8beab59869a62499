package types

import "time"

// Category is the high-level service family tag on a record.
type Category string

const (
	CategoryCompute     Category = "Compute"
	CategoryStorage     Category = "Storage"
	CategoryDatabase    Category = "Database"
	CategoryNetworking  Category = "Networking"
	CategorySecurity    Category = "Security"
	CategoryMonitoring  Category = "Monitoring"
	CategoryIntegration Category = "Application Integration"
	CategoryMigration   Category = "Migration & Transfer"
	CategoryManagement  Category = "Management & Governance"
	CategoryIdentity    Category = "Security, Identity & Compliance"
)

// ResourceRecord is the single normalized output unit of discovery.
// Probes fill everything except EstimatedMonthlyCost and DiscoveredAt,
// which are stamped by the normalizer.
type ResourceRecord struct {
	ServiceID            string         `json:"service_id"`
	ResourceID           string         `json:"resource_id"`
	ResourceName         string         `json:"resource_name"`
	Region               string         `json:"region"`
	ServiceType          Category       `json:"service_type"`
	EstimatedMonthlyCost float64        `json:"estimated_monthly_cost"`
	Count                int            `json:"count"`
	Details              map[string]any `json:"details"`
	DiscoveredAt         time.Time      `json:"discovered_at"`

	// Usage carries the metered inputs the pricing catalog needs.
	// It is consumed by the normalizer and never serialized.
	Usage UsageVector `json:"-"`
}

// GlobalRegion is the sentinel region for globally-scoped services.
const GlobalRegion = "global"

// Key identifies a record within a snapshot.
func (r *ResourceRecord) Key() RecordKey {
	return RecordKey{ServiceID: r.ServiceID, ResourceID: r.ResourceID, Region: r.Region}
}

// RecordKey is the dedupe identity (service_id, resource_id, region).
type RecordKey struct {
	ServiceID  string
	ResourceID string
	Region     string
}

// Less orders records by (service_type, service_id, region, resource_id)
// so that two runs over identical cloud state produce identical snapshots.
func Less(a, b *ResourceRecord) bool {
	if a.ServiceType != b.ServiceType {
		return a.ServiceType < b.ServiceType
	}
	if a.ServiceID != b.ServiceID {
		return a.ServiceID < b.ServiceID
	}
	if a.Region != b.Region {
		return a.Region < b.Region
	}
	return a.ResourceID < b.ResourceID
}

// UsageVector is a probe-supplied map of metered inputs, e.g.
// {"size_gb": 100, "multi_az": true, "instance_type": "m5.large"}.
type UsageVector map[string]any

// Float returns the named input as float64, or def when absent.
func (u UsageVector) Float(key string, def float64) float64 {
	switch v := u[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Str returns the named input as a string, or "" when absent.
func (u UsageVector) Str(key string) string {
	if s, ok := u[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the named input as a bool, false when absent.
func (u UsageVector) Bool(key string) bool {
	b, _ := u[key].(bool)
	return b
}
