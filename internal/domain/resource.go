// Package domain contains core business types and interfaces.
//
// This file defines the closed set of metered resource types. Modeling the
// set as typed constants (rather than free-form strings) keeps catalog
// lookups exhaustive: a locked or zero-limit type is a switch case, not a
// missing map key.
package domain

// ResourceType identifies a metered feature category.
type ResourceType string

const (
	ResourcePhoto    ResourceType = "photo"
	ResourceVideo    ResourceType = "video"
	ResourceAudio    ResourceType = "audio"
	ResourceText     ResourceType = "text"
	ResourceProperty ResourceType = "property"
)

// MeteredResourceTypes lists the diagnostic media types whose allowance
// resets each billing period. Property slots are capacity-based and are
// deliberately not in this list.
var MeteredResourceTypes = []ResourceType{
	ResourcePhoto,
	ResourceVideo,
	ResourceAudio,
	ResourceText,
}

// IsValid returns true for a known resource type.
func (r ResourceType) IsValid() bool {
	switch r {
	case ResourcePhoto, ResourceVideo, ResourceAudio, ResourceText, ResourceProperty:
		return true
	default:
		return false
	}
}

// IsMetered returns true if the resource is counted against a per-period
// allowance. Property slots are compared against an absolute capacity that
// never resets.
func (r ResourceType) IsMetered() bool {
	return r != ResourceProperty && r.IsValid()
}

// IsDiagnosticMedia returns true if the resource type can be submitted as a
// diagnostic payload.
func (r ResourceType) IsDiagnosticMedia() bool {
	return r.IsMetered()
}

func (r ResourceType) String() string {
	return string(r)
}

// ParseResourceType validates a wire-format resource type.
func ParseResourceType(s string) (ResourceType, error) {
	r := ResourceType(s)
	if !r.IsValid() {
		return "", Invalid("resource.parse", "unknown resource type: "+s)
	}
	return r, nil
}
