package contracts

import "strings"

// PayloadType is the kind of one user prompt item.
type PayloadType string

const (
	PayloadText    PayloadType = "text"
	PayloadImage   PayloadType = "image"
	PayloadProduct PayloadType = "product"
)

// Gender of a user profile. Serialized capitalized, parsed case-insensitively.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// UserRole is the business role of the person behind a profile.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdvisor  UserRole = "advisor"
	UserRoleUser     UserRole = "user"
)

// Role is the speaker of a dialog turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ResponseMode selects how the session manager renders answers.
type ResponseMode string

const (
	ResponseModeJSON         ResponseMode = "json"
	ResponseModeAdaptiveCard ResponseMode = "adaptive_card"
)

// MergeStrategy controls how search results from several agents are combined.
type MergeStrategy string

const (
	MergeAppend     MergeStrategy = "append"
	MergeInterleave MergeStrategy = "interleave"
	MergeReplace    MergeStrategy = "replace"
)

var (
	payloadTypes   = []PayloadType{PayloadText, PayloadImage, PayloadProduct}
	genders        = []Gender{GenderMale, GenderFemale, GenderOther}
	userRoles      = []UserRole{UserRoleCustomer, UserRoleAdvisor, UserRoleUser}
	roles          = []Role{RoleUser, RoleAssistant, RoleSystem}
	responseModes  = []ResponseMode{ResponseModeJSON, ResponseModeAdaptiveCard}
	mergeStrategys = []MergeStrategy{MergeAppend, MergeInterleave, MergeReplace}
)

// MergeStrategies lists the accepted merge strategies in wire form.
func MergeStrategies() []string { return enumStrings(mergeStrategys) }

func parseEnum[T ~string](name, raw string, allowed []T, fold bool) (T, error) {
	for _, v := range allowed {
		if string(v) == raw || (fold && strings.EqualFold(string(v), raw)) {
			return v, nil
		}
	}
	return "", enumError(name, raw, enumStrings(allowed)...)
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func (p *PayloadType) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnumString(data)
	if err != nil {
		return err
	}
	v, err := parseEnum("payload type", raw, payloadTypes, false)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (g *Gender) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnumString(data)
	if err != nil {
		return err
	}
	v, err := parseEnum("gender", raw, genders, true)
	if err != nil {
		return err
	}
	*g = v
	return nil
}

func (r *UserRole) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnumString(data)
	if err != nil {
		return err
	}
	v, err := parseEnum("user role", raw, userRoles, false)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func (r *Role) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnumString(data)
	if err != nil {
		return err
	}
	v, err := parseEnum("role", raw, roles, false)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRole validates a role given outside of JSON (e.g. a query filter).
func ParseRole(raw string) (Role, error) {
	return parseEnum("role", strings.TrimSpace(raw), roles, false)
}

// UnmarshalJSON accepts an empty string as the json default.
func (m *ResponseMode) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnumString(data)
	if err != nil {
		return err
	}
	if raw == "" {
		*m = ResponseModeJSON
		return nil
	}
	v, err := parseEnum("response mode", raw, responseModes, false)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m *MergeStrategy) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnumString(data)
	if err != nil {
		return err
	}
	v, err := parseEnum("search results merge strategy", raw, mergeStrategys, false)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
